package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// DefaultDecimals is the number of fractional digits of one whole unit.
const DefaultDecimals = 18

// BasisPointsDivisor is the denominator of fee rates expressed in basis points.
const BasisPointsDivisor = 10_000

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNegative      = errors.New("amount must not be negative")
	ErrOverflow      = errors.New("amount overflows 256 bits")
	ErrUnderflow     = errors.New("amount underflow")
	ErrTooPrecise    = errors.New("amount has more fractional digits than allowed")
)

// Amount is an unsigned 256-bit quantity of base units.
// The zero value is a valid zero amount.
type Amount struct {
	v uint256.Int
}

// Zero returns the zero amount
func Zero() Amount {
	return Amount{}
}

// FromUint64 creates an amount of n base units
func FromUint64(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// FromUint256 creates an amount from a uint256 value
func FromUint256(v *uint256.Int) Amount {
	var a Amount
	a.v.Set(v)
	return a
}

// Parse parses a base-10 or 0x-prefixed hex string of base units.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") {
		return Amount{}, ErrNegative
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	b, ok := new(big.Int).SetString(s, base)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if b.Sign() < 0 {
		return Amount{}, ErrNegative
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return Amount{}, ErrOverflow
	}
	return FromUint256(v), nil
}

// MustParse is Parse for constants and tests; it panics on malformed input.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseDecimal parses a human value such as "1.5" with the given number of
// fractional digits into base units.
func ParseDecimal(s string, decimals int32) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if d.IsNegative() {
		return Amount{}, ErrNegative
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, ErrTooPrecise
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return Amount{}, ErrOverflow
	}
	return FromUint256(v), nil
}

// MustParseDecimal is ParseDecimal that panics on malformed input.
func MustParseDecimal(s string, decimals int32) Amount {
	a, err := ParseDecimal(s, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

// Uint256 returns a copy of the underlying value
func (a Amount) Uint256() *uint256.Int {
	return new(uint256.Int).Set(&a.v)
}

// IsZero returns true if the amount is zero
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// IsPositive returns true if the amount is greater than zero
func (a Amount) IsPositive() bool {
	return !a.v.IsZero()
}

// Cmp compares a and b and returns -1, 0 or +1
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// Equal reports whether a and b are the same amount
func (a Amount) Equal(b Amount) bool {
	return a.v.Eq(&b.v)
}

// Add returns a + b
func (a Amount) Add(b Amount) (Amount, error) {
	var r Amount
	if _, overflow := r.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return r, nil
}

// Sub returns a - b
func (a Amount) Sub(b Amount) (Amount, error) {
	var r Amount
	if _, underflow := r.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrUnderflow
	}
	return r, nil
}

// BasisPoints returns floor(a * bps / 10000). The intermediate product is
// computed in 512 bits so it never overflows.
func (a Amount) BasisPoints(bps uint32) Amount {
	var r Amount
	r.v.MulDivOverflow(&a.v, uint256.NewInt(uint64(bps)), uint256.NewInt(BasisPointsDivisor))
	return r
}

// SplitFee divides a into the marketplace fee and the net remainder.
// fee = floor(a * bps / 10000), net = a - fee. With bps <= 10000 net never
// underflows.
func (a Amount) SplitFee(bps uint32) (fee, net Amount) {
	fee = a.BasisPoints(bps)
	net.v.Sub(&a.v, &fee.v)
	return fee, net
}

// Decimal returns the amount as a decimal with the given number of fractional digits
func (a Amount) Decimal(decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(a.v.ToBig(), -decimals)
}

// Format renders the amount in whole units, e.g. "0.975"
func (a Amount) Format(decimals int32) string {
	return a.Decimal(decimals).String()
}

// String returns the base-10 representation of the base units
func (a Amount) String() string {
	return a.v.ToBig().String()
}

// MarshalText implements encoding.TextMarshaler
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Bytes32 returns the big-endian 32-byte encoding
func (a Amount) Bytes32() [32]byte {
	return a.v.Bytes32()
}

// FromBytes interprets b as a big-endian unsigned integer
func FromBytes(b []byte) (Amount, error) {
	if len(b) > 32 {
		return Amount{}, ErrOverflow
	}
	var a Amount
	a.v.SetBytes(b)
	return a, nil
}
