// Package identity defines the 20-byte identities of market participants,
// collections and the market itself.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/crypto/ripemd160"
)

// Size is the size of an identity in bytes.
const Size = 20

var (
	ErrInvalidIdentity = errors.New("invalid identity")
)

// ID identifies an account, a collection or the market engine.
// The zero ID is the null identity.
type ID [Size]byte

// Null is the null identity
var Null ID

// FromPublicKey computes the identity owned by a public key.
// The identity is a 160-bit value computed as RIPEMD160(SHA256(publicKey)).
func FromPublicKey(publicKey []byte) ID {
	sha256Hash := sha256.Sum256(publicKey)

	ripemd160Hasher := ripemd160.New()
	ripemd160Hasher.Write(sha256Hash[:])
	ripemd160Hash := ripemd160Hasher.Sum(nil)

	var id ID
	copy(id[:], ripemd160Hash)
	return id
}

// FromBytes creates an identity from a byte slice of exactly Size bytes.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != Size {
		return id, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidIdentity, Size, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Parse parses the text form "0x" followed by 40 hex digits.
// The prefix is optional and hex digits are case-insensitive.
func Parse(s string) (ID, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s) != Size*2 {
		return Null, fmt.Errorf("%w: %q", ErrInvalidIdentity, s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Null, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return FromBytes(raw)
}

// MustParse is Parse for constants and tests; it panics on malformed input.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsNull returns true if id is the null identity.
func (id ID) IsNull() bool {
	return id == Null
}

// String returns the text form of the identity
func (id ID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// Short returns an abbreviated form for log lines
func (id ID) Short() string {
	s := hex.EncodeToString(id[:])
	return "0x" + s[:6] + ".." + s[len(s)-4:]
}

// MarshalText implements encoding.TextMarshaler
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
