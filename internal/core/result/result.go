package result

import (
	"errors"
	"fmt"
)

// Result represents the outcome code of a market operation.
// A non-success Result is also an error, so operations can return it directly.
type Result int

// Result codes are organized by class: tes, tec, tem, tef.
const (
	// tesSUCCESS (0)
	TesSUCCESS Result = 0

	// tec codes (100-199)
	// The operation was well formed but rejected by current state or a collaborator
	TecDUPLICATE              Result = 149
	TecNO_ENTRY               Result = 140
	TecNO_AUTH                Result = 134
	TecUNFUNDED               Result = 129
	TecREFUND_FAILED          Result = 180
	TecNOT_ASSET_OWNER        Result = 181
	TecASSET_TRANSFER_FAILED  Result = 182
	TecSELLER_PAYMENT_FAILED  Result = 183
	TecFEE_TRANSFER_FAILED    Result = 184

	// tem codes (-299 to -200)
	// Malformed request, rejected before touching state
	TemBAD_AMOUNT    Result = -298
	TemBAD_FEE       Result = -295
	TemBAD_OFFERER   Result = -250
	TemBAD_RECIPIENT Result = -249
	TemBAD_OWNER     Result = -248

	// tef codes (-199 to -100)
	// Failure of the call itself: permission, reentrancy, internal errors
	TefINTERNAL      Result = -192
	TefNO_PERMISSION Result = -170
	TefREENTRANT     Result = -169
)

// String returns the string representation of the result code
func (r Result) String() string {
	switch r {
	case TesSUCCESS:
		return "tesSUCCESS"
	case TecDUPLICATE:
		return "tecDUPLICATE"
	case TecNO_ENTRY:
		return "tecNO_ENTRY"
	case TecNO_AUTH:
		return "tecNO_AUTH"
	case TecUNFUNDED:
		return "tecUNFUNDED"
	case TecREFUND_FAILED:
		return "tecREFUND_FAILED"
	case TecNOT_ASSET_OWNER:
		return "tecNOT_ASSET_OWNER"
	case TecASSET_TRANSFER_FAILED:
		return "tecASSET_TRANSFER_FAILED"
	case TecSELLER_PAYMENT_FAILED:
		return "tecSELLER_PAYMENT_FAILED"
	case TecFEE_TRANSFER_FAILED:
		return "tecFEE_TRANSFER_FAILED"
	case TemBAD_AMOUNT:
		return "temBAD_AMOUNT"
	case TemBAD_FEE:
		return "temBAD_FEE"
	case TemBAD_OFFERER:
		return "temBAD_OFFERER"
	case TemBAD_RECIPIENT:
		return "temBAD_RECIPIENT"
	case TemBAD_OWNER:
		return "temBAD_OWNER"
	case TefINTERNAL:
		return "tefINTERNAL"
	case TefNO_PERMISSION:
		return "tefNO_PERMISSION"
	case TefREENTRANT:
		return "tefREENTRANT"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// Kind returns the short error kind name used in logs and RPC responses.
func (r Result) Kind() string {
	switch r {
	case TesSUCCESS:
		return "Success"
	case TecDUPLICATE:
		return "DuplicateOffer"
	case TecNO_ENTRY:
		return "NoActiveOffer"
	case TecNO_AUTH:
		return "NotAuthorized"
	case TecUNFUNDED:
		return "InsufficientFunds"
	case TecREFUND_FAILED:
		return "RefundFailed"
	case TecNOT_ASSET_OWNER:
		return "NotAssetOwner"
	case TecASSET_TRANSFER_FAILED:
		return "AssetTransferFailed"
	case TecSELLER_PAYMENT_FAILED:
		return "SellerPaymentFailed"
	case TecFEE_TRANSFER_FAILED:
		return "FeeTransferFailed"
	case TemBAD_AMOUNT:
		return "InvalidAmount"
	case TemBAD_FEE:
		return "FeeTooHigh"
	case TemBAD_OFFERER:
		return "InvalidOfferer"
	case TemBAD_RECIPIENT:
		return "InvalidRecipient"
	case TemBAD_OWNER:
		return "InvalidOwner"
	case TefINTERNAL:
		return "Internal"
	case TefNO_PERMISSION:
		return "Unauthorized"
	case TefREENTRANT:
		return "Reentrant"
	default:
		return "Unknown"
	}
}

// Message returns a human-readable description of the result
func (r Result) Message() string {
	switch r {
	case TesSUCCESS:
		return "The operation was applied."
	case TecDUPLICATE:
		return "An offer already exists for this item and offerer; cancel it first."
	case TecNO_ENTRY:
		return "No active offer exists for this item and offerer."
	case TecNO_AUTH:
		return "The market is not approved to transfer this item."
	case TecUNFUNDED:
		return "The offer amount could not be captured from the offerer."
	case TecREFUND_FAILED:
		return "The refund could not be delivered to the offerer."
	case TecNOT_ASSET_OWNER:
		return "The caller does not own this item."
	case TecASSET_TRANSFER_FAILED:
		return "The asset registry rejected the item transfer."
	case TecSELLER_PAYMENT_FAILED:
		return "The payment could not be delivered to the seller."
	case TecFEE_TRANSFER_FAILED:
		return "The marketplace fee could not be delivered to the fee recipient."
	case TemBAD_AMOUNT:
		return "The offer amount must be greater than zero."
	case TemBAD_FEE:
		return "The fee exceeds the maximum of 1000 basis points."
	case TemBAD_OFFERER:
		return "The offerer must not be the null identity."
	case TemBAD_RECIPIENT:
		return "The fee recipient must not be the null identity."
	case TemBAD_OWNER:
		return "The market owner must not be the null identity."
	case TefINTERNAL:
		return "Internal error."
	case TefNO_PERMISSION:
		return "Only the market owner may change market settings."
	case TefREENTRANT:
		return "The market is already settling or cancelling in this call chain."
	default:
		return "Unknown result."
	}
}

// Error implements the error interface
func (r Result) Error() string {
	return r.String() + ": " + r.Message()
}

// IsSuccess returns true if the result is tesSUCCESS
func (r Result) IsSuccess() bool {
	return r == TesSUCCESS
}

// IsTec returns true for state or collaborator rejections
func (r Result) IsTec() bool {
	return r >= 100 && r < 200
}

// IsTem returns true for malformed requests
func (r Result) IsTem() bool {
	return r >= -299 && r < -199
}

// IsTef returns true for call failures
func (r Result) IsTef() bool {
	return r >= -199 && r < -99
}

// Err returns nil for tesSUCCESS and the Result itself otherwise.
func (r Result) Err() error {
	if r.IsSuccess() {
		return nil
	}
	return r
}

// Failure is a Result annotated with the collaborator error that caused it.
type Failure struct {
	Code  Result
	Cause error
}

// Wrap annotates code with the error that caused it.
func Wrap(code Result, cause error) error {
	if cause == nil {
		return code.Err()
	}
	return &Failure{Code: code, Cause: cause}
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Code.String(), f.Cause)
}

// Unwrap exposes both the result code and the cause to errors.Is and errors.As.
func (f *Failure) Unwrap() []error {
	return []error{f.Code, f.Cause}
}

// Code extracts the Result carried by err. A nil error is tesSUCCESS and an
// error without a Result is tefINTERNAL.
func Code(err error) Result {
	if err == nil {
		return TesSUCCESS
	}
	var r Result
	if errors.As(err, &r) {
		return r
	}
	return TefINTERNAL
}
