package rpc_types

import (
	"errors"

	"github.com/LeJamon/goOfferd/internal/core/result"
)

// RpcError represents an RPC error with code and message
type RpcError struct {
	Code        int    `json:"error_code"`
	ErrorString string `json:"error"`
	Type        string `json:"type"`
	Message     string `json:"error_message,omitempty"`
}

func (e RpcError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorString
}

// Transport and request error codes. Market rejections reuse the numeric
// value of their result code instead.
const (
	RpcUNKNOWN          = -1
	RpcJSON_RPC         = -32600
	RpcMETHOD_NOT_FOUND = -32601
	RpcINVALID_PARAMS   = -32602
	RpcINTERNAL         = -32603
	RpcPARSE_ERROR      = -32700

	RpcMISSING_COMMAND  = 2
	RpcNOT_ENABLED      = 31
	RpcPUBLIC_MALFORMED = 62
	RpcBAD_SIGNATURE    = 63
	RpcOBJECT_NOT_FOUND = 92
)

// Standard error constructors
func NewRpcError(code int, error, errorType, message string) *RpcError {
	return &RpcError{
		Code:        code,
		ErrorString: error,
		Type:        errorType,
		Message:     message,
	}
}

func RpcErrorInvalidParams(message string) *RpcError {
	return NewRpcError(RpcINVALID_PARAMS, "invalidParams", "invalidParams", message)
}

func RpcErrorMethodNotFound(method string) *RpcError {
	return NewRpcError(RpcMETHOD_NOT_FOUND, "unknownCmd", "unknownCmd", "Unknown method: "+method)
}

func RpcErrorInternal(message string) *RpcError {
	return NewRpcError(RpcINTERNAL, "internal", "internal", message)
}

func RpcErrorNotEnabled(feature string) *RpcError {
	return NewRpcError(RpcNOT_ENABLED, "notEnabled", "notEnabled", "Feature not enabled: "+feature)
}

func RpcErrorBadSignature(message string) *RpcError {
	return NewRpcError(RpcBAD_SIGNATURE, "badSignature", "badSignature", message)
}

func RpcErrorPublicMalformed(message string) *RpcError {
	return NewRpcError(RpcPUBLIC_MALFORMED, "publicMalformed", "publicMalformed", message)
}

func RpcErrorObjectNotFound(message string) *RpcError {
	return NewRpcError(RpcOBJECT_NOT_FOUND, "objectNotFound", "objectNotFound", message)
}

// RpcErrorMissingField returns an error for a missing required field
func RpcErrorMissingField(field string) *RpcError {
	return NewRpcError(RpcINVALID_PARAMS, "invalidParams", "invalidParams", "Missing field '"+field+"'.")
}

// RpcErrorInvalidField returns an error for an invalid field value
func RpcErrorInvalidField(field string) *RpcError {
	return NewRpcError(RpcINVALID_PARAMS, "invalidParams", "invalidParams", "Invalid field '"+field+"'.")
}

// RpcErrorFromResult converts a market operation error. The error string is
// the result token (e.g. tecNO_ENTRY), the code its numeric value, and the
// message its description followed by the collaborator cause, if any.
func RpcErrorFromResult(err error) *RpcError {
	code := result.Code(err)
	message := code.Message()
	var failure *result.Failure
	if errors.As(err, &failure) {
		message += ": " + failure.Cause.Error()
	}
	return NewRpcError(int(code), code.String(), code.Kind(), message)
}
