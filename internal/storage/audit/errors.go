package audit

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDriver  = errors.New("invalid audit driver")
	ErrMissingDSN     = errors.New("audit dsn is required")
	ErrDatabaseClosed = errors.New("audit database is closed")
	ErrInvalidLimit   = errors.New("invalid query limit")
)

// ErrorType represents the category of an audit database error
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConfiguration
	ErrorTypeConnection
	ErrorTypeSchema
	ErrorTypeQuery
	ErrorTypeData
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConfiguration:
		return "configuration"
	case ErrorTypeConnection:
		return "connection"
	case ErrorTypeSchema:
		return "schema"
	case ErrorTypeQuery:
		return "query"
	case ErrorTypeData:
		return "data"
	default:
		return "unknown"
	}
}

// DatabaseError provides detailed information about audit database errors
type DatabaseError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
}

func (e *DatabaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause error
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

func newError(t ErrorType, operation, message string, cause error) *DatabaseError {
	return &DatabaseError{Type: t, Operation: operation, Message: message, Cause: cause}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation, message string, cause error) *DatabaseError {
	return newError(ErrorTypeConfiguration, operation, message, cause)
}

// NewConnectionError creates a connection error
func NewConnectionError(operation, message string, cause error) *DatabaseError {
	return newError(ErrorTypeConnection, operation, message, cause)
}

// NewSchemaError creates a schema error
func NewSchemaError(operation, message string, cause error) *DatabaseError {
	return newError(ErrorTypeSchema, operation, message, cause)
}

// NewQueryError creates a query error
func NewQueryError(operation, message string, cause error) *DatabaseError {
	return newError(ErrorTypeQuery, operation, message, cause)
}

// NewDataError creates an error for a stored row that cannot be decoded
func NewDataError(operation, message string, cause error) *DatabaseError {
	return newError(ErrorTypeData, operation, message, cause)
}
