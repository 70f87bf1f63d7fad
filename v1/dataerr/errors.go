package dataerr

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per kind. Every *Error unwraps to the sentinel of its
// kind so callers can use errors.Is without caring about the code.
var (
	// ErrUnknownTable is returned when a request names a table outside the registry
	ErrUnknownTable = errors.New("unknown table")

	// ErrColumnNotAllowed is returned when a request references a column outside the table's allow-list
	ErrColumnNotAllowed = errors.New("column not allowed")

	// ErrUnauthorized is returned when a rule requires an authenticated caller
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPermissionDenied is returned when the caller's role or ownership fails a rule
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation is returned for malformed requests and business-rule rejections
	ErrValidation = errors.New("validation error")

	// ErrTransientStore is returned when a transport failure survived every retry
	ErrTransientStore = errors.New("transient store error")

	// ErrStore is returned for any other backing-store failure
	ErrStore = errors.New("store error")

	// ErrUnknownProcedure is returned when an RPC name is not in the catalog
	ErrUnknownProcedure = errors.New("unknown procedure")
)

// Stable error codes surfaced to application code.
const (
	CodeUnknownTable       = "UNKNOWN_TABLE"
	CodeColumnNotAllowed   = "COLUMN_NOT_ALLOWED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeMissingWhereClause = "MISSING_WHERE_CLAUSE"
	CodeEmptyInsertPayload = "EMPTY_INSERT_PAYLOAD"
	CodeEmptySetClause     = "EMPTY_SET_CLAUSE"
	CodeNoRows             = "NO_ROWS"
	CodeMultipleRows       = "MULTIPLE_ROWS"
	CodeTransientStore     = "TRANSIENT_STORE_ERROR"
	CodeStore              = "STORE_ERROR"
	CodeUnknownProcedure   = "UNKNOWN_PROCEDURE"
	CodeDateUnavailable    = "DATE_UNAVAILABLE"

	// CodeDuplicateKey is used for unique violations regardless of the driver.
	CodeDuplicateKey = "23505"
)

// Kind classifies an error into one of the taxonomy buckets.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnknownTable
	KindColumnNotAllowed
	KindUnauthorized
	KindPermissionDenied
	KindValidation
	KindTransientStore
	KindStore
	KindUnknownProcedure
)

func (k Kind) String() string {
	switch k {
	case KindUnknownTable:
		return "unknown_table"
	case KindColumnNotAllowed:
		return "column_not_allowed"
	case KindUnauthorized:
		return "unauthorized"
	case KindPermissionDenied:
		return "permission_denied"
	case KindValidation:
		return "validation"
	case KindTransientStore:
		return "transient_store"
	case KindStore:
		return "store"
	case KindUnknownProcedure:
		return "unknown_procedure"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnknownTable:
		return ErrUnknownTable
	case KindColumnNotAllowed:
		return ErrColumnNotAllowed
	case KindUnauthorized:
		return ErrUnauthorized
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindValidation:
		return ErrValidation
	case KindTransientStore:
		return ErrTransientStore
	case KindStore:
		return ErrStore
	case KindUnknownProcedure:
		return ErrUnknownProcedure
	default:
		return nil
	}
}

// Error is the concrete error type raised by the data-access pipeline.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// New builds an *Error with a formatted message.
func New(kind Kind, code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around a cause.
func Wrap(kind Kind, code string, err error, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func UnknownTable(table string) *Error {
	return New(KindUnknownTable, CodeUnknownTable, "unknown table %q", table)
}

func ColumnNotAllowed(table, column string) *Error {
	return New(KindColumnNotAllowed, CodeColumnNotAllowed, "column %q is not allowed on table %q", column, table)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return New(KindUnauthorized, CodeUnauthorized, format, args...)
}

func PermissionDenied(format string, args ...interface{}) *Error {
	return New(KindPermissionDenied, CodePermissionDenied, format, args...)
}

// Validation builds a validation error with the generic VALIDATION_ERROR code.
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, CodeValidation, format, args...)
}

// ValidationCode builds a validation error with a specific code such as
// MISSING_WHERE_CLAUSE.
func ValidationCode(code, format string, args ...interface{}) *Error {
	return New(KindValidation, code, format, args...)
}

func Transient(err error) *Error {
	return Wrap(KindTransientStore, CodeTransientStore, err, "store unavailable after retries")
}

func Store(code string, err error) *Error {
	if code == "" {
		code = CodeStore
	}
	msg := "store error"
	if err != nil {
		msg = err.Error()
	}
	return Wrap(KindStore, code, err, msg)
}

func UnknownProcedure(name string) *Error {
	return New(KindUnknownProcedure, CodeUnknownProcedure, "unknown procedure %q", name)
}
