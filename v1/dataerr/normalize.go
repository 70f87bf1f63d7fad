package dataerr

import (
	"context"
	"errors"
)

// Info is the uniform {message, code} shape handed to application code.
type Info struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Normalize converts any error into an Info. It returns nil for a nil error.
func Normalize(err error) *Info {
	if err == nil {
		return nil
	}

	var de *Error
	if errors.As(err, &de) {
		return &Info{Message: de.Error(), Code: de.Code}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Info{Message: err.Error(), Code: CodeTransientStore}
	}

	if kind := GetErrorCategory(err); kind != KindUnknown {
		return &Info{Message: err.Error(), Code: defaultCode(kind)}
	}

	return &Info{Message: err.Error(), Code: CodeStore}
}

func defaultCode(kind Kind) string {
	switch kind {
	case KindUnknownTable:
		return CodeUnknownTable
	case KindColumnNotAllowed:
		return CodeColumnNotAllowed
	case KindUnauthorized:
		return CodeUnauthorized
	case KindPermissionDenied:
		return CodePermissionDenied
	case KindValidation:
		return CodeValidation
	case KindTransientStore:
		return CodeTransientStore
	case KindUnknownProcedure:
		return CodeUnknownProcedure
	default:
		return CodeStore
	}
}

// GetErrorCategory returns the kind of err, looking through wrapping.
func GetErrorCategory(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}

	switch {
	case errors.Is(err, ErrUnknownTable):
		return KindUnknownTable
	case errors.Is(err, ErrColumnNotAllowed):
		return KindColumnNotAllowed
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrTransientStore):
		return KindTransientStore
	case errors.Is(err, ErrStore):
		return KindStore
	case errors.Is(err, ErrUnknownProcedure):
		return KindUnknownProcedure
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether the caller may reasonably retry the whole request.
func IsRetryable(err error) bool {
	return GetErrorCategory(err) == KindTransientStore
}

// IsPermanent reports whether retrying can never succeed without changing the request.
func IsPermanent(err error) bool {
	switch GetErrorCategory(err) {
	case KindUnknownTable, KindColumnNotAllowed, KindUnauthorized, KindPermissionDenied,
		KindValidation, KindUnknownProcedure:
		return true
	default:
		return false
	}
}

// HasCode reports whether err carries the given stable code.
func HasCode(err error, code string) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}
