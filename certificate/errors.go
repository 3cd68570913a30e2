package certificate

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines certificate error kinds.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindTimeout    ErrorKind = "timeout"
	KindCanceled   ErrorKind = "canceled"
	KindExternal   ErrorKind = "external"
	KindInternal   ErrorKind = "internal"
	KindNotImpl    ErrorKind = "not_implemented"
)

// Error wraps errors with a kind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new certificate error.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// ErrDocumentBusy is returned when a document already has an export in flight.
var ErrDocumentBusy = NewError(KindConflict, "document export already in progress", nil)

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindFromError(err)
	msg := err.Error()
	var certErr *Error
	if errors.As(err, &certErr) && certErr.Msg != "" {
		msg = certErr.Msg
	}

	var out *errorslib.Error
	switch kind {
	case KindValidation:
		out = errorslib.New(msg, errorslib.CategoryValidation)
	case KindNotFound:
		out = errorslib.New(msg, errorslib.CategoryNotFound)
	case KindConflict, KindTimeout, KindCanceled, KindNotImpl:
		out = errorslib.New(msg, errorslib.CategoryOperation)
	case KindExternal:
		out = errorslib.New(msg, errorslib.CategoryExternal)
	default:
		out = errorslib.New(msg, errorslib.CategoryInternal)
	}
	return out.WithTextCode(string(kind))
}

// KindFromError maps an error to its certificate error kind.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var certErr *Error
	if errors.As(err, &certErr) {
		return certErr.Kind
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) && ge.TextCode != "" {
		switch ErrorKind(ge.TextCode) {
		case KindValidation, KindNotFound, KindConflict, KindTimeout, KindCanceled, KindExternal, KindInternal, KindNotImpl:
			return ErrorKind(ge.TextCode)
		}
	}
	if ge != nil {
		switch ge.Category {
		case errorslib.CategoryValidation:
			return KindValidation
		case errorslib.CategoryNotFound:
			return KindNotFound
		case errorslib.CategoryExternal:
			return KindExternal
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	return KindInternal
}
