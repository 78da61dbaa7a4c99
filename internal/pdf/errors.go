package pdf

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by Open and ExtractText wraps exactly
// one of these, or a context error.
var (
	ErrMalformed   = errors.New("malformed pdf structure")
	ErrUnsupported = errors.New("unsupported pdf feature")
	ErrEncrypted   = errors.New("encrypted pdf")
	ErrLimit       = errors.New("pdf resource limit exceeded")
)

// Error carries a failure kind and a short detail about where parsing stopped.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

func (e *Error) Unwrap() error { return e.Kind }

func errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func malformedf(format string, args ...any) error {
	return errorf(ErrMalformed, format, args...)
}

func limitf(format string, args ...any) error {
	return errorf(ErrLimit, format, args...)
}

func unsupportedf(format string, args ...any) error {
	return errorf(ErrUnsupported, format, args...)
}
