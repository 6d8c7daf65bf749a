// Package apperror classifies pipeline failures so the HTTP layer can map
// them to status codes.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindUnsupported  Kind = "unsupported"
	KindInvalidInput Kind = "invalid_input"
	KindLoad         Kind = "load"
	KindStore        Kind = "store"
	KindLLM          Kind = "llm"
)

// Error carries the failing operation and its kind. Error() returns only the
// wrapped message so clients see the underlying library text.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// OpOf returns the operation of the outermost classified error, or "".
func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}
