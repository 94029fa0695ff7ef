// Package apperr defines the error kinds shared by the pipeline. Callers
// dispatch on Kind rather than on concrete error types.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidInput
	KindAlreadyExists
	KindSheetEmpty
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindInvalidInput:
		return "invalid input"
	case KindAlreadyExists:
		return "already exists"
	case KindSheetEmpty:
		return "sheet empty"
	default:
		return "internal"
	}
}

// Sentinels for errors.Is; any *Error of the same kind matches.
var (
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrInvalidInput  = &Error{Kind: KindInvalidInput}
	ErrAlreadyExists = &Error{Kind: KindAlreadyExists}
	ErrSheetEmpty    = &Error{Kind: KindSheetEmpty}
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Kind.String() + ": " + e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...any) error {
	return New(KindNotFound, format, args...)
}

func InvalidInput(format string, args ...any) error {
	return New(KindInvalidInput, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }
