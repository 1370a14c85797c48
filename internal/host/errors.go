package host

import (
	"errors"
	"fmt"
)

// Kind classifies a remote failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindPermissionDenied
	KindNotFound
	KindTransient
	KindInvalid
	KindPartialFailure
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission denied"
	case KindNotFound:
		return "not found"
	case KindTransient:
		return "transient"
	case KindInvalid:
		return "invalid"
	case KindPartialFailure:
		return "partial failure"
	default:
		return "unknown"
	}
}

// Error is a classified failure of a named operation.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error with a formatted detail message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err under op, keeping the kind of an inner *Error when
// kind is KindUnknown.
func Wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	if kind == KindUnknown {
		kind = KindOf(err)
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is classified as KindNotFound.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsPermissionDenied reports whether err is classified as KindPermissionDenied.
func IsPermissionDenied(err error) bool { return KindOf(err) == KindPermissionDenied }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }
