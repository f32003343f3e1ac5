package errs

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Kind classifies an error for callers and for logs.
type Kind string

const (
	KindUnknown         Kind = ""
	KindConfiguration   Kind = "configuration"
	KindPolicyViolation Kind = "policy_violation"
	KindCompletion      Kind = "completion"
	KindHook            Kind = "hook"
	KindUsage           Kind = "usage"
)

// Error is a classified sentinel. Compare with errors.Is.
type Error struct {
	kind Kind
	msg  string
}

// New returns a classified sentinel error.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Kind() Kind    { return e.kind }

type kinded interface {
	Kind() Kind
}

// KindOf returns the first classification found in the error chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// Wrap adds context and preserves the error chain (errors.Is/As works).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context and preserves the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}

// WithStack captures a stack trace once, at the root cause boundary.
func WithStack(err error) error {
	if err == nil {
		return nil
	}

	var se *StackError
	if errors.As(err, &se) {
		return err
	}

	return &StackError{
		err:   err,
		stack: debug.Stack(),
	}
}

// StackError wraps an error and stores a stack trace.
type StackError struct {
	err   error
	stack []byte
}

func (e *StackError) Error() string { return e.err.Error() }
func (e *StackError) Unwrap() error { return e.err }
func (e *StackError) Stack() []byte { return e.stack }

// Loggable makes slog encode the error as structured fields.
// Usage: slog.Any("err", errs.Loggable(err))
func Loggable(err error) slog.LogValuer { return loggable{err: err} }

type loggable struct{ err error }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}

	attrs := []slog.Attr{
		slog.String("message", l.err.Error()),
		slog.Any("chain", ErrorChainStrings(l.err)),
	}
	if kind := KindOf(l.err); kind != KindUnknown {
		attrs = append(attrs, slog.String("kind", string(kind)))
	}

	var se *StackError
	if errors.As(l.err, &se) {
		attrs = append(attrs, slog.String("stack", string(se.Stack())))
	}

	return slog.GroupValue(attrs...)
}

// ErrorChainStrings returns the unwrap chain as strings (outer -> inner).
// Joined errors are walked depth first.
func ErrorChainStrings(err error) []string {
	if err == nil {
		return nil
	}

	out := make([]string, 0, 8)
	var walk func(e error)
	walk = func(e error) {
		for e != nil {
			out = append(out, e.Error())
			if multi, ok := e.(interface{ Unwrap() []error }); ok {
				for _, inner := range multi.Unwrap() {
					walk(inner)
				}
				return
			}
			e = errors.Unwrap(e)
		}
	}
	walk(err)
	return out
}
