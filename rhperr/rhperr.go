// Package rhperr defines the error taxonomy shared by every package of the
// reformulation engine. It plays the role gosl/chk plays in gofem: a single
// place that knows how to build a contextualized error, with the exception
// that precondition violations (programmer errors) still use chk.Panic at
// the call site instead of being routed through here.
package rhperr

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy of spec.md §7.
type Kind int

const (
	Ok Kind = iota
	NullPointer
	InvalidValue
	InvalidArgument
	IndexOutOfRange
	NotFound
	UnExpectedData
	Inconsistency
	InvalidModel
	EMPIncorrectInput
	EMPRuntimeError
	ModelIncompleteMetadata
	OperationNotAllowed
	WrongModelForFunction
	NotImplemented
	InsufficientMemory
	SystemError
	FileOpenFailed
	RuntimeError
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "Ok"
	case NullPointer:
		return "NullPointer"
	case InvalidValue:
		return "InvalidValue"
	case InvalidArgument:
		return "InvalidArgument"
	case IndexOutOfRange:
		return "IndexOutOfRange"
	case NotFound:
		return "NotFound"
	case UnExpectedData:
		return "UnExpectedData"
	case Inconsistency:
		return "Inconsistency"
	case InvalidModel:
		return "InvalidModel"
	case EMPIncorrectInput:
		return "EMPIncorrectInput"
	case EMPRuntimeError:
		return "EMPRuntimeError"
	case ModelIncompleteMetadata:
		return "ModelIncompleteMetadata"
	case OperationNotAllowed:
		return "OperationNotAllowed"
	case WrongModelForFunction:
		return "WrongModelForFunction"
	case NotImplemented:
		return "NotImplemented"
	case InsufficientMemory:
		return "InsufficientMemory"
	case SystemError:
		return "SystemError"
	case FileOpenFailed:
		return "FileOpenFailed"
	case RuntimeError:
		return "RuntimeError"
	default:
		return "Unknown"
	}
}

// Error is the error value every operation in this module returns. It
// carries the failing model/entity names per §7's "user-visible failures
// carry the failing model's name + id and the offending entity's name".
type Error struct {
	Kind    Kind
	Op      string // e.g. "ctr.SetEquType"
	Model   string // model name, if applicable
	Entity  string // offending entity name/index, if applicable
	Msg     string
	Wrapped error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Model != "" {
		s += fmt.Sprintf(" [model=%s]", e.Model)
	}
	if e.Entity != "" {
		s += fmt.Sprintf(" [entity=%s]", e.Entity)
	}
	if e.Wrapped != nil {
		s += ": " + e.Wrapped.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is reports whether target is a kindSentinel carrying e's Kind (see
// kindSentinel below). kindSentinel is unexported and Kind itself is not an
// error, so such errors.Is checks can only be written inside this package.
func (e *Error) Is(target error) bool {
	var ks kindSentinel
	if errors.As(target, &ks) {
		return e.Kind == Kind(ks)
	}
	return false
}

type kindSentinel Kind

func (k kindSentinel) Error() string { return Kind(k).String() }

// New builds an *Error with a formatted message, mirroring chk.Err's
// printf-style construction.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and Op to an existing error, mirroring chk.Err's
// "...\n%v" wrapping idiom.
func Wrap(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Wrapped: err}
}

// WithModel/WithEntity return a shallow copy annotated with context;
// used at call sites that know the model/entity name but not the Kind.
func (e *Error) WithModel(name string) *Error {
	c := *e
	c.Model = name
	return &c
}

func (e *Error) WithEntity(name string) *Error {
	c := *e
	c.Entity = name
	return &c
}

// MultiCheck accumulates every violation found by a *check* operation
// (mdl_check / mdl_checkmetadata / empdag_check) and returns the *first*
// one as the propagated error, per §7's "never stops at the first
// violation because early diagnostics are the whole purpose".
type MultiCheck struct {
	Violations []*Error
}

func (m *MultiCheck) Add(e *Error) {
	m.Violations = append(m.Violations, e)
}

func (m *MultiCheck) Len() int { return len(m.Violations) }

// First returns the first recorded violation, or nil if none were recorded.
func (m *MultiCheck) First() error {
	if len(m.Violations) == 0 {
		return nil
	}
	return m.Violations[0]
}
