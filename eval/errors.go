package eval

import "fmt"

// ErrorKind classifies an evaluation failure. Every kind fails the
// current iteration only; none aborts a whole run.
type ErrorKind int

const (
	UndefinedName ErrorKind = iota
	TypeMismatch
	AssertionTypeError
	TemplateError
	NetworkFailure
	ExecutionLimitExceeded
)

var errorKindNames = map[ErrorKind]string{
	UndefinedName:          "undefined name",
	TypeMismatch:           "type mismatch",
	AssertionTypeError:     "assertion type error",
	TemplateError:          "template error",
	NetworkFailure:         "network failure",
	ExecutionLimitExceeded: "execution limit exceeded",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Error is an evaluation failure
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
