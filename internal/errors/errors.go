// Package errors provides error context and HTTP recovery middleware for
// the pulse optimization service.
package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// Error carries a message plus the operation and component it came from.
type Error struct {
	// Err is the underlying error, if any.
	Err error
	// Message describes the failure.
	Message string
	// Operation names the action that failed.
	Operation string
	// Component names the package or subsystem where the error occurred.
	Component string
	// Stack holds the captured stack trace.
	Stack []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Operation != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString("operation=")
		b.WriteString(e.Operation)
	}
	if e.Component != "" {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString("component=")
		b.WriteString(e.Component)
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithOperation sets the operation name.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithComponent sets the component name.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// New creates an error with a message and a captured stack trace.
func New(msg string) *Error {
	return &Error{
		Message: msg,
		Stack:   stackTrace(),
	}
}

// Errorf creates an error with a formatted message.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Stack:   stackTrace(),
	}
}

// Wrap annotates err with a message, returning nil when err is nil.
func Wrap(err error, msg string) *Error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if !ok {
		e = &Error{
			Err:   err,
			Stack: stackTrace(),
		}
	}
	if msg != "" {
		e.Message = msg
	}
	return e
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

func stackTrace() []string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") && !strings.Contains(frame.File, "internal/errors") {
			stack = append(stack, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return stack
}
