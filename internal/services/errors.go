package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
	"gorm.io/gorm"
)

// Error classes reported in failure messages as "<Class>: <message>".
const (
	ClassStandardError  = "StandardError"
	ClassRecordNotFound = "RecordNotFound"
	ClassTimeout        = "Timeout"
	ClassCanceled       = "Canceled"
	ClassCircuitOpen    = "CircuitOpen"
	ClassRuntimeError   = "RuntimeError"
)

// RunError is an error carrying an explicit class name.
type RunError struct {
	Class string
	Msg   string
	Err   error
}

func (e *RunError) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError returns an error of the given class.
func NewRunError(class, msg string) *RunError {
	return &RunError{Class: class, Msg: msg}
}

// StandardError is the default error class.
func StandardError(msg string) error {
	return NewRunError(ClassStandardError, msg)
}

// ErrorClass resolves the class name of err.
func ErrorClass(err error) string {
	class, _ := describeError(err)
	return class
}

// FormatError renders err as "<Class>: <message>". The message is taken from
// the innermost error so wrapping context does not hide the original cause;
// callers log the full chain separately.
func FormatError(err error) string {
	class, msg := describeError(err)
	return fmt.Sprintf("%s: %s", class, msg)
}

func describeError(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	var re *RunError
	if errors.As(err, &re) {
		if re.Msg == "" && re.Err != nil {
			return re.Class, rootCause(re.Err).Error()
		}
		return re.Class, re.Msg
	}

	msg := rootCause(err).Error()
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ClassRecordNotFound, msg
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout, msg
	case errors.Is(err, context.Canceled):
		return ClassCanceled, msg
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ClassCircuitOpen, msg
	default:
		return ClassStandardError, msg
	}
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// panicError converts a recovered panic value into a RuntimeError.
func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return &RunError{Class: ClassRuntimeError, Msg: err.Error(), Err: err}
	}
	return NewRunError(ClassRuntimeError, fmt.Sprint(r))
}
