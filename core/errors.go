package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// PersistenceError reports a failed write or read against the store.
// Step names the operation that failed; steps applied before it are not undone
// unless the caller runs inside a transaction.
type PersistenceError struct {
	Step string
	Err  error
}

func NewPersistenceError(step string, err error) error {
	return &PersistenceError{Step: step, Err: err}
}

func (err PersistenceError) Error() string {
	if err.Err == nil {
		return err.Step
	}
	return fmt.Sprintf("%s: %v", err.Step, err.Err)
}

func (err PersistenceError) Unwrap() error { return err.Err }

func IsPersistence(err error) bool {
	_, ok := errors.Cause(err).(*PersistenceError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// ErrForbidden is returned when the caller may not act on a resource.
var ErrForbidden = errors.New("permission denied")
