// pkg/core/errors.go
package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is matching across the error taxonomy.
var (
	ErrValidation = errors.New("validation failed")
	ErrTransport  = errors.New("transport failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("operation requires a privileged session")
)

// ValidationError reports malformed operator input for a single field.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransportError wraps a failure of the persistence boundary. The operation may be retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ConflictError reports a delete blocked by annotations that reference ID as parent.
type ConflictError struct {
	ID       uint
	Children []uint
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.Children))
	for i, c := range e.Children {
		ids[i] = fmt.Sprint(c)
	}
	return fmt.Sprintf("annotation %d has replies [%s]; choose detach or cascade", e.ID, strings.Join(ids, ","))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NewTransportError wraps err unless it already belongs to the taxonomy.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrTransport) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}
