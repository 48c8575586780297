// Package apperr defines the error taxonomy shared by the core and its transports.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrConflictResolution = errors.New("conflict resolution failed")
	ErrPersistence        = errors.New("persistence failure")
	ErrSessionClosed      = errors.New("session closed")
)

// TransitionError reports a lifecycle action attempted from a state that
// does not allow it. The document is left untouched.
type TransitionError struct {
	Action string
	State  string
	Type   string
}

func (e *TransitionError) Error() string {
	switch {
	case e.Action == "publish" && e.State == "published":
		return "document is already published"
	case e.Action == "unpublish" && e.State == "draft":
		return "document is already a draft"
	case e.Action == "discard" && e.State == "recycled":
		return "document is already in the recycle bin"
	case e.Action == "restore" && e.State != "recycled":
		return "document is not in the recycle bin"
	}
	return fmt.Sprintf("cannot %s a %s %s", e.Action, e.State, e.Type)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ConflictError reports a restore that could not resolve its target name.
type ConflictError struct {
	EntryID string
	Target  string
	Reason  string
}

func (e *ConflictError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("restore %s: %s", e.EntryID, e.Reason)
	}
	return fmt.Sprintf("restore %s to %q: %s", e.EntryID, e.Target, e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflictResolution
}

// PersistenceError wraps a failed storage write. Callers keep their unsaved
// edits and may retry.
type PersistenceError struct {
	Op  string
	Err error
}

// Persistence wraps err as a PersistenceError unless it already carries a
// more specific classification.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether err is a transient failure that preserves edits.
func Retryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}
