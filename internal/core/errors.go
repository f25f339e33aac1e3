package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("record not found")
	ErrConflict      = errors.New("record already exists")
	ErrPartialBatch  = errors.New("batch partially failed")
	ErrExternalStore = errors.New("record store failure")
)

// ValidationError reports a malformed or missing field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFound returns an error matching ErrNotFound that names the missing id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// ItemFailure is one failed id inside a multi-record operation.
type ItemFailure struct {
	ID  string
	Err error
}

// PartialBatchFailure is returned when some ids of a bulk operation failed.
// Succeeded ids are not rolled back.
type PartialBatchFailure struct {
	Op        string
	Succeeded []string
	Failed    []ItemFailure
}

func (e *PartialBatchFailure) Error() string {
	total := len(e.Succeeded) + len(e.Failed)
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.ID)
	}
	return fmt.Sprintf("%s: %d of %d failed (%s)", e.Op, len(e.Failed), total, strings.Join(ids, ", "))
}

func (e *PartialBatchFailure) Is(target error) bool { return target == ErrPartialBatch }

// FailedIDs lists the ids that could not be processed.
func (e *PartialBatchFailure) FailedIDs() []string {
	ids := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		ids[i] = f.ID
	}
	return ids
}

// StoreError wraps an I/O failure from the record store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrExternalStore }
