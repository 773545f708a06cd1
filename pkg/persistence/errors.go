package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotEmpty indicates nothing is stored in the slot.
	ErrSlotEmpty = errors.New("slot is empty")

	// ErrCorruptRecord indicates the stored data could not be decoded.
	ErrCorruptRecord = errors.New("stored workflow is corrupt")

	// ErrNilWorkflow indicates an attempt to save a nil workflow.
	ErrNilWorkflow = errors.New("workflow is nil")

	// ErrUnsupportedBackend indicates a storage URL with an unknown scheme.
	ErrUnsupportedBackend = errors.New("unsupported storage backend")
)

// SlotError wraps a storage failure with the operation and slot key.
type SlotError struct {
	Op  string // Load, Save, Clear, Exists
	Key string
	Err error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("%s operation failed for slot %s: %v", e.Op, e.Key, e.Err)
}

func (e *SlotError) Unwrap() error {
	return e.Err
}

func NewSlotError(op, key string, err error) *SlotError {
	return &SlotError{Op: op, Key: key, Err: err}
}

// IsSlotEmpty checks if an error indicates an empty slot.
func IsSlotEmpty(err error) bool {
	return errors.Is(err, ErrSlotEmpty)
}
