package facevec

import (
	"errors"
	"fmt"

	"github.com/hupe1980/facevec/vectorstore"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("facevec: k must be positive")

	// ErrClosed is returned by operations on a closed Index.
	ErrClosed = errors.New("facevec: index is closed")

	// ErrMemoryLimit is returned when an Add would exceed the configured memory limit.
	ErrMemoryLimit = errors.New("facevec: memory limit exceeded")
)

// ErrDimensionMismatch indicates an embedding or query of the wrong length.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("facevec: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("facevec: invalid dimension: %d", e.Dimension)
}

// ErrOutOfRange indicates a position outside [0, Len).
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrOutOfRange struct {
	Position uint32
	Len      int
	cause    error
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("facevec: position %d out of range [0, %d)", e.Position, e.Len)
}

func (e *ErrOutOfRange) Unwrap() error { return e.cause }

// PersistenceError reports a failed snapshot save or load.
// The in-memory state is not rolled back when a save fails.
type PersistenceError struct {
	Op  string // "save" or "load"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("facevec: %s snapshot: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *vectorstore.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	var oor *vectorstore.ErrOutOfRange
	if errors.As(err, &oor) {
		return &ErrOutOfRange{Position: oor.Position, Len: oor.Len, cause: err}
	}
	if errors.Is(err, vectorstore.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}

	return err
}
