// Package vectorstore holds the face embeddings of the index.
//
// Vectors live in one contiguous []float32 and are addressed by dense,
// append-assigned positions. There is no deletion primitive: callers remove
// entries by rebuilding into a fresh store.
package vectorstore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidDimension is returned when a store is created with dim <= 0.
	ErrInvalidDimension = errors.New("dimension must be positive")
)

// ErrDimensionMismatch is returned when a vector does not have the store dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vectorstore: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrOutOfRange is returned when a position does not address a stored vector.
type ErrOutOfRange struct {
	Position uint32
	Len      int
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("vectorstore: position %d out of range [0, %d)", e.Position, e.Len)
}

// Neighbor is a search hit.
type Neighbor struct {
	Position uint32
	Distance float32 // squared L2
}
