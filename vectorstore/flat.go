package vectorstore

import (
	"slices"

	"github.com/hupe1980/facevec/distance"
	"github.com/hupe1980/facevec/internal/queue"
)

// Flat is an exact-search store over fixed-dimension vectors.
//
// Vector i occupies data[i*dim : (i+1)*dim].
//
// Thread safety: none. The owning index serializes writers and excludes
// readers during writes.
type Flat struct {
	dim  int
	data []float32
}

// New creates an empty store for vectors of dimension dim.
func New(dim int) (*Flat, error) {
	return NewWithCapacity(dim, 0)
}

// NewWithCapacity creates an empty store with room for capacity vectors.
func NewWithCapacity(dim, capacity int) (*Flat, error) {
	if dim <= 0 {
		return nil, ErrInvalidDimension
	}
	if capacity < 0 {
		capacity = 0
	}
	return &Flat{
		dim:  dim,
		data: make([]float32, 0, capacity*dim),
	}, nil
}

// FromData restores a store from the contiguous layout returned by Data.
// The store takes ownership of data.
func FromData(dim int, data []float32) (*Flat, error) {
	if dim <= 0 {
		return nil, ErrInvalidDimension
	}
	if len(data)%dim != 0 {
		return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(data) % dim}
	}
	return &Flat{dim: dim, data: data}, nil
}

// Dimension returns the vector dimensionality.
func (f *Flat) Dimension() int { return f.dim }

// Len returns the number of stored vectors.
func (f *Flat) Len() int { return len(f.data) / f.dim }

// SizeBytes returns the number of bytes held by stored vectors.
func (f *Flat) SizeBytes() int64 { return int64(len(f.data)) * 4 }

// Data returns the contiguous vector storage. Do not modify.
func (f *Flat) Data() []float32 { return f.data[:len(f.data):len(f.data)] }

// Append stores a copy of v and returns its position.
func (f *Flat) Append(v []float32) (uint32, error) {
	if len(v) != f.dim {
		return 0, &ErrDimensionMismatch{Expected: f.dim, Actual: len(v)}
	}
	pos := uint32(f.Len())
	f.data = append(f.data, v...)
	return pos, nil
}

// Reconstruct returns a copy of the vector at pos.
func (f *Flat) Reconstruct(pos uint32) ([]float32, error) {
	v, err := f.vector(pos)
	if err != nil {
		return nil, err
	}
	return slices.Clone(v), nil
}

// Search returns the min(k, Len()) nearest vectors to q by squared L2,
// ascending by distance with ties broken by smaller position.
// An empty store yields no results.
func (f *Flat) Search(q []float32, k int) ([]Neighbor, error) {
	if len(q) != f.dim {
		return nil, &ErrDimensionMismatch{Expected: f.dim, Actual: len(q)}
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}
	n := f.Len()
	if n == 0 {
		return nil, nil
	}

	topk := queue.NewTopK(min(k, n))
	for i := 0; i < n; i++ {
		off := i * f.dim
		d := distance.SquaredL2(q, f.data[off:off+f.dim])
		topk.Offer(queue.Item{Position: uint32(i), Distance: d})
	}

	items := topk.Drain()
	out := make([]Neighbor, len(items))
	for i, it := range items {
		out[i] = Neighbor{Position: it.Position, Distance: it.Distance}
	}
	return out, nil
}

func (f *Flat) vector(pos uint32) ([]float32, error) {
	n := f.Len()
	if int(pos) >= n {
		return nil, &ErrOutOfRange{Position: pos, Len: n}
	}
	off := int(pos) * f.dim
	return f.data[off : off+f.dim : off+f.dim], nil
}
