// Package idmap associates internal store positions with external user identifiers.
//
// The forward direction is a dense slice indexed by position; the reverse
// direction is a per-user Roaring bitmap of positions. The map does not
// enforce one position per user.
package idmap

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Map is a bidirectional position <-> user association.
//
// Thread safety: none. The owning index serializes access.
type Map struct {
	users   []int64                   // users[pos]; valid only where present has pos
	present *roaring.Bitmap           // positions that carry a user
	reverse map[int64]*roaring.Bitmap // user -> positions
}

// New creates an empty map.
func New() *Map {
	return NewWithCapacity(0)
}

// NewWithCapacity creates an empty map sized for capacity positions.
func NewWithCapacity(capacity int) *Map {
	if capacity < 0 {
		capacity = 0
	}
	return &Map{
		users:   make([]int64, 0, capacity),
		present: roaring.New(),
		reverse: make(map[int64]*roaring.Bitmap),
	}
}

// Set records pos -> user, overwriting any prior value at pos.
func (m *Map) Set(pos uint32, user int64) {
	if int(pos) >= len(m.users) {
		m.users = append(m.users, make([]int64, int(pos)+1-len(m.users))...)
	} else if m.present.Contains(pos) {
		m.unlink(m.users[pos], pos)
	}

	m.users[pos] = user
	m.present.Add(pos)

	rb, ok := m.reverse[user]
	if !ok {
		rb = roaring.New()
		m.reverse[user] = rb
	}
	rb.Add(pos)
}

// Get returns the user at pos.
func (m *Map) Get(pos uint32) (int64, bool) {
	if int(pos) >= len(m.users) || !m.present.Contains(pos) {
		return 0, false
	}
	return m.users[pos], true
}

// PositionsFor returns the positions mapped to user.
// The result is a copy; it is empty when the user has no positions.
func (m *Map) PositionsFor(user int64) *roaring.Bitmap {
	rb, ok := m.reverse[user]
	if !ok {
		return roaring.New()
	}
	return rb.Clone()
}

// Len returns the number of mapped positions.
func (m *Map) Len() int {
	return int(m.present.GetCardinality())
}

// Users returns the number of distinct users.
func (m *Map) Users() int {
	return len(m.reverse)
}

// Contiguous reports whether the mapped positions are exactly [0, Len()).
func (m *Map) Contiguous() bool {
	n := m.present.GetCardinality()
	if n == 0 {
		return true
	}
	return m.present.Minimum() == 0 && uint64(m.present.Maximum()) == n-1
}

// All iterates mappings in ascending position order.
func (m *Map) All() iter.Seq2[uint32, int64] {
	return func(yield func(uint32, int64) bool) {
		it := m.present.Iterator()
		for it.HasNext() {
			pos := it.Next()
			if !yield(pos, m.users[pos]) {
				return
			}
		}
	}
}

func (m *Map) unlink(user int64, pos uint32) {
	rb, ok := m.reverse[user]
	if !ok {
		return
	}
	rb.Remove(pos)
	if rb.IsEmpty() {
		delete(m.reverse, user)
	}
}
