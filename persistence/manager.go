package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/facevec/blobstore"
	"github.com/hupe1980/facevec/resource"
)

// DefaultRetryInterval is the initial backoff between blob write attempts.
const DefaultRetryInterval = 50 * time.Millisecond

// Snapshot is the complete persisted state of an index.
type Snapshot struct {
	Dimension int
	// Vectors holds len(Users)*Dimension values, position-major.
	Vectors []float32
	// Users holds the user of every position.
	Users []int64
	// Generation is set by Save and Load.
	Generation uuid.UUID
}

// Len returns the number of stored embeddings.
func (s *Snapshot) Len() int {
	return len(s.Users)
}

// ManagerOptions configures the persistence manager.
type ManagerOptions struct {
	// Store holds the two snapshot blobs. Required.
	Store blobstore.Store

	// Compression is applied to both payloads.
	Compression Compression

	// Resources throttles snapshot writes. Stores implementing
	// blobstore.Streamer are paced while the content is sent. Optional.
	Resources *resource.Controller

	// MaxRetries bounds additional attempts per blob on transient errors.
	MaxRetries int

	// RetryInterval is the initial backoff interval (default DefaultRetryInterval).
	RetryInterval time.Duration
}

// Manager saves and loads snapshots. It is safe for concurrent use; the
// index serializes saves.
type Manager struct {
	store         blobstore.Store
	compression   Compression
	rc            *resource.Controller
	maxRetries    int
	retryInterval time.Duration

	mu sync.Mutex
	// pending holds generations whose pointer write failed. They may or may
	// not be current and are discarded after the next committed save.
	pending []uuid.UUID
}

// NewManager creates a new persistence manager.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("persistence: store is required")
	}
	if opts.Compression > CompressionZSTD {
		return nil, fmt.Errorf("persistence: unknown compression %d", opts.Compression)
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}

	return &Manager{
		store:         opts.Store,
		compression:   opts.Compression,
		rc:            opts.Resources,
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
	}, nil
}

// Save writes both blobs under a fresh generation, then publishes the
// generation with a single pointer write and returns it. The previous pair
// is removed once the pointer is written. On error the previously committed
// snapshot stays current.
func (m *Manager) Save(ctx context.Context, snap *Snapshot) (uuid.UUID, error) {
	if snap.Dimension <= 0 {
		return uuid.Nil, fmt.Errorf("persistence: invalid dimension %d", snap.Dimension)
	}
	if len(snap.Vectors) != len(snap.Users)*snap.Dimension {
		return uuid.Nil, fmt.Errorf("persistence: %d values for %d users of dimension %d",
			len(snap.Vectors), len(snap.Users), snap.Dimension)
	}

	gen, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, err
	}

	// A missing or unreadable pointer only means there is nothing to clean up.
	prev, _ := m.Current(ctx)

	count := len(snap.Users)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.put(gctx, BlobName(gen, VectorsBlob), KindVectors, snap.Dimension, count, gen, encodeVectors(snap.Vectors))
	})
	g.Go(func() error {
		return m.put(gctx, BlobName(gen, IdentityBlob), KindIdentity, snap.Dimension, count, gen, encodeIdentity(snap.Users))
	})
	if err := g.Wait(); err != nil {
		m.discard(ctx, gen)
		return uuid.Nil, err
	}

	if err := m.put(ctx, PointerBlob, KindPointer, snap.Dimension, count, gen, nil); err != nil {
		// The write may have landed anyway, so the pair must survive.
		m.mu.Lock()
		m.pending = append(m.pending, gen)
		m.mu.Unlock()
		return uuid.Nil, err
	}

	snap.Generation = gen

	m.mu.Lock()
	stale := m.pending
	m.pending = nil
	m.mu.Unlock()

	if prev != uuid.Nil && !slices.Contains(stale, prev) {
		stale = append(stale, prev)
	}
	for _, old := range stale {
		m.discard(ctx, old)
	}

	return gen, nil
}

// Current returns the generation named by the pointer blob.
// It returns ErrNoSnapshot when nothing has been committed yet.
func (m *Manager) Current(ctx context.Context) (uuid.UUID, error) {
	h, err := m.pointer(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return h.Generation, nil
}

func (m *Manager) pointer(ctx context.Context) (Header, error) {
	var h Header
	err := m.view(ctx, PointerBlob, func(data []byte) error {
		ph, _, err := readBlob(data, KindPointer)
		if err != nil {
			return err
		}
		h = ph
		return nil
	})
	return h, err
}

// discard removes the blob pair of gen. Failures only leave garbage behind.
func (m *Manager) discard(ctx context.Context, gen uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	for _, name := range []string{VectorsBlob, IdentityBlob} {
		_ = m.store.Delete(ctx, BlobName(gen, name))
	}
}

func (m *Manager) put(ctx context.Context, name string, kind Kind, dim, count int, gen uuid.UUID, raw []byte) error {
	c := m.compression
	if kind == KindPointer {
		c = CompressionNone
	}

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(raw))

	if err := writeBlob(&buf, kind, dim, count, gen, raw, c); err != nil {
		return fmt.Errorf("persistence: encode %s: %w", name, err)
	}

	data := buf.Bytes()
	if err := m.retry(ctx, func() error {
		return m.write(ctx, name, data)
	}); err != nil {
		return fmt.Errorf("persistence: write %s: %w", name, err)
	}
	return nil
}

// write stores data under name within the IO limit. Stores that can stream
// pull the content through the limiter while it is sent; others are charged
// for the whole blob up front.
func (m *Manager) write(ctx context.Context, name string, data []byte) error {
	if s, ok := m.store.(blobstore.Streamer); ok && m.rc.IOLimited() {
		r := resource.NewRateLimitedReader(ctx, bytes.NewReader(data), m.rc)
		return s.PutReader(ctx, name, r, int64(len(data)))
	}
	if err := m.rc.AcquireIO(ctx, len(data)); err != nil {
		return err
	}
	return m.store.Put(ctx, name, data)
}

// Load reads the pointer and cross-validates the blob pair it names.
//
// It returns ErrNoSnapshot when no save has been committed and an error
// wrapping ErrCorrupt when the committed pair is missing or unusable. A
// positive dim additionally requires the snapshot dimension to match.
func (m *Manager) Load(ctx context.Context, dim int) (*Snapshot, error) {
	ph, err := m.pointer(ctx)
	if err != nil {
		return nil, err
	}
	gen := ph.Generation

	var (
		vh, ih     Header
		vectors    []float32
		users      []int64
		vErr, iErr error
		g          errgroup.Group
	)

	g.Go(func() error {
		vErr = m.view(ctx, BlobName(gen, VectorsBlob), func(data []byte) error {
			h, raw, err := readBlob(data, KindVectors)
			if err != nil {
				return err
			}
			vh, vectors = h, decodeVectors(raw)
			return nil
		})
		return nil
	})
	g.Go(func() error {
		iErr = m.view(ctx, BlobName(gen, IdentityBlob), func(data []byte) error {
			h, raw, err := readBlob(data, KindIdentity)
			if err != nil {
				return err
			}
			users, err = decodeIdentity(raw)
			if err != nil {
				return err
			}
			ih = h
			return nil
		})
		return nil
	})
	_ = g.Wait()

	switch {
	case errors.Is(vErr, ErrNoSnapshot) || errors.Is(iErr, ErrNoSnapshot):
		return nil, fmt.Errorf("%w: generation %s is incomplete", ErrCorrupt, gen)
	case vErr != nil:
		return nil, vErr
	case iErr != nil:
		return nil, iErr
	}

	if vh.Count != ph.Count || ih.Count != ph.Count {
		return nil, fmt.Errorf("%w: vector count %d, identity count %d, want %d", ErrCorrupt, vh.Count, ih.Count, ph.Count)
	}
	if vh.Generation != gen || ih.Generation != gen {
		return nil, fmt.Errorf("%w: generation mismatch %s, %s != %s", ErrCorrupt, vh.Generation, ih.Generation, gen)
	}
	if vh.Dimension != ph.Dimension {
		return nil, fmt.Errorf("%w: dimension %d, pointer says %d", ErrCorrupt, vh.Dimension, ph.Dimension)
	}
	if dim > 0 && int(vh.Dimension) != dim {
		return nil, fmt.Errorf("%w: dimension %d, want %d", ErrCorrupt, vh.Dimension, dim)
	}

	return &Snapshot{
		Dimension:  int(vh.Dimension),
		Vectors:    vectors,
		Users:      users,
		Generation: gen,
	}, nil
}

// view reads one blob with retries. Decoding failures are not retried.
func (m *Manager) view(ctx context.Context, name string, decode func([]byte) error) error {
	err := m.retry(ctx, func() error {
		var decodeErr error
		err := blobstore.View(ctx, m.store, name, func(data []byte) error {
			decodeErr = decode(data)
			return decodeErr
		})
		switch {
		case errors.Is(err, blobstore.ErrNotFound):
			return backoff.Permanent(ErrNoSnapshot)
		case decodeErr != nil:
			return backoff.Permanent(fmt.Errorf("%w: %s: %w", ErrCorrupt, name, decodeErr))
		}
		return err
	})
	if err != nil && !errors.Is(err, ErrNoSnapshot) && !errors.Is(err, ErrCorrupt) {
		return fmt.Errorf("persistence: read %s: %w", name, err)
	}
	return err
}

func (m *Manager) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.retryInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(m.maxRetries)), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
