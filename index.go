package facevec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/hupe1980/facevec/blobstore"
	"github.com/hupe1980/facevec/idmap"
	"github.com/hupe1980/facevec/persistence"
	"github.com/hupe1980/facevec/resource"
	"github.com/hupe1980/facevec/vectorstore"
)

// UserID is the external identifier of an enrolled user.
type UserID int64

// Match is one search hit.
type Match struct {
	UserID UserID `json:"user_id"`
	// Distance is the squared L2 distance to the query.
	Distance float32 `json:"distance"`
}

// Stats describes the current state of an Index.
type Stats struct {
	Len              int       `json:"len"`
	Users            int       `json:"users"`
	Dimension        int       `json:"dimension"`
	SizeBytes        int64     `json:"size_bytes"`
	MemoryUsageBytes int64     `json:"memory_usage_bytes"`
	MemoryLimitBytes int64     `json:"memory_limit_bytes,omitempty"`
	Generation       string    `json:"generation,omitempty"`
	LastPersist      time.Time `json:"last_persist"`
	LastPersistError string    `json:"last_persist_error,omitempty"`
}

// Index is an exact nearest-neighbour index over face embeddings, keyed by user.
//
// Every mutation is followed by a synchronous snapshot save while the write
// lock is held. Searches run concurrently under the read lock.
type Index struct {
	mu sync.RWMutex

	dim   int
	store *vectorstore.Flat
	ids   *idmap.Map

	snapshots *persistence.Manager
	rc        *resource.Controller
	metrics   MetricsCollector
	logger    *Logger

	generation     uuid.UUID
	lastPersist    time.Time
	lastPersistErr error
	closed         bool
}

// Open prepares the blob backend and loads the persisted snapshot.
//
// A missing snapshot yields an empty index. A corrupt or unreadable snapshot
// is logged and also yields an empty index. Open fails when an option is
// invalid, the backend cannot be prepared, ctx is done, or the snapshot
// exceeds the configured memory limit.
func Open(ctx context.Context, optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)

	if o.dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: o.dimension}
	}
	if o.memoryLimit < 0 || o.ioLimit < 0 {
		return nil, errors.New("facevec: resource limits must not be negative")
	}

	store := o.store
	if store == nil {
		local, err := blobstore.NewLocalStore(o.dataDir)
		if err != nil {
			return nil, fmt.Errorf("facevec: prepare data dir: %w", err)
		}
		store = local
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   o.memoryLimit,
		IOLimitBytesPerSec: o.ioLimit,
	})

	mgr, err := persistence.NewManager(persistence.ManagerOptions{
		Store:       store,
		Compression: o.compression,
		Resources:   rc,
		MaxRetries:  o.persistRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("facevec: %w", err)
	}

	vs, _ := vectorstore.New(o.dimension)

	idx := &Index{
		dim:       o.dimension,
		store:     vs,
		ids:       idmap.New(),
		snapshots: mgr,
		rc:        rc,
		metrics:   o.metricsCollector,
		logger:    o.logger,
	}

	if err := idx.load(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) load(ctx context.Context) error {
	snap, err := idx.snapshots.Load(ctx, idx.dim)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &PersistenceError{Op: "load", Err: err}
		}
		idx.logger.LogLoad(ctx, 0, uuid.Nil, err)
		return nil
	}

	vs, err := vectorstore.FromData(idx.dim, snap.Vectors)
	if err != nil {
		idx.logger.LogLoad(ctx, 0, uuid.Nil, err)
		return nil
	}
	if !idx.rc.TryAcquireMemory(vs.SizeBytes()) {
		return fmt.Errorf("%w: snapshot holds %d bytes, limit is %d",
			ErrMemoryLimit, vs.SizeBytes(), idx.rc.Config().MemoryLimitBytes)
	}

	ids := idmap.NewWithCapacity(snap.Len())
	for pos, user := range snap.Users {
		ids.Set(uint32(pos), user)
	}

	idx.store = vs
	idx.ids = ids
	idx.generation = snap.Generation
	idx.logger.LogLoad(ctx, snap.Len(), snap.Generation, nil)
	return nil
}

// Add appends embedding for user and persists the index.
//
// Add does not enforce one embedding per user; use Replace for that. On a
// *PersistenceError the embedding stays in memory and the returned position
// is valid.
func (idx *Index) Add(ctx context.Context, user UserID, embedding []float32) (uint32, error) {
	start := time.Now()

	pos, err := idx.add(ctx, user, embedding)

	idx.metrics.RecordAdd(time.Since(start), err)
	idx.logger.LogAdd(ctx, user, pos, err)
	return pos, err
}

func (idx *Index) add(ctx context.Context, user UserID, embedding []float32) (uint32, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.checkWritableLocked(ctx, embedding); err != nil {
		return 0, err
	}

	vecBytes := idx.vectorBytes()
	if !idx.rc.TryAcquireMemory(vecBytes) {
		return 0, ErrMemoryLimit
	}

	pos, err := idx.appendLocked(user, embedding)
	if err != nil {
		idx.rc.ReleaseMemory(vecBytes)
		return 0, err
	}

	return pos, idx.persistLocked(ctx)
}

// Search returns up to k nearest embeddings to query by squared L2 distance,
// closest first. Ties are broken by insertion order.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	start := time.Now()

	matches, err := idx.search(ctx, query, k)

	idx.metrics.RecordSearch(k, time.Since(start), err)
	idx.logger.LogSearch(ctx, k, len(matches), err)
	return matches, err
}

func (idx *Index) search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, ErrClosed
	}

	neighbors, err := idx.store.Search(query, k)
	if err != nil {
		return nil, translateError(err)
	}

	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		user, ok := idx.ids.Get(n.Position)
		if !ok {
			idx.logger.WarnContext(ctx, "search hit without user mapping", "position", n.Position)
			continue
		}
		matches = append(matches, Match{UserID: UserID(user), Distance: n.Distance})
	}
	return matches, nil
}

// DeleteByUser removes every embedding of user and returns how many were removed.
//
// The remaining embeddings are copied into a fresh store in their original
// relative order and published in one step, then the index is persisted.
// Deleting an unknown user returns 0 and does not persist.
func (idx *Index) DeleteByUser(ctx context.Context, user UserID) (int, error) {
	start := time.Now()

	removed, err := idx.deleteByUser(ctx, user)

	idx.metrics.RecordDelete(removed, time.Since(start), err)
	idx.logger.LogDelete(ctx, user, removed, err)
	return removed, err
}

func (idx *Index) deleteByUser(ctx context.Context, user UserID) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	positions := idx.ids.PositionsFor(int64(user))
	if positions.IsEmpty() {
		return 0, nil
	}

	removed, freed, err := idx.removeLocked(positions)
	if err != nil {
		return 0, err
	}
	idx.rc.ReleaseMemory(freed)

	return removed, idx.persistLocked(ctx)
}

// Replace removes any embeddings of user and adds embedding, persisting once.
// It returns the new position and the number of embeddings removed.
func (idx *Index) Replace(ctx context.Context, user UserID, embedding []float32) (uint32, int, error) {
	start := time.Now()

	pos, removed, err := idx.replace(ctx, user, embedding)

	idx.metrics.RecordAdd(time.Since(start), err)
	if removed > 0 {
		idx.metrics.RecordDelete(removed, time.Since(start), err)
		idx.logger.LogDelete(ctx, user, removed, err)
	}
	idx.logger.LogAdd(ctx, user, pos, err)
	return pos, removed, err
}

func (idx *Index) replace(ctx context.Context, user UserID, embedding []float32) (uint32, int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.checkWritableLocked(ctx, embedding); err != nil {
		return 0, 0, err
	}

	positions := idx.ids.PositionsFor(int64(user))
	vecBytes := idx.vectorBytes()
	freed := int64(positions.GetCardinality()) * vecBytes

	// Reserve the net growth before touching the store.
	idx.rc.ReleaseMemory(freed)
	if !idx.rc.TryAcquireMemory(vecBytes) {
		idx.rc.TryAcquireMemory(freed)
		return 0, 0, ErrMemoryLimit
	}

	removed := 0
	if !positions.IsEmpty() {
		var err error
		if removed, _, err = idx.removeLocked(positions); err != nil {
			idx.rc.ReleaseMemory(vecBytes)
			idx.rc.TryAcquireMemory(freed)
			return 0, 0, err
		}
	}

	pos, err := idx.appendLocked(user, embedding)
	if err != nil {
		idx.rc.ReleaseMemory(vecBytes)
		return 0, removed, err
	}

	return pos, removed, idx.persistLocked(ctx)
}

// Persist writes the current state to the snapshot blobs.
func (idx *Index) Persist(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}
	return idx.persistLocked(ctx)
}

// Len returns the number of stored embeddings.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.store.Len()
}

// Dimension returns the embedding length.
func (idx *Index) Dimension() int {
	return idx.dim
}

// Stats returns a consistent snapshot of index statistics.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	s := Stats{
		Len:              idx.store.Len(),
		Users:            idx.ids.Users(),
		Dimension:        idx.dim,
		SizeBytes:        idx.store.SizeBytes(),
		MemoryUsageBytes: idx.rc.MemoryUsage(),
		MemoryLimitBytes: idx.rc.Config().MemoryLimitBytes,
		LastPersist:      idx.lastPersist,
	}
	if idx.generation != uuid.Nil {
		s.Generation = idx.generation.String()
	}
	if idx.lastPersistErr != nil {
		s.LastPersistError = idx.lastPersistErr.Error()
	}
	return s
}

func (idx *Index) vectorBytes() int64 {
	return int64(idx.dim) * 4
}

func (idx *Index) checkWritableLocked(ctx context.Context, embedding []float32) error {
	if idx.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(embedding) != idx.dim {
		return &ErrDimensionMismatch{Expected: idx.dim, Actual: len(embedding)}
	}
	return nil
}

// appendLocked adds one embedding. Memory must already be reserved.
func (idx *Index) appendLocked(user UserID, embedding []float32) (uint32, error) {
	pos, err := idx.store.Append(embedding)
	if err != nil {
		return 0, translateError(err)
	}
	idx.ids.Set(pos, int64(user))
	return pos, nil
}

// removeLocked rebuilds store and map without the given positions and
// publishes the result. It returns the number of embeddings dropped and the
// bytes no longer held; releasing the reservation is up to the caller.
func (idx *Index) removeLocked(drop *roaring.Bitmap) (int, int64, error) {
	n := idx.store.Len()
	keep := n - int(drop.GetCardinality())

	store, err := vectorstore.NewWithCapacity(idx.dim, keep)
	if err != nil {
		return 0, 0, translateError(err)
	}
	ids := idmap.NewWithCapacity(keep)

	for i := 0; i < n; i++ {
		pos := uint32(i)
		if drop.Contains(pos) {
			continue
		}
		vec, err := idx.store.Reconstruct(pos)
		if err != nil {
			return 0, 0, translateError(err)
		}
		user, ok := idx.ids.Get(pos)
		if !ok {
			return 0, 0, fmt.Errorf("facevec: position %d has no user mapping", pos)
		}
		newPos, err := store.Append(vec)
		if err != nil {
			return 0, 0, translateError(err)
		}
		ids.Set(newPos, user)
	}

	removed := n - store.Len()
	freed := idx.store.SizeBytes() - store.SizeBytes()

	idx.store, idx.ids = store, ids

	return removed, freed, nil
}

// persistLocked saves the current state. The caller holds the write lock.
func (idx *Index) persistLocked(ctx context.Context) error {
	start := time.Now()

	n := idx.store.Len()
	users := make([]int64, n)
	for pos, user := range idx.ids.All() {
		if int(pos) < n {
			users[pos] = user
		}
	}

	gen, err := idx.snapshots.Save(ctx, &persistence.Snapshot{
		Dimension: idx.dim,
		Vectors:   idx.store.Data(),
		Users:     users,
	})

	duration := time.Since(start)
	idx.metrics.RecordPersist(n, duration, err)
	idx.logger.LogPersist(ctx, n, gen, duration, err)

	idx.lastPersistErr = err
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	idx.generation = gen
	idx.lastPersist = time.Now()
	return nil
}
