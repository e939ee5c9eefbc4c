package facevec

import (
	"log/slog"

	"github.com/hupe1980/facevec/blobstore"
	"github.com/hupe1980/facevec/persistence"
)

const (
	// DefaultDimension is the embedding length produced by the face model.
	DefaultDimension = 512

	// DefaultDataDir is the model-data directory used when no store is given.
	DefaultDataDir = "./ml_models"

	// DefaultPersistRetries is the number of extra snapshot write attempts.
	DefaultPersistRetries = 2
)

type options struct {
	dataDir          string
	store            blobstore.Store
	dimension        int
	compression      persistence.Compression
	metricsCollector MetricsCollector
	logger           *Logger
	memoryLimit      int64
	ioLimit          int64
	persistRetries   int
}

// Option configures Open.
type Option func(*options)

// WithDataDir sets the directory holding the snapshot files.
// It is ignored when WithBlobStore is also given.
func WithDataDir(dir string) Option {
	return func(o *options) {
		o.dataDir = dir
	}
}

// WithBlobStore persists snapshots to store instead of the local data directory.
//
// Example with MinIO:
//
//	store := minioblob.NewStore(client, "faces", "attendance/")
//	idx, _ := facevec.Open(ctx, facevec.WithBlobStore(store))
func WithBlobStore(store blobstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithDimension sets the embedding length. Snapshots written with a
// different dimension are treated as corrupt.
func WithDimension(dim int) Option {
	return func(o *options) {
		o.dimension = dim
	}
}

// WithCompression sets the snapshot payload compression.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &facevec.BasicMetricsCollector{}
//	idx, _ := facevec.Open(ctx, facevec.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMemoryLimit caps the bytes held by stored embeddings. Add fails with
// ErrMemoryLimit once the cap would be exceeded. Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit caps snapshot write throughput in bytes per second.
// Streaming backends (local, minio, s3) are paced while the bytes are sent;
// other stores wait for the whole blob's budget before writing.
// Zero means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithPersistRetries sets how many times a failed snapshot blob write is
// retried with exponential backoff.
func WithPersistRetries(n int) Option {
	return func(o *options) {
		o.persistRetries = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		dataDir:          DefaultDataDir,
		dimension:        DefaultDimension,
		compression:      persistence.CompressionNone,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		persistRetries:   DefaultPersistRetries,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
