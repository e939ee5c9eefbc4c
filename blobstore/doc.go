// Package blobstore provides the storage abstraction for index snapshots.
//
// A Store reads and writes whole named blobs. Writes through Put are atomic
// per blob: a reader observes either the previous content or the new one.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem (the model-data directory) with mmap reads
//   - MemoryStore: in-process map, used by tests
//   - minio.Store: MinIO and other S3-compatible services
//   - s3.Store: Amazon S3 with range reads and managed uploads
//
// # Custom Implementations
//
//	type Store interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	}
package blobstore
