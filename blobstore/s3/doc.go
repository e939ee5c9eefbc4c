// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("attendance/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	idx, err := facevec.Open(ctx, facevec.WithBlobStore(store))
//
// Small snapshots are written with a single CRC32C-checked PutObject; larger
// ones go through the SDK's multipart upload manager. Reads use ranged
// GetObject requests.
package s3
