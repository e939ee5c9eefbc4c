// Package facevec provides an embedded face-identity index.
//
// An Index stores one biometric embedding per enrolled user and answers exact
// nearest-neighbour queries by squared L2 distance. It is the storage core of
// an attendance system: registration replaces a user's embedding, check-in
// searches for the single closest embedding and compares the matched user.
//
// # Quick Start
//
//	ctx := context.Background()
//	idx, err := facevec.Open(ctx, facevec.WithDataDir("./ml_models"))
//	if err != nil { ... }
//	defer idx.Close()
//
//	_, _, err = idx.Replace(ctx, 42, embedding)   // register user 42
//	matches, err := idx.Search(ctx, probe, 1)    // who is this?
//
// # Durability
//
// Every Add, Replace and DeleteByUser writes a full snapshot before it
// returns: user_embeddings.index holds the vectors and position_to_user.map
// the position-to-user mapping. Both blobs are written under a fresh
// generation id and become current with one write of snapshot.current, so a
// save that fails halfway leaves the previous snapshot in place. A missing or
// unusable snapshot opens as an empty index.
//
// If a save fails the mutation stays in memory and the operation returns a
// *PersistenceError; a later successful save catches up.
//
// Snapshots live in the local model-data directory by default. Use
// WithBlobStore with blobstore/minio or blobstore/s3 for object storage.
//
// # Deletion
//
// DeleteByUser rebuilds the store without the user's embeddings, keeping the
// relative order of the rest, and swaps it in under the write lock. Internal
// positions are therefore not stable identifiers; only UserID is.
//
// # Concurrency
//
// An Index is safe for concurrent use. Writers are serialized, including
// their snapshot save; searches run in parallel with each other.
package facevec
