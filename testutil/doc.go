// Package testutil provides testing utilities for facevec.
//
// This package is intended for use in tests only. It generates deterministic,
// L2-normalized embeddings so that tests exercise the index with the same
// shape of data the face-embedding producer emits.
//
//	rng := testutil.NewRNG(seed)
//	faces := rng.UnitVectors(10, 512)
//	again := rng.Perturb(faces[0], 0.01)
package testutil
