// Package distance provides vector distance calculations for face embeddings.
//
// # Supported Kernels
//
//   - SquaredL2: squared Euclidean distance, the ranking metric of the index
//   - Dot: inner product, used for normalisation
//
// # Usage
//
//	d := distance.SquaredL2(a, b)
//	ok := distance.NormalizeL2InPlace(v)
package distance
