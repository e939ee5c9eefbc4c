// Package persistence implements the two-blob snapshot format of the index.
//
// A snapshot is a pair of blobs written together under a generation prefix,
// plus a pointer naming the generation that is current:
//
//	<generation>/user_embeddings.index   header + Count*Dimension float32 values
//	<generation>/position_to_user.map    header + Count (position uint32, user int64) pairs
//	snapshot.current                     header only
//
// Every blob starts with a 64-byte little-endian Header carrying a magic
// number, format version, payload compression, element count, dimension,
// CRC32 of the uncompressed payload and a generation UUID shared by all
// blobs of one save. A save becomes visible with the single write of the
// pointer, so a failed save leaves the previous pair in place. Load accepts
// a pair only when both headers agree with the pointer and the positions
// cover exactly 0..Count-1.
package persistence
