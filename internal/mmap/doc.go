// Package mmap provides read-only memory-mapped file access.
//
// Snapshot blobs are mapped rather than read so that decoding works directly
// on the page cache without an intermediate copy.
//
//	m, err := mmap.Open("user_embeddings.index")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix platforms use mmap(2) and madvise(2). Windows uses
// CreateFileMapping/MapViewOfFile, where Advise is a no-op.
//
// A Mapping is safe for concurrent reads. Close is idempotent, but callers
// must not touch slices returned by Bytes after Close returns.
package mmap
