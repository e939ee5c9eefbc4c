package facevec

// Close releases the memory reservation held by this Index.
//
// Every mutation is persisted before it returns, so Close does not write.
// Close is idempotent; other operations fail with ErrClosed afterwards.
func (idx *Index) Close() error {
	if idx == nil {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}
	idx.closed = true
	idx.rc.ReleaseMemory(idx.store.SizeBytes())
	return nil
}
