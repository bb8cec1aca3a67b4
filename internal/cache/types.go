package cache

// Key identifies one block of a blob. Size is the blob size when the block
// was read, so a blob rewritten with a different length never hits stale
// blocks.
type Key struct {
	Name  string
	Size  int64
	Block int64
}

// BlockCache is a byte-oriented cache for blob blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(key Key) (b []byte, ok bool)
	// Set caches a block. The cache retains b; callers must not modify it.
	Set(key Key, b []byte)
	// Invalidate removes every block of the named blob.
	Invalidate(name string)
	// Stats returns cache statistics.
	Stats() (hits, misses int64)
}
