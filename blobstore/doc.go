// Package blobstore provides the storage abstraction behind segkv.
//
// Every persistent artifact is a named blob: segments are named by their
// decimal slot id ("0", "1", ...), the metatable is "meta" and the bloom
// filter state is "bf.state". Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mapped reads and rename-on-close writes
//   - MemoryStore: In-memory store for tests
//   - CachingStore: read-through block cache in front of a remote store
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - s3.DDBCommitStore: S3 with the metatable committed through DynamoDB
//   - minio.Store: MinIO and other S3-compatible servers
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)            // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Create for writing
//	    Put(ctx, name, data) error               // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// A WritableBlob must not publish partial content: either Close succeeds and
// the whole blob replaces the previous one, or the previous blob survives.
package blobstore
