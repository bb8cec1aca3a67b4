// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("kv/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	db, err := segkv.Open(ctx, segkv.Remote(store))
//
// # Single writer fencing
//
// DDBCommitStore keeps the metatable in DynamoDB under a versioned,
// conditional write. A writer whose view of the metatable is stale gets
// ErrConcurrentModification instead of overwriting a newer commit.
//
// # Features
//
//   - Range reads for segment loads
//   - Multipart uploads for large segments and the filter state
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
