// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works against MinIO and other S3-compatible systems such as Ceph,
// SeaweedFS and Garage without pulling in the AWS SDK.
//
// # Basic Usage
//
//	store, err := minioblob.New("localhost:9000", "segkv",
//	    minioblob.WithCredentials("minioadmin", "minioadmin"),
//	    minioblob.WithPrefix("kv/"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	db, err := segkv.Open(ctx, segkv.Remote(store))
//
// An existing client can be wrapped with NewStore.
package minio
