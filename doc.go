// Package segkv provides an embedded key-value store for uint64 keys and
// fixed-width values.
//
// Keys are partitioned into non-overlapping ranges. Each range is stored as
// a sorted segment blob and at most one range is resident at a time, held in
// an in-memory B+ tree. Writes are buffered and applied in key order; reads
// and scans flush the buffer first, so they always observe every prior write.
//
// # Quick Start
//
// Local mode:
//
//	ctx := context.Background()
//	db, _ := segkv.Open(ctx, segkv.Local("./storage"))
//	defer db.Close(ctx)
//
//	_ = db.Put(ctx, 10, []byte("AAA"))
//	v, ok, _ := db.Get(ctx, 10)
//
// Cloud mode:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("kv/"))
//	db, _ := segkv.Open(ctx, segkv.Remote(store))
//
// A remote store can be wrapped in a blobstore.CachingStore. Pass the same
// ResourceController to the cache and to Open so both draw from one memory
// budget.
//
// # Values
//
// Every value occupies exactly ValueSize bytes (128 by default). Shorter
// values are padded with zero bytes and Get returns the padded value.
// Longer values are rejected with *ErrValueTooLong.
//
// # Scans
//
// Scan is dense: it yields one Entry per key in [start, end], with Found set
// to false for keys that hold no value.
//
//	for e, err := range db.Scan(ctx, 5, 20) {
//	    if err != nil {
//	        return err
//	    }
//	    if e.Found {
//	        fmt.Println(e.Key, string(segkv.TrimValue(e.Value)))
//	    }
//	}
//
// # Durability
//
// Buffered writes and the resident tree are persisted by Flush and Close.
// There is no write-ahead log; a process that exits without Close loses the
// writes made since the last segment save.
package segkv
