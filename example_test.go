package segkv_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/hupe1980/segkv"
)

func Example() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "segkv-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	db, err := segkv.Open(ctx, segkv.Local(dir), segkv.WithFilterBits(1<<20))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close(ctx)

	_ = db.Put(ctx, 10, []byte("AAA"))
	_ = db.Put(ctx, 5, []byte("BBB"))
	_ = db.Put(ctx, 20, []byte("CCC"))

	v, _, _ := db.Get(ctx, 5)
	fmt.Println(string(segkv.TrimValue(v)))

	for e, err := range db.Scan(ctx, 9, 11) {
		if err != nil {
			log.Fatal(err)
		}
		if e.Found {
			fmt.Println(e.Key, string(segkv.TrimValue(e.Value)))
		} else {
			fmt.Println(e.Key, "EMPTY")
		}
	}
	// Output:
	// BBB
	// 9 EMPTY
	// 10 AAA
	// 11 EMPTY
}
