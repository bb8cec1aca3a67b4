// Package testutil provides testing utilities for segkv.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded random source for keys and values and a reference
// model to check the store against.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	key := rng.Key()             // uniform uint64
//	val := rng.Value(128)        // alphanumeric bytes
//
// # Reference Model
//
//	m := testutil.NewModel(128)
//	m.Put(key, val)
//	want, ok := m.Get(key)
//	entries := m.Scan(lo, hi)    // dense, like the store's Scan
package testutil
