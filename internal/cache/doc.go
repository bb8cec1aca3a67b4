// Package cache provides an LRU cache for blob blocks.
//
// Remote backends pay a round trip for every segment load. The block cache
// keeps recently read blocks in memory so a segment swapped out and back in
// is served locally. Memory held by the cache can be charged against a
// resource.Controller.
package cache
