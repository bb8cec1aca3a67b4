// Package metatable keeps the in-memory index of segment key ranges and
// persists it as a flat array of fixed-size records.
package metatable
