package bptree

import "errors"

var (
	// ErrNotEmpty is returned when loading a segment into a tree that still holds records.
	ErrNotEmpty = errors.New("bptree: load into non-empty tree")

	// ErrInvariant is returned by Check when the tree structure is inconsistent.
	ErrInvariant = errors.New("bptree: invariant violated")
)
