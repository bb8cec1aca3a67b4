// Package bptree implements the in-memory order-5 B+ tree that holds the
// resident ("hot") segment.
//
// Nodes live in a single arena slice and refer to each other by index, so
// parent links and the leaf chain are plain lookups rather than owning
// pointers. A leaf holds up to four key/value pairs and links to its right
// sibling; an internal node holds up to four separators and five children,
// where child i covers keys below separator i and the last child covers the
// rest.
//
// The tree has no delete operation. It is emptied only by writing it out to a
// segment with Save or SaveUntil, and refilled with Load.
package bptree
