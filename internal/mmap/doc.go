// Package mmap exposes a file as a read-only byte slice.
//
// The local blob store opens every segment, the metatable and the filter
// state through it. On Unix an *os.File is mapped with mmap(2); any other
// File, such as a fault-injecting wrapper, is read into memory instead, so
// callers see the same Region either way.
package mmap
