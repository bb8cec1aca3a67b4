// Package archive backs up and restores a blob store as a single
// compressed tar stream.
package archive
