// Package conv holds bounds-checked integer conversions for values decoded
// from blobs (record counts and sizes).
package conv
