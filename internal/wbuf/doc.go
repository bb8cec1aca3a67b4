// Package wbuf stages incoming writes and releases them in key order.
//
// A failed Drain keeps the writes it did not apply, so a caller can retry
// the drain without losing acknowledged writes.
package wbuf
