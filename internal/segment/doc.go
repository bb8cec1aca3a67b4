// Package segment implements the on-disk segment format.
//
// A segment is an immutable, headerless sequence of fixed-size records:
//
//	+-----------------+---------------------+
//	| key (8 byte LE) | value (valueSize B) |
//	+-----------------+---------------------+
//
// Records are stored in strictly ascending key order with no padding, so a
// segment of n records is exactly n*(8+valueSize) bytes long.
package segment
