// Package engine implements the segkv storage engine.
//
// The engine composes:
//   - a membership filter that short-circuits reads of unwritten keys
//   - a write buffer that stages PUTs and releases them in key order
//   - one resident ("hot") B+ tree holding a single segment's records
//   - a metatable of on-disk segment key ranges
//
// An access outside the hot range swaps segments: the hot tree is written
// back to its segment and the owning segment is loaded in its place. When
// the hot tree grows past the segment size limit or the memory budget, it
// is split at its median key into two segments and no tree stays resident.
//
// All state sits behind a single mutex. Scans release it between chunks.
package engine
