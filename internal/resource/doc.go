// Package resource shares a memory budget between the hot tree and the
// block cache, and throttles segment IO.
//
// Reserve never blocks. The engine treats ErrOverBudget as a full hot tree
// and splits it out to storage; the cache simply skips the block:
//
//	rc := resource.NewController(resource.Config{MemoryLimit: 512 << 20})
//	if err := rc.Reserve(resource.PoolHot, recordSize); err != nil {
//		// split, then retry
//	}
//
// Segment transfers go through Reader and Writer, which wait on a token
// bucket sized to IOBytesPerSec. Every method accepts a nil *Controller.
package resource
