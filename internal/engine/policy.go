package engine

import "github.com/hupe1980/segkv/internal/metatable"

// Range is an inclusive key range.
type Range struct {
	Min uint64
	Max uint64
}

// Contains reports whether key lies within r.
func (r Range) Contains(key uint64) bool {
	return r.Min <= key && key <= r.Max
}

// GapPolicy decides where a write to a key outside every known range goes.
//
// Choose is called with the hot range (when hasHot is set) and the non-hot
// segments. Returning a descriptor swaps that segment in and widens its
// range to include key; returning false widens the hot range instead. The
// widened range must not overlap any other segment.
type GapPolicy interface {
	Choose(key uint64, hot Range, hasHot bool, candidates []metatable.Descriptor) (metatable.Descriptor, bool)
}

// NearestBoundary picks the segment whose start or end is numerically
// closest to the key. The hot range is the baseline and wins ties, and
// earlier segments win ties among themselves. Under this policy a widened
// range never reaches across another segment.
type NearestBoundary struct{}

// Choose returns the candidate nearest to key, or false when the hot range
// is at least as close.
func (NearestBoundary) Choose(key uint64, hot Range, hasHot bool, candidates []metatable.Descriptor) (metatable.Descriptor, bool) {
	var (
		best     metatable.Descriptor
		bestDist uint64
		found    bool
	)
	if hasHot {
		bestDist = distance(key, hot.Min, hot.Max)
	}
	for _, d := range candidates {
		dist := distance(key, d.Start, d.End)
		if (!hasHot && !found) || dist < bestDist {
			best, bestDist, found = d, dist, true
		}
	}
	return best, found
}

// distance returns how far key lies outside [lo, hi].
func distance(key, lo, hi uint64) uint64 {
	switch {
	case key < lo:
		return lo - key
	case key > hi:
		return key - hi
	}
	return 0
}
