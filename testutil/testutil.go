package testutil

import (
	"bytes"
	"math/rand"
	"sort"
	"sync"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Key returns a uniform random key.
func (r *RNG) Key() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// KeyIn returns a random key in [lo, lo+n).
func (r *RNG) KeyIn(lo, n uint64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n == 0 {
		return lo
	}
	return lo + r.rand.Uint64()%n
}

// Value returns n random alphanumeric bytes.
func (r *RNG) Value(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := make([]byte, n)
	for i := range v {
		v[i] = alphanumeric[r.rand.Intn(len(alphanumeric))]
	}
	return v
}

// ModelEntry is one key of a model scan.
type ModelEntry struct {
	Key   uint64
	Value []byte
	Found bool
}

// Model is a map-backed reference for the store semantics: fixed-width
// zero-padded values and last-write-wins.
type Model struct {
	valueSize int
	data      map[uint64][]byte
}

// NewModel creates an empty model with the given value width.
func NewModel(valueSize int) *Model {
	return &Model{valueSize: valueSize, data: make(map[uint64][]byte)}
}

// Put stores value padded to the value width.
func (m *Model) Put(key uint64, value []byte) {
	v := make([]byte, m.valueSize)
	copy(v, value)
	m.data[key] = v
}

// Get returns the stored value.
func (m *Model) Get(key uint64) ([]byte, bool) {
	v, ok := m.data[key]
	return v, ok
}

// Len returns the number of distinct keys.
func (m *Model) Len() int { return len(m.data) }

// Keys returns all keys in ascending order.
func (m *Model) Keys() []uint64 {
	keys := make([]uint64, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Scan returns one entry per key in [lo, hi].
func (m *Model) Scan(lo, hi uint64) []ModelEntry {
	if lo > hi {
		return nil
	}
	var out []ModelEntry
	for k := lo; ; k++ {
		v, ok := m.data[k]
		out = append(out, ModelEntry{Key: k, Value: v, Found: ok})
		if k == hi {
			break
		}
	}
	return out
}

// Trim strips the zero padding from a stored value.
func Trim(v []byte) []byte {
	return bytes.TrimRight(v, "\x00")
}
