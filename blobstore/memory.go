package blobstore

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in process memory. Tests use it in place of a
// local directory or a bucket. It is safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	blobs     map[string][]byte
	publishes map[string]int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs:     make(map[string][]byte),
		publishes: make(map[string]int),
	}
}

// Open returns a handle on the current content of name. Later writes to
// name do not affect an open handle.
func (m *MemoryStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return memoryBlob(data), nil
}

// Create returns a writer whose content replaces name on Close.
func (m *MemoryStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryWriter{store: m, name: name}, nil
}

// Put replaces name with a copy of data.
func (m *MemoryStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.publish(name, slices.Clone(data))
	return nil
}

// publish takes ownership of data. Published slices are never mutated.
func (m *MemoryStore) publish(name string, data []byte) {
	if data == nil {
		data = []byte{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = data
	m.publishes[name]++
}

// Delete removes name.
func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

// List returns the names starting with prefix in ascending order.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Publishes returns how many times content was published under name.
func (m *MemoryStore) Publishes(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.publishes[name]
}

type memoryBlob []byte

func (b memoryBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("blobstore: negative offset %d", off)
	}
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b memoryBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return &sectionReader{ctx: ctx, blob: b, off: off, limit: off + length}, nil
}

func (b memoryBlob) Size() int64            { return int64(len(b)) }
func (b memoryBlob) Bytes() ([]byte, error) { return b, nil }
func (memoryBlob) Close() error             { return nil }

type memoryWriter struct {
	store *MemoryStore
	name  string
	data  []byte
	done  bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, ErrAborted
	}
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *memoryWriter) Sync() error {
	if w.done {
		return ErrAborted
	}
	return nil
}

func (w *memoryWriter) Close() error {
	if w.done {
		return ErrAborted
	}
	w.done = true
	w.store.publish(w.name, w.data)
	return nil
}

func (w *memoryWriter) Abort() error {
	w.done = true
	w.data = nil
	return nil
}
