package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/segkv/internal/fs"
	"github.com/hupe1980/segkv/internal/mmap"
)

// LocalStore implements BlobStore using the local file system.
// Writes go to a temporary file that is renamed over the target on Close.
type LocalStore struct {
	root string
	fs   fs.FileSystem
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithFileSystem sets the file system the store reads and writes through.
func WithFileSystem(f fs.FileSystem) LocalOption {
	return func(s *LocalStore) {
		s.fs = f
	}
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
func NewLocalStore(root string, opts ...LocalOption) *LocalStore {
	s := &LocalStore{root: root, fs: fs.Default}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the directory backing the store.
func (s *LocalStore) Root() string { return s.root }

// Init creates the root directory if it does not exist.
func (s *LocalStore) Init() error {
	return s.fs.MkdirAll(s.root, 0o755)
}

// Open opens a blob for reading. Files of the host file system are memory
// mapped; other file systems are read into memory.
func (s *LocalStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.fs.OpenFile(filepath.Join(s.root, name), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	r, err := mmap.Map(f)
	if cerr := f.Close(); err == nil && cerr != nil {
		_ = r.Close()
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &localBlob{r: r}, nil
}

// Create creates a new blob for writing.
func (s *LocalStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return nil, err
	}
	f, err := s.fs.CreateTemp(s.root, "."+name+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &localWritableBlob{store: s, f: f, target: filepath.Join(s.root, name)}, nil
}

// Put writes a blob atomically.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Abort()
		return err
	}
	return w.Close()
}

// Delete removes a blob.
func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.fs.Remove(filepath.Join(s.root, name))
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// List returns all blobs matching the prefix, sorted by name.
// Temporary files of in-flight writes are skipped.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

type localBlob struct {
	r *mmap.Region
}

func (b *localBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return b.r.ReadAt(p, off)
}

func (b *localBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return &sectionReader{ctx: ctx, blob: b, off: off, limit: off + length}, nil
}

func (b *localBlob) Close() error { return b.r.Close() }

func (b *localBlob) Size() int64 { return b.r.Len() }

func (b *localBlob) Bytes() ([]byte, error) { return b.r.Bytes() }

type localWritableBlob struct {
	store  *LocalStore
	f      fs.File
	target string
	done   bool
	err    error
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	if w.done {
		return 0, ErrAborted
	}
	n, err := w.f.Write(p)
	if err != nil && w.err == nil {
		w.err = err
	}
	return n, err
}

func (w *localWritableBlob) Sync() error {
	if w.done {
		return ErrAborted
	}
	return w.f.Sync()
}

// Close syncs the temporary file, renames it over the target and syncs the
// directory. A failed write or sync discards the temporary file.
func (w *localWritableBlob) Close() error {
	if w.done {
		return ErrAborted
	}
	w.done = true

	tmp := w.f.Name()
	err := w.err
	if err == nil {
		err = w.f.Sync()
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = w.store.fs.Rename(tmp, w.target)
	}
	if err != nil {
		_ = w.store.fs.Remove(tmp)
		return err
	}
	return w.store.fs.SyncDir(w.store.root)
}

func (w *localWritableBlob) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.f.Close()
	return w.store.fs.Remove(w.f.Name())
}
