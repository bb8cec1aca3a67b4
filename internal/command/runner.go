package command

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"sync"

	"github.com/hupe1980/segkv/internal/engine"
)

// EmptyMarker is written for keys without a value.
const EmptyMarker = "EMPTY"

// maxLineSize bounds a single command line.
const maxLineSize = 1 << 20

// Store is the key-value interface commands run against.
type Store interface {
	Put(ctx context.Context, key uint64, value []byte) error
	Get(ctx context.Context, key uint64) ([]byte, bool, error)
	Scan(ctx context.Context, start, end uint64) iter.Seq2[engine.Entry, error]
}

// Result counts what a run did.
type Result struct {
	Lines     int
	Puts      int
	Gets      int
	Scans     int
	Outputs   int
	Malformed int
	Rejected  int
}

// Runner executes command files against a Store.
type Runner struct {
	store    Store
	logger   *slog.Logger
	isReject func(error) bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger used to report skipped lines.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRejectFunc marks store errors that skip the line instead of ending
// the run, such as an over-long value.
func WithRejectFunc(fn func(error) bool) RunnerOption {
	return func(r *Runner) {
		r.isReject = fn
	}
}

// NewRunner creates a Runner for store.
func NewRunner(store Store, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:    store,
		logger:   slog.New(slog.DiscardHandler),
		isReject: func(error) bool { return false },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every line of in and writes GET and SCAN results to out.
// Malformed lines and rejected writes are logged and skipped. Any other
// error stops the run.
func (r *Runner) Run(ctx context.Context, in io.Reader, out io.Writer) (Result, error) {
	var res Result
	w := bufio.NewWriter(out)

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	for sc.Scan() {
		res.Lines++
		line := sc.Text()

		cmd, err := Parse(line)
		if err != nil {
			res.Malformed++
			r.logger.Warn("Skipping malformed command", "line", res.Lines, "error", err)
			continue
		}

		if err := r.exec(ctx, cmd, w, &res); err != nil {
			if r.isReject(err) {
				res.Rejected++
				r.logger.Warn("Skipping rejected command", "line", res.Lines, "op", cmd.Op, "error", err)
				continue
			}
			_ = w.Flush()
			return res, fmt.Errorf("line %d: %s: %w", res.Lines, cmd.Op, err)
		}
	}
	if err := sc.Err(); err != nil {
		_ = w.Flush()
		return res, fmt.Errorf("read commands: %w", err)
	}
	if err := w.Flush(); err != nil {
		return res, fmt.Errorf("write results: %w", err)
	}
	return res, nil
}

func (r *Runner) exec(ctx context.Context, cmd Command, w *bufio.Writer, res *Result) error {
	switch cmd.Op {
	case OpPut:
		if err := r.store.Put(ctx, cmd.Key, cmd.Value); err != nil {
			return err
		}
		res.Puts++
	case OpGet:
		v, ok, err := r.store.Get(ctx, cmd.Key)
		if err != nil {
			return err
		}
		res.Gets++
		res.Outputs++
		return writeValue(w, v, ok)
	case OpScan:
		for e, err := range r.store.Scan(ctx, cmd.Key, cmd.End) {
			if err != nil {
				return err
			}
			res.Outputs++
			if err := writeValue(w, e.Value, e.Found); err != nil {
				return err
			}
		}
		res.Scans++
	}
	return nil
}

func writeValue(w *bufio.Writer, v []byte, ok bool) error {
	if !ok {
		_, err := w.WriteString(EmptyMarker + "\n")
		return err
	}
	if i := bytes.IndexByte(v, 0); i >= 0 {
		v = v[:i]
	}
	if _, err := w.Write(v); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// LazyFile is an io.WriteCloser that creates its file on the first write.
// Runs without GET or SCAN commands leave no file behind.
type LazyFile struct {
	path string

	mu  sync.Mutex
	f   *os.File
	err error
}

// NewLazyFile returns a LazyFile for path.
func NewLazyFile(path string) *LazyFile {
	return &LazyFile{path: path}
}

// Path returns the file path.
func (l *LazyFile) Path() string { return l.path }

// Created reports whether the file has been created.
func (l *LazyFile) Created() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f != nil
}

func (l *LazyFile) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return 0, l.err
	}
	if l.f == nil {
		f, err := os.Create(l.path)
		if err != nil {
			l.err = err
			return 0, err
		}
		l.f = f
	}
	return l.f.Write(p)
}

// Close syncs and closes the file if it was created.
func (l *LazyFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := errors.Join(l.f.Sync(), l.f.Close())
	l.f = nil
	l.err = os.ErrClosed
	return err
}
