package resource

import (
	"context"
	"io"
)

// Writer charges every write against the IO limit before passing it on.
type Writer struct {
	ctx context.Context
	w   io.Writer
	c   *Controller
}

// NewWriter wraps w. A nil controller passes writes straight through.
func NewWriter(ctx context.Context, w io.Writer, c *Controller) *Writer {
	return &Writer{ctx: ctx, w: w, c: c}
}

func (w *Writer) Write(p []byte) (int, error) {
	if err := w.c.WaitIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}

// Reader charges what it reads against the IO limit.
type Reader struct {
	ctx context.Context
	r   io.Reader
	c   *Controller
}

// NewReader wraps r. A nil controller passes reads straight through.
func NewReader(ctx context.Context, r io.Reader, c *Controller) *Reader {
	return &Reader{ctx: ctx, r: r, c: c}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.c.WaitIO(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
