// Package iox provides I/O helpers for resource cleanup and copy progress.
package iox

import (
	"context"
	"io"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup and b.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls (e.g. Flush) where errors are unactionable:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }

// ProgressWriter counts bytes written through it and reports the running
// total after every write.
type ProgressWriter struct {
	w     io.Writer
	n     int64
	onAdd func(total int64)
}

// NewProgressWriter wraps w. onAdd may be nil.
func NewProgressWriter(w io.Writer, onAdd func(total int64)) *ProgressWriter {
	return &ProgressWriter{w: w, onAdd: onAdd}
}

func (p *ProgressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if n > 0 {
		p.n += int64(n)
		if p.onAdd != nil {
			p.onAdd(p.n)
		}
	}
	return n, err
}

// Written returns the number of bytes written so far.
func (p *ProgressWriter) Written() int64 { return p.n }

// ContextReader returns a reader that fails with ctx.Err() once ctx is done.
// The check runs before each Read, so a blocked Read is not interrupted.
func ContextReader(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
