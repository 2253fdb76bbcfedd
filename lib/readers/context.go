package readers

import (
	"context"
	"io"
)

// NewContextReader creates a reader which fails with the cause of
// ctx's cancellation once ctx is done, so a long copy from a slow
// source stops at the next Read.
func NewContextReader(ctx context.Context, r io.Reader) io.Reader {
	return &contextReader{
		ctx: ctx,
		r:   r,
	}
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

// Read bytes as per io.Reader interface
func (cr *contextReader) Read(p []byte) (n int, err error) {
	if cr.ctx.Err() != nil {
		return 0, context.Cause(cr.ctx)
	}
	return cr.r.Read(p)
}
