package resource

import (
	"context"
	"io"
)

// RateLimitedReader paces reads from r by the controller's IO limit.
// Each Read is capped to the limiter burst and waits before reading.
type RateLimitedReader struct {
	ctx context.Context
	r   io.Reader
	rc  *Controller
}

// NewRateLimitedReader creates a new RateLimitedReader.
func NewRateLimitedReader(ctx context.Context, r io.Reader, rc *Controller) *RateLimitedReader {
	return &RateLimitedReader{
		ctx: ctx,
		r:   r,
		rc:  rc,
	}
}

func (r *RateLimitedReader) Read(p []byte) (int, error) {
	if r.rc.IOLimited() && len(p) > r.rc.ioBurst {
		p = p[:r.rc.ioBurst]
	}
	if err := r.rc.AcquireIO(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
