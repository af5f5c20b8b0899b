package rthist

import (
	"context"
	"time"

	"github.com/gogpu/rthist/compute"
)

// CommandQueue runs GPU work on the render thread, in submission order, and
// blocks until it has completed. The ctx bounds only how long the caller
// waits; work already queued still runs.
//
// A host engine that already owns a render thread passes its own queue with
// WithCommandQueue. Otherwise each Bridge starts one.
type CommandQueue interface {
	SubmitAndWait(ctx context.Context, fn func() error) error
}

// Option configures a Bridge during creation.
//
// Example:
//
//	b, err := rthist.New(nil,
//		rthist.WithBackend(&compute.CPU{}),
//		rthist.WithStrictDiagnostics(true),
//	)
type Option func(*options)

// options holds optional configuration for Bridge creation.
type options struct {
	backend      compute.Backend
	intensity    compute.Intensity
	display      DisplaySource
	queue        CommandQueue
	strict       bool
	fenceTimeout time.Duration
	queueSize    int
}

// defaultOptions returns the default bridge options.
func defaultOptions() options {
	return options{
		backend:      nil, // Will be compute.NewDefault if nil
		intensity:    compute.Luma,
		fenceTimeout: 5 * time.Second,
	}
}

// WithBackend sets the compute backend that fills the bins.
// The default is the GPU shader backend with CPU fallback.
//
// If the backend implements io.Closer, Bridge.Close closes it.
func WithBackend(b compute.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithIntensity sets the intensity mode of the default backend. It has no
// effect together with WithBackend.
func WithIntensity(mode compute.Intensity) Option {
	return func(o *options) {
		o.intensity = mode
	}
}

// WithDisplay sets the source used when ComputeHistogram is called without
// a target. Without it such calls fail with ErrNoRenderTarget.
func WithDisplay(d DisplaySource) Option {
	return func(o *options) {
		o.display = d
	}
}

// WithCommandQueue makes the Bridge submit GPU work to q instead of
// starting its own render goroutine. The Bridge does not close q.
func WithCommandQueue(q CommandQueue) Option {
	return func(o *options) {
		o.queue = q
	}
}

// WithStrictDiagnostics makes a backend diagnostic fail the call with
// ErrBackendDiagnostic. By default diagnostics are logged at error level
// and the call succeeds.
func WithStrictDiagnostics(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithFenceTimeout bounds each wait for the GPU to finish a submission.
// Non-positive values are ignored.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fenceTimeout = d
		}
	}
}

// WithQueueSize sets the buffer size of the Bridge's own render queue.
func WithQueueSize(n int) Option {
	return func(o *options) {
		o.queueSize = n
	}
}
