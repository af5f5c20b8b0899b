package rthist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"
	"github.com/google/uuid"

	"github.com/gogpu/rthist/compute"
	"github.com/gogpu/rthist/internal/rendercmd"
	"github.com/gogpu/rthist/internal/staging"
	"github.com/gogpu/rthist/internal/transfer"
)

// Stats are cumulative counters of a Bridge.
type Stats struct {
	// Calls is the number of ComputeHistogram calls.
	Calls uint64 `json:"calls"`

	// Failures is the number of calls that returned an error.
	Failures uint64 `json:"failures"`

	// Reallocations is the number of staging texture allocations.
	Reallocations uint64 `json:"reallocations"`

	// Diagnostics is the number of backend diagnostics, strict or not.
	Diagnostics uint64 `json:"diagnostics"`
}

// Bridge copies render targets into a staging texture and runs a compute
// backend over it.
//
// The zero value is not usable; create one with New. A Bridge is safe for
// concurrent use, but calls are serialised.
type Bridge struct {
	mu sync.Mutex

	resolver DeviceResolver
	opts     options
	backend  compute.Backend
	queue    CommandQueue
	ownQueue *rendercmd.Queue

	// Guarded by mu.
	device  *Device
	staging *staging.Texture
	closed  bool

	calls         atomic.Uint64
	failures      atomic.Uint64
	reallocations atomic.Uint64
	diagnostics   atomic.Uint64
}

// New creates a Bridge. The device is not resolved until the first
// ComputeHistogram call. A nil resolver means SystemResolver.
func New(resolver DeviceResolver, opts ...Option) (*Bridge, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if resolver == nil {
		resolver = SystemResolver
	}

	b := &Bridge{
		resolver: resolver,
		opts:     o,
		backend:  o.backend,
		queue:    o.queue,
		staging:  staging.New("rthist_staging"),
	}
	if b.backend == nil {
		b.backend = compute.NewDefault(o.intensity, o.fenceTimeout)
	}
	if b.queue == nil {
		b.ownQueue = rendercmd.New(o.queueSize)
		b.queue = b.ownQueue
	}
	return b, nil
}

// ComputeHistogram copies src into the staging texture and fills hist with
// its intensity histogram. A nil src means the current display target.
//
// On error hist is left untouched. Errors wrap one of the package
// sentinels, a backend error, or a context error from waiting on the
// render queue.
func (b *Bridge) ComputeHistogram(ctx context.Context, src *Target, hist *Histogram) error {
	if hist == nil {
		return ErrNilHistogram
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.calls.Add(1)

	log := Logger().With("call", uuid.NewString())
	if err := b.compute(ctx, log, src, hist); err != nil {
		b.failures.Add(1)
		log.Warn("histogram failed", "err", err)
		return err
	}
	return nil
}

// compute must be called with b.mu held.
func (b *Bridge) compute(ctx context.Context, log *slog.Logger, src *Target, hist *Histogram) error {
	dev, err := b.resolveDevice(log)
	if err != nil {
		return err
	}

	target, err := b.resolveTarget(src)
	if err != nil {
		return err
	}
	w, h := target.Width, target.Height

	// Staging allocation runs on the render thread with the copy, behind any
	// work a cancelled call left queued.
	var dst hal.Texture
	var view hal.TextureView
	err = b.queue.SubmitAndWait(ctx, func() error {
		reallocated, err := b.staging.Ensure(dev.HAL, w, h)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStagingAllocationFailed, err)
		}
		if reallocated {
			b.reallocations.Add(1)
			log.Debug("staging texture allocated", "width", w, "height", h, "bytes", b.staging.SizeBytes())
		}
		dst, view = b.staging.Texture(), b.staging.View()
		return transfer.CopyTexture(dev.HAL, dev.Queue, transfer.TextureCopy{
			Src:      target.Texture,
			Dst:      dst,
			Width:    w,
			Height:   h,
			SrcUsage: target.Usage,
			Timeout:  b.opts.fenceTimeout,
		})
	})
	if errors.Is(err, ErrStagingAllocationFailed) {
		return err
	}
	if err != nil {
		return fmt.Errorf("rthist: copy %s to staging: %w", target.name(), err)
	}
	log.Debug("render target copied", "target", target.Label, "width", w, "height", h)

	var bins [compute.Bins]uint32
	job := compute.Job{
		Device:  dev.HAL,
		Queue:   dev.Queue,
		Texture: dst,
		View:    view,
		Width:   w,
		Height:  h,
		Format:  staging.Format,
		Exec:    b.queue,
	}
	name := b.backend.Name()
	rep, err := b.backend.Compute(ctx, job, bins[:])
	if err != nil {
		return fmt.Errorf("rthist: %s backend: %w", name, err)
	}
	if rep.Diagnostic != "" {
		b.diagnostics.Add(1)
		log.Error("histogram backend reported a diagnostic", "backend", name, "diagnostic", rep.Diagnostic)
		if b.opts.strict {
			return fmt.Errorf("%w: %s: %s", ErrBackendDiagnostic, name, rep.Diagnostic)
		}
	}

	*hist = bins
	log.Debug("histogram computed", "backend", name, "pixels", hist.Total())
	return nil
}

func (b *Bridge) resolveDevice(log *slog.Logger) (*Device, error) {
	if b.device != nil {
		return b.device, nil
	}
	dev, err := b.resolver.ResolveDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if dev == nil || dev.HAL == nil || dev.Queue == nil {
		return nil, fmt.Errorf("%w: resolver returned no device", ErrDeviceUnavailable)
	}
	b.device = dev
	log.Info("GPU device acquired", "device", dev.Name)
	return dev, nil
}

func (b *Bridge) resolveTarget(src *Target) (*Target, error) {
	if src == nil {
		if b.opts.display == nil {
			return nil, fmt.Errorf("%w: no source and no display", ErrNoRenderTarget)
		}
		t, err := b.opts.display.DisplayTarget()
		if err != nil {
			return nil, fmt.Errorf("%w: display: %w", ErrNoRenderTarget, err)
		}
		src = t
	}
	if err := src.validate(); err != nil {
		return nil, err
	}
	return src, nil
}

// StagingSize returns the current staging texture dimensions, or 0x0 if
// none is allocated.
func (b *Bridge) StagingSize() (w, h uint32) {
	return b.staging.Size()
}

// Stats returns a snapshot of the Bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Calls:         b.calls.Load(),
		Failures:      b.failures.Load(),
		Reallocations: b.reallocations.Load(),
		Diagnostics:   b.diagnostics.Load(),
	}
}

// Device returns the resolved device, or nil before the first successful
// resolution.
func (b *Bridge) Device() *Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.device
}

// BackendName returns the name of the compute backend.
func (b *Bridge) BackendName() string {
	return b.backend.Name()
}

// Close releases the staging texture and the backend, and stops the
// Bridge's own render queue. The device is not destroyed. Close is
// idempotent.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	release := func() error {
		if b.device != nil {
			b.staging.Destroy(b.device.HAL)
		}
		if c, ok := b.backend.(io.Closer); ok {
			return c.Close()
		}
		return nil
	}

	err := b.queue.SubmitAndWait(context.Background(), release)
	if errors.Is(err, rendercmd.ErrClosed) {
		err = release()
	}

	if b.ownQueue != nil {
		b.ownQueue.Close()
	}
	return err
}
