// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Bins is the number of histogram bins every backend fills.
const Bins = 256

// Backend errors.
var (
	// ErrBinCount is returned when the output slice is not exactly Bins long.
	ErrBinCount = errors.New("compute: output must hold exactly 256 bins")

	// ErrNoTexture is returned when the job carries no texture.
	ErrNoTexture = errors.New("compute: job has no texture")
)

// Executor runs GPU work on the goroutine that owns command submission and
// blocks until it has completed.
type Executor interface {
	SubmitAndWait(ctx context.Context, fn func() error) error
}

// Inline is an Executor that runs work on the calling goroutine. Use it
// when the caller already is the render thread.
type Inline struct{}

// SubmitAndWait runs fn immediately.
func (Inline) SubmitAndWait(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// Job describes one histogram computation over a staging texture.
type Job struct {
	// Device and Queue own Texture.
	Device hal.Device
	Queue  hal.Queue

	// Texture holds the pixels. View is a full view of it and may be nil,
	// in which case backends that need one create it.
	Texture hal.Texture
	View    hal.TextureView

	Width  uint32
	Height uint32
	Format gputypes.TextureFormat

	// Exec runs GPU work on the render thread. Nil means Inline.
	Exec Executor
}

// Pixels returns Width*Height.
func (j Job) Pixels() uint64 {
	return uint64(j.Width) * uint64(j.Height)
}

func (j Job) executor() Executor {
	if j.Exec == nil {
		return Inline{}
	}
	return j.Exec
}

func (j Job) validate(bins []uint32) error {
	if len(bins) != Bins {
		return fmt.Errorf("%w: got %d", ErrBinCount, len(bins))
	}
	if j.Texture == nil {
		return ErrNoTexture
	}
	if j.Width == 0 || j.Height == 0 {
		return fmt.Errorf("compute: invalid job size %dx%d", j.Width, j.Height)
	}
	return nil
}

// Report carries non-fatal information from a backend. A non-empty
// Diagnostic means the backend noticed something wrong but still produced
// bins.
type Report struct {
	Diagnostic string
}

// Backend produces a 256-bin intensity histogram from a texture.
//
// Compute overwrites all of bins. A returned error means bins holds no
// meaningful data.
type Backend interface {
	Name() string
	Compute(ctx context.Context, job Job, bins []uint32) (Report, error)
}

// Func adapts an ordinary function to the Backend interface.
type Func func(ctx context.Context, job Job, bins []uint32) (Report, error)

// Name returns "func".
func (f Func) Name() string { return "func" }

// Compute calls f.
func (f Func) Compute(ctx context.Context, job Job, bins []uint32) (Report, error) {
	return f(ctx, job, bins)
}

var _ Backend = Func(nil)
