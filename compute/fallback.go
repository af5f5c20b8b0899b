// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"
)

// Fallback runs Primary and, if it fails, runs Secondary on the same job.
// Once Primary has failed it is skipped for the rest of Fallback's
// lifetime, so a device without compute support pays for the failure once.
//
// Cancellation errors are returned as is and never trigger the fallback.
type Fallback struct {
	Primary   Backend
	Secondary Backend

	primaryDown atomic.Bool
}

var _ Backend = (*Fallback)(nil)

// NewDefault returns the backend used when none is configured: the GPU
// shader with the CPU readback path behind it. A zero timeout means the
// transfer default.
func NewDefault(mode Intensity, timeout time.Duration) *Fallback {
	return &Fallback{
		Primary:   &GPU{Intensity: mode, Timeout: timeout},
		Secondary: &CPU{Intensity: mode, Timeout: timeout},
	}
}

// Name returns the name of the backend that will serve the next job.
func (f *Fallback) Name() string {
	if f.primaryDown.Load() || f.Primary == nil {
		return f.Secondary.Name()
	}
	return f.Primary.Name()
}

// Compute implements Backend.
func (f *Fallback) Compute(ctx context.Context, job Job, bins []uint32) (Report, error) {
	if f.Primary == nil || f.primaryDown.Load() {
		return f.Secondary.Compute(ctx, job, bins)
	}

	rep, err := f.Primary.Compute(ctx, job, bins)
	if err == nil {
		return rep, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrBinCount) || errors.Is(err, ErrNoTexture) {
		return Report{}, err
	}

	f.primaryDown.Store(true)
	slogger().Warn("histogram backend failed, falling back",
		"primary", f.Primary.Name(), "fallback", f.Secondary.Name(), "err", err)
	return f.Secondary.Compute(ctx, job, bins)
}

// Reset re-enables Primary after a failure.
func (f *Fallback) Reset() { f.primaryDown.Store(false) }

// Close closes both backends that implement io.Closer.
func (f *Fallback) Close() error {
	var errs []error
	for _, b := range []Backend{f.Primary, f.Secondary} {
		if c, ok := b.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
