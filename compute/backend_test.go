// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/rthist/internal/transfer"
)

// createNoopDevice creates a noop device for testing.
// Returns the device, its queue and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// noopJob uploads a w x h opaque BGRA8 texture and describes it as a job.
// The noop backend keeps no texel data, so readbacks of it are all zero.
func noopJob(t *testing.T, w, h uint32) Job {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)

	pix := bytes.Repeat([]byte{40, 80, 120, 255}, int(w*h))
	tex, err := transfer.Upload(device, queue, "job", w, h, gputypes.TextureFormatBGRA8Unorm, pix)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	t.Cleanup(func() { device.DestroyTexture(tex) })

	return Job{
		Device:  device,
		Queue:   queue,
		Texture: tex,
		Width:   w,
		Height:  h,
		Format:  gputypes.TextureFormatBGRA8Unorm,
	}
}

func sumBins(bins []uint32) uint64 {
	var total uint64
	for _, c := range bins {
		total += uint64(c)
	}
	return total
}

func TestInline_RunsOnCaller(t *testing.T) {
	ran := false
	err := Inline{}.SubmitAndWait(context.Background(), func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("SubmitAndWait: %v", err)
	}
	if !ran {
		t.Error("work did not run")
	}
}

func TestInline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := Inline{}.SubmitAndWait(ctx, func() error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if ran {
		t.Error("work ran after cancellation")
	}
}

func TestFunc_Compute(t *testing.T) {
	f := Func(func(_ context.Context, job Job, bins []uint32) (Report, error) {
		bins[7] = uint32(job.Pixels())
		return Report{Diagnostic: "note"}, nil
	})

	bins := make([]uint32, Bins)
	rep, err := f.Compute(context.Background(), Job{Width: 3, Height: 5}, bins)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if bins[7] != 15 {
		t.Errorf("bins[7] = %d, want 15", bins[7])
	}
	if rep.Diagnostic != "note" {
		t.Errorf("Diagnostic = %q", rep.Diagnostic)
	}
}

func TestJob_Executor(t *testing.T) {
	if _, ok := (Job{}).executor().(Inline); !ok {
		t.Error("nil Exec should default to Inline")
	}
}
