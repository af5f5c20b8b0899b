// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"context"
	_ "embed"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rthist/internal/transfer"
)

//go:embed shaders/histogram.wgsl
var histogramShaderWGSL string

const (
	// histogramWorkgroupSize matches @workgroup_size in histogram.wgsl.
	histogramWorkgroupSize = 16

	// paramsSize is the byte size of the Params uniform.
	paramsSize = 16

	// binBufferSize is the byte size of the bin storage buffer.
	binBufferSize = Bins * 4
)

// GPU counts intensities with a compute shader: one invocation per texel,
// atomic increments into a 256-entry storage buffer, then a 1 KiB readback.
//
// The pipeline is built on first use and rebuilt if the job's device
// changes. GPU is safe for concurrent use, but all GPU work runs through the
// job's Executor.
type GPU struct {
	// Intensity selects the colour reduction. The zero value is Luma.
	Intensity Intensity

	// Timeout bounds the fence wait. Zero means the transfer default.
	Timeout time.Duration

	mu         sync.Mutex
	device     hal.Device
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

var _ Backend = (*GPU)(nil)

// Name returns "gpu".
func (g *GPU) Name() string { return "gpu" }

// Compute dispatches the histogram shader over the job's texture.
func (g *GPU) Compute(ctx context.Context, job Job, bins []uint32) (Report, error) {
	if err := job.validate(bins); err != nil {
		return Report{}, err
	}

	var counts [Bins]uint32
	err := job.executor().SubmitAndWait(ctx, func() error {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.dispatch(job, counts[:])
	})
	if err != nil {
		return Report{}, fmt.Errorf("compute: gpu dispatch: %w", err)
	}
	copy(bins, counts[:])

	var total uint64
	for _, c := range counts {
		total += uint64(c)
	}
	slogger().Debug("gpu histogram computed",
		"width", job.Width, "height", job.Height, "intensity", g.Intensity.String(), "total", total)

	if total != job.Pixels() {
		return Report{Diagnostic: fmt.Sprintf("bin total %d does not match %d pixels", total, job.Pixels())}, nil
	}
	return Report{}, nil
}

// Close releases the compute pipeline.
func (g *GPU) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.destroyPipeline()
	g.device = nil
	return nil
}

// dispatch must be called with g.mu held, on the render thread.
func (g *GPU) dispatch(job Job, out []uint32) error {
	if err := g.ensurePipeline(job.Device); err != nil {
		return err
	}
	device, queue := job.Device, job.Queue

	paramsBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "histogram_params", Size: paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create params buffer: %w", err)
	}
	defer device.DestroyBuffer(paramsBuf)

	binBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "histogram_bins", Size: binBufferSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create bin buffer: %w", err)
	}
	defer device.DestroyBuffer(binBuf)

	readBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "histogram_bins_readback", Size: binBufferSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create readback buffer: %w", err)
	}
	defer device.DestroyBuffer(readBuf)

	view := job.View
	if view == nil {
		view, err = device.CreateTextureView(job.Texture, &hal.TextureViewDescriptor{Label: "histogram_source_view"})
		if err != nil {
			return fmt.Errorf("create source view: %w", err)
		}
		defer device.DestroyTextureView(view)
	}

	if err := queue.WriteBuffer(paramsBuf, 0, encodeParams(job.Width, job.Height, g.Intensity)); err != nil {
		return fmt.Errorf("write params: %w", err)
	}
	if err := queue.WriteBuffer(binBuf, 0, make([]byte, binBufferSize)); err != nil {
		return fmt.Errorf("clear bins: %w", err)
	}

	bindGroup, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "histogram_bind", Layout: g.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: paramsBuf.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: binBuf.NativeHandle(), Offset: 0, Size: binBufferSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer device.DestroyBindGroup(bindGroup)

	encoder, err := transfer.BeginEncoding(device, "histogram_compute")
	if err != nil {
		return err
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "histogram_pass"})
	pass.SetPipeline(g.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Dispatch(workgroups(job.Width), workgroups(job.Height), 1)
	pass.End()

	encoder.CopyBufferToBuffer(binBuf, readBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: binBufferSize},
	})

	if err := transfer.SubmitAndWait(device, queue, encoder, g.Timeout); err != nil {
		return err
	}

	readback, err := transfer.ReadBuffer(device, readBuf, binBufferSize)
	if err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	decodeBins(readback, out)
	return nil
}

func (g *GPU) ensurePipeline(device hal.Device) error {
	if device == nil {
		return fmt.Errorf("compute: job has no device")
	}
	if g.pipeline != nil && g.device == device {
		return nil
	}
	g.destroyPipeline()
	g.device = device

	spirv, err := CompileShader(histogramShaderWGSL)
	if err != nil {
		return err
	}

	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "histogram",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create histogram shader module: %w", err)
	}
	g.shader = shader

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "histogram_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		g.destroyPipeline()
		return fmt.Errorf("create histogram bind group layout: %w", err)
	}
	g.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "histogram_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{g.bindLayout},
	})
	if err != nil {
		g.destroyPipeline()
		return fmt.Errorf("create histogram pipeline layout: %w", err)
	}
	g.pipeLayout = pipeLayout

	pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "histogram_pipeline", Layout: g.pipeLayout,
		Compute: hal.ComputeState{Module: g.shader, EntryPoint: "main"},
	})
	if err != nil {
		g.destroyPipeline()
		return fmt.Errorf("create histogram compute pipeline: %w", err)
	}
	g.pipeline = pipeline

	slogger().Info("gpu histogram pipeline created")
	return nil
}

func (g *GPU) destroyPipeline() {
	if g.device == nil {
		return
	}
	if g.pipeline != nil {
		g.device.DestroyComputePipeline(g.pipeline)
		g.pipeline = nil
	}
	if g.pipeLayout != nil {
		g.device.DestroyPipelineLayout(g.pipeLayout)
		g.pipeLayout = nil
	}
	if g.bindLayout != nil {
		g.device.DestroyBindGroupLayout(g.bindLayout)
		g.bindLayout = nil
	}
	if g.shader != nil {
		g.device.DestroyShaderModule(g.shader)
		g.shader = nil
	}
}

// CompileShader compiles WGSL source to SPIR-V words.
func CompileShader(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("compile histogram shader: %w", err)
	}
	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

func workgroups(n uint32) uint32 {
	return (n + histogramWorkgroupSize - 1) / histogramWorkgroupSize
}

// encodeParams packs the Params uniform.
func encodeParams(width, height uint32, mode Intensity) []byte {
	buf := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(buf[0:], width)
	binary.LittleEndian.PutUint32(buf[4:], height)
	binary.LittleEndian.PutUint32(buf[8:], uint32(mode))
	return buf
}

// decodeBins unpacks little-endian u32 counts.
func decodeBins(data []byte, out []uint32) {
	for i := range out {
		if (i+1)*4 > len(data) {
			out[i] = 0
			continue
		}
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
}
