// Package transfer moves pixels between GPU textures, GPU buffers and host
// memory using the wgpu HAL. Every function records one command buffer,
// submits it and waits for completion, so the data is in place when it returns.
//
// Functions in this package record GPU commands and must run on the render
// command queue.
package transfer

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/gogpu/wgpu/hal"
)

// DefaultTimeout bounds how long a completion wait may take.
const DefaultTimeout = 5 * time.Second

// copyPitchAlignment is the required BytesPerRow alignment for
// texture <-> buffer copies in WebGPU (and DX12).
const copyPitchAlignment = 256

// ErrTimeout is returned when a submission does not complete in time.
var ErrTimeout = errors.New("transfer: timed out waiting for GPU")

var errNilMapping = errors.New("backend returned a nil mapping")

// BeginEncoding creates a command encoder and starts recording under label.
func BeginEncoding(device hal.Device, label string) (hal.CommandEncoder, error) {
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	return encoder, nil
}

// pollInterval is how often SubmitAndWait checks for completion.
const pollInterval = 100 * time.Microsecond

// SubmitAndWait finishes the encoder, submits it and blocks until the queue
// reports the submission complete. A non-positive timeout means
// DefaultTimeout.
//
// On timeout the command buffer is not freed, since the GPU may still own it.
func SubmitAndWait(device hal.Device, queue hal.Queue, encoder hal.CommandEncoder, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}

	index, err := queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("submit: %w", err)
	}
	if err := waitSubmission(queue, index, timeout); err != nil {
		return err
	}
	device.FreeCommandBuffer(cmdBuf)
	return nil
}

// waitSubmission polls the queue until index has completed.
func waitSubmission(queue hal.Queue, index uint64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for queue.PollCompleted() < index {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %v", ErrTimeout, timeout)
		}
		time.Sleep(pollInterval)
	}
	return nil
}

// ReadBuffer maps a MapRead buffer and copies its first size bytes out.
// The GPU must be done writing the buffer.
func ReadBuffer(device hal.Device, buf hal.Buffer, size uint64) ([]byte, error) {
	mapping, err := device.MapBuffer(buf, 0, size)
	if err != nil {
		return nil, fmt.Errorf("map buffer: %w", err)
	}
	if mapping.Ptr == nil {
		_ = device.UnmapBuffer(buf)
		return nil, fmt.Errorf("map buffer: %w", errNilMapping)
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := device.UnmapBuffer(buf); err != nil {
		return nil, fmt.Errorf("unmap buffer: %w", err)
	}
	return out, nil
}

// AlignedBytesPerRow rounds a row of width pixels up to the copy pitch.
func AlignedBytesPerRow(width, bytesPerPixel uint32) uint32 {
	bytesPerRow := width * bytesPerPixel
	return (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// StripRowPadding packs rows stored with a padded pitch into a tight buffer.
// If the pitches are equal the input is returned as is.
func StripRowPadding(padded []byte, rows, tightPitch, paddedPitch uint32) []byte {
	if tightPitch == paddedPitch {
		return padded[:uint64(tightPitch)*uint64(rows)]
	}
	tight := make([]byte, uint64(tightPitch)*uint64(rows))
	for row := uint32(0); row < rows; row++ {
		srcOff := uint64(row) * uint64(paddedPitch)
		dstOff := uint64(row) * uint64(tightPitch)
		copy(tight[dstOff:dstOff+uint64(tightPitch)], padded[srcOff:srcOff+uint64(tightPitch)])
	}
	return tight
}

// padRows is the inverse of StripRowPadding.
func padRows(tight []byte, rows, tightPitch, paddedPitch uint32) []byte {
	if tightPitch == paddedPitch {
		return tight
	}
	padded := make([]byte, uint64(paddedPitch)*uint64(rows))
	for row := uint32(0); row < rows; row++ {
		srcOff := uint64(row) * uint64(tightPitch)
		dstOff := uint64(row) * uint64(paddedPitch)
		copy(padded[dstOff:dstOff+uint64(tightPitch)], tight[srcOff:srcOff+uint64(tightPitch)])
	}
	return padded
}
