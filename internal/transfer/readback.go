package transfer

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ReadTexture copies a 4-byte-per-pixel texture into host memory and
// returns tightly packed rows (width*4 bytes each) in the texture's own
// channel order. The texture is expected in TextureBinding usage and is
// left there.
func ReadTexture(device hal.Device, queue hal.Queue, tex hal.Texture, width, height uint32, timeout time.Duration) ([]byte, error) {
	if tex == nil {
		return nil, ErrNilTexture
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("transfer: invalid readback size %dx%d", width, height)
	}

	const bytesPerPixel = 4
	tightPitch := width * bytesPerPixel
	paddedPitch := AlignedBytesPerRow(width, bytesPerPixel)
	bufSize := uint64(paddedPitch) * uint64(height)

	stagingBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "histogram_readback",
		Size:  bufSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create readback buffer: %w", err)
	}
	defer device.DestroyBuffer(stagingBuf)

	encoder, err := BeginEncoding(device, "histogram_readback")
	if err != nil {
		return nil, err
	}

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageTextureBinding,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	encoder.CopyTextureToBuffer(tex, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: paddedPitch, RowsPerImage: height},
		TextureBase:  hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	}})

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageTextureBinding,
		},
	}})

	if err := SubmitAndWait(device, queue, encoder, timeout); err != nil {
		return nil, err
	}

	readback, err := ReadBuffer(device, stagingBuf, bufSize)
	if err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	return StripRowPadding(readback, height, tightPitch, paddedPitch), nil
}
