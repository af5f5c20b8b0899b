package transfer

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrNilTexture is returned when a copy is missing its source or destination.
var ErrNilTexture = errors.New("transfer: nil texture")

// TextureCopy describes a full-resource copy between two equally sized
// 2D textures of copy-compatible formats.
type TextureCopy struct {
	Src hal.Texture
	Dst hal.Texture

	Width  uint32
	Height uint32

	// SrcUsage is the usage Src is in when the copy is recorded; it is
	// transitioned to CopySrc and back. Zero means RenderAttachment.
	SrcUsage gputypes.TextureUsage

	// DstUsage is the usage Dst is left in after the copy. Zero means
	// TextureBinding.
	DstUsage gputypes.TextureUsage

	// Timeout bounds the completion wait. Zero means DefaultTimeout.
	Timeout time.Duration
}

// CopyTexture records the copy, submits it and waits until the GPU has
// finished, so Dst holds the source pixels when it returns.
func CopyTexture(device hal.Device, queue hal.Queue, c TextureCopy) error {
	if c.Src == nil || c.Dst == nil {
		return ErrNilTexture
	}
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("transfer: invalid copy size %dx%d", c.Width, c.Height)
	}
	srcUsage := c.SrcUsage
	if srcUsage == 0 {
		srcUsage = gputypes.TextureUsageRenderAttachment
	}
	dstUsage := c.DstUsage
	if dstUsage == 0 {
		dstUsage = gputypes.TextureUsageTextureBinding
	}

	encoder, err := BeginEncoding(device, "histogram_copy")
	if err != nil {
		return err
	}

	encoder.TransitionTextures([]hal.TextureBarrier{
		{
			Texture: c.Src,
			Usage: hal.TextureUsageTransition{
				OldUsage: srcUsage,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		},
		{
			Texture: c.Dst,
			Usage: hal.TextureUsageTransition{
				OldUsage: dstUsage,
				NewUsage: gputypes.TextureUsageCopyDst,
			},
		},
	})

	encoder.CopyTextureToTexture(c.Src, c.Dst, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{Texture: c.Src, MipLevel: 0},
		DstBase: hal.ImageCopyTexture{Texture: c.Dst, MipLevel: 0},
		Size:    hal.Extent3D{Width: c.Width, Height: c.Height, DepthOrArrayLayers: 1},
	}})

	// Hand both textures back in the usage their owners expect.
	encoder.TransitionTextures([]hal.TextureBarrier{
		{
			Texture: c.Src,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopySrc,
				NewUsage: srcUsage,
			},
		},
		{
			Texture: c.Dst,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopyDst,
				NewUsage: dstUsage,
			},
		},
	})

	return SubmitAndWait(device, queue, encoder, c.Timeout)
}
