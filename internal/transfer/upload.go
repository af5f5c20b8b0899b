package transfer

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// UploadUsage is the usage of textures created by Upload. They can act as
// render targets and copy sources, which is what a histogram source needs.
const UploadUsage = gputypes.TextureUsageCopySrc |
	gputypes.TextureUsageCopyDst |
	gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageRenderAttachment

// UploadedUsage is the usage a texture is left in after Upload: the HAL's
// WriteTexture ends with a CopyDst -> TextureBinding transition.
const UploadedUsage = gputypes.TextureUsageTextureBinding

// Upload creates a 2D texture of the given 4-byte-per-pixel format and
// fills it with pix, which must hold width*height*4 tightly packed bytes.
// The caller owns the returned texture, which is in UploadedUsage.
func Upload(device hal.Device, queue hal.Queue, label string, width, height uint32, format gputypes.TextureFormat, pix []byte) (hal.Texture, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("transfer: invalid upload size %dx%d", width, height)
	}
	const bytesPerPixel = 4
	tightPitch := width * bytesPerPixel
	if want := uint64(tightPitch) * uint64(height); uint64(len(pix)) != want {
		return nil, fmt.Errorf("transfer: upload of %dx%d needs %d bytes, got %d", width, height, want, len(pix))
	}

	size := hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         UploadUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", label, err)
	}

	paddedPitch := AlignedBytesPerRow(width, bytesPerPixel)
	data := padRows(pix, height, tightPitch, paddedPitch)

	err = queue.WriteTexture(&hal.ImageCopyTexture{Texture: tex, MipLevel: 0}, data, &hal.ImageDataLayout{
		Offset:       0,
		BytesPerRow:  paddedPitch,
		RowsPerImage: height,
	}, &size)
	if err != nil {
		device.DestroyTexture(tex)
		return nil, fmt.Errorf("write texture %q: %w", label, err)
	}

	return tex, nil
}
