package rthist

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Target is a source texture owned by the caller. rthist only reads it and
// never destroys it.
type Target struct {
	Texture hal.Texture
	Width   uint32
	Height  uint32

	// Format must be BGRA8Unorm or BGRA8UnormSrgb. Undefined is read as
	// BGRA8Unorm.
	Format gputypes.TextureFormat

	// Usage is the usage the texture is in when the copy is recorded. The
	// copy returns it to this usage. Zero means RenderAttachment; textures
	// filled by a queue write are in TextureBinding.
	Usage gputypes.TextureUsage

	Label string
}

// validate reports ErrNoRenderTarget or ErrUnsupportedFormat.
func (t *Target) validate() error {
	if t == nil || t.Texture == nil {
		return ErrNoRenderTarget
	}
	if t.Width == 0 || t.Height == 0 {
		return fmt.Errorf("%w: %s is %dx%d", ErrNoRenderTarget, t.name(), t.Width, t.Height)
	}
	if !copyCompatible(t.Format) {
		return fmt.Errorf("%w: %s has format %v", ErrUnsupportedFormat, t.name(), t.Format)
	}
	return nil
}

func (t *Target) name() string {
	if t.Label == "" {
		return "target"
	}
	return fmt.Sprintf("target %q", t.Label)
}

// copyCompatible reports whether f can be copied into the BGRA8Unorm
// staging texture. Copies may differ only in the sRGB-ness of the format.
func copyCompatible(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatUndefined,
		gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatBGRA8UnormSrgb:
		return true
	default:
		return false
	}
}

// DisplaySource provides the texture currently shown on the display. It is
// asked for a target when ComputeHistogram is called without one.
type DisplaySource interface {
	DisplayTarget() (*Target, error)
}

// DisplayFunc adapts an ordinary function to the DisplaySource interface.
type DisplayFunc func() (*Target, error)

// DisplayTarget calls f.
func (f DisplayFunc) DisplayTarget() (*Target, error) { return f() }
