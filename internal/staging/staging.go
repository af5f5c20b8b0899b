// Package staging owns the fixed-format intermediate texture that source
// render targets are copied into before histogram computation.
package staging

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Format is the pixel format of every staging texture.
const Format = gputypes.TextureFormatBGRA8Unorm

// Usage is the usage set of every staging texture: it can be rendered to,
// sampled by compute shaders, and copied in either direction.
const Usage = gputypes.TextureUsageRenderAttachment |
	gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageCopyDst |
	gputypes.TextureUsageCopySrc

// ErrInvalidDimensions is returned for a zero width or height.
var ErrInvalidDimensions = errors.New("staging: width and height must be positive")

// Texture is a lazily allocated staging texture whose dimensions track the
// most recently seen source. Either both the texture and its view are set
// and the size is the source dimensions, or everything is zero.
//
// Ensure, Destroy, Texture and View touch GPU state and must run on the
// render thread. Size, SizeBytes and Allocations may be called from any
// goroutine.
type Texture struct {
	tex  hal.Texture
	view hal.TextureView

	// size packs width<<32 | height.
	size atomic.Uint64

	allocations atomic.Uint64
	label       string
}

// New returns an empty staging cache. The label prefixes GPU debug labels.
func New(label string) *Texture {
	if label == "" {
		label = "staging"
	}
	return &Texture{label: label}
}

// Ensure makes sure a staging texture of w x h exists, reallocating it when
// it is absent or sized differently. It reports whether an allocation took
// place. If allocation fails the cache is left empty.
func (s *Texture) Ensure(device hal.Device, w, h uint32) (bool, error) {
	if w == 0 || h == 0 {
		return false, fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, w, h)
	}
	if cw, ch := s.Size(); s.tex != nil && cw == w && ch == h {
		return false, nil
	}
	s.Destroy(device)

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         s.label + "_texture",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        Format,
		Usage:         Usage,
	})
	if err != nil {
		return false, fmt.Errorf("create staging texture %dx%d: %w", w, h, err)
	}

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: s.label + "_view",
	})
	if err != nil {
		device.DestroyTexture(tex)
		return false, fmt.Errorf("create staging view %dx%d: %w", w, h, err)
	}

	s.tex = tex
	s.view = view
	s.size.Store(uint64(w)<<32 | uint64(h))
	s.allocations.Add(1)
	return true, nil
}

// Destroy releases the staging texture and resets the cached dimensions.
func (s *Texture) Destroy(device hal.Device) {
	if s.view != nil {
		device.DestroyTextureView(s.view)
		s.view = nil
	}
	if s.tex != nil {
		device.DestroyTexture(s.tex)
		s.tex = nil
	}
	s.size.Store(0)
}

// Size returns the cached dimensions, (0, 0) when empty.
func (s *Texture) Size() (w, h uint32) {
	v := s.size.Load()
	return uint32(v >> 32), uint32(v) //nolint:gosec // unpacking two uint32 halves
}

// Texture returns the staging texture, or nil.
func (s *Texture) Texture() hal.Texture {
	return s.tex
}

// View returns the full-texture view, or nil.
func (s *Texture) View() hal.TextureView {
	return s.view
}

// Allocations returns how many times a staging texture was created.
func (s *Texture) Allocations() uint64 {
	return s.allocations.Load()
}

// SizeBytes returns the memory footprint of the current texture.
func (s *Texture) SizeBytes() uint64 {
	w, h := s.Size()
	return uint64(w) * uint64(h) * 4
}
