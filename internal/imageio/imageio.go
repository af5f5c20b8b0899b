// Package imageio loads images from disk into tightly packed BGRA8 pixel
// buffers that can be uploaded as render targets, and renders histograms
// back to images.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"path/filepath"

	"github.com/disintegration/imaging"

	// Extra decoders for image.Decode.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// I/O errors.
var (
	// ErrEmptyImage is returned for an image with no pixels.
	ErrEmptyImage = errors.New("imageio: empty image")

	// ErrPixelCount is returned when a pixel buffer does not match its
	// dimensions.
	ErrPixelCount = errors.New("imageio: pixel buffer size mismatch")
)

// Load opens an image file, applying its EXIF orientation. Supported
// formats: PNG, JPEG, GIF, BMP, TIFF and WebP.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(filepath.Clean(path), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("imageio: open %s: %w", path, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %s", ErrEmptyImage, path)
	}
	return img, nil
}

// Decode decodes an image from r, applying its EXIF orientation.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("imageio: decode: %w", err)
	}
	return img, nil
}

// Fit resizes img to width x height with a Lanczos filter. If one of the
// dimensions is 0 the aspect ratio is preserved.
func Fit(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// ToBGRA converts img into tightly packed, non-premultiplied BGRA8 pixels.
func ToBGRA(img image.Image) (pix []byte, width, height int) {
	nrgba := imaging.Clone(img)
	width, height = nrgba.Rect.Dx(), nrgba.Rect.Dy()
	pix = make([]byte, width*height*4)
	for y := range height {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+width*4]
		dst := pix[y*width*4 : (y+1)*width*4]
		for x := 0; x < len(src); x += 4 {
			dst[x+0] = src[x+2]
			dst[x+1] = src[x+1]
			dst[x+2] = src[x+0]
			dst[x+3] = src[x+3]
		}
	}
	return pix, width, height
}

// FromBGRA wraps tightly packed BGRA8 pixels as an image.
func FromBGRA(pix []byte, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("%w: %dx%d needs %d bytes, got %d", ErrPixelCount, width, height, width*height*4, len(pix))
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(pix); i += 4 {
		img.Pix[i+0] = pix[i+2]
		img.Pix[i+1] = pix[i+1]
		img.Pix[i+2] = pix[i+0]
		img.Pix[i+3] = pix[i+3]
	}
	return img, nil
}

// Plot draws bins as a bar chart, one column per bin scaled to the tallest
// bin. Each bar is shaded with its own intensity.
func Plot(bins []uint32, height int) *image.NRGBA {
	if height <= 0 {
		height = 128
	}
	img := imaging.New(len(bins), height, color.NRGBA{R: 24, G: 24, B: 24, A: 255})

	var peak uint32
	for _, c := range bins {
		peak = max(peak, c)
	}
	if peak == 0 {
		return img
	}
	for x, c := range bins {
		bar := int(uint64(c) * uint64(height) / uint64(peak))
		if c > 0 && bar == 0 {
			bar = 1
		}
		v := uint8(x * 255 / max(len(bins)-1, 1))
		shade := color.NRGBA{R: v, G: v, B: v, A: 255}
		if v < 48 {
			shade = color.NRGBA{R: 48, G: 48, B: 96, A: 255}
		}
		for y := height - bar; y < height; y++ {
			img.SetNRGBA(x, y, shade)
		}
	}
	return img
}

// Save writes img to path. The format is chosen from the extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, filepath.Clean(path)); err != nil {
		return fmt.Errorf("imageio: save %s: %w", path, err)
	}
	return nil
}
