// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/anthonynsimon/bild/histogram"

	"github.com/gogpu/rthist/internal/transfer"
)

// CPU reads the texture back to host memory and counts intensities there.
// It is slower than GPU but works on every device that supports copies.
type CPU struct {
	// Intensity selects the colour reduction. The zero value is Luma.
	Intensity Intensity

	// Timeout bounds the readback fence wait. Zero means the transfer default.
	Timeout time.Duration
}

var _ Backend = (*CPU)(nil)

// Name returns "cpu".
func (c *CPU) Name() string { return "cpu" }

// Compute reads the job's BGRA8 texture back and fills bins.
func (c *CPU) Compute(ctx context.Context, job Job, bins []uint32) (Report, error) {
	if err := job.validate(bins); err != nil {
		return Report{}, err
	}

	var pix []byte
	err := job.executor().SubmitAndWait(ctx, func() error {
		var err error
		pix, err = transfer.ReadTexture(job.Device, job.Queue, job.Texture, job.Width, job.Height, c.Timeout)
		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("compute: cpu readback: %w", err)
	}

	gray, visible := IntensityImage(pix, int(job.Width), int(job.Height), c.Intensity)
	CountGray(gray, bins)

	slogger().Debug("cpu histogram computed",
		"width", job.Width, "height", job.Height, "intensity", c.Intensity.String())

	if !visible {
		return Report{Diagnostic: "source texture is fully transparent"}, nil
	}
	return Report{}, nil
}

// IntensityImage converts tightly packed BGRA8 pixels into a grayscale image
// of per-pixel intensities. It also reports whether any pixel has non-zero
// alpha.
func IntensityImage(bgra []byte, width, height int, mode Intensity) (*image.Gray, bool) {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	visible := false
	n := width * height
	if len(bgra) < n*4 {
		n = len(bgra) / 4
	}
	for i := 0; i < n; i++ {
		p := bgra[i*4 : i*4+4 : i*4+4]
		gray.Pix[i] = mode.Of(p[2], p[1], p[0])
		if p[3] != 0 {
			visible = true
		}
	}
	return gray, visible
}

// CountGray fills bins with the value histogram of gray.
func CountGray(gray *image.Gray, bins []uint32) {
	h := histogram.NewRGBAHistogram(gray)
	for i := range bins {
		bins[i] = 0
		if i < len(h.R.Bins) {
			bins[i] = uint32(h.R.Bins[i]) //nolint:gosec // counts are bounded by pixel count
		}
	}
}
