// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Intensity selects how a pixel's colour is reduced to a single 0-255 value.
type Intensity uint8

const (
	// Luma is Rec. 601 luma: 0.299 R + 0.587 G + 0.114 B.
	Luma Intensity = iota

	// Average is the unweighted mean of R, G and B.
	Average

	// Max is the largest of R, G and B (HSV value).
	Max

	// Lightness is CIE L* (D65). go-colorful reports L* in [0, 1], so it is
	// scaled by 255.
	Lightness
)

// String returns the mode name used by ParseIntensity.
func (i Intensity) String() string {
	switch i {
	case Luma:
		return "luma"
	case Average:
		return "average"
	case Max:
		return "max"
	case Lightness:
		return "lightness"
	default:
		return fmt.Sprintf("Intensity(%d)", i)
	}
}

// ParseIntensity parses a mode name. Matching is case-insensitive.
func ParseIntensity(s string) (Intensity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "luma":
		return Luma, nil
	case "average", "avg", "mean":
		return Average, nil
	case "max", "value":
		return Max, nil
	case "lightness", "l*", "lstar":
		return Lightness, nil
	default:
		return Luma, fmt.Errorf("compute: unknown intensity mode %q", s)
	}
}

// Of returns the bin index of an 8-bit sRGB colour.
func (i Intensity) Of(r, g, b uint8) uint8 {
	switch i {
	case Average:
		return uint8((uint32(r) + uint32(g) + uint32(b) + 1) / 3)
	case Max:
		return max(r, g, b)
	case Lightness:
		c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
		l, _, _ := c.Lab()
		return clampByte(math.Round(l * 255))
	default:
		return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
	}
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
