// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import "testing"

func TestIntensity_Of(t *testing.T) {
	tests := []struct {
		name    string
		mode    Intensity
		r, g, b uint8
		want    uint8
	}{
		{"luma black", Luma, 0, 0, 0, 0},
		{"luma white", Luma, 255, 255, 255, 255},
		{"luma red", Luma, 255, 0, 0, 76},
		{"luma green", Luma, 0, 255, 0, 150},
		{"luma blue", Luma, 0, 0, 255, 29},
		{"luma gray", Luma, 128, 128, 128, 128},
		{"average white", Average, 255, 255, 255, 255},
		{"average red", Average, 255, 0, 0, 85},
		{"average mixed", Average, 10, 20, 31, 20},
		{"max", Max, 10, 200, 30, 200},
		{"max black", Max, 0, 0, 0, 0},
		{"lightness black", Lightness, 0, 0, 0, 0},
		{"lightness white", Lightness, 255, 255, 255, 255},
		{"lightness mid gray", Lightness, 128, 128, 128, 137},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mode.Of(tt.r, tt.g, tt.b); got != tt.want {
				t.Errorf("%v.Of(%d, %d, %d) = %d, want %d", tt.mode, tt.r, tt.g, tt.b, got, tt.want)
			}
		})
	}
}

func TestIntensity_LightnessMonotonic(t *testing.T) {
	prev := Lightness.Of(0, 0, 0)
	for v := 1; v < 256; v++ {
		got := Lightness.Of(uint8(v), uint8(v), uint8(v))
		if got < prev {
			t.Fatalf("lightness decreased at gray %d: %d < %d", v, got, prev)
		}
		prev = got
	}
}

func TestParseIntensity(t *testing.T) {
	tests := []struct {
		in      string
		want    Intensity
		wantErr bool
	}{
		{"", Luma, false},
		{"luma", Luma, false},
		{"LUMA", Luma, false},
		{" average ", Average, false},
		{"mean", Average, false},
		{"max", Max, false},
		{"value", Max, false},
		{"lightness", Lightness, false},
		{"L*", Lightness, false},
		{"hue", Luma, true},
	}
	for _, tt := range tests {
		got, err := ParseIntensity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseIntensity(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseIntensity(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIntensity_StringRoundTrip(t *testing.T) {
	for _, m := range []Intensity{Luma, Average, Max, Lightness} {
		got, err := ParseIntensity(m.String())
		if err != nil {
			t.Fatalf("ParseIntensity(%q): %v", m.String(), err)
		}
		if got != m {
			t.Errorf("round trip %v -> %v", m, got)
		}
	}
	if s := Intensity(9).String(); s != "Intensity(9)" {
		t.Errorf("unknown mode String() = %q", s)
	}
}
