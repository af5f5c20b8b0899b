package rthist

import "github.com/gogpu/rthist/compute"

// Histogram holds one count per intensity level. Bin i counts the pixels
// whose intensity is i.
type Histogram [compute.Bins]uint32

// Total returns the number of counted pixels.
func (h *Histogram) Total() uint64 {
	var n uint64
	for _, c := range h {
		n += uint64(c)
	}
	return n
}

// Mean returns the mean intensity, or 0 for an empty histogram.
func (h *Histogram) Mean() float64 {
	total := h.Total()
	if total == 0 {
		return 0
	}
	var sum float64
	for i, c := range h {
		sum += float64(i) * float64(c)
	}
	return sum / float64(total)
}

// Peak returns the most populated bin and its count. Ties go to the lower
// bin.
func (h *Histogram) Peak() (bin int, count uint32) {
	for i, c := range h {
		if c > count {
			bin, count = i, c
		}
	}
	return bin, count
}

// Percentile returns the smallest bin at which the cumulative count reaches
// p (0 to 1) of the total. p is clamped to [0, 1].
func (h *Histogram) Percentile(p float64) int {
	total := h.Total()
	if total == 0 {
		return 0
	}
	p = min(max(p, 0), 1)
	want := p * float64(total)
	var acc uint64
	for i, c := range h {
		acc += uint64(c)
		if c > 0 && float64(acc) >= want {
			return i
		}
	}
	return len(h) - 1
}

// Normalized returns each bin as a fraction of the total.
func (h *Histogram) Normalized() [compute.Bins]float64 {
	var out [compute.Bins]float64
	total := h.Total()
	if total == 0 {
		return out
	}
	for i, c := range h {
		out[i] = float64(c) / float64(total)
	}
	return out
}
