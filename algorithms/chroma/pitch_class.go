package chroma

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/armonia/algorithms/common"
	"github.com/RyanBlaney/armonia/algorithms/quantize"
	"github.com/RyanBlaney/armonia/theory"
)

// Histogram is a duration-weighted pitch-class distribution (0=C ... 11=B)
type Histogram [12]float64

// BuildHistogram sums, per pitch class, how many steps of [start, end) each item sounds.
// Percussion items carry no tonal evidence and are skipped.
func BuildHistogram(items []quantize.Item, start, end int) Histogram {
	var h Histogram
	for _, it := range items {
		if it.Percussion {
			continue
		}
		if d := it.Overlap(start, end); d > 0 {
			h[common.Mod12(it.Pitch)] += float64(d)
		}
	}
	return h
}

// Add returns the element-wise sum of two histograms
func (h Histogram) Add(o Histogram) Histogram {
	for i := range h {
		h[i] += o[i]
	}
	return h
}

// Transpose moves every bin up by r semitones: out[(i+r) mod 12] = h[i]
func (h Histogram) Transpose(r int) Histogram {
	return h.Relative(-r)
}

// Relative re-expresses the histogram relative to root: out[i] = h[(i+root) mod 12]
func (h Histogram) Relative(root int) Histogram {
	var out Histogram
	copy(out[:], common.RotateVector(h[:], root))
	return out
}

// Total returns the summed weight
func (h Histogram) Total() float64 {
	return common.Sum(h[:])
}

// Empty reports whether there is no tonal evidence
func (h Histogram) Empty() bool {
	return h.Total() <= 0
}

// Normalized returns the histogram scaled to unit L2 norm
func (h Histogram) Normalized() Histogram {
	var out Histogram
	copy(out[:], common.UnitNormalize(h[:]))
	return out
}

// Set returns the pitch classes with weight of at least minWeight (and above zero)
func (h Histogram) Set(minWeight float64) common.PitchClassSet {
	var s common.PitchClassSet
	for pc, w := range h {
		if w > 0 && w >= minWeight {
			s = s.Add(pc)
		}
	}
	return s
}

func (h Histogram) String() string {
	parts := make([]string, 0, 12)
	for pc, w := range h {
		if w > 0 {
			parts = append(parts, fmt.Sprintf("%s:%g", theory.PitchClassName(pc), w))
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
