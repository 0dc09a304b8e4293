package common

import (
	"math"
	"math/bits"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"
)

// Pitch-class arithmetic and vector helpers shared across the analysis packages.
// Vector math goes through gonum.

// FloorMod returns a mod m in [0, m) for any sign of a
func FloorMod[T constraints.Integer](a, m T) T {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// FloorDiv returns floor(a / m)
func FloorDiv[T constraints.Integer](a, m T) T {
	q := a / m
	if (a%m != 0) && ((a < 0) != (m < 0)) {
		q--
	}
	return q
}

// Abs returns |a|
func Abs[T constraints.Signed](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

// Mod12 reduces a pitch to its pitch class
func Mod12(pitch int) int {
	return FloorMod(pitch, 12)
}

// PitchClassSet is a set of pitch classes stored as a 12-bit mask
type PitchClassSet uint16

// NewPitchClassSet builds a set from pitch values of any octave
func NewPitchClassSet(pitches ...int) PitchClassSet {
	var s PitchClassSet
	for _, p := range pitches {
		s = s.Add(p)
	}
	return s
}

// Add returns the set with the pitch class of p added
func (s PitchClassSet) Add(p int) PitchClassSet {
	return s | 1<<Mod12(p)
}

// Has reports whether the pitch class of p is in the set
func (s PitchClassSet) Has(p int) bool {
	return s&(1<<Mod12(p)) != 0
}

// Len returns the number of pitch classes in the set
func (s PitchClassSet) Len() int {
	return bits.OnesCount16(uint16(s))
}

// Empty reports whether the set has no members
func (s PitchClassSet) Empty() bool {
	return s == 0
}

// Rotate transposes every member by r semitones
func (s PitchClassSet) Rotate(r int) PitchClassSet {
	r = Mod12(r)
	v := uint16(s) & 0x0fff
	return PitchClassSet(((v << r) | (v >> (12 - r))) & 0x0fff)
}

// Minus returns the members of s not in o
func (s PitchClassSet) Minus(o PitchClassSet) PitchClassSet {
	return s &^ o
}

// Members returns the pitch classes in ascending order
func (s PitchClassSet) Members() []int {
	out := make([]int, 0, s.Len())
	for pc := 0; pc < 12; pc++ {
		if s.Has(pc) {
			out = append(out, pc)
		}
	}
	return out
}

// RotateVector returns v rotated so that out[i] = v[(i+r) mod n]
func RotateVector(v []float64, r int) []float64 {
	n := len(v)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	for i := range v {
		out[i] = v[FloorMod(i+r, n)]
	}
	return out
}

// UnitNormalize scales a copy of data to unit L2 norm. Zero vectors are returned unchanged.
func UnitNormalize(data []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	if len(out) == 0 {
		return out
	}
	norm := floats.Norm(out, 2)
	if norm < 1e-12 {
		return out
	}
	floats.Scale(1/norm, out)
	return out
}

// Dot returns the inner product of two equal-length vectors
func Dot(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0.0
	}
	return floats.Dot(x, y)
}

// Sum returns the sum of the vector
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Sum(data)
}

// Correlation calculates the Pearson correlation coefficient between two series.
// Constant series have no defined correlation and yield 0.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0.0
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0.0
	}
	return c
}

// AlmostEqual compares two scores with the tolerance used for tie-breaking
func AlmostEqual(a, b float64) bool {
	return scalar.EqualWithinAbs(a, b, 1e-9)
}
