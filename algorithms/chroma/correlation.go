package chroma

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/RyanBlaney/armonia/algorithms/common"
)

// Similarity selects how a histogram is compared against a reference profile
type Similarity string

const (
	SimilarityCosine  Similarity = "cosine"
	SimilarityPearson Similarity = "pearson"
)

// ParseSimilarity validates a similarity name. The empty string selects cosine.
func ParseSimilarity(name string) (Similarity, error) {
	switch Similarity(name) {
	case "", SimilarityCosine:
		return SimilarityCosine, nil
	case SimilarityPearson:
		return SimilarityPearson, nil
	default:
		return "", fmt.Errorf("unknown similarity %q", name)
	}
}

// Scores returns the similarity of the histogram against the profile for every root
func Scores(sim Similarity, h Histogram, profile []float64) [12]float64 {
	if sim == SimilarityPearson {
		return PearsonScores(h, profile)
	}
	return RotationScores(h, profile)
}

// RotationScores returns, for every root r, the inner product of the unit histogram
// expressed relative to r with the unit profile. All twelve rotations come out of a
// single circular cross-correlation: c = IFFT(FFT(h) * conj(FFT(p))).
func RotationScores(h Histogram, profile []float64) [12]float64 {
	var scores [12]float64
	if h.Empty() || len(profile) != 12 {
		return scores
	}

	hn := common.UnitNormalize(h[:])
	pn := common.UnitNormalize(profile)

	hf := fft.FFTReal(hn)
	pf := fft.FFTReal(pn)
	prod := make([]complex128, 12)
	for k := range prod {
		prod[k] = hf[k] * cmplx.Conj(pf[k])
	}

	corr := fft.IFFT(prod)
	for r := range scores {
		scores[r] = real(corr[r])
	}
	return scores
}

// PearsonScores returns the Pearson correlation of the histogram relative to every root
// with the profile
func PearsonScores(h Histogram, profile []float64) [12]float64 {
	var scores [12]float64
	if h.Empty() || len(profile) != 12 {
		return scores
	}
	for r := range scores {
		rel := h.Relative(r)
		scores[r] = common.Correlation(rel[:], profile)
	}
	return scores
}

// DirectScores computes the same values as RotationScores one rotation at a time
func DirectScores(h Histogram, profile []float64) [12]float64 {
	var scores [12]float64
	if h.Empty() || len(profile) != 12 {
		return scores
	}
	pn := common.UnitNormalize(profile)
	for r := range scores {
		rel := h.Relative(r).Normalized()
		scores[r] = common.Dot(rel[:], pn)
	}
	return scores
}
