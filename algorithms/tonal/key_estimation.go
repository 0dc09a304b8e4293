package tonal

import (
	"cmp"
	"slices"

	"github.com/RyanBlaney/armonia/algorithms/chroma"
	"github.com/RyanBlaney/armonia/algorithms/common"
	"github.com/RyanBlaney/armonia/logging"
	"github.com/RyanBlaney/armonia/theory"
)

// KeyCandidate represents a tonality with its window score
type KeyCandidate struct {
	Tonality theory.Tonality `json:"tonality"`
	KeyName  string          `json:"key_name"` // Human-readable key name
	Score    float64         `json:"score"`    // Profile similarity plus chord-degree support
}

// KeyWindow is the evidence for one analysis window
type KeyWindow struct {
	Histogram chroma.Histogram `json:"histogram"`
	Chords    []ChordLabel     `json:"chords"` // preliminary labels of the spans inside the window
}

// HasEvidence reports whether the window carries any tonal information
func (w KeyWindow) HasEvidence() bool {
	if !w.Histogram.Empty() {
		return true
	}
	return slices.ContainsFunc(w.Chords, func(c ChordLabel) bool { return !c.IsNoChord() })
}

// KeyTransition is a change of tonality between two consecutive windows
type KeyTransition struct {
	Window int             `json:"window"` // index of the first window in the new tonality
	From   theory.Tonality `json:"from"`
	To     theory.Tonality `json:"to"`
	Cost   float64         `json:"cost"`
}

// KeyEstimationParams contains parameters for key estimation
type KeyEstimationParams struct {
	Similarity    chroma.Similarity `json:"similarity"`      // cosine or pearson
	WindowsPerBar int               `json:"windows_per_bar"` // analysis windows per bar
}

// DefaultKeyEstimationParams returns one cosine-scored window per bar
func DefaultKeyEstimationParams() KeyEstimationParams {
	return KeyEstimationParams{
		Similarity:    chroma.SimilarityCosine,
		WindowsPerBar: 1,
	}
}

// KeyEstimator implements windowed tonality estimation with modulation smoothing
type KeyEstimator struct {
	params KeyEstimationParams
	system *theory.System
	states []theory.Tonality
	logger logging.Logger
}

// NewKeyEstimator creates a new key estimator with default parameters
func NewKeyEstimator(system *theory.System) *KeyEstimator {
	return NewKeyEstimatorWithParams(system, DefaultKeyEstimationParams())
}

// NewKeyEstimatorWithParams creates a key estimator with custom parameters
func NewKeyEstimatorWithParams(system *theory.System, params KeyEstimationParams) *KeyEstimator {
	if system == nil {
		system = theory.MustDefaultSystem()
	}
	if params.WindowsPerBar <= 0 {
		params.WindowsPerBar = 1
	}
	if params.Similarity == "" {
		params.Similarity = chroma.SimilarityCosine
	}
	return &KeyEstimator{
		params: params,
		system: system,
		states: system.States(),
		logger: logging.WithFields(logging.Fields{
			"component": "key_estimator",
		}),
	}
}

// GetParameters returns the estimator parameters
func (ke *KeyEstimator) GetParameters() KeyEstimationParams {
	return ke.params
}

// States returns the tonalities in state order (mode priority, then root)
func (ke *KeyEstimator) States() []theory.Tonality {
	return ke.states
}

// ScoreWindow scores every state for one window. The score is the profile similarity of
// the histogram plus, when the window has labeled chords, the configured degree weight
// times the mean degree-profile weight of those chords under the state.
func (ke *KeyEstimator) ScoreWindow(w KeyWindow) []float64 {
	scores := make([]float64, len(ke.states))

	for mi, mode := range ke.system.Modes() {
		sims := chroma.Scores(ke.params.Similarity, w.Histogram, mode.Profile)
		for root := 0; root < 12; root++ {
			scores[mi*12+root] = sims[root]
		}
	}

	var labeled []ChordLabel
	for _, c := range w.Chords {
		if !c.IsNoChord() {
			labeled = append(labeled, c)
		}
	}
	factor := ke.system.DegreeWeightFactor()
	if len(labeled) == 0 || factor == 0 {
		return scores
	}

	for i, t := range ke.states {
		support := 0.0
		for _, c := range labeled {
			support += ke.system.DegreeWeight(t, c.Root, c.Kind)
		}
		scores[i] += factor * support / float64(len(labeled))
	}
	return scores
}

// EstimateWindow returns the raw winner of one window by the ScoreWindow score, which
// includes the chord-degree term; a degree weight of 0 ranks by profile similarity alone.
// Ties go to the mode listed first, then to the lowest root.
func (ke *KeyEstimator) EstimateWindow(w KeyWindow) KeyCandidate {
	scores := ke.ScoreWindow(w)
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] && !common.AlmostEqual(scores[i], scores[best]) {
			best = i
		}
	}
	return ke.candidate(best, scores[best])
}

// Candidates returns the n best states of a window, best first
func (ke *KeyEstimator) Candidates(w KeyWindow, n int) []KeyCandidate {
	scores := ke.ScoreWindow(w)
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		if common.AlmostEqual(scores[a], scores[b]) {
			return cmp.Compare(a, b)
		}
		return cmp.Compare(scores[b], scores[a])
	})

	n = min(max(n, 0), len(idx))
	out := make([]KeyCandidate, n)
	for i := 0; i < n; i++ {
		out[i] = ke.candidate(idx[i], scores[idx[i]])
	}
	return out
}

func (ke *KeyEstimator) candidate(state int, score float64) KeyCandidate {
	t := ke.states[state]
	return KeyCandidate{Tonality: t, KeyName: KeyName(t), Score: score}
}

// EstimateSequence assigns one tonality per window by minimizing
// sum(1 - score) + sum(transition cost) with a first-order dynamic program.
// Windows without evidence cost nothing, so the surrounding tonality carries through them.
// Ties resolve to the lowest state index, which makes the result deterministic.
func (ke *KeyEstimator) EstimateSequence(windows []KeyWindow) []theory.Tonality {
	logger := ke.logger.WithFields(logging.Fields{
		"function": "EstimateSequence",
	})

	n := len(windows)
	if n == 0 {
		return nil
	}
	k := len(ke.states)

	// transition table, computed once
	trans := make([][]float64, k)
	for p := range trans {
		trans[p] = make([]float64, k)
		for s := range trans[p] {
			trans[p][s] = ke.system.TransitionCost(ke.states[p], ke.states[s])
		}
	}

	cost := ke.emission(windows[0])
	back := make([][]int, n)

	for w := 1; w < n; w++ {
		emit := ke.emission(windows[w])
		next := make([]float64, k)
		back[w] = make([]int, k)
		for s := 0; s < k; s++ {
			bestPrev := 0
			bestCost := cost[0] + trans[0][s]
			for p := 1; p < k; p++ {
				c := cost[p] + trans[p][s]
				if c < bestCost && !common.AlmostEqual(c, bestCost) {
					bestPrev, bestCost = p, c
				}
			}
			next[s] = bestCost + emit[s]
			back[w][s] = bestPrev
		}
		cost = next
	}

	last := 0
	for s := 1; s < k; s++ {
		if cost[s] < cost[last] && !common.AlmostEqual(cost[s], cost[last]) {
			last = s
		}
	}

	path := make([]theory.Tonality, n)
	state := last
	for w := n - 1; w >= 0; w-- {
		path[w] = ke.states[state]
		if w > 0 {
			state = back[w][state]
		}
	}

	logger.Debug("Tonality sequence estimated", logging.Fields{
		"windows":     n,
		"modulations": len(ke.Transitions(path)),
		"total_cost":  cost[last],
	})
	return path
}

func (ke *KeyEstimator) emission(w KeyWindow) []float64 {
	out := make([]float64, len(ke.states))
	if !w.HasEvidence() {
		return out
	}
	for i, s := range ke.ScoreWindow(w) {
		out[i] = 1 - s
	}
	return out
}

// Transitions lists the tonality changes of a sequence
func (ke *KeyEstimator) Transitions(seq []theory.Tonality) []KeyTransition {
	var out []KeyTransition
	for i := 1; i < len(seq); i++ {
		if seq[i] != seq[i-1] {
			out = append(out, KeyTransition{
				Window: i,
				From:   seq[i-1],
				To:     seq[i],
				Cost:   ke.system.TransitionCost(seq[i-1], seq[i]),
			})
		}
	}
	return out
}

// ModeName returns the long name of a built-in mode
func ModeName(m theory.Mode) string {
	switch m {
	case theory.ModeMajor:
		return "major"
	case theory.ModeMinor:
		return "minor"
	case theory.ModeMelodicMinor:
		return "melodic minor"
	default:
		return string(m)
	}
}

// KeyName returns a human-readable key name such as "C major"
func KeyName(t theory.Tonality) string {
	return theory.PitchClassName(t.Root) + " " + ModeName(t.Mode)
}

// RelativeKey returns the relative minor of a major key and the relative major otherwise
func RelativeKey(t theory.Tonality) theory.Tonality {
	if t.Mode == theory.ModeMajor {
		return theory.NewTonality(t.Root+9, theory.ModeMinor)
	}
	return theory.NewTonality(t.Root+3, theory.ModeMajor)
}

// ParallelKey returns the key with the same tonic and opposite mode
func ParallelKey(t theory.Tonality) theory.Tonality {
	if t.Mode == theory.ModeMajor {
		return theory.NewTonality(t.Root, theory.ModeMinor)
	}
	return theory.NewTonality(t.Root, theory.ModeMajor)
}

// DominantKey returns the key a fifth above in the same mode
func DominantKey(t theory.Tonality) theory.Tonality {
	return theory.NewTonality(t.Root+7, t.Mode)
}

// SubdominantKey returns the key a fourth above in the same mode
func SubdominantKey(t theory.Tonality) theory.Tonality {
	return theory.NewTonality(t.Root+5, t.Mode)
}
