package tonal

import (
	"github.com/RyanBlaney/armonia/algorithms/chroma"
	"github.com/RyanBlaney/armonia/algorithms/common"
	"github.com/RyanBlaney/armonia/algorithms/quantize"
	"github.com/RyanBlaney/armonia/logging"
	"github.com/RyanBlaney/armonia/theory"
)

// Span is a chord span on the grid, [Start, End)
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Bar   int `json:"bar"` // 0 is the pickup bar when there is one
}

// Duration returns the span length in steps
func (s Span) Duration() int {
	return s.End - s.Start
}

// ChordLabel is the result of matching a span against the template library
type ChordLabel struct {
	Root  int     `json:"root"` // absolute pitch class
	Kind  string  `json:"kind"`
	Exact bool    `json:"exact"`
	Cost  float64 `json:"cost"`
	Bass  int     `json:"bass"` // pitch class of the lowest sounding note, -1 when silent
}

// IsNoChord reports whether the span had no tonal evidence
func (l ChordLabel) IsNoChord() bool {
	return l.Kind == theory.NoChordName
}

// Name returns the chord symbol, e.g. "Am" or "N.C."
func (l ChordLabel) Name() string {
	if l.IsNoChord() {
		return theory.NoChordName
	}
	return theory.PitchClassName(l.Root) + l.Kind
}

// ChordDetectionParams contains parameters for chord labeling
type ChordDetectionParams struct {
	// MinPresence is the fraction of the span a pitch class must sound to count
	MinPresence float64 `json:"min_presence"`
}

// DefaultChordDetectionParams counts every pitch class that sounds at all
func DefaultChordDetectionParams() ChordDetectionParams {
	return ChordDetectionParams{MinPresence: 0}
}

// ChordDetector segments the grid into chord spans and labels them by template matching
type ChordDetector struct {
	params ChordDetectionParams
	system *theory.System
	logger logging.Logger
}

// NewChordDetector creates a chord detector with default parameters
func NewChordDetector(system *theory.System) *ChordDetector {
	return NewChordDetectorWithParams(system, DefaultChordDetectionParams())
}

// NewChordDetectorWithParams creates a chord detector with custom parameters
func NewChordDetectorWithParams(system *theory.System, params ChordDetectionParams) *ChordDetector {
	if system == nil {
		system = theory.MustDefaultSystem()
	}
	return &ChordDetector{
		params: params,
		system: system,
		logger: logging.WithFields(logging.Fields{
			"component": "chord_detector",
		}),
	}
}

// Spans cuts [0, totalSteps) into chord spans. A pickup forms its own leading span; every
// following bar is split into the number of chords per bar for the time signature. The
// last bar is sliced like a full bar and clipped.
func (cd *ChordDetector) Spans(totalSteps int, ts theory.TimeSignature, stepsPerBeat, pickup int) []Span {
	if totalSteps <= 0 {
		return nil
	}
	barSteps := ts.BarSteps(stepsPerBeat)
	perBar := cd.system.ChordsPerBar(ts)

	var spans []Span
	pos, bar := 0, 0
	if pickup > 0 {
		spans = append(spans, Span{Start: 0, End: min(pickup, totalSteps), Bar: 0})
		pos, bar = pickup, 1
	}

	for ; pos < totalSteps; pos, bar = pos+barSteps, bar+1 {
		for k := 0; k < perBar; k++ {
			start := pos + (k*barSteps+perBar/2)/perBar
			end := pos + ((k+1)*barSteps+perBar/2)/perBar
			end = min(end, totalSteps)
			if end > start {
				spans = append(spans, Span{Start: start, End: end, Bar: bar})
			}
		}
	}
	return spans
}

// Sounding returns the pitch classes sounding in the span and the pitch class of the
// lowest note, or -1. Percussion is ignored.
func (cd *ChordDetector) Sounding(items []quantize.Item, span Span) (common.PitchClassSet, int) {
	h := chroma.BuildHistogram(items, span.Start, span.End)
	set := h.Set(cd.params.MinPresence * float64(span.Duration()))

	bass := -1
	for _, it := range items {
		if it.Percussion || it.Overlap(span.Start, span.End) == 0 || !set.Has(it.Pitch) {
			continue
		}
		if bass < 0 || it.Pitch < bass {
			bass = it.Pitch
		}
	}
	if bass >= 0 {
		bass = common.Mod12(bass)
	}
	return set, bass
}

// Label matches the sounding pitch classes of a span against the template library
func (cd *ChordDetector) Label(items []quantize.Item, span Span, tonality theory.Tonality) ChordLabel {
	set, bass := cd.Sounding(items, span)
	return cd.LabelSet(set, bass, tonality)
}

// LabelSet chooses the template for a pitch-class set:
//  1. an exact match wins outright
//  2. otherwise the lowest weighted symmetric difference, where a missing root and a
//     sounding bass the template lacks cost more than other tones
//  3. ties prefer a root on the bass, then fewer tones, then kind order, then the root
//     closest above the tonic
func (cd *ChordDetector) LabelSet(set common.PitchClassSet, bass int, tonality theory.Tonality) ChordLabel {
	if set.Empty() {
		return ChordLabel{Root: tonality.Root, Kind: theory.NoChordName, Exact: false, Bass: -1}
	}

	w := cd.system.Matching()
	var best *theory.Template
	bestCost, bestExact := 0.0, false

	for i := range cd.system.Templates() {
		t := &cd.system.Templates()[i]
		exact := t.Set == set
		cost := 0.0
		if !exact {
			for _, pc := range t.Set.Minus(set).Members() {
				if pc == t.Root {
					cost += w.MissingRoot
				} else {
					cost += w.MissingTone
				}
			}
			for _, pc := range set.Minus(t.Set).Members() {
				if pc == bass {
					cost += w.MissingBass
				} else {
					cost += w.ExtraTone
				}
			}
		}

		if best == nil || cd.better(t, cost, exact, best, bestCost, bestExact, bass, tonality) {
			best, bestCost, bestExact = t, cost, exact
		}
	}

	return ChordLabel{
		Root:  best.Root,
		Kind:  best.Kind.Name,
		Exact: bestExact,
		Cost:  bestCost,
		Bass:  bass,
	}
}

func (cd *ChordDetector) better(t *theory.Template, cost float64, exact bool,
	b *theory.Template, bCost float64, bExact bool, bass int, tonality theory.Tonality) bool {
	if exact != bExact {
		return exact
	}
	if !common.AlmostEqual(cost, bCost) {
		return cost < bCost
	}
	if onBass, bOnBass := t.Root == bass, b.Root == bass; onBass != bOnBass {
		return onBass
	}
	if t.Size() != b.Size() {
		return t.Size() < b.Size()
	}
	if t.Index != b.Index {
		return t.Index < b.Index
	}
	return common.Mod12(t.Root-tonality.Root) < common.Mod12(b.Root-tonality.Root)
}

// LabelSpans labels every span under its tonality. tonalities must have one entry per span.
func (cd *ChordDetector) LabelSpans(items []quantize.Item, spans []Span, tonalities []theory.Tonality) []ChordLabel {
	logger := cd.logger.WithFields(logging.Fields{
		"function": "LabelSpans",
	})

	labels := make([]ChordLabel, len(spans))
	exact := 0
	for i, span := range spans {
		labels[i] = cd.Label(items, span, tonalities[i])
		if labels[i].Exact {
			exact++
		}
	}

	logger.Debug("Spans labeled", logging.Fields{
		"spans": len(spans),
		"exact": exact,
	})
	return labels
}
