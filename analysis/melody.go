package analysis

import (
	"github.com/RyanBlaney/armonia/algorithms/quantize"
	"github.com/RyanBlaney/armonia/algorithms/tonal"
	"github.com/RyanBlaney/armonia/score"
)

// BuildMelody lays the items of one lane onto the steps of a span. An onset is a Note
// with its pitch relative to reference, a sustained step is a Continuation, and an empty
// step is a Silence. A note already sounding when the span starts is re-articulated.
func BuildMelody(items []quantize.Item, span tonal.Span, reference int) score.Melody {
	m := make(score.Melody, span.Duration())
	for i := range m {
		step := span.Start + i
		it, ok := soundingAt(items, step)
		switch {
		case !ok:
			m[i] = score.SilenceToken()
		case it.Start == step || i == 0:
			m[i] = score.NoteToken(it.Pitch-reference, it.Velocity)
		default:
			m[i] = score.ContinuationToken()
		}
	}
	return m
}

// soundingAt returns the item sounding at step. Lanes are monophonic; should two items
// still overlap, the later onset wins, then the higher pitch.
func soundingAt(items []quantize.Item, step int) (quantize.Item, bool) {
	var best quantize.Item
	found := false
	for _, it := range items {
		if !it.SoundsAt(step) {
			continue
		}
		if !found || it.Start > best.Start || (it.Start == best.Start && it.Pitch > best.Pitch) {
			best, found = it, true
		}
	}
	return best, found
}
