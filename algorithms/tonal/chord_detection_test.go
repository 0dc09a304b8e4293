package tonal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/armonia/algorithms/common"
	"github.com/RyanBlaney/armonia/algorithms/quantize"
	"github.com/RyanBlaney/armonia/theory"
)

var cMajor = theory.NewTonality(0, theory.ModeMajor)

func TestSpans(t *testing.T) {
	cd := NewChordDetector(nil)

	cases := []struct {
		name   string
		total  int
		ts     theory.TimeSignature
		pickup int
		want   []Span
	}{
		{"two bars of 4/4", 32, theory.CommonTime, 0, []Span{{0, 8, 0}, {8, 16, 0}, {16, 24, 1}, {24, 32, 1}}},
		{"pickup", 20, theory.CommonTime, 4, []Span{{0, 4, 0}, {4, 12, 1}, {12, 20, 1}}},
		{"partial last bar", 26, theory.CommonTime, 0, []Span{{0, 8, 0}, {8, 16, 0}, {16, 24, 1}, {24, 26, 1}}},
		{"waltz", 24, theory.TimeSignature{Num: 3, Den: 4}, 0, []Span{{0, 12, 0}, {12, 24, 1}}},
		{"empty", 0, theory.CommonTime, 0, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, cd.Spans(c.total, c.ts, 4, c.pickup))
		})
	}
}

func TestLabelScenario(t *testing.T) {
	cd := NewChordDetector(nil)
	items := []quantize.Item{
		{Start: 0, End: 8, Pitch: 48},
		{Start: 0, End: 8, Pitch: 64},
		{Start: 0, End: 8, Pitch: 67},
		{Start: 8, End: 16, Pitch: 43},
		{Start: 8, End: 16, Pitch: 59},
		{Start: 8, End: 16, Pitch: 62},
	}
	spans := cd.Spans(16, theory.CommonTime, 4, 0)
	labels := cd.LabelSpans(items, spans, []theory.Tonality{cMajor, cMajor})

	require.Len(t, labels, 2)
	assert.Equal(t, ChordLabel{Root: 0, Kind: "", Exact: true, Bass: 0}, labels[0])
	assert.Equal(t, ChordLabel{Root: 7, Kind: "", Exact: true, Bass: 7}, labels[1])
	assert.Equal(t, "G", labels[1].Name())
}

func TestLabelIdempotentOnTemplates(t *testing.T) {
	sys := theory.MustDefaultSystem()
	cd := NewChordDetector(sys)

	for _, tpl := range sys.Templates() {
		got := cd.LabelSet(tpl.Set, tpl.Root, cMajor)
		assert.True(t, got.Exact)
		assert.Equal(t, tpl.Root, got.Root, "%s on %d", tpl.Kind.Name, tpl.Root)
		assert.Equal(t, tpl.Kind.Name, got.Kind, "%s on %d", tpl.Kind.Name, tpl.Root)

		again := cd.LabelSet(sys.ChordSet(got.Root, got.Kind), got.Root, cMajor)
		assert.Equal(t, got, again)
	}
}

func TestLabelInversionKeepsRoot(t *testing.T) {
	cd := NewChordDetector(nil)
	got := cd.LabelSet(common.NewPitchClassSet(4, 7, 0), 4, cMajor)
	assert.Equal(t, 0, got.Root)
	assert.Equal(t, "", got.Kind)
	assert.True(t, got.Exact)
}

func TestLabelClosestTemplate(t *testing.T) {
	cd := NewChordDetector(nil)

	// C and E only: the triad missing its fifth beats the augmented triad by kind order
	got := cd.LabelSet(common.NewPitchClassSet(0, 4), 0, cMajor)
	assert.Equal(t, ChordLabel{Root: 0, Kind: "", Exact: false, Cost: 1, Bass: 0}, got)

	// C E G plus a passing D: the extra tone costs less than any missing root
	got = cd.LabelSet(common.NewPitchClassSet(0, 2, 4, 7), 0, cMajor)
	assert.Equal(t, 0, got.Root)
	assert.Equal(t, "", got.Kind)
	assert.Equal(t, 1.0, got.Cost)
}

func TestLabelNoChord(t *testing.T) {
	cd := NewChordDetector(nil)
	g := theory.NewTonality(7, theory.ModeMajor)

	silent := cd.Label(nil, Span{Start: 0, End: 8}, g)
	assert.True(t, silent.IsNoChord())
	assert.Equal(t, 7, silent.Root)
	assert.Equal(t, "N.C.", silent.Name())

	drums := []quantize.Item{{Start: 0, End: 8, Pitch: 36, Percussion: true}}
	assert.True(t, cd.Label(drums, Span{Start: 0, End: 8}, g).IsNoChord())
}

func TestMinPresenceIgnoresPassingNotes(t *testing.T) {
	items := []quantize.Item{
		{Start: 0, End: 8, Pitch: 57},
		{Start: 0, End: 8, Pitch: 60},
		{Start: 0, End: 8, Pitch: 64},
		{Start: 3, End: 4, Pitch: 71},
	}
	span := Span{Start: 0, End: 8}

	loose := NewChordDetector(nil).Label(items, span, cMajor)
	assert.Equal(t, ChordLabel{Root: 9, Kind: "m", Exact: false, Cost: 1, Bass: 9}, loose)

	strict := NewChordDetectorWithParams(nil, ChordDetectionParams{MinPresence: 0.25}).Label(items, span, cMajor)
	assert.Equal(t, ChordLabel{Root: 9, Kind: "m", Exact: true, Bass: 9}, strict)
}
