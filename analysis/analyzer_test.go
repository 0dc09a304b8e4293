package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/armonia/algorithms/chroma"
	"github.com/RyanBlaney/armonia/algorithms/quantize"
	"github.com/RyanBlaney/armonia/algorithms/tonal"
	"github.com/RyanBlaney/armonia/score"
	"github.com/RyanBlaney/armonia/theory"
)

func note(start, end float64, pitch int) quantize.Event {
	return quantize.Event{Start: start, End: end, Pitch: pitch, Velocity: 100}
}

func TestAnalyzeTonicDominant(t *testing.T) {
	a, err := NewAnalyzer(nil, DefaultAnalyzerConfig())
	require.NoError(t, err)

	events := []quantize.Event{
		note(0, 2, 48), note(0, 2, 64), note(0, 2, 67),
		note(2, 4, 43), note(2, 4, 59), note(2, 4, 62),
	}
	res, err := a.Run(context.Background(), events)
	require.NoError(t, err)

	_, err = uuid.Parse(res.RunID)
	assert.NoError(t, err)

	s := res.Score
	require.Len(t, s.Chords, 2)
	cMajor := theory.NewTonality(0, theory.ModeMajor)

	assert.Equal(t, 0, s.Chords[0].Root)
	assert.Equal(t, "", s.Chords[0].Kind)
	assert.Equal(t, 7, s.Chords[1].Root)
	assert.Equal(t, "", s.Chords[1].Kind)
	for _, c := range s.Chords {
		assert.Equal(t, cMajor, c.Tonality)
		assert.Equal(t, 8, c.Duration)
	}
	assert.Equal(t, 16, s.Duration())
	assert.Equal(t, []string{"piano__0", "piano__1", "piano__2"}, s.Instruments())

	assert.Equal(t, "n7:100 l l l l l l l", s.Chords[0].Parts["piano__0"].String())
	assert.Equal(t, "n4:100 l l l l l l l", s.Chords[0].Parts["piano__1"].String())
	assert.Equal(t, "n-12:100 l l l l l l l", s.Chords[0].Parts["piano__2"].String())
	assert.Equal(t, "n-5:100 l l l l l l l", s.Chords[1].Parts["piano__0"].String())
	assert.Equal(t, "n-24:100 l l l l l l l", s.Chords[1].Parts["piano__2"].String())

	assert.Equal(t, 62, s.Chords[1].Absolute("piano__0", s.Chords[1].Parts["piano__0"][0]))

	require.Len(t, res.Windows, 1)
	assert.Equal(t, Window{Start: 0, End: 16, Tonality: cMajor}, res.Windows[0])
	assert.Empty(t, res.Transitions)
	assert.Len(t, res.Labels, 2)
}

func TestAnalyzeDrumsStayAbsolute(t *testing.T) {
	a, err := NewAnalyzer(nil, DefaultAnalyzerConfig())
	require.NoError(t, err)

	events := []quantize.Event{
		note(0, 4, 55), note(0, 4, 59), note(0, 4, 62),
		{Start: 0, End: 0.25, Pitch: 36, Velocity: 90, Channel: 9},
		{Start: 1, End: 1.25, Pitch: 38, Velocity: 90, Channel: 9},
	}
	s, err := a.Analyze(context.Background(), events)
	require.NoError(t, err)
	require.Len(t, s.Chords, 2)

	assert.Equal(t, 7, s.Chords[0].Root)
	drums := s.Chords[0].Parts["drums__0"]
	require.Len(t, drums, 8)
	assert.Equal(t, score.NoteToken(-24, 90), drums[0])
	assert.Equal(t, score.SilenceToken(), drums[1])
	assert.Equal(t, score.NoteToken(-22, 90), drums[4])
	assert.Equal(t, 38, s.Chords[0].Absolute("drums__0", drums[4]))

	// drums fall silent in the second half and are left out of that chord
	_, ok := s.Chords[1].Parts["drums__0"]
	assert.False(t, ok)
	// held G3 re-articulated at the chord boundary
	assert.Equal(t, "n-12:100 l l l l l l l", s.Chords[1].Parts["piano__2"].String())
}

func TestAnalyzeEmpty(t *testing.T) {
	a, err := NewAnalyzer(nil, DefaultAnalyzerConfig())
	require.NoError(t, err)

	res, err := a.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Score.Chords)
	assert.Equal(t, 0, res.Score.Duration())
	assert.Equal(t, 120.0, res.Score.Config.Tempo)
}

func TestAnalyzeCancelled(t *testing.T) {
	a, err := NewAnalyzer(nil, DefaultAnalyzerConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Analyze(ctx, []quantize.Event{note(0, 1, 60)})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAnalyzerConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*AnalyzerConfig)
	}{
		{"steps per beat", func(c *AnalyzerConfig) { c.StepsPerBeat = 0 }},
		{"time signature", func(c *AnalyzerConfig) { c.TimeSignature = theory.TimeSignature{Num: 3} }},
		{"tempo", func(c *AnalyzerConfig) { c.Tempo = -1 }},
		{"pickup", func(c *AnalyzerConfig) { c.Pickup = -4 }},
		{"min presence", func(c *AnalyzerConfig) { c.MinPresence = 1.5 }},
		{"windows per bar", func(c *AnalyzerConfig) { c.WindowsPerBar = 0 }},
		{"similarity", func(c *AnalyzerConfig) { c.Similarity = chroma.Similarity("euclid") }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := DefaultAnalyzerConfig()
			c.modify(&cfg)
			_, err := NewAnalyzer(nil, cfg)
			assert.True(t, errors.Is(err, ErrInvalidAnalyzerConfig))
		})
	}

	_, err := NewAnalyzer(nil, DefaultAnalyzerConfig())
	assert.NoError(t, err)
}

func TestGroupWindows(t *testing.T) {
	cd := tonal.NewChordDetector(nil)
	spans := cd.Spans(32, theory.CommonTime, 4, 4)

	groups, spanWindow := groupWindows(spans, 16, 1)
	require.Len(t, groups, 3)
	assert.Equal(t, []int{0, 1, 1, 2, 2}, spanWindow)
	assert.Equal(t, 4, groups[1].start)
	assert.Equal(t, 20, groups[1].end)

	groups, spanWindow = groupWindows(spans, 16, 2)
	assert.Len(t, groups, 5)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, spanWindow)
}
