package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/armonia/algorithms/quantize"
	"github.com/RyanBlaney/armonia/algorithms/tonal"
)

func TestBuildMelody(t *testing.T) {
	items := []quantize.Item{
		{Start: 4, End: 10, Pitch: 62, Velocity: 70},
		{Start: 10, End: 11, Pitch: 64, Velocity: 80},
		{Start: 13, End: 20, Pitch: 67, Velocity: 90},
	}

	m := BuildMelody(items, tonal.Span{Start: 8, End: 16}, 60)
	require.NoError(t, m.Validate())
	assert.Equal(t, "n2:70 l n4:80 r r n7:90 l l", m.String())

	silent := BuildMelody(nil, tonal.Span{Start: 0, End: 4}, 60)
	assert.True(t, silent.IsSilent())
	assert.Equal(t, 4, silent.Duration())
}

func TestBuildMelodyRoundTrip(t *testing.T) {
	items := []quantize.Item{
		{Start: 0, End: 3, Pitch: 55, Velocity: 64},
		{Start: 3, End: 4, Pitch: 57, Velocity: 64},
		{Start: 6, End: 8, Pitch: 59, Velocity: 64},
	}
	m := BuildMelody(items, tonal.Span{Start: 0, End: 8}, 67)

	events := m.Collapse()
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, items[i].Start, ev.Start)
		assert.Equal(t, items[i].Duration(), ev.Duration)
		assert.Equal(t, items[i].Pitch, ev.Value+67)
	}
}

func TestNameLanes(t *testing.T) {
	items := []quantize.Item{
		{Start: 0, End: 4, Pitch: 40, Program: 33, Track: 0, Channel: 1},
		{Start: 0, End: 4, Pitch: 64, Program: 0, Track: 0, Channel: 0},
		{Start: 0, End: 4, Pitch: 60, Program: 0, Track: 0, Channel: 0, Voice: 1},
		{Start: 0, End: 1, Pitch: 36, Track: 1, Channel: 9, Percussion: true},
	}
	names := NameLanes(items)

	assert.Equal(t, "piano__0", names[quantize.LaneKey{Track: 0, Channel: 0, Voice: 0}])
	assert.Equal(t, "piano__1", names[quantize.LaneKey{Track: 0, Channel: 0, Voice: 1}])
	assert.Equal(t, "bass__0", names[quantize.LaneKey{Track: 0, Channel: 1, Voice: 0}])
	assert.Equal(t, "drums__0", names[quantize.LaneKey{Track: 1, Channel: 9, Voice: 0}])
}

func TestProgramFamily(t *testing.T) {
	assert.Equal(t, "piano", ProgramFamily(0))
	assert.Equal(t, "guitar", ProgramFamily(25))
	assert.Equal(t, "strings", ProgramFamily(40))
	assert.Equal(t, "sound_fx", ProgramFamily(127))
	assert.Equal(t, "piano", ProgramFamily(200))
}
