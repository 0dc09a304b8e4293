package transcode

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/RyanBlaney/armonia/algorithms/quantize"
	"github.com/RyanBlaney/armonia/theory"
)

func testFile(t *testing.T) []byte {
	t.Helper()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)

	var bass smf.Track
	bass.Add(0, smf.MetaMeter(3, 4))
	bass.Add(0, smf.MetaTempo(90))
	bass.Add(0, midi.ProgramChange(0, 33))
	bass.Add(0, midi.NoteOn(0, 40, 100))
	bass.Add(480, midi.NoteOff(0, 40))
	bass.Add(0, midi.NoteOn(0, 43, 90))
	bass.Add(240, midi.NoteOn(0, 43, 0))
	bass.Close(0)
	require.NoError(t, s.Add(bass))

	var other smf.Track
	other.Add(0, midi.NoteOn(9, 36, 110))
	other.Add(0, midi.NoteOn(1, 64, 80))
	other.Add(120, midi.NoteOff(9, 36))
	other.Close(960) // the E4 is never released
	require.NoError(t, s.Add(other))

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDecodeBytes(t *testing.T) {
	data, err := NewDecoder(nil).DecodeBytes(testFile(t))
	require.NoError(t, err)

	assert.InDelta(t, 90.0, data.Tempo, 1e-3) // stored as whole microseconds per quarter
	assert.Equal(t, theory.TimeSignature{Num: 3, Den: 4}, data.TimeSignature)
	assert.Equal(t, 480, data.TicksPerBeat)
	assert.Equal(t, 2, data.Tracks)
	assert.Equal(t, 2.25, data.Duration)

	assert.Equal(t, []quantize.Event{
		{Start: 0, End: 1, Pitch: 40, Velocity: 100, Track: 0, Channel: 0, Program: 33},
		{Start: 0, End: 2.25, Pitch: 64, Velocity: 80, Track: 1, Channel: 1},
		{Start: 0, End: 0.25, Pitch: 36, Velocity: 110, Track: 1, Channel: 9},
		{Start: 1, End: 1.5, Pitch: 43, Velocity: 90, Track: 0, Channel: 0, Program: 33},
	}, data.Events)
}

func TestDecodeConfig(t *testing.T) {
	raw := testFile(t)

	cfg := DefaultDecoderConfig()
	cfg.IncludePercussion = false
	data, err := NewDecoder(cfg).DecodeReader(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, data.Events, 3)
	for _, ev := range data.Events {
		assert.NotEqual(t, 9, ev.Channel)
	}

	cfg = DefaultDecoderConfig()
	cfg.MaxBeats = 1
	data, err = NewDecoder(cfg).DecodeBytes(raw)
	require.NoError(t, err)
	require.Len(t, data.Events, 3)
	assert.Equal(t, 1.0, data.Duration)

	assert.Equal(t, "4/4", NewDecoder(nil).GetConfig()["default_time_signature"])
}

func TestDecodeDefaults(t *testing.T) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(96)
	var tr smf.Track
	tr.Add(0, midi.NoteOn(0, 60, 64))
	tr.Add(96, midi.NoteOff(0, 60))
	tr.Close(0)
	require.NoError(t, s.Add(tr))

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)

	data, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 120.0, data.Tempo)
	assert.Equal(t, theory.CommonTime, data.TimeSignature)
	require.Len(t, data.Events, 1)
	assert.Equal(t, 1.0, data.Events[0].End)
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mid")
	require.NoError(t, os.WriteFile(path, testFile(t), 0o644))

	data, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Len(t, data.Events, 4)

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.mid"))
	assert.Error(t, err)
}

func TestDecodeInvalid(t *testing.T) {
	d := NewDecoder(nil)

	_, err := d.DecodeBytes(nil)
	assert.Error(t, err)

	_, err = d.DecodeBytes([]byte("definitely not a midi file"))
	assert.Error(t, err)
}
