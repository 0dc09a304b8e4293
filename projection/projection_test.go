package projection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/armonia/algorithms/common"
	"github.com/RyanBlaney/armonia/score"
	"github.com/RyanBlaney/armonia/theory"
)

var cMajor = theory.NewTonality(0, theory.ModeMajor)

func chord(root int, kind string, dur int) score.Chord {
	return score.NewChord(root, kind, cMajor, dur)
}

func notes(values ...int) score.Melody {
	m := make(score.Melody, len(values))
	for i, v := range values {
		m[i] = score.NoteToken(v, 80)
	}
	return m
}

func absolutes(c score.Chord, part string) []int {
	var out []int
	for _, tok := range c.Parts[part] {
		if tok.IsNote() {
			out = append(out, c.Absolute(part, tok))
		}
	}
	return out
}

func movement(from, to []int) int {
	total := 0
	for i := range from {
		total += common.Abs(to[i] - from[i])
	}
	return total
}

func TestProjectArpeggioOntoMinor(t *testing.T) {
	p := NewProjector(nil)
	source := score.New(score.DefaultConfig(), chord(0, "", 3).WithPart("piano__0", notes(0, 4, 7)))
	target := score.New(score.DefaultConfig(), chord(9, "m", 3))
	original := []int{60, 64, 67}

	led, err := p.Project(source, target, Options{Policy: PolicyVoiceLeading})
	require.NoError(t, err)
	require.Len(t, led.Chords, 1)
	ledPitches := absolutes(led.Chords[0], "piano__0")
	assert.Equal(t, []int{60, 64, 69}, ledPitches)

	dia, err := p.Project(source, target, Options{Policy: PolicyDiatonic})
	require.NoError(t, err)
	diaPitches := absolutes(dia.Chords[0], "piano__0")
	assert.Equal(t, []int{69, 72, 76}, diaPitches)

	assert.LessOrEqual(t, movement(original, ledPitches), movement(original, diaPitches))
	assert.Equal(t, 9, led.Chords[0].Root)
	assert.Equal(t, "m", led.Chords[0].Kind)
}

func TestVoiceLeadingBound(t *testing.T) {
	sys := theory.MustDefaultSystem()
	p := NewProjector(sys)
	from := chord(0, "", 4)

	for _, tpl := range sys.Templates() {
		to := chord(tpl.Root, tpl.Kind.Name, 4)
		for pitch := 48; pitch < 72; pitch++ {
			got := p.VoiceLeadReexpress(pitch, from, to)
			assert.LessOrEqual(t, common.Abs(got-pitch), 6, "%d onto %s", pitch, to.Name())
			if from.ToneSet(sys).Has(pitch) {
				assert.True(t, to.ToneSet(sys).Has(got), "%d onto %s gave %d", pitch, to.Name(), got)
			}
		}
	}
}

func TestVoiceLeadReexpress(t *testing.T) {
	p := NewProjector(nil)

	// chord tone of F lands on the nearest tone of Am
	assert.Equal(t, 64, p.VoiceLeadReexpress(65, chord(5, "", 4), chord(9, "m", 4)))
	// a passing F over C may stay on a scale tone
	assert.Equal(t, 65, p.VoiceLeadReexpress(65, chord(0, "", 4), chord(9, "m", 4)))
	// equidistant chord tones: the unchanged octave wins
	assert.Equal(t, 63, p.VoiceLeadReexpress(61, chord(9, "", 4), chord(11, "", 4)))
	// same distance and octave: the lower pitch wins
	assert.Equal(t, 64, p.VoiceLeadReexpress(66, chord(2, "", 4), chord(4, "", 4)))
	// silence under the target: fall back to the scale
	assert.Equal(t, 62, p.VoiceLeadReexpress(62, chord(7, "", 4), chord(0, theory.NoChordName, 4)))
}

func TestDiatonicReexpress(t *testing.T) {
	p := NewProjector(nil)

	// third of G becomes third of F
	assert.Equal(t, 69, p.DiatonicReexpress(71, chord(7, "", 4), chord(5, "", 4)))
	// third of Ab (a chromatic root) becomes third of C
	assert.Equal(t, 64, p.DiatonicReexpress(72, chord(8, "", 4), chord(0, "", 4)))

	for _, c := range []score.Chord{chord(0, "", 4), chord(8, "", 4), score.NewChord(3, "m", theory.NewTonality(3, theory.ModeMinor), 4)} {
		for pitch := 40; pitch < 90; pitch++ {
			assert.Equal(t, pitch, p.DiatonicReexpress(pitch, c, c), "identity %d under %s", pitch, c.Name())
		}
	}
}

func TestProjectDurations(t *testing.T) {
	p := NewProjector(nil)
	source := score.New(score.DefaultConfig(), chord(0, "", 4).WithPart("piano__0", notes(0, 2, 4, 5)))
	target := score.New(score.DefaultConfig(), chord(5, "", 4), chord(7, "", 4))

	short, err := p.Project(source, target, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, short.Duration())
	require.Len(t, short.Chords, 1)

	repeated, err := p.Project(source, target, Options{Policy: PolicyKeepPitch, RepeatToDuration: true})
	require.NoError(t, err)
	assert.Equal(t, 8, repeated.Duration())
	require.Len(t, repeated.Chords, 2)
	assert.Equal(t, []int{60, 62, 64, 65}, absolutes(repeated.Chords[1], "piano__0"))

	partial := score.New(score.DefaultConfig(), chord(5, "", 3), chord(7, "", 3))
	cut, err := p.Project(source, partial, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, cut.Chords, 2)
	assert.Equal(t, 1, cut.Chords[1].Duration)
	require.NoError(t, cut.Validate())

	long := score.New(score.DefaultConfig(), chord(0, "", 2))
	trunc, err := p.Project(source, long, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, trunc.Duration())

	empty, err := p.Project(score.New(score.DefaultConfig()), target, Options{RepeatToDuration: true})
	require.NoError(t, err)
	assert.Empty(t, empty.Chords)
}

func TestProjectReArticulatesAtBoundary(t *testing.T) {
	p := NewProjector(nil)
	source := score.New(score.DefaultConfig(),
		chord(0, "", 8).WithPart("piano__0", score.Sustain(4, 8, 90)),
	)
	target := score.New(score.DefaultConfig(), chord(0, "", 4), chord(9, "m", 4))

	out, err := p.Project(source, target, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "n4:90 l l l", out.Chords[0].Parts["piano__0"].String())
	assert.Equal(t, "n-5:90 l l l", out.Chords[1].Parts["piano__0"].String())
}

func TestProjectKeepsDrumsAndSilence(t *testing.T) {
	p := NewProjector(nil)
	drums := score.Melody{score.NoteToken(-24, 100), score.SilenceToken(), score.NoteToken(-22, 100), score.ContinuationToken()}
	source := score.New(score.DefaultConfig(),
		chord(7, "", 4).
			WithPart("drums__0", drums).
			WithPart("piano__0", score.Melody{score.SilenceToken(), score.NoteToken(4, 70), score.ContinuationToken(), score.SilenceToken()}),
	)
	target := score.New(score.DefaultConfig(), chord(9, "m", 4))

	for _, policy := range []Policy{PolicyDiatonic, PolicyVoiceLeading, PolicyKeepPitch} {
		out, err := p.Project(source, target, Options{Policy: policy})
		require.NoError(t, err)
		assert.Equal(t, drums, out.Chords[0].Parts["drums__0"], string(policy))

		piano := out.Chords[0].Parts["piano__0"]
		assert.True(t, piano[0].IsSilence())
		assert.True(t, piano[1].IsNote())
		assert.True(t, piano[2].IsContinuation())
		assert.True(t, piano[3].IsSilence())
	}
}

func TestProjectPartCollision(t *testing.T) {
	p := NewProjector(nil)
	source := score.New(score.DefaultConfig(), chord(0, "", 2).WithPart("piano__0", notes(0, 4)))
	target := score.New(score.DefaultConfig(),
		chord(7, "", 2).
			WithPart("piano__0", notes(0, 0)).
			WithPart("bass__0", notes(-24, -24)),
	)

	_, err := p.Project(source, target, Options{Policy: PolicyVoiceLeading, KeepTarget: true})
	assert.True(t, errors.Is(err, ErrPartCollision))

	out, err := p.Project(source, target, Options{Policy: PolicyKeepPitch, KeepTarget: true, AllowOverride: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"bass__0", "piano__0"}, out.Instruments())
	assert.Equal(t, []int{60, 64}, absolutes(out.Chords[0], "piano__0"))

	dropped, err := p.Project(source, target, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"piano__0"}, dropped.Instruments())

	// inputs are untouched
	assert.Equal(t, []int{67, 67}, absolutes(target.Chords[0], "piano__0"))
}

func TestProjectOptions(t *testing.T) {
	p := NewProjector(nil)
	_, err := p.Project(score.Score{}, score.Score{}, Options{Policy: "nearest"})
	assert.Error(t, err)

	policy, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyVoiceLeading, policy)

	policy, err = ParsePolicy("diatonic")
	require.NoError(t, err)
	assert.Equal(t, PolicyDiatonic, policy)
}
