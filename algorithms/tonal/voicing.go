package tonal

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/armonia/algorithms/common"
	"github.com/RyanBlaney/armonia/logging"
	"github.com/RyanBlaney/armonia/score"
	"github.com/RyanBlaney/armonia/theory"
)

// ErrRangeExceeded is returned when a voice cannot be placed inside its instrument's register
var ErrRangeExceeded = errors.New("voice outside instrument range")

// VoicingParams contains parameters for chord voicing
type VoicingParams struct {
	Voices      int                     `json:"voices"`
	Instruments []string                `json:"instruments"` // part name per voice, lowest voice first unless StartHigh
	StartHigh   bool                    `json:"start_high"`  // build the voicing downward from the top voice
	BasePitch   int                     `json:"base_pitch"`  // first voice lands on the root at or beyond this pitch; 0 picks a default
	Velocity    int                     `json:"velocity"`
	Ranges      map[string]theory.Range `json:"ranges"` // per-part overrides of the configured registers
}

// DefaultVoicingParams returns a four-voice piano voicing
func DefaultVoicingParams() VoicingParams {
	return VoicingParams{
		Voices:      4,
		Instruments: []string{"piano__0", "piano__1", "piano__2", "piano__3"},
		Velocity:    80,
	}
}

// Voicer expands chord labels into concrete pitches
type Voicer struct {
	system *theory.System
	logger logging.Logger
}

// NewVoicer creates a voicer over a theory system
func NewVoicer(system *theory.System) *Voicer {
	if system == nil {
		system = theory.MustDefaultSystem()
	}
	return &Voicer{
		system: system,
		logger: logging.WithFields(logging.Fields{
			"component": "voicer",
		}),
	}
}

func (p VoicingParams) instrument(i int) string {
	if i < len(p.Instruments) {
		return p.Instruments[i]
	}
	return score.InstrumentName("piano", i)
}

func (v *Voicer) rangeFor(params VoicingParams, part string) (theory.Range, bool) {
	if r, ok := params.Ranges[part]; ok {
		return r, true
	}
	return v.system.Range(part)
}

// Realize returns one pitch per voice, in voice order. The first voice is the root near
// the base pitch; every following voice takes the nearest chord tone beyond the previous
// one, so surplus voices double chord tones in further octaves. No-chord labels have no
// pitches.
func (v *Voicer) Realize(chord score.Chord, params VoicingParams) ([]int, error) {
	tones := chord.ToneSet(v.system)
	if tones.Empty() || params.Voices <= 0 {
		return nil, nil
	}

	step := 1
	base := params.BasePitch
	if base <= 0 {
		base = 48 + chord.Root
		if params.StartHigh {
			base = 72 + chord.Root
		}
	}
	if params.StartHigh {
		step = -1
	}

	// root at or beyond the base in the voicing direction
	pitch := base
	for i := 0; i < 12 && common.Mod12(pitch) != common.Mod12(chord.Root); i++ {
		pitch += step
	}

	pitches := make([]int, 0, params.Voices)
	for i := 0; i < params.Voices; i++ {
		if i > 0 {
			pitch += step
			for !tones.Has(pitch) {
				pitch += step
			}
		}

		part := params.instrument(i)
		if r, ok := v.rangeFor(params, part); ok {
			for pitch < r.Low {
				pitch += 12
			}
			for pitch > r.High {
				pitch -= 12
			}
			if !r.Contains(pitch) {
				return nil, fmt.Errorf("%w: %s cannot play %s in [%d, %d]",
					ErrRangeExceeded, part, theory.PitchClassName(pitch), r.Low, r.High)
			}
		}
		pitches = append(pitches, pitch)
	}
	return pitches, nil
}

// VoiceScore replaces every chord's parts with its voicing held for the whole chord
func (v *Voicer) VoiceScore(s score.Score, params VoicingParams) (score.Score, error) {
	logger := v.logger.WithFields(logging.Fields{
		"function": "VoiceScore",
	})
	if params.Velocity <= 0 {
		params.Velocity = DefaultVoicingParams().Velocity
	}

	chords := make([]score.Chord, len(s.Chords))
	for i, c := range s.Chords {
		pitches, err := v.Realize(c, params)
		if err != nil {
			logger.Error(err, "Failed to voice chord", logging.Fields{
				"chord": c.Name(),
				"index": i,
			})
			return score.Score{}, fmt.Errorf("chord %d (%s): %w", i, c.Name(), err)
		}

		parts := make(map[string]score.Melody, params.Voices)
		for voice := 0; voice < params.Voices; voice++ {
			part := params.instrument(voice)
			if voice < len(pitches) {
				parts[part] = score.Sustain(c.Relative(part, pitches[voice]), c.Duration, params.Velocity)
			} else {
				parts[part] = score.Rest(c.Duration)
			}
		}
		chords[i] = c.WithParts(parts)
	}

	out := s
	out.Chords = chords
	logger.Debug("Score voiced", logging.Fields{
		"chords": len(chords),
		"voices": params.Voices,
	})
	return out, nil
}
