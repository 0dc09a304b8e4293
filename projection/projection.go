package projection

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/RyanBlaney/armonia/algorithms/common"
	"github.com/RyanBlaney/armonia/logging"
	"github.com/RyanBlaney/armonia/score"
	"github.com/RyanBlaney/armonia/theory"
)

// ErrPartCollision is returned when target parts would be kept but share names with the
// projected parts and overriding was not allowed
var ErrPartCollision = errors.New("projected parts collide with target parts")

// Policy selects how a source pitch is re-expressed under a target chord
type Policy string

const (
	// PolicyDiatonic keeps the scale step of every note relative to its chord root
	PolicyDiatonic Policy = "diatonic"
	// PolicyVoiceLeading moves every note to the nearest usable pitch of the target chord
	PolicyVoiceLeading Policy = "voice_leading"
	// PolicyKeepPitch keeps absolute pitches and only re-expresses them relative to the target root
	PolicyKeepPitch Policy = "keep_pitch"
)

// ParsePolicy resolves a policy name
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case PolicyDiatonic, PolicyVoiceLeading, PolicyKeepPitch:
		return Policy(name), nil
	case "":
		return PolicyVoiceLeading, nil
	default:
		return "", fmt.Errorf("unknown projection policy %q", name)
	}
}

// Options controls a projection
type Options struct {
	Policy           Policy `json:"policy"`
	RepeatToDuration bool   `json:"repeat_to_duration"` // cycle a shorter source over the whole target
	KeepTarget       bool   `json:"keep_target"`        // keep the target's own parts next to the projected ones
	AllowOverride    bool   `json:"allow_override"`     // projected parts replace colliding target parts
}

// DefaultOptions projects with voice leading
func DefaultOptions() Options {
	return Options{Policy: PolicyVoiceLeading}
}

// Projector re-harmonizes melodic material onto another chord progression
type Projector struct {
	system *theory.System
	logger logging.Logger
}

// NewProjector creates a projector. A nil system uses the default theory tables.
func NewProjector(system *theory.System) *Projector {
	if system == nil {
		system = theory.MustDefaultSystem()
	}
	return &Projector{
		system: system,
		logger: logging.WithFields(logging.Fields{
			"component": "projector",
		}),
	}
}

// Project lays the parts of source over the chords of target. The result follows the
// target's chords and config and lasts as long as the shorter score, or as long as the
// target when RepeatToDuration cycles the source. Continuations cut by a target chord
// boundary are re-articulated; percussion keeps its pitches.
func (p *Projector) Project(source, target score.Score, opts Options) (score.Score, error) {
	logger := p.logger.WithFields(logging.Fields{
		"function": "Project",
		"policy":   string(opts.Policy),
	})

	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		logger.Error(err, "Invalid projection options")
		return score.Score{}, err
	}

	instruments := source.Instruments()
	if opts.KeepTarget && !opts.AllowOverride {
		targetParts := target.Instruments()
		var shared []string
		for _, name := range instruments {
			if slices.Contains(targetParts, name) {
				shared = append(shared, name)
			}
		}
		if len(shared) > 0 {
			err := fmt.Errorf("%w: %v", ErrPartCollision, shared)
			logger.Error(err, "Cannot keep target parts")
			return score.Score{}, err
		}
	}

	srcDur, tgtDur := source.Duration(), target.Duration()
	length := min(srcDur, tgtDur)
	if opts.RepeatToDuration && srcDur > 0 {
		length = tgtDur
	}

	var chords []score.Chord
	for i, off := range target.Offsets() {
		if off >= length {
			break
		}
		tc := target.Chords[i]
		if end := length - off; end < tc.Duration {
			tc = tc.Slice(0, end)
		}

		parts := make(map[string]score.Melody)
		if opts.KeepTarget {
			maps.Copy(parts, tc.Parts)
		}
		for _, name := range instruments {
			m := p.projectPart(source, name, tc, off, srcDur, policy)
			if !m.IsSilent() {
				parts[name] = m
			}
		}
		chords = append(chords, tc.WithParts(parts))
	}

	out := score.New(target.Config, chords...).AddTags(target.Tags...)
	if err := out.Validate(); err != nil {
		logger.Error(err, "Projection produced an invalid score")
		return score.Score{}, err
	}

	logger.Debug("Projection complete", logging.Fields{
		"source_steps": srcDur,
		"target_steps": tgtDur,
		"steps":        out.Duration(),
		"chords":       len(chords),
		"instruments":  len(instruments),
	})
	return out, nil
}

// projectPart re-expresses one part of the source over the target chord starting at off
func (p *Projector) projectPart(source score.Score, part string, target score.Chord, off, srcDur int, policy Policy) score.Melody {
	m := make(score.Melody, target.Duration)
	for i := range m {
		from, mel, pos, ok := sourceAt(source, part, (off+i)%srcDur)
		if !ok {
			m[i] = score.SilenceToken()
			continue
		}

		tok := mel[pos]
		if tok.IsContinuation() {
			if i > 0 {
				m[i] = tok
				continue
			}
			// a sustain crossing into a new target chord is sounded again under it
			onset, found := mel.OnsetAt(pos)
			if !found {
				m[i] = score.SilenceToken()
				continue
			}
			tok = onset
		}
		if tok.IsSilence() {
			m[i] = tok
			continue
		}

		pitch := p.reexpress(part, from.Absolute(part, tok), from, target, policy)
		m[i] = score.NoteToken(target.Relative(part, pitch), tok.Velocity)
	}
	return m
}

// sourceAt returns the chord, melody and position of a part at an absolute source step
func sourceAt(source score.Score, part string, step int) (score.Chord, score.Melody, int, bool) {
	idx, pos, ok := source.Locate(step)
	if !ok {
		return score.Chord{}, nil, 0, false
	}
	c := source.Chords[idx]
	mel, has := c.Parts[part]
	if !has || pos >= len(mel) {
		return score.Chord{}, nil, 0, false
	}
	return c, mel, pos, true
}

func (p *Projector) reexpress(part string, pitch int, from, to score.Chord, policy Policy) int {
	if score.IsDrumPart(part) {
		return pitch
	}
	switch policy {
	case PolicyDiatonic:
		pitch = p.DiatonicReexpress(pitch, from, to)
	case PolicyVoiceLeading:
		pitch = p.VoiceLeadReexpress(pitch, from, to)
	}
	return fitMidi(pitch)
}

// DiatonicReexpress keeps the scale step of pitch above its chord root, counted in the
// source tonality's scale, and rebuilds it above the target root in the target scale.
// Chromatic alterations of the note and of both roots carry over.
func (p *Projector) DiatonicReexpress(pitch int, from, to score.Chord) int {
	srcScale := p.system.ScaleOffsets(from.Tonality)
	dstScale := p.system.ScaleOffsets(to.Tonality)

	rootStep, rootAcc := diatonicStep(srcScale, from.Tonality.Root, score.MiddleC+from.Root)
	noteStep, noteAcc := diatonicStep(srcScale, from.Tonality.Root, pitch)
	toStep, toAcc := diatonicStep(dstScale, to.Tonality.Root, score.MiddleC+to.Root)

	step := toStep + noteStep - rootStep
	return pitchAtStep(dstScale, to.Tonality.Root, step) + toAcc + noteAcc - rootAcc
}

// VoiceLeadReexpress moves pitch to the nearest usable pitch of the target. A chord tone
// of the source chord may only land on a target chord tone; any other note may also land
// on a tone of the target scale. Ties prefer chord tones, then the unchanged octave, then
// the lower pitch. No candidate is more than a tritone away.
func (p *Projector) VoiceLeadReexpress(pitch int, from, to score.Chord) int {
	chordTones := to.ToneSet(p.system)
	usable := chordTones
	if !from.ToneSet(p.system).Has(common.Mod12(pitch)) || chordTones.Empty() {
		usable = usable | p.system.ScaleSet(to.Tonality)
	}
	if usable.Empty() {
		return pitch
	}

	best, found := 0, false
	for cand := pitch - 6; cand <= pitch+6; cand++ {
		if cand < 0 || cand > 127 || !usable.Has(common.Mod12(cand)) {
			continue
		}
		if !found || closer(pitch, cand, best, chordTones) {
			best, found = cand, true
		}
	}
	if !found {
		return pitch
	}
	return best
}

// closer reports whether candidate a is preferred over b when moving from pitch
func closer(pitch, a, b int, chordTones common.PitchClassSet) bool {
	da, db := common.Abs(a-pitch), common.Abs(b-pitch)
	if da != db {
		return da < db
	}
	ca, cb := chordTones.Has(common.Mod12(a)), chordTones.Has(common.Mod12(b))
	if ca != cb {
		return ca
	}
	octave := common.FloorDiv(pitch, 12)
	oa, ob := common.FloorDiv(a, 12) == octave, common.FloorDiv(b, 12) == octave
	if oa != ob {
		return oa
	}
	return a < b
}

// diatonicStep counts scale steps from the tonic in octave 0 up to pitch, returning the
// step and the chromatic alteration of pitch against that scale tone
func diatonicStep(scale []int, tonic, pitch int) (int, int) {
	q := pitch - tonic
	d := theory.ScaleDegree(scale, q)
	return common.FloorDiv(q, 12)*len(scale) + d.Index, d.Accidental
}

// pitchAtStep is the inverse of diatonicStep for unaltered tones
func pitchAtStep(scale []int, tonic, step int) int {
	n := len(scale)
	return tonic + common.FloorDiv(step, n)*12 + scale[common.FloorMod(step, n)]
}

// fitMidi shifts pitch by octaves into 0..127
func fitMidi(pitch int) int {
	for pitch < 0 {
		pitch += 12
	}
	for pitch > 127 {
		pitch -= 12
	}
	return pitch
}
