package score

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/RyanBlaney/armonia/algorithms/common"
	"github.com/RyanBlaney/armonia/theory"
)

// Config is the score-level metadata
type Config struct {
	Tempo         float64              `json:"tempo"`
	TimeSignature theory.TimeSignature `json:"time_signature"`
	Pickup        int                  `json:"pickup"` // steps before the first full bar
	StepsPerBeat  int                  `json:"steps_per_beat"`
	Annotation    string               `json:"annotation,omitempty"`
}

// DefaultConfig returns 120 BPM in 4/4 on a sixteenth-note grid
func DefaultConfig() Config {
	return Config{
		Tempo:         120,
		TimeSignature: theory.CommonTime,
		StepsPerBeat:  4,
	}
}

// Score is an ordered sequence of chords plus metadata. It is a value type: every
// transformation returns a new Score.
type Score struct {
	Chords []Chord `json:"chords"`
	Config Config  `json:"config"`
	Tags   Tags    `json:"tags,omitempty"`
}

// New builds a score from chords
func New(cfg Config, chords ...Chord) Score {
	return Score{Chords: slices.Clone(chords), Config: cfg}
}

func (s Score) with(chords []Chord) Score {
	return Score{Chords: chords, Config: s.Config, Tags: slices.Clone(s.Tags)}
}

func (s Score) mapChords(fn func(Chord) Chord) Score {
	out := make([]Chord, len(s.Chords))
	for i, c := range s.Chords {
		out[i] = fn(c)
	}
	return s.with(out)
}

// Duration is the total number of grid steps
func (s Score) Duration() int {
	total := 0
	for _, c := range s.Chords {
		total += c.Duration
	}
	return total
}

// Offsets returns the start step of every chord
func (s Score) Offsets() []int {
	out := make([]int, len(s.Chords))
	pos := 0
	for i, c := range s.Chords {
		out[i] = pos
		pos += c.Duration
	}
	return out
}

// Locate returns the chord index sounding at a step and the offset inside that chord
func (s Score) Locate(step int) (int, int, bool) {
	pos := 0
	for i, c := range s.Chords {
		if step >= pos && step < pos+c.Duration {
			return i, step - pos, true
		}
		pos += c.Duration
	}
	return 0, 0, false
}

// Instruments returns every part name used by any chord, sorted by family then index
func (s Score) Instruments() []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range s.Chords {
		for name := range c.Parts {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return SortInstruments(names)
}

// Validate checks every chord
func (s Score) Validate() error {
	for i, c := range s.Chords {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("chord %d: %w", i, err)
		}
	}
	return nil
}

// Append adds chords at the end
func (s Score) Append(chords ...Chord) Score {
	return s.with(slices.Concat(s.Chords, chords))
}

// Concat joins two scores; tags are merged and the receiver's config is kept
func (s Score) Concat(o Score) Score {
	out := s.with(slices.Concat(s.Chords, o.Chords))
	out.Tags = out.Tags.Union(o.Tags)
	return out
}

// Repeat plays the score n times
func (s Score) Repeat(n int) Score {
	var chords []Chord
	for i := 0; i < n; i++ {
		chords = append(chords, s.Chords...)
	}
	return s.with(chords)
}

// Between returns the material in steps [start, end). Chords crossing a bound are cut.
func (s Score) Between(start, end int) Score {
	var chords []Chord
	pos := 0
	for _, c := range s.Chords {
		cs, ce := pos, pos+c.Duration
		pos = ce
		if ce <= start || cs >= end {
			continue
		}
		chords = append(chords, c.Slice(max(start, cs)-cs, min(end, ce)-cs))
	}
	return s.with(chords)
}

// Part returns the score restricted to one instrument
func (s Score) Part(name string) Score {
	return s.Parts(name)
}

// Parts returns the score restricted to the given instruments
func (s Score) Parts(names ...string) Score {
	return s.mapChords(func(c Chord) Chord {
		parts := make(map[string]Melody)
		for _, n := range names {
			if m, ok := c.Parts[n]; ok {
				parts[n] = m
			}
		}
		return c.WithParts(parts)
	})
}

// NormalizeInstruments gives every chord every instrument, filling gaps with silence
func (s Score) NormalizeInstruments() Score {
	names := s.Instruments()
	return s.mapChords(func(c Chord) Chord {
		out := c.clone()
		for _, n := range names {
			if _, ok := out.Parts[n]; !ok {
				out.Parts[n] = Rest(c.Duration)
			}
		}
		return out
	})
}

// RemoveSilencedInstruments drops, per chord, every part without notes
func (s Score) RemoveSilencedInstruments() Score {
	return s.mapChords(func(c Chord) Chord {
		out := c.clone()
		for n, m := range out.Parts {
			if m.IsSilent() {
				delete(out.Parts, n)
			}
		}
		return out
	})
}

// ReplaceInstruments renames parts. Names absent from the mapping are kept.
func (s Score) ReplaceInstruments(mapping map[string]string) Score {
	return s.mapChords(func(c Chord) Chord {
		parts := make(map[string]Melody, len(c.Parts))
		for _, n := range c.Instruments() {
			target := n
			if renamed, ok := mapping[n]; ok {
				target = renamed
			}
			parts[target] = c.Parts[n]
		}
		return c.WithParts(parts)
	})
}

// Doubling copies each source part onto the listed target parts
func (s Score) Doubling(doubles map[string][]string) Score {
	return s.mapChords(func(c Chord) Chord {
		out := c.clone()
		for src, targets := range doubles {
			m, ok := c.Parts[src]
			if !ok {
				continue
			}
			for _, t := range targets {
				out.Parts[t] = m
			}
		}
		return out
	})
}

// Octaver transposes parts by whole octaves
func (s Score) Octaver(octaves map[string]int) Score {
	return s.mapChords(func(c Chord) Chord {
		return c.MapParts(func(name string, m Melody) Melody {
			return m.Transpose(12 * octaves[name])
		})
	})
}

// SetVelocity sets every note velocity, clamped to [0, 127]
func (s Score) SetVelocity(velocity int) Score {
	velocity = min(max(velocity, 0), 127)
	return s.mapChords(func(c Chord) Chord {
		return c.MapParts(func(_ string, m Melody) Melody { return m.WithVelocity(velocity) })
	})
}

// Transpose moves every chord, tonality and melody by the given number of semitones.
// Drum parts keep their pitches.
func (s Score) Transpose(semitones int) Score {
	return s.mapChords(func(c Chord) Chord {
		root := common.Mod12(c.Root + semitones)
		// values are root-relative, so only the octave wrap of the root moves them
		shift := c.Root + semitones - root
		out := c.MapParts(func(name string, m Melody) Melody {
			if IsDrumPart(name) || shift == 0 {
				return m
			}
			return m.Transpose(shift)
		})
		out.Root = root
		out.Tonality = theory.NewTonality(c.Tonality.Root+semitones, c.Tonality.Mode)
		return out
	})
}

// Reduce keeps at most n pitched voices per chord, chosen spread from bass to soprano,
// and renames them after instruments (default piano__0 ... piano__n-1). With startLow the
// first instrument takes the bass, otherwise the soprano.
func (s Score) Reduce(n int, startLow bool, instruments []string) Score {
	if n <= 0 {
		return s.mapChords(func(c Chord) Chord { return c.WithParts(nil) })
	}
	if len(instruments) == 0 {
		for i := 0; i < n; i++ {
			instruments = append(instruments, InstrumentName("piano", i))
		}
	}

	return s.mapChords(func(c Chord) Chord {
		type voice struct {
			name  string
			pitch float64
		}
		var voices []voice
		for _, name := range c.Instruments() {
			if IsDrumPart(name) {
				continue
			}
			mean, ok := c.Parts[name].MeanValue()
			if !ok {
				continue
			}
			voices = append(voices, voice{name, float64(c.Reference(name)) + mean})
		}
		slices.SortStableFunc(voices, func(a, b voice) int { return cmp.Compare(a.pitch, b.pitch) })

		picked := voices
		if len(voices) > n {
			picked = make([]voice, 0, n)
			if n == 1 {
				if startLow {
					picked = append(picked, voices[0])
				} else {
					picked = append(picked, voices[len(voices)-1])
				}
			} else {
				for i := 0; i < n; i++ {
					picked = append(picked, voices[i*(len(voices)-1)/(n-1)])
				}
			}
		}
		if !startLow {
			slices.Reverse(picked)
		}

		parts := make(map[string]Melody)
		for i, v := range picked {
			if i >= len(instruments) {
				break
			}
			parts[instruments[i]] = c.Parts[v.name]
		}
		return c.WithParts(parts)
	})
}

// AddTag adds a tag to the score
func (s Score) AddTag(tag string) Score {
	return s.AddTags(tag)
}

// AddTags adds tags to the score
func (s Score) AddTags(tags ...string) Score {
	out := s.with(slices.Clone(s.Chords))
	out.Tags = out.Tags.Add(tags...)
	return out
}

// RemoveTag removes a tag from the score
func (s Score) RemoveTag(tag string) Score {
	return s.RemoveTags(tag)
}

// RemoveTags removes tags from the score
func (s Score) RemoveTags(tags ...string) Score {
	out := s.with(slices.Clone(s.Chords))
	out.Tags = out.Tags.Remove(tags...)
	return out
}

// ClearTags removes every score-level tag
func (s Score) ClearTags() Score {
	out := s.with(slices.Clone(s.Chords))
	out.Tags = nil
	return out
}

// HasTag reports whether the score carries the tag
func (s Score) HasTag(tag string) bool {
	return s.Tags.Has(tag)
}

// AddTagsChildren tags every chord
func (s Score) AddTagsChildren(tags ...string) Score {
	return s.mapChords(func(c Chord) Chord { return c.AddTags(tags...) })
}

// RemoveTagsChildren untags every chord
func (s Score) RemoveTagsChildren(tags ...string) Score {
	return s.mapChords(func(c Chord) Chord { return c.RemoveTags(tags...) })
}

// ClearTagsChildren clears the tags of every chord
func (s Score) ClearTagsChildren() Score {
	return s.mapChords(Chord.ClearTags)
}

// Marshal encodes the score as indented JSON
func (s Score) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode score: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates a JSON score
func Unmarshal(data []byte) (Score, error) {
	var s Score
	if err := json.Unmarshal(data, &s); err != nil {
		return Score{}, fmt.Errorf("failed to decode score: %w", err)
	}
	for i := range s.Chords {
		if s.Chords[i].Parts == nil {
			s.Chords[i].Parts = map[string]Melody{}
		}
	}
	if err := s.Validate(); err != nil {
		return Score{}, err
	}
	return s, nil
}
