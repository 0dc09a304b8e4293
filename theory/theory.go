package theory

import (
	"fmt"
	"slices"

	"github.com/RyanBlaney/armonia/algorithms/common"
)

// Mode names a tonal mode (e.g. "M", "m", "mm")
type Mode string

const (
	ModeMajor        Mode = "M"
	ModeMinor        Mode = "m"
	ModeMelodicMinor Mode = "mm"
)

// NoChordName is the label of spans without usable tonal evidence
const NoChordName = "N.C."

// PitchClassNames are used for display only; spelling is ignored
var PitchClassNames = []string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}

// PitchClassName returns the display name of a pitch class
func PitchClassName(pc int) string {
	return PitchClassNames[common.Mod12(pc)]
}

// Tonality is a (root, mode) pair. Root is always kept modulo 12.
type Tonality struct {
	Root int  `json:"root" yaml:"root"`
	Mode Mode `json:"mode" yaml:"mode"`
}

// NewTonality builds a tonality with the root normalized modulo 12
func NewTonality(root int, mode Mode) Tonality {
	return Tonality{Root: common.Mod12(root), Mode: mode}
}

// Name returns a human-readable name such as "C M" or "A m"
func (t Tonality) Name() string {
	return PitchClassName(t.Root) + " " + string(t.Mode)
}

func (t Tonality) String() string {
	return t.Name()
}

// ChordKind is a named interval template
type ChordKind struct {
	Name    string `json:"name" yaml:"name"`
	Offsets []int  `json:"offsets" yaml:"offsets"`
}

// IsNoChord reports whether the kind is the distinguished no-chord label
func (k ChordKind) IsNoChord() bool {
	return k.Name == NoChordName
}

// NoChord is the distinguished kind for silent or unpitched spans
var NoChord = ChordKind{Name: NoChordName}

// TimeSignature is a (numerator, denominator) pair
type TimeSignature struct {
	Num int `json:"num" yaml:"num"`
	Den int `json:"den" yaml:"den"`
}

// CommonTime is 4/4
var CommonTime = TimeSignature{Num: 4, Den: 4}

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Num, ts.Den)
}

// BarSteps returns the number of grid steps in one bar. A beat is a quarter note.
func (ts TimeSignature) BarSteps(stepsPerBeat int) int {
	if ts.Num <= 0 || ts.Den <= 0 {
		return CommonTime.BarSteps(stepsPerBeat)
	}
	steps := (stepsPerBeat*ts.Num*4 + ts.Den/2) / ts.Den
	return max(steps, 1)
}

// Template is a chord kind placed on a concrete root
type Template struct {
	Root  int
	Kind  ChordKind
	Index int // position of the kind in the configured kind order
	Set   common.PitchClassSet
}

// Size is the number of required tones
func (t Template) Size() int {
	return t.Set.Len()
}

// Modulation is one ranked entry of the modulation-plausibility table
type Modulation struct {
	Offset int  `json:"offset" yaml:"offset"`
	Mode   Mode `json:"mode" yaml:"mode"`
}

// Range is an inclusive MIDI pitch range
type Range struct {
	Low  int `json:"low" yaml:"low"`
	High int `json:"high" yaml:"high"`
}

// Contains reports whether the pitch lies in the range
func (r Range) Contains(pitch int) bool {
	return pitch >= r.Low && pitch <= r.High
}

// Degree is the position of a pitch class in a scale plus a chromatic alteration
type Degree struct {
	Index      int
	Accidental int
}

// ScaleDegree locates a pitch class offset (relative to the tonic) in an ascending scale.
// Pitch classes outside the scale map to the nearest scale tone below plus an accidental.
func ScaleDegree(scale []int, offset int) Degree {
	q := common.Mod12(offset)
	idx := 0
	for i, s := range scale {
		if s <= q {
			idx = i
		}
	}
	return Degree{Index: idx, Accidental: q - scale[idx]}
}

// containsAll reports whether every pitch class of set is in scale
func containsAll(scale []int, set common.PitchClassSet) bool {
	for _, pc := range set.Members() {
		if !slices.Contains(scale, pc) {
			return false
		}
	}
	return true
}
