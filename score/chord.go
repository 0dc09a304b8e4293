package score

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/RyanBlaney/armonia/algorithms/common"
	"github.com/RyanBlaney/armonia/theory"
)

// ErrDurationMismatch is returned when a part's token count differs from its chord's duration
var ErrDurationMismatch = errors.New("part duration does not match chord duration")

// ErrInvalidRoot is returned for a chord or tonality root outside the pitch classes 0..11
var ErrInvalidRoot = errors.New("root is not a pitch class")

// MiddleC is the pitch of token value 0 over a C root
const MiddleC = 60

// DrumFamily names percussion parts. Their token values are relative to middle C, not the root.
const DrumFamily = "drums"

// Chord is one harmonic span. It is a value type: every mutator returns a new Chord and
// leaves the receiver untouched.
type Chord struct {
	Root       int               `json:"root"` // absolute pitch class
	Kind       string            `json:"kind"`
	Tonality   theory.Tonality   `json:"tonality"`
	Duration   int               `json:"duration"`
	Extensions []int             `json:"extensions,omitempty"` // extra offsets above the root
	Parts      map[string]Melody `json:"parts"`
	Tags       Tags              `json:"tags,omitempty"`
}

// NewChord returns a chord without parts
func NewChord(root int, kind string, tonality theory.Tonality, duration int) Chord {
	return Chord{
		Root:     common.Mod12(root),
		Kind:     kind,
		Tonality: tonality,
		Duration: duration,
		Parts:    map[string]Melody{},
	}
}

// IsNoChord reports whether the chord carries the no-chord label
func (c Chord) IsNoChord() bool {
	return c.Kind == theory.NoChordName
}

// Name renders the label, e.g. "C", "Am7" or "N.C."
func (c Chord) Name() string {
	if c.IsNoChord() {
		return theory.NoChordName
	}
	name := theory.PitchClassName(c.Root) + c.Kind
	for _, e := range c.Extensions {
		name += "(" + strconv.Itoa(e) + ")"
	}
	return name
}

func (c Chord) String() string {
	return fmt.Sprintf("%s in %s for %d", c.Name(), c.Tonality.Name(), c.Duration)
}

// ToneSet returns the chord's pitch classes including extensions
func (c Chord) ToneSet(sys *theory.System) common.PitchClassSet {
	return sys.ChordSet(c.Root, c.Kind, c.Extensions...)
}

// Degree locates the chord root in its tonality
func (c Chord) Degree(sys *theory.System) theory.Degree {
	return sys.DegreeOf(c.Tonality, c.Root)
}

// Reference returns the absolute pitch that token value 0 denotes in the given part
func (c Chord) Reference(part string) int {
	if IsDrumPart(part) {
		return MiddleC
	}
	return MiddleC + c.Root
}

// Absolute converts a note token of a part to an absolute MIDI pitch
func (c Chord) Absolute(part string, t Token) int {
	return c.Reference(part) + t.Value
}

// Relative converts an absolute MIDI pitch to a token value for a part
func (c Chord) Relative(part string, pitch int) int {
	return pitch - c.Reference(part)
}

// Instruments returns the part names in family/index order
func (c Chord) Instruments() []string {
	return SortInstruments(slices.Collect(maps.Keys(c.Parts)))
}

// Part returns the melody of one instrument
func (c Chord) Part(name string) (Melody, bool) {
	m, ok := c.Parts[name]
	return m, ok
}

// Validate checks the duration invariant and continuation legality of every part
func (c Chord) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("chord %s has non-positive duration %d", c.Name(), c.Duration)
	}
	if c.Root < 0 || c.Root > 11 {
		return fmt.Errorf("%w: chord root %d", ErrInvalidRoot, c.Root)
	}
	if c.Tonality.Root < 0 || c.Tonality.Root > 11 {
		return fmt.Errorf("%w: tonality root %d", ErrInvalidRoot, c.Tonality.Root)
	}
	for _, name := range c.Instruments() {
		m := c.Parts[name]
		if m.Duration() != c.Duration {
			return fmt.Errorf("%w: %s has %d steps in %s", ErrDurationMismatch, name, m.Duration(), c)
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("part %s of %s: %w", name, c.Name(), err)
		}
	}
	return nil
}

func (c Chord) clone() Chord {
	c.Parts = maps.Clone(c.Parts)
	if c.Parts == nil {
		c.Parts = map[string]Melody{}
	}
	c.Extensions = slices.Clone(c.Extensions)
	c.Tags = slices.Clone(c.Tags)
	return c
}

// WithPart returns the chord with one part set
func (c Chord) WithPart(name string, m Melody) Chord {
	out := c.clone()
	out.Parts[name] = m
	return out
}

// WithParts returns the chord with its parts replaced
func (c Chord) WithParts(parts map[string]Melody) Chord {
	out := c.clone()
	out.Parts = maps.Clone(parts)
	if out.Parts == nil {
		out.Parts = map[string]Melody{}
	}
	return out
}

// WithoutPart returns the chord with one part removed
func (c Chord) WithoutPart(name string) Chord {
	out := c.clone()
	delete(out.Parts, name)
	return out
}

// WithExtensions returns the chord with the given extension offsets
func (c Chord) WithExtensions(ext ...int) Chord {
	out := c.clone()
	out.Extensions = slices.Clone(ext)
	return out
}

// MapParts applies fn to every part
func (c Chord) MapParts(fn func(name string, m Melody) Melody) Chord {
	out := c.clone()
	for name, m := range out.Parts {
		out.Parts[name] = fn(name, m)
	}
	return out
}

// Slice cuts the chord to steps [start, end)
func (c Chord) Slice(start, end int) Chord {
	start = max(start, 0)
	end = min(end, c.Duration)
	out := c.MapParts(func(_ string, m Melody) Melody { return m.Slice(start, end) })
	out.Duration = max(end-start, 0)
	return out
}

// AddTags returns the chord with the tags added
func (c Chord) AddTags(tags ...string) Chord {
	out := c.clone()
	out.Tags = out.Tags.Add(tags...)
	return out
}

// RemoveTags returns the chord without the given tags
func (c Chord) RemoveTags(tags ...string) Chord {
	out := c.clone()
	out.Tags = out.Tags.Remove(tags...)
	return out
}

// ClearTags returns the chord without tags
func (c Chord) ClearTags() Chord {
	out := c.clone()
	out.Tags = nil
	return out
}

// HasTag reports whether the chord carries the tag
func (c Chord) HasTag(tag string) bool {
	return c.Tags.Has(tag)
}

// SplitInstrument splits a part name such as "piano__1" into family and index
func SplitInstrument(name string) (string, int) {
	family, idx, ok := strings.Cut(name, "__")
	if !ok {
		return name, 0
	}
	n, err := strconv.Atoi(idx)
	if err != nil {
		return name, 0
	}
	return family, n
}

// InstrumentName joins a family and index into a part name
func InstrumentName(family string, index int) string {
	return family + "__" + strconv.Itoa(index)
}

// IsDrumPart reports whether the part is percussion
func IsDrumPart(name string) bool {
	family, _ := SplitInstrument(name)
	return family == DrumFamily
}

// SortInstruments orders part names by family, then index
func SortInstruments(names []string) []string {
	out := slices.Clone(names)
	slices.SortFunc(out, func(a, b string) int {
		fa, ia := SplitInstrument(a)
		fb, ib := SplitInstrument(b)
		if c := strings.Compare(fa, fb); c != 0 {
			return c
		}
		if ia != ib {
			return ia - ib
		}
		return strings.Compare(a, b)
	})
	return out
}
