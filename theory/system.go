package theory

import (
	"slices"
	"strings"

	"github.com/RyanBlaney/armonia/algorithms/common"
)

// System is the immutable, validated form of a Config. Engines receive it at construction.
type System struct {
	config    Config
	modes     []ModeSpec
	modeIndex map[Mode]int
	kinds     []ChordKind
	kindIndex map[string]int
	templates []Template
	ranking   map[Mode]map[Modulation]int // relative (offset, mode) -> rank
	rankLen   map[Mode]int
	unpitched map[int]bool
}

// NewSystem validates the config and precomputes the lookup tables
func NewSystem(cfg *Config) (*System, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &System{
		config:    *cfg,
		modeIndex: make(map[Mode]int),
		kindIndex: make(map[string]int),
		ranking:   make(map[Mode]map[Modulation]int),
		rankLen:   make(map[Mode]int),
		unpitched: make(map[int]bool),
	}

	for i, m := range cfg.Modes {
		m.Scale = slices.Clone(m.Scale)
		m.Profile = slices.Clone(m.Profile)
		m.DegreeProfile = slices.Clone(m.DegreeProfile)
		s.modes = append(s.modes, m)
		s.modeIndex[m.Name] = i
	}

	for i, k := range cfg.ChordKinds {
		k.Offsets = slices.Clone(k.Offsets)
		s.kinds = append(s.kinds, k)
		s.kindIndex[k.Name] = i
	}

	// Template library: every kind on every root
	for i, k := range s.kinds {
		base := common.NewPitchClassSet(k.Offsets...)
		for root := 0; root < 12; root++ {
			s.templates = append(s.templates, Template{
				Root:  root,
				Kind:  k,
				Index: i,
				Set:   base.Rotate(root),
			})
		}
	}

	for _, m := range s.modes {
		ranked := expandModulations(m.Modulations)
		table := make(map[Modulation]int, len(ranked))
		for rank, mod := range ranked {
			table[mod] = rank
		}
		s.ranking[m.Name] = table
		s.rankLen[m.Name] = len(ranked)
	}

	for _, p := range cfg.UnpitchedPrograms {
		s.unpitched[p] = true
	}
	return s, nil
}

// MustDefaultSystem returns the system for DefaultConfig. The default tables are always valid.
func MustDefaultSystem() *System {
	s, err := NewSystem(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return s
}

// expandModulations walks the base list around the circle of fifths. Melodic-minor
// targets are ranked after all others; duplicates keep their first rank.
func expandModulations(base []Modulation) []Modulation {
	var primary, secondary []Modulation
	for i := 0; i < 12; i++ {
		for _, m := range base {
			mod := Modulation{Offset: common.Mod12(m.Offset + 7*i), Mode: m.Mode}
			if m.Mode == ModeMelodicMinor {
				secondary = append(secondary, mod)
			} else {
				primary = append(primary, mod)
			}
		}
	}

	seen := make(map[Modulation]bool)
	var out []Modulation
	for _, mod := range append(primary, secondary...) {
		if seen[mod] {
			continue
		}
		seen[mod] = true
		out = append(out, mod)
	}
	return out
}

// Config returns a copy of the configuration the system was built from
func (s *System) Config() Config {
	return s.config
}

// Modes returns the modes in priority order
func (s *System) Modes() []ModeSpec {
	return s.modes
}

// ModeCount returns the number of enumerated modes
func (s *System) ModeCount() int {
	return len(s.modes)
}

// Mode returns the spec of a named mode
func (s *System) Mode(name Mode) (ModeSpec, bool) {
	i, ok := s.modeIndex[name]
	if !ok {
		return ModeSpec{}, false
	}
	return s.modes[i], true
}

// ModePriority returns the position of the mode in the priority order, or len(modes) if unknown
func (s *System) ModePriority(name Mode) int {
	if i, ok := s.modeIndex[name]; ok {
		return i
	}
	return len(s.modes)
}

// Scale returns the absolute pitch classes of the tonality's scale, tonic first
func (s *System) Scale(t Tonality) []int {
	spec, ok := s.Mode(t.Mode)
	if !ok {
		spec = s.modes[0]
	}
	out := make([]int, len(spec.Scale))
	for i, off := range spec.Scale {
		out[i] = common.Mod12(t.Root + off)
	}
	return out
}

// ScaleOffsets returns the tonality's scale as offsets from the tonic
func (s *System) ScaleOffsets(t Tonality) []int {
	spec, ok := s.Mode(t.Mode)
	if !ok {
		spec = s.modes[0]
	}
	return spec.Scale
}

// ScaleSet returns the tonality's scale as a pitch-class set
func (s *System) ScaleSet(t Tonality) common.PitchClassSet {
	return common.NewPitchClassSet(s.Scale(t)...)
}

// DegreeOf locates an absolute pitch class in the tonality's scale
func (s *System) DegreeOf(t Tonality, pc int) Degree {
	return ScaleDegree(s.ScaleOffsets(t), pc-t.Root)
}

// ChordKinds returns the kinds in configured order
func (s *System) ChordKinds() []ChordKind {
	return s.kinds
}

// Kind looks up a chord kind by name. The no-chord label is always known.
func (s *System) Kind(name string) (ChordKind, bool) {
	if name == NoChordName {
		return NoChord, true
	}
	i, ok := s.kindIndex[name]
	if !ok {
		return ChordKind{}, false
	}
	return s.kinds[i], true
}

// KindIndex returns the configured position of the kind, or len(kinds) for unknown kinds
func (s *System) KindIndex(name string) int {
	if i, ok := s.kindIndex[name]; ok {
		return i
	}
	return len(s.kinds)
}

// Templates returns the chord template library for all 12 roots
func (s *System) Templates() []Template {
	return s.templates
}

// ChordSet returns the pitch classes of a kind placed on a root, plus extensions
func (s *System) ChordSet(root int, kind string, extensions ...int) common.PitchClassSet {
	k, ok := s.Kind(kind)
	if !ok || k.IsNoChord() {
		return 0
	}
	set := common.NewPitchClassSet(k.Offsets...)
	for _, e := range extensions {
		set = set.Add(e)
	}
	return set.Rotate(root)
}

// IsDiatonic reports whether every tone of the chord belongs to the tonality's scale
func (s *System) IsDiatonic(t Tonality, root int, kind string) bool {
	set := s.ChordSet(root, kind)
	if set.Empty() {
		return false
	}
	return containsAll(s.Scale(t), set)
}

// DegreeWeight returns the configured degree-profile weight of a chord root in a tonality.
// Non-diatonic chords weigh nothing.
func (s *System) DegreeWeight(t Tonality, root int, kind string) float64 {
	if !s.IsDiatonic(t, root, kind) {
		return 0.0
	}
	spec, ok := s.Mode(t.Mode)
	if !ok || len(spec.DegreeProfile) == 0 {
		return 0.0
	}
	d := s.DegreeOf(t, root)
	return spec.DegreeProfile[d.Index]
}

// TransitionCost is the modulation cost from one tonality to the next. Ranked targets cost
// modulate + rank_weight*(rank+1)/n; targets missing from the ranking cost unranked_penalty.
func (s *System) TransitionCost(from, to Tonality) float64 {
	w := s.config.Transitions
	if from == to {
		return w.Stay
	}
	table, ok := s.ranking[from.Mode]
	if !ok {
		return w.UnrankedPenalty
	}
	rank, ok := table[Modulation{Offset: common.Mod12(to.Root - from.Root), Mode: to.Mode}]
	if !ok {
		return w.UnrankedPenalty
	}
	return w.Modulate + w.RankWeight*float64(rank+1)/float64(s.rankLen[from.Mode])
}

// ChordsPerBar looks up the number of chord spans per bar
func (s *System) ChordsPerBar(ts TimeSignature) int {
	if n, ok := s.config.ChordsPerBar[ts.String()]; ok {
		return n
	}
	return s.config.DefaultChordsPerBar
}

// IsUnpitchedProgram reports whether a General MIDI program typically sounds unpitched
func (s *System) IsUnpitchedProgram(program int) bool {
	return s.unpitched[program]
}

// Range returns the register range for an instrument part name such as "violin__0"
func (s *System) Range(part string) (Range, bool) {
	name, _, _ := strings.Cut(part, "__")
	r, ok := s.config.Ranges[name]
	return r, ok
}

// Matching returns the chord-matching weights
func (s *System) Matching() MatchingWeights {
	return s.config.Matching
}

// DegreeWeightFactor returns how strongly chord degrees count in key estimation
func (s *System) DegreeWeightFactor() float64 {
	return s.config.DegreeWeight
}

// States enumerates every tonality in priority order: mode priority first, then root
func (s *System) States() []Tonality {
	out := make([]Tonality, 0, 12*len(s.modes))
	for _, m := range s.modes {
		for r := 0; r < 12; r++ {
			out = append(out, Tonality{Root: r, Mode: m.Name})
		}
	}
	return out
}
