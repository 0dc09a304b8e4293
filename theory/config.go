package theory

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when the theory tables are inconsistent
var ErrInvalidConfig = errors.New("invalid theory config")

// ModeSpec describes one enumerated mode
type ModeSpec struct {
	Name          Mode         `json:"name" yaml:"name"`
	Scale         []int        `json:"scale" yaml:"scale"`                   // ascending offsets from the tonic
	Profile       []float64    `json:"profile" yaml:"profile"`               // 12 empirical pitch-class weights
	DegreeProfile []float64    `json:"degree_profile" yaml:"degree_profile"` // chord-root weight per scale degree
	Modulations   []Modulation `json:"modulations" yaml:"modulations"`       // base ranked list, expanded by fifths
}

// MatchingWeights tune chord-template matching
type MatchingWeights struct {
	MissingRoot float64 `json:"missing_root" yaml:"missing_root"`
	MissingBass float64 `json:"missing_bass" yaml:"missing_bass"`
	MissingTone float64 `json:"missing_tone" yaml:"missing_tone"`
	ExtraTone   float64 `json:"extra_tone" yaml:"extra_tone"`
}

// TransitionWeights tune the modulation cost model
type TransitionWeights struct {
	Stay            float64 `json:"stay" yaml:"stay"`
	Modulate        float64 `json:"modulate" yaml:"modulate"` // flat cost of leaving the current tonality
	RankWeight      float64 `json:"rank_weight" yaml:"rank_weight"`
	UnrankedPenalty float64 `json:"unranked_penalty" yaml:"unranked_penalty"`
}

// Config holds every theory table the engine consumes. All of it is data.
type Config struct {
	Modes               []ModeSpec        `json:"modes" yaml:"modes"`
	ChordKinds          []ChordKind       `json:"chord_kinds" yaml:"chord_kinds"`
	ChordsPerBar        map[string]int    `json:"chords_per_bar" yaml:"chords_per_bar"`
	DefaultChordsPerBar int               `json:"default_chords_per_bar" yaml:"default_chords_per_bar"`
	UnpitchedPrograms   []int             `json:"unpitched_programs" yaml:"unpitched_programs"`
	Ranges              map[string]Range  `json:"ranges" yaml:"ranges"`
	Matching            MatchingWeights   `json:"matching" yaml:"matching"`
	Transitions         TransitionWeights `json:"transitions" yaml:"transitions"`
	DegreeWeight        float64           `json:"degree_weight" yaml:"degree_weight"`
}

// DefaultConfig returns the built-in western tonal tables
func DefaultConfig() *Config {
	unpitched := make([]int, 0, 24)
	for p := 96; p < 104; p++ {
		unpitched = append(unpitched, p)
	}
	for p := 112; p < 128; p++ {
		unpitched = append(unpitched, p)
	}

	return &Config{
		Modes: []ModeSpec{
			{
				Name:          ModeMajor,
				Scale:         []int{0, 2, 4, 5, 7, 9, 11},
				Profile:       []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88},
				DegreeProfile: []float64{1, 0.4, 0.1, 0.5, 0.8, 0.4, 0.1},
				Modulations: []Modulation{
					{7, ModeMajor}, {5, ModeMajor}, {9, ModeMinor}, {2, ModeMinor}, {4, ModeMinor},
					{9, ModeMelodicMinor}, {2, ModeMelodicMinor}, {4, ModeMelodicMinor}, {0, ModeMinor},
				},
			},
			{
				Name:          ModeMinor,
				Scale:         []int{0, 2, 3, 5, 7, 8, 10},
				Profile:       []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17},
				DegreeProfile: []float64{1, 0.3, 0.4, 0.5, 0.8, 0.4, 0.1},
				Modulations: []Modulation{
					{0, ModeMinor}, {0, ModeMelodicMinor}, {7, ModeMinor}, {5, ModeMinor},
					{10, ModeMajor}, {8, ModeMajor}, {7, ModeMelodicMinor}, {5, ModeMelodicMinor},
				},
			},
			{
				Name:          ModeMelodicMinor,
				Scale:         []int{0, 2, 3, 5, 7, 9, 11},
				Profile:       []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 2.69, 3.98, 2.11, 3.17},
				DegreeProfile: []float64{1, 0.3, 0.2, 0.5, 0.9, 0.2, 0.1},
				Modulations: []Modulation{
					{0, ModeMinor}, {0, ModeMelodicMinor}, {7, ModeMinor}, {5, ModeMinor},
					{10, ModeMajor}, {8, ModeMajor}, {7, ModeMelodicMinor}, {5, ModeMelodicMinor},
				},
			},
		},
		ChordKinds: []ChordKind{
			{Name: "", Offsets: []int{0, 4, 7}},
			{Name: "m", Offsets: []int{0, 3, 7}},
			{Name: "+", Offsets: []int{0, 4, 8}},
			{Name: "dim", Offsets: []int{0, 3, 6}},
			{Name: "dim0", Offsets: []int{0, 3, 6, 9}},
			{Name: "7", Offsets: []int{0, 4, 7, 10}},
			{Name: "maj7", Offsets: []int{0, 4, 7, 11}},
			{Name: "m7", Offsets: []int{0, 3, 7, 10}},
			{Name: "m7b5", Offsets: []int{0, 3, 6, 10}},
		},
		ChordsPerBar: map[string]int{
			"2/2": 1,
			"2/4": 1,
			"3/4": 1,
			"4/4": 2,
			"6/8": 2,
		},
		DefaultChordsPerBar: 1,
		UnpitchedPrograms:   unpitched,
		Ranges: map[string]Range{
			"piano":    {Low: 21, High: 108},
			"organ":    {Low: 36, High: 96},
			"guitar":   {Low: 40, High: 88},
			"bass":     {Low: 28, High: 67},
			"strings":  {Low: 28, High: 100},
			"ensemble": {Low: 28, High: 100},
			"brass":    {Low: 34, High: 82},
			"reed":     {Low: 34, High: 93},
			"pipe":     {Low: 59, High: 98},
			"violin":   {Low: 55, High: 103},
			"viola":    {Low: 48, High: 91},
			"cello":    {Low: 36, High: 76},
			"soprano":  {Low: 60, High: 81},
			"alto":     {Low: 53, High: 74},
			"tenor":    {Low: 48, High: 69},
			"baritone": {Low: 41, High: 64},
		},
		Matching: MatchingWeights{
			MissingRoot: 2.0,
			MissingBass: 1.5,
			MissingTone: 1.0,
			ExtraTone:   1.0,
		},
		Transitions: TransitionWeights{
			Stay:            0.0,
			Modulate:        0.5,
			RankWeight:      0.5,
			UnrankedPenalty: 1.5,
		},
		DegreeWeight: 1.0,
	}
}

// ParseConfig decodes YAML on top of the defaults. Absent keys keep their default value.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// LoadConfig reads a YAML theory config from disk
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read theory config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// Marshal renders the config as YAML
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode theory config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks the tables for internal consistency
func (c *Config) Validate() error {
	if len(c.Modes) == 0 {
		return fmt.Errorf("%w: no modes", ErrInvalidConfig)
	}

	seen := make(map[Mode]bool)
	for _, m := range c.Modes {
		if m.Name == "" {
			return fmt.Errorf("%w: mode without name", ErrInvalidConfig)
		}
		if seen[m.Name] {
			return fmt.Errorf("%w: duplicate mode %q", ErrInvalidConfig, m.Name)
		}
		seen[m.Name] = true

		if len(m.Profile) != 12 {
			return fmt.Errorf("%w: mode %q profile has %d entries, want 12", ErrInvalidConfig, m.Name, len(m.Profile))
		}
		if len(m.Scale) == 0 || m.Scale[0] != 0 {
			return fmt.Errorf("%w: mode %q scale must start at 0", ErrInvalidConfig, m.Name)
		}
		for i, s := range m.Scale {
			if s < 0 || s > 11 || (i > 0 && s <= m.Scale[i-1]) {
				return fmt.Errorf("%w: mode %q scale must be ascending pitch classes", ErrInvalidConfig, m.Name)
			}
		}
		if len(m.DegreeProfile) != 0 && len(m.DegreeProfile) != len(m.Scale) {
			return fmt.Errorf("%w: mode %q degree profile length %d does not match scale length %d",
				ErrInvalidConfig, m.Name, len(m.DegreeProfile), len(m.Scale))
		}
	}

	for _, m := range c.Modes {
		for _, mod := range m.Modulations {
			if !seen[mod.Mode] {
				return fmt.Errorf("%w: mode %q modulates to unknown mode %q", ErrInvalidConfig, m.Name, mod.Mode)
			}
		}
	}

	if len(c.ChordKinds) == 0 {
		return fmt.Errorf("%w: no chord kinds", ErrInvalidConfig)
	}
	names := make(map[string]bool)
	for _, k := range c.ChordKinds {
		if k.Name == NoChordName {
			return fmt.Errorf("%w: chord kind name %q is reserved", ErrInvalidConfig, NoChordName)
		}
		if names[k.Name] {
			return fmt.Errorf("%w: duplicate chord kind %q", ErrInvalidConfig, k.Name)
		}
		names[k.Name] = true
		if len(k.Offsets) == 0 || k.Offsets[0] != 0 {
			return fmt.Errorf("%w: chord kind %q must start at offset 0", ErrInvalidConfig, k.Name)
		}
	}

	for ts, n := range c.ChordsPerBar {
		if n <= 0 {
			return fmt.Errorf("%w: chords per bar for %s must be positive", ErrInvalidConfig, ts)
		}
	}
	if c.DefaultChordsPerBar <= 0 {
		return fmt.Errorf("%w: default chords per bar must be positive", ErrInvalidConfig)
	}

	t := c.Transitions
	if t.Stay < 0 || t.Modulate < 0 || t.RankWeight < 0 || t.UnrankedPenalty < 0 {
		return fmt.Errorf("%w: transition weights must not be negative", ErrInvalidConfig)
	}

	mw := c.Matching
	if mw.MissingRoot < 0 || mw.MissingBass < 0 || mw.MissingTone < 0 || mw.ExtraTone < 0 {
		return fmt.Errorf("%w: matching weights must not be negative", ErrInvalidConfig)
	}

	for name, r := range c.Ranges {
		if r.Low > r.High {
			return fmt.Errorf("%w: range for %q is inverted", ErrInvalidConfig, name)
		}
	}
	return nil
}
