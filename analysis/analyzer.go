package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/RyanBlaney/armonia/algorithms/chroma"
	"github.com/RyanBlaney/armonia/algorithms/quantize"
	"github.com/RyanBlaney/armonia/algorithms/tonal"
	"github.com/RyanBlaney/armonia/logging"
	"github.com/RyanBlaney/armonia/score"
	"github.com/RyanBlaney/armonia/theory"
)

// ErrInvalidAnalyzerConfig is returned for analyzer settings that cannot describe a grid
var ErrInvalidAnalyzerConfig = errors.New("invalid analyzer config")

// AnalyzerConfig holds the grid and scoring settings of an analysis run
type AnalyzerConfig struct {
	StepsPerBeat      int                  `json:"steps_per_beat"`
	TimeSignature     theory.TimeSignature `json:"time_signature"`
	Tempo             float64              `json:"tempo"`
	Pickup            int                  `json:"pickup"` // steps before the first full bar
	Similarity        chroma.Similarity    `json:"similarity"`
	MinPresence       float64              `json:"min_presence"`
	WindowsPerBar     int                  `json:"windows_per_bar"`
	PercussionChannel int                  `json:"percussion_channel"`
}

// DefaultAnalyzerConfig returns a sixteenth-note grid in 4/4 at 120 BPM
func DefaultAnalyzerConfig() AnalyzerConfig {
	q := quantize.DefaultQuantizeParams()
	k := tonal.DefaultKeyEstimationParams()
	return AnalyzerConfig{
		StepsPerBeat:      q.StepsPerBeat,
		TimeSignature:     theory.CommonTime,
		Tempo:             120,
		Similarity:        k.Similarity,
		MinPresence:       tonal.DefaultChordDetectionParams().MinPresence,
		WindowsPerBar:     k.WindowsPerBar,
		PercussionChannel: q.PercussionChannel,
	}
}

// Validate checks the config
func (c AnalyzerConfig) Validate() error {
	switch {
	case c.StepsPerBeat <= 0:
		return fmt.Errorf("%w: steps_per_beat must be positive", ErrInvalidAnalyzerConfig)
	case c.TimeSignature.Num <= 0 || c.TimeSignature.Den <= 0:
		return fmt.Errorf("%w: time signature %s", ErrInvalidAnalyzerConfig, c.TimeSignature)
	case c.Tempo <= 0:
		return fmt.Errorf("%w: tempo must be positive", ErrInvalidAnalyzerConfig)
	case c.Pickup < 0:
		return fmt.Errorf("%w: negative pickup", ErrInvalidAnalyzerConfig)
	case c.MinPresence < 0 || c.MinPresence > 1:
		return fmt.Errorf("%w: min_presence must be within [0, 1]", ErrInvalidAnalyzerConfig)
	case c.WindowsPerBar <= 0:
		return fmt.Errorf("%w: windows_per_bar must be positive", ErrInvalidAnalyzerConfig)
	}
	if _, err := chroma.ParseSimilarity(string(c.Similarity)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAnalyzerConfig, err)
	}
	return nil
}

// Window is one key-analysis window and the tonality assigned to it
type Window struct {
	Start    int             `json:"start"`
	End      int             `json:"end"`
	Tonality theory.Tonality `json:"tonality"`
}

// Analysis is the full result of one run
type Analysis struct {
	RunID       string                `json:"run_id"`
	Score       score.Score           `json:"score"`
	Spans       []tonal.Span          `json:"spans"`
	Labels      []tonal.ChordLabel    `json:"labels"`
	Windows     []Window              `json:"windows"`
	Transitions []tonal.KeyTransition `json:"transitions"`
}

// Analyzer turns note events into a harmonically segmented score
type Analyzer struct {
	config    AnalyzerConfig
	system    *theory.System
	quantizer *quantize.Quantizer
	keys      *tonal.KeyEstimator
	chords    *tonal.ChordDetector
	logger    logging.Logger
}

// NewAnalyzer creates an analyzer. A nil system uses the default theory tables.
func NewAnalyzer(system *theory.System, config AnalyzerConfig) (*Analyzer, error) {
	if system == nil {
		system = theory.MustDefaultSystem()
	}
	if config.Similarity == "" {
		config.Similarity = chroma.SimilarityCosine
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Analyzer{
		config: config,
		system: system,
		quantizer: quantize.NewQuantizerWithParams(system, quantize.QuantizeParams{
			StepsPerBeat:      config.StepsPerBeat,
			PercussionChannel: config.PercussionChannel,
		}),
		keys: tonal.NewKeyEstimatorWithParams(system, tonal.KeyEstimationParams{
			Similarity:    config.Similarity,
			WindowsPerBar: config.WindowsPerBar,
		}),
		chords: tonal.NewChordDetectorWithParams(system, tonal.ChordDetectionParams{
			MinPresence: config.MinPresence,
		}),
		logger: logging.WithFields(logging.Fields{
			"component": "analyzer",
		}),
	}, nil
}

// Config returns the analyzer config
func (a *Analyzer) Config() AnalyzerConfig {
	return a.config
}

// Analyze returns the score for events
func (a *Analyzer) Analyze(ctx context.Context, events []quantize.Event) (score.Score, error) {
	res, err := a.Run(ctx, events)
	if err != nil {
		return score.Score{}, err
	}
	return res.Score, nil
}

// Run executes the pipeline: quantize, segment, label provisionally, estimate the key
// sequence over windows, relabel under the assigned tonalities and build the melodies.
func (a *Analyzer) Run(ctx context.Context, events []quantize.Event) (*Analysis, error) {
	runID := uuid.NewString()
	ctx = logging.ContextWithFields(ctx, logging.Fields{"run_id": runID})
	logger := a.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "Run",
	})

	if err := ctx.Err(); err != nil {
		logger.Error(err, "Analysis cancelled")
		return nil, err
	}

	items := a.quantizer.Quantize(events)
	total := quantize.EndStep(items)
	spans := a.chords.Spans(total, a.config.TimeSignature, a.config.StepsPerBeat, a.config.Pickup)

	logger.Debug("Grid segmented", logging.Fields{
		"events": len(events),
		"items":  len(items),
		"steps":  total,
		"spans":  len(spans),
	})

	// Provisional labels under C only feed the key windows; tonic 0 affects nothing but
	// the root of N.C. spans and the last tie-break.
	provisional := make([]theory.Tonality, len(spans))
	for i := range provisional {
		provisional[i] = theory.NewTonality(0, a.system.Modes()[0].Name)
	}
	preliminary := a.chords.LabelSpans(items, spans, provisional)

	barSteps := a.config.TimeSignature.BarSteps(a.config.StepsPerBeat)
	groups, spanWindow := groupWindows(spans, barSteps, a.config.WindowsPerBar)

	keyWindows := make([]tonal.KeyWindow, len(groups))
	for i, g := range groups {
		kw := tonal.KeyWindow{Histogram: chroma.BuildHistogram(items, g.start, g.end)}
		for _, si := range g.spans {
			kw.Chords = append(kw.Chords, preliminary[si])
		}
		keyWindows[i] = kw
	}

	if err := ctx.Err(); err != nil {
		logger.Error(err, "Analysis cancelled")
		return nil, err
	}

	sequence := a.keys.EstimateSequence(keyWindows)

	tonalities := make([]theory.Tonality, len(spans))
	for i := range spans {
		tonalities[i] = sequence[spanWindow[i]]
	}
	labels := a.chords.LabelSpans(items, spans, tonalities)

	names := NameLanes(items)
	byLane := quantize.GroupByLane(items)
	lanes := quantize.Lanes(items)

	chords := make([]score.Chord, len(spans))
	for i, span := range spans {
		label := labels[i]
		c := score.NewChord(label.Root, label.Kind, tonalities[i], span.Duration())

		parts := make(map[string]score.Melody)
		for _, lane := range lanes {
			if !laneSounds(byLane[lane], span) {
				continue
			}
			name := names[lane]
			parts[name] = BuildMelody(byLane[lane], span, c.Reference(name))
		}
		chords[i] = c.WithParts(parts)
	}

	out := score.New(score.Config{
		Tempo:         a.config.Tempo,
		TimeSignature: a.config.TimeSignature,
		Pickup:        a.config.Pickup,
		StepsPerBeat:  a.config.StepsPerBeat,
	}, chords...)

	if err := out.Validate(); err != nil {
		logger.Error(err, "Analysis produced an invalid score")
		return nil, fmt.Errorf("analysis run %s: %w", runID, err)
	}

	windows := make([]Window, len(groups))
	for i, g := range groups {
		windows[i] = Window{Start: g.start, End: g.end, Tonality: sequence[i]}
	}
	transitions := a.keys.Transitions(sequence)

	logger.Info("Analysis complete", logging.Fields{
		"chords":      len(chords),
		"instruments": len(lanes),
		"windows":     len(windows),
		"modulations": len(transitions),
	})

	return &Analysis{
		RunID:       runID,
		Score:       out,
		Spans:       spans,
		Labels:      labels,
		Windows:     windows,
		Transitions: transitions,
	}, nil
}

type windowGroup struct {
	start, end int
	spans      []int
}

// groupWindows splits every bar into perBar key windows and assigns each span to the
// window holding its start. It returns the windows and the window index of every span.
func groupWindows(spans []tonal.Span, barSteps, perBar int) ([]windowGroup, []int) {
	var groups []windowGroup
	spanWindow := make([]int, len(spans))

	barStart := 0
	lastKey := [2]int{-1, -1}
	for i, sp := range spans {
		if i == 0 || sp.Bar != spans[i-1].Bar {
			barStart = sp.Start
		}
		sub := min((sp.Start-barStart)*perBar/barSteps, perBar-1)
		key := [2]int{sp.Bar, sub}
		if key != lastKey {
			groups = append(groups, windowGroup{start: sp.Start})
			lastKey = key
		}
		g := &groups[len(groups)-1]
		g.end = sp.End
		g.spans = append(g.spans, i)
		spanWindow[i] = len(groups) - 1
	}
	return groups, spanWindow
}

func laneSounds(items []quantize.Item, span tonal.Span) bool {
	for _, it := range items {
		if it.Overlap(span.Start, span.End) > 0 {
			return true
		}
	}
	return false
}
