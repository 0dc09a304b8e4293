package transcode

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/RyanBlaney/armonia/algorithms/quantize"
	"github.com/RyanBlaney/armonia/logging"
	"github.com/RyanBlaney/armonia/theory"
)

// ErrUnsupportedTimeFormat is returned for SMPTE-timed files, which have no beat grid
var ErrUnsupportedTimeFormat = errors.New("unsupported MIDI time format")

// MidiData represents a decoded Standard MIDI File
type MidiData struct {
	Events        []quantize.Event     `json:"events"`
	TimeSignature theory.TimeSignature `json:"time_signature"`
	Tempo         float64              `json:"tempo"` // BPM of the first tempo event
	TicksPerBeat  int                  `json:"ticks_per_beat"`
	Tracks        int                  `json:"tracks"`
	Duration      float64              `json:"duration"` // in beats, up to the last note end
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	DefaultTempo         float64              `json:"default_tempo"`          // used when the file has no tempo event
	DefaultTimeSignature theory.TimeSignature `json:"default_time_signature"` // used when the file has no meter event
	IncludePercussion    bool                 `json:"include_percussion"`
	PercussionChannel    int                  `json:"percussion_channel"` // 0-based
	MaxBeats             float64              `json:"max_beats"`          // 0 means no limit
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		DefaultTempo:         120,
		DefaultTimeSignature: theory.CommonTime,
		IncludePercussion:    true,
		PercussionChannel:    9,
		MaxBeats:             0,
	}
}

// Decoder reads Standard MIDI Files into note events
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a new MIDI decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// DecodeFile decodes a MIDI file with the default configuration
func DecodeFile(filename string) (*MidiData, error) {
	return NewDecoder(nil).DecodeFile(filename)
}

// Decode decodes MIDI from a reader with the default configuration
func Decode(reader io.Reader) (*MidiData, error) {
	return NewDecoder(nil).DecodeReader(reader)
}

// DecodeFile decodes a MIDI file
func (d *Decoder) DecodeFile(filename string) (*MidiData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "midi_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	logger.Debug("Starting MIDI file decode")

	data, err := os.ReadFile(filename)
	if err != nil {
		logger.Error(err, "Failed to read MIDI file")
		return nil, fmt.Errorf("reading midi file: %w", err)
	}
	return d.DecodeBytes(data)
}

// DecodeReader decodes MIDI from an io.Reader
func (d *Decoder) DecodeReader(reader io.Reader) (*MidiData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "midi_decoder",
		"function":  "DecodeReader",
	})

	data, err := io.ReadAll(reader)
	if err != nil {
		logger.Error(err, "Failed to read data from reader")
		return nil, err
	}

	logger.Debug("Data read from reader", logging.Fields{
		"data_size": len(data),
	})

	return d.DecodeBytes(data)
}

// DecodeBytes decodes MIDI from a byte slice
func (d *Decoder) DecodeBytes(data []byte) (result *MidiData, err error) {
	logger := logging.WithFields(logging.Fields{
		"component": "midi_decoder",
		"function":  "DecodeBytes",
		"data_size": len(data),
	})

	if len(data) == 0 {
		return nil, fmt.Errorf("empty midi data")
	}

	// smf panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing midi file: %v", r)
			logger.Error(err, "MIDI parser panicked")
			result = nil
		}
	}()

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		logger.Error(err, "Failed to parse MIDI data")
		return nil, fmt.Errorf("parsing midi file: %w", err)
	}

	result, err = d.convert(s)
	if err != nil {
		logger.Error(err, "Failed to convert MIDI data")
		return nil, err
	}

	logger.Debug("MIDI decode completed", logging.Fields{
		"tracks":         result.Tracks,
		"events":         len(result.Events),
		"tempo":          result.Tempo,
		"time_signature": result.TimeSignature.String(),
		"duration_beats": result.Duration,
	})
	return result, nil
}

// GetConfig returns decoder configuration information
func (d *Decoder) GetConfig() map[string]any {
	return map[string]any{
		"default_tempo":          d.config.DefaultTempo,
		"default_time_signature": d.config.DefaultTimeSignature.String(),
		"include_percussion":     d.config.IncludePercussion,
		"percussion_channel":     d.config.PercussionChannel,
		"max_beats":              d.config.MaxBeats,
	}
}

type noteKey struct {
	channel, key uint8
}

type openNote struct {
	tick     int64
	velocity uint8
	program  uint8
}

// convert pairs note on/off messages per (track, channel, key), first in first out.
// Notes left open are closed at the end of their track.
func (d *Decoder) convert(s *smf.SMF) (*MidiData, error) {
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedTimeFormat, s.TimeFormat)
	}
	perBeat := float64(ticks.Ticks4th())

	out := &MidiData{
		TimeSignature: d.config.DefaultTimeSignature,
		Tempo:         d.config.DefaultTempo,
		TicksPerBeat:  int(ticks.Ticks4th()),
		Tracks:        len(s.Tracks),
	}
	tempoSet, meterSet := false, false

	for trackIdx, track := range s.Tracks {
		var abs int64
		programs := make(map[uint8]uint8)
		open := make(map[noteKey][]openNote)

		closeNote := func(k noteKey, end int64) {
			queue := open[k]
			if len(queue) == 0 {
				return
			}
			on := queue[0]
			open[k] = queue[1:]
			d.emit(out, quantize.Event{
				Start:    float64(on.tick) / perBeat,
				End:      float64(end) / perBeat,
				Pitch:    int(k.key),
				Velocity: int(on.velocity),
				Track:    trackIdx,
				Channel:  int(k.channel),
				Program:  int(on.program),
			})
		}

		for _, ev := range track {
			abs += int64(ev.Delta)

			var channel, key, velocity, program uint8
			var bpm float64
			var num, denom uint8

			switch {
			case ev.Message.GetNoteOn(&channel, &key, &velocity):
				k := noteKey{channel, key}
				if velocity == 0 {
					closeNote(k, abs)
					continue
				}
				open[k] = append(open[k], openNote{tick: abs, velocity: velocity, program: programs[channel]})
			case ev.Message.GetNoteOff(&channel, &key, &velocity):
				closeNote(noteKey{channel, key}, abs)
			case ev.Message.GetProgramChange(&channel, &program):
				programs[channel] = program
			case ev.Message.GetMetaTempo(&bpm):
				if !tempoSet && bpm > 0 {
					out.Tempo, tempoSet = bpm, true
				}
			case ev.Message.GetMetaMeter(&num, &denom):
				if !meterSet && num > 0 && denom > 0 {
					out.TimeSignature = theory.TimeSignature{Num: int(num), Den: int(denom)}
					meterSet = true
				}
			}
		}

		for k, queue := range open {
			for range queue {
				closeNote(k, abs)
			}
		}
	}

	slices.SortStableFunc(out.Events, func(a, b quantize.Event) int {
		return cmp.Or(
			cmp.Compare(a.Start, b.Start),
			cmp.Compare(a.Track, b.Track),
			cmp.Compare(a.Channel, b.Channel),
			cmp.Compare(a.Pitch, b.Pitch),
		)
	})
	return out, nil
}

func (d *Decoder) emit(out *MidiData, ev quantize.Event) {
	if !d.config.IncludePercussion && ev.Channel == d.config.PercussionChannel {
		return
	}
	if ev.End <= ev.Start {
		return
	}
	if d.config.MaxBeats > 0 {
		if ev.Start >= d.config.MaxBeats {
			return
		}
		ev.End = min(ev.End, d.config.MaxBeats)
	}
	out.Events = append(out.Events, ev)
	out.Duration = max(out.Duration, ev.End)
}
