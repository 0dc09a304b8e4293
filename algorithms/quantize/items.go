package quantize

import (
	"cmp"
	"math"
	"slices"

	"github.com/RyanBlaney/armonia/logging"
	"github.com/RyanBlaney/armonia/theory"
)

// Event is a raw note event in continuous time, measured in beats (quarter notes)
type Event struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Pitch    int     `json:"pitch"`
	Velocity int     `json:"velocity"`
	Track    int     `json:"track"`
	Channel  int     `json:"channel"` // 0-based MIDI channel
	Program  int     `json:"program"`
}

// Item is a note event snapped to the grid. Items are never mutated once created.
type Item struct {
	Start      int  `json:"start"` // grid step, inclusive
	End        int  `json:"end"`   // grid step, exclusive
	Velocity   int  `json:"velocity"`
	Pitch      int  `json:"pitch"`
	Track      int  `json:"track"`
	Channel    int  `json:"channel"`
	Program    int  `json:"program"`
	Voice      int  `json:"voice"` // monophonic lane inside (track, channel)
	Percussion bool `json:"percussion"`
}

// Duration returns the length in grid steps
func (it Item) Duration() int {
	return it.End - it.Start
}

// Overlap returns how many steps of [start, end) the item sounds
func (it Item) Overlap(start, end int) int {
	return max(0, min(it.End, end)-max(it.Start, start))
}

// SoundsAt reports whether the item is sounding during the given step
func (it Item) SoundsAt(step int) bool {
	return it.Start <= step && step < it.End
}

// Lane returns the lane key of the item
func (it Item) Lane() LaneKey {
	return LaneKey{Track: it.Track, Channel: it.Channel, Voice: it.Voice}
}

// LaneKey identifies one monophonic voice lane
type LaneKey struct {
	Track   int `json:"track"`
	Channel int `json:"channel"`
	Voice   int `json:"voice"`
}

// Compare orders lane keys by track, channel, voice
func (k LaneKey) Compare(o LaneKey) int {
	return cmp.Or(cmp.Compare(k.Track, o.Track), cmp.Compare(k.Channel, o.Channel), cmp.Compare(k.Voice, o.Voice))
}

// QuantizeParams contains parameters for grid quantization
type QuantizeParams struct {
	StepsPerBeat      int `json:"steps_per_beat"`
	PercussionChannel int `json:"percussion_channel"` // 0-based; General MIDI uses channel 10
}

// DefaultQuantizeParams returns a sixteenth-note grid
func DefaultQuantizeParams() QuantizeParams {
	return QuantizeParams{
		StepsPerBeat:      4,
		PercussionChannel: 9,
	}
}

// Quantizer snaps raw events onto the grid and splits them into monophonic lanes
type Quantizer struct {
	params QuantizeParams
	system *theory.System
	logger logging.Logger
}

// NewQuantizer creates a quantizer with default parameters
func NewQuantizer(system *theory.System) *Quantizer {
	return NewQuantizerWithParams(system, DefaultQuantizeParams())
}

// NewQuantizerWithParams creates a quantizer with custom parameters
func NewQuantizerWithParams(system *theory.System, params QuantizeParams) *Quantizer {
	if params.StepsPerBeat <= 0 {
		params.StepsPerBeat = DefaultQuantizeParams().StepsPerBeat
	}
	if system == nil {
		system = theory.MustDefaultSystem()
	}
	return &Quantizer{
		params: params,
		system: system,
		logger: logging.WithFields(logging.Fields{
			"component": "quantizer",
		}),
	}
}

// Params returns the quantizer parameters
func (q *Quantizer) Params() QuantizeParams {
	return q.params
}

// Snap converts a time in beats to the nearest grid step
func (q *Quantizer) Snap(beats float64) int {
	return int(math.Round(beats * float64(q.params.StepsPerBeat)))
}

// Quantize converts raw events to items ordered by (start, track, channel, voice, pitch).
// Malformed events are dropped.
func (q *Quantizer) Quantize(events []Event) []Item {
	logger := q.logger.WithFields(logging.Fields{
		"function": "Quantize",
	})

	type channelKey struct{ track, channel int }
	groups := make(map[channelKey][]Item)
	dropped := 0

	for _, ev := range events {
		if !q.wellFormed(ev) {
			dropped++
			continue
		}
		start, end := q.Snap(ev.Start), q.Snap(ev.End)
		if end <= start {
			dropped++
			continue
		}
		it := Item{
			Start:      start,
			End:        end,
			Velocity:   min(max(ev.Velocity, 0), 127),
			Pitch:      ev.Pitch,
			Track:      ev.Track,
			Channel:    ev.Channel,
			Program:    ev.Program,
			Percussion: ev.Channel == q.params.PercussionChannel || q.system.IsUnpitchedProgram(ev.Program),
		}
		key := channelKey{ev.Track, ev.Channel}
		groups[key] = append(groups[key], it)
	}

	var items []Item
	for _, group := range groups {
		items = append(items, assignVoices(mergeOverlaps(group))...)
	}
	SortItems(items)

	if dropped > 0 {
		logger.Debug("Dropped malformed events", logging.Fields{
			"dropped": dropped,
			"kept":    len(items),
		})
	}
	return items
}

func (q *Quantizer) wellFormed(ev Event) bool {
	for _, v := range []float64{ev.Start, ev.End} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return ev.Pitch >= 0 && ev.Pitch <= 127
}

// mergeOverlaps joins overlapping events of the same pitch into one sustained item.
// The earliest onset keeps its velocity.
func mergeOverlaps(items []Item) []Item {
	slices.SortFunc(items, func(a, b Item) int {
		return cmp.Or(cmp.Compare(a.Pitch, b.Pitch), cmp.Compare(a.Start, b.Start), cmp.Compare(b.End, a.End))
	})

	out := make([]Item, 0, len(items))
	for _, it := range items {
		if n := len(out); n > 0 && out[n-1].Pitch == it.Pitch && it.Start < out[n-1].End {
			out[n-1].End = max(out[n-1].End, it.End)
			out[n-1].Percussion = out[n-1].Percussion || it.Percussion
			continue
		}
		out = append(out, it)
	}
	return out
}

// assignVoices places items on the lowest free lane, highest pitch first among
// simultaneous onsets, so the top line lands on lane 0
func assignVoices(items []Item) []Item {
	slices.SortFunc(items, func(a, b Item) int {
		return cmp.Or(cmp.Compare(a.Start, b.Start), cmp.Compare(b.Pitch, a.Pitch))
	})

	var laneEnds []int
	for i := range items {
		lane := -1
		for l, end := range laneEnds {
			if end <= items[i].Start {
				lane = l
				break
			}
		}
		if lane < 0 {
			lane = len(laneEnds)
			laneEnds = append(laneEnds, 0)
		}
		laneEnds[lane] = items[i].End
		items[i].Voice = lane
	}
	return items
}

// SortItems orders items by (start, track, channel, voice, pitch)
func SortItems(items []Item) {
	slices.SortFunc(items, func(a, b Item) int {
		return cmp.Or(
			cmp.Compare(a.Start, b.Start),
			a.Lane().Compare(b.Lane()),
			cmp.Compare(a.Pitch, b.Pitch),
		)
	})
}

// Lanes returns the distinct lanes of the items in (track, channel, voice) order
func Lanes(items []Item) []LaneKey {
	seen := make(map[LaneKey]bool)
	var out []LaneKey
	for _, it := range items {
		if k := it.Lane(); !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	slices.SortFunc(out, LaneKey.Compare)
	return out
}

// GroupByLane splits items by lane, keeping each lane in start order
func GroupByLane(items []Item) map[LaneKey][]Item {
	out := make(map[LaneKey][]Item)
	for _, it := range items {
		out[it.Lane()] = append(out[it.Lane()], it)
	}
	for _, lane := range out {
		slices.SortFunc(lane, func(a, b Item) int { return cmp.Compare(a.Start, b.Start) })
	}
	return out
}

// EndStep returns the last end step over all items
func EndStep(items []Item) int {
	end := 0
	for _, it := range items {
		end = max(end, it.End)
	}
	return end
}
