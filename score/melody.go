package score

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrIllegalContinuation is returned when a continuation does not follow a note or continuation
var ErrIllegalContinuation = errors.New("continuation without a preceding note")

// Melody is one token per grid step. Melodies are treated as immutable: every
// operation returns a new slice.
type Melody []Token

// NoteEvent is a collapsed note: an onset plus the number of steps it sounds
type NoteEvent struct {
	Start    int `json:"start"`
	Duration int `json:"duration"`
	Value    int `json:"value"`
	Velocity int `json:"velocity"`
}

// Rest returns a melody of n silences
func Rest(n int) Melody {
	m := make(Melody, max(n, 0))
	for i := range m {
		m[i] = SilenceToken()
	}
	return m
}

// Sustain returns a single note held for n steps
func Sustain(value, n, velocity int) Melody {
	if n <= 0 {
		return Melody{}
	}
	m := make(Melody, n)
	m[0] = NoteToken(value, velocity)
	for i := 1; i < n; i++ {
		m[i] = ContinuationToken()
	}
	return m
}

// Decompose lays note events onto a melody of the given length. A later onset cuts
// the note sounding before it; steps past the length are dropped.
func Decompose(length int, events []NoteEvent) Melody {
	m := Rest(length)
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b NoteEvent) int { return cmp.Compare(a.Start, b.Start) })

	for _, ev := range sorted {
		if ev.Duration <= 0 || ev.Start < 0 || ev.Start >= length {
			continue
		}
		m[ev.Start] = NoteToken(ev.Value, ev.Velocity)
		for i := ev.Start + 1; i < min(ev.Start+ev.Duration, length); i++ {
			m[i] = ContinuationToken()
		}
		// a sustain laid earlier must not run on past this note's end
		for i := ev.Start + ev.Duration; i < length && m[i].IsContinuation(); i++ {
			m[i] = SilenceToken()
		}
	}
	return m
}

// Collapse folds continuations back into their note
func (m Melody) Collapse() []NoteEvent {
	var out []NoteEvent
	for i, t := range m {
		switch t.Kind {
		case Note:
			out = append(out, NoteEvent{Start: i, Duration: 1, Value: t.Value, Velocity: t.Velocity})
		case Continuation:
			if n := len(out); n > 0 && out[n-1].Start+out[n-1].Duration == i {
				out[n-1].Duration++
			}
		}
	}
	return out
}

// Duration is the number of grid steps
func (m Melody) Duration() int {
	return len(m)
}

// Validate checks that every continuation follows a note or another continuation
func (m Melody) Validate() error {
	for i, t := range m {
		if !t.IsContinuation() {
			continue
		}
		if i == 0 || m[i-1].IsSilence() {
			return fmt.Errorf("%w at step %d", ErrIllegalContinuation, i)
		}
	}
	return nil
}

// OnsetAt returns the note sounding at step i, following continuations back to their onset
func (m Melody) OnsetAt(i int) (Token, bool) {
	for j := i; j >= 0 && j < len(m); j-- {
		switch m[j].Kind {
		case Note:
			return m[j], true
		case Silence:
			return Token{}, false
		}
	}
	return Token{}, false
}

// Slice returns steps [start, end). A sustain cut at the start becomes a fresh onset.
func (m Melody) Slice(start, end int) Melody {
	start = max(start, 0)
	end = min(end, len(m))
	if start >= end {
		return Melody{}
	}
	out := slices.Clone(m[start:end])
	if out[0].IsContinuation() {
		if onset, ok := m.OnsetAt(start); ok {
			out[0] = onset
		} else {
			out[0] = SilenceToken()
		}
	}
	return out
}

// Concat appends melodies
func Concat(melodies ...Melody) Melody {
	var out Melody
	for _, m := range melodies {
		out = append(out, m...)
	}
	if out == nil {
		out = Melody{}
	}
	return out
}

// Transpose shifts every note by the given number of semitones
func (m Melody) Transpose(semitones int) Melody {
	out := slices.Clone(m)
	for i := range out {
		if out[i].IsNote() {
			out[i].Value += semitones
		}
	}
	return out
}

// WithVelocity sets the velocity of every note
func (m Melody) WithVelocity(velocity int) Melody {
	out := slices.Clone(m)
	for i := range out {
		if out[i].IsNote() {
			out[i].Velocity = velocity
		}
	}
	return out
}

// IsSilent reports whether the melody has no notes
func (m Melody) IsSilent() bool {
	return !slices.ContainsFunc(m, Token.IsNote)
}

// MeanValue returns the average note value weighted by sounding steps
func (m Melody) MeanValue() (float64, bool) {
	total, steps := 0, 0
	for _, ev := range m.Collapse() {
		total += ev.Value * ev.Duration
		steps += ev.Duration
	}
	if steps == 0 {
		return 0, false
	}
	return float64(total) / float64(steps), true
}

func (m Melody) String() string {
	parts := make([]string, len(m))
	for i, t := range m {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}
