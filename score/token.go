package score

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenKind is the kind of one grid step of a melody
type TokenKind uint8

const (
	Silence TokenKind = iota
	Note
	Continuation
)

func (k TokenKind) String() string {
	switch k {
	case Silence:
		return "silence"
	case Note:
		return "note"
	case Continuation:
		return "continuation"
	default:
		return "unknown"
	}
}

// Token occupies exactly one grid step. Value is only meaningful for notes: it is the
// pitch in semitones relative to the chord root placed in octave 4 (60 + root).
type Token struct {
	Kind     TokenKind
	Value    int
	Velocity int
}

// NoteToken returns an onset token
func NoteToken(value, velocity int) Token {
	return Token{Kind: Note, Value: value, Velocity: velocity}
}

// SilenceToken returns a rest token
func SilenceToken() Token {
	return Token{Kind: Silence}
}

// ContinuationToken returns a sustain token
func ContinuationToken() Token {
	return Token{Kind: Continuation}
}

// IsNote reports whether the token is an onset
func (t Token) IsNote() bool { return t.Kind == Note }

// IsSilence reports whether the token is a rest
func (t Token) IsSilence() bool { return t.Kind == Silence }

// IsContinuation reports whether the token sustains the previous note
func (t Token) IsContinuation() bool { return t.Kind == Continuation }

// String renders the compact form: "r" rest, "l" continuation, "n<value>:<velocity>" note
func (t Token) String() string {
	switch t.Kind {
	case Note:
		return "n" + strconv.Itoa(t.Value) + ":" + strconv.Itoa(t.Velocity)
	case Continuation:
		return "l"
	default:
		return "r"
	}
}

// ParseToken parses the compact form produced by String
func ParseToken(s string) (Token, error) {
	switch {
	case s == "r":
		return SilenceToken(), nil
	case s == "l":
		return ContinuationToken(), nil
	case strings.HasPrefix(s, "n"):
		valueStr, velStr, ok := strings.Cut(s[1:], ":")
		if !ok {
			return Token{}, fmt.Errorf("note token %q has no velocity", s)
		}
		value, err := strconv.Atoi(valueStr)
		if err != nil {
			return Token{}, fmt.Errorf("note token %q: %w", s, err)
		}
		vel, err := strconv.Atoi(velStr)
		if err != nil {
			return Token{}, fmt.Errorf("note token %q: %w", s, err)
		}
		return NoteToken(value, vel), nil
	default:
		return Token{}, fmt.Errorf("unknown token %q", s)
	}
}

func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Token) UnmarshalText(text []byte) error {
	parsed, err := ParseToken(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
