package tokenizer

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// Granularity selects the unit of comparison.
type Granularity int

const (
	// Word splits on runs of whitespace.
	Word Granularity = iota
	// Char yields one token per Unicode code point, whitespace included.
	Char
	// Grapheme yields one token per user-perceived character (extended
	// grapheme cluster), so a base letter and its combining marks count once.
	Grapheme
)

// String returns the name used in configuration and API payloads.
func (g Granularity) String() string {
	switch g {
	case Word:
		return "word"
	case Char:
		return "char"
	case Grapheme:
		return "grapheme"
	default:
		return fmt.Sprintf("granularity(%d)", int(g))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (g Granularity) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Granularity) UnmarshalText(text []byte) error {
	parsed, err := ParseGranularity(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// ParseGranularity parses "word", "char" or "grapheme". An empty string
// means Word.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "word", "words":
		return Word, nil
	case "char", "chars", "character", "characters":
		return Char, nil
	case "grapheme", "graphemes":
		return Grapheme, nil
	default:
		return Word, fmt.Errorf("unknown granularity %q", s)
	}
}

// Sequence is an ordered list of tokens derived from one text.
type Sequence []string

// Tokenize splits text into tokens at the requested granularity. No case
// folding or punctuation handling happens here.
func Tokenize(text string, g Granularity) Sequence {
	switch g {
	case Char:
		seq := make(Sequence, 0, len(text))
		for _, r := range text {
			seq = append(seq, string(r))
		}
		return seq
	case Grapheme:
		seq := make(Sequence, 0, len(text))
		gr := uniseg.NewGraphemes(text)
		for gr.Next() {
			seq = append(seq, gr.Str())
		}
		return seq
	default:
		fields := strings.Fields(text)
		if len(fields) == 0 {
			return Sequence{}
		}
		return Sequence(fields)
	}
}
