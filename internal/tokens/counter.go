// Package tokens provides token counting for chunk budgeting.
//
// Provider tokenizers are not available locally, so counts are
// estimates. The estimator segments text into words (UAX #29) and
// approximates word-piece splitting for long words; the result is
// deliberately slightly pessimistic so chunks stay under provider
// limits.
package tokens

import (
	"strings"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
)

// Counter estimates the number of model tokens in a text.
type Counter interface {
	Count(text string) int
}

// WordCounter is the default Counter built on UAX #29 word
// segmentation.
type WordCounter struct {
	// RunesPerPiece is the assumed run length of one word-piece token
	// inside a long word. Zero means the default of 4.
	RunesPerPiece int
}

// NewWordCounter returns a WordCounter with default settings.
func NewWordCounter() *WordCounter {
	return &WordCounter{RunesPerPiece: 4}
}

// Count estimates model tokens in text. Whitespace segments are free;
// short words cost one token; longer words cost one token per
// RunesPerPiece runes, rounded up.
func (c *WordCounter) Count(text string) int {
	if text == "" {
		return 0
	}

	perPiece := c.RunesPerPiece
	if perPiece <= 0 {
		perPiece = 4
	}

	total := 0
	segs := words.FromString(text)
	for segs.Next() {
		seg := segs.Value()
		if strings.TrimSpace(seg) == "" {
			continue
		}
		n := utf8.RuneCountInString(seg)
		if n <= perPiece {
			total++
			continue
		}
		total += (n + perPiece - 1) / perPiece
	}
	return total
}

// CountFunc adapts a plain function to the Counter interface.
type CountFunc func(text string) int

// Count implements Counter.
func (f CountFunc) Count(text string) int { return f(text) }
