package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordCounterBasics(t *testing.T) {
	c := NewWordCounter()

	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 0, c.Count("   \n\t"))
	assert.Equal(t, 2, c.Count("two word"))
	assert.Equal(t, 2, c.Count("two    word"))
}

func TestWordCounterLongWords(t *testing.T) {
	c := NewWordCounter()

	// 12 runes at 4 runes per piece is 3 tokens.
	assert.Equal(t, 3, c.Count(strings.Repeat("a", 12)))
	// 13 runes rounds up to 4.
	assert.Equal(t, 4, c.Count(strings.Repeat("a", 13)))
}

func TestWordCounterMonotonicOnPrefixes(t *testing.T) {
	c := NewWordCounter()
	text := "The quick brown fox jumps over the lazy dog, repeatedly."
	prev := 0
	for i := 0; i <= len(text); i++ {
		n := c.Count(text[:i])
		assert.GreaterOrEqual(t, n, prev, "prefix length %d", i)
		prev = n
	}
}

func TestCountFunc(t *testing.T) {
	c := CountFunc(func(s string) int { return len(s) })
	assert.Equal(t, 5, c.Count("hello"))
}
