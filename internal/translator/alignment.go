package translator

import (
	"strings"
	"unicode"

	"epub-translator/internal/placeholder"
)

// alignPlaceholders re-inserts source placeholders into a translation
// that was produced from placeholder-stripped text. Each placeholder
// lands at the position proportional to where it sat in the stripped
// source, measured in runes, then snapped forward to the next word
// boundary so no word is cut in half. Relative order is preserved; a
// placeholder is never lost.
func alignPlaceholders(source, translated string, f placeholder.Format) string {
	locs := f.Pattern().FindAllStringIndex(source, -1)
	if len(locs) == 0 {
		return translated
	}

	// Rune position of each placeholder in stripped-source coordinates.
	positions := make([]int, 0, len(locs))
	stripped := 0
	last := 0
	for _, loc := range locs {
		stripped += len([]rune(source[last:loc[0]]))
		positions = append(positions, stripped)
		last = loc[1]
	}
	stripped += len([]rune(source[last:]))

	transRunes := []rune(translated)
	targets := make([]int, len(positions))
	prev := 0
	for i, pos := range positions {
		t := 0
		if stripped > 0 {
			t = pos * len(transRunes) / stripped
		}
		t = snapForward(transRunes, t)
		if t < prev {
			t = prev
		}
		targets[i] = t
		prev = t
	}

	var sb strings.Builder
	cursor := 0
	for i, t := range targets {
		sb.WriteString(string(transRunes[cursor:t]))
		sb.WriteString(f.Token(indexOf(source, locs[i], f)))
		cursor = t
	}
	sb.WriteString(string(transRunes[cursor:]))
	return sb.String()
}

// snapForward moves pos to the next whitespace boundary or the end of
// the text, so insertion never lands mid-word.
func snapForward(runes []rune, pos int) int {
	if pos < 0 {
		return 0
	}
	if pos >= len(runes) {
		return len(runes)
	}
	if pos == 0 || unicode.IsSpace(runes[pos]) || unicode.IsSpace(runes[pos-1]) {
		return pos
	}
	for i := pos; i < len(runes); i++ {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return len(runes)
}

// indexOf parses the placeholder number behind one source match.
func indexOf(source string, loc []int, f placeholder.Format) int {
	ids := placeholder.Indices(source[loc[0]:loc[1]], f)
	if len(ids) != 1 {
		return 0
	}
	return ids[0]
}
