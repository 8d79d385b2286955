// Package placeholder implements the markup/placeholder codec used to
// shield HTML tags from the language model, the index rewriting shared
// by the chunk splitter and the orchestrator, and the validation of
// translated placeholder sets.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"epub-translator/internal/logger"
	"epub-translator/internal/types"
)

// Format is one candidate placeholder shape: prefix + integer + suffix.
type Format struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

// Token renders the placeholder for index i.
func (f Format) Token(i int) string {
	return f.Prefix + strconv.Itoa(i) + f.Suffix
}

// Pattern returns a regexp matching this format's placeholders with
// the integer index captured in group 1.
func (f Format) Pattern() *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(f.Prefix) + `(\d+)` + regexp.QuoteMeta(f.Suffix))
}

// DefaultFormats is the ordered list of candidate formats probed
// against the input. The first format that cannot be confused with
// literal text already present in the document wins.
var DefaultFormats = []Format{
	{Prefix: "[[", Suffix: "]]"},
	{Prefix: "[", Suffix: "]"},
	{Prefix: "[id", Suffix: "]"},
	{Prefix: "$", Suffix: "$"},
	{Prefix: "/", Suffix: ""},
}

// TagMap records, in document order, the original markup fragment each
// placeholder index stands for. It is immutable after Encode.
type TagMap struct {
	format    Format
	fragments []string
}

// Len returns the number of placeholders in the map.
func (m *TagMap) Len() int { return len(m.fragments) }

// Format returns the placeholder format selected for this document.
func (m *TagMap) Format() Format { return m.format }

// Fragment returns the original markup fragment for index i.
func (m *TagMap) Fragment(i int) (string, bool) {
	if i < 0 || i >= len(m.fragments) {
		return "", false
	}
	return m.fragments[i], true
}

// Fragments returns a copy of all fragments in document order.
func (m *TagMap) Fragments() []string {
	out := make([]string, len(m.fragments))
	copy(out, m.fragments)
	return out
}

// Slice builds a TagMap for a subset of this map's indices, in the
// given order. Used by the chunk splitter for chunk-local maps.
func (m *TagMap) Slice(indices []int) (*TagMap, error) {
	sub := &TagMap{format: m.format, fragments: make([]string, 0, len(indices))}
	for _, gi := range indices {
		frag, ok := m.Fragment(gi)
		if !ok {
			return nil, types.NewAppErrorWithDetails(types.ErrInternal,
				"tag map slice out of range", fmt.Sprintf("index %d of %d", gi, m.Len()), nil)
		}
		sub.fragments = append(sub.fragments, frag)
	}
	return sub, nil
}

// tagPattern matches the markup fragments that get replaced by
// placeholders: opening/closing/self-closing tags and comments.
// Entity references are handled separately because treating them as
// structure is optional.
var (
	tagPattern    = regexp.MustCompile(`(?s)<!--.*?-->|<[^<>]+>`)
	entityPattern = regexp.MustCompile(`&#?[a-zA-Z0-9]+;`)
)

// Options controls Encode behavior.
type Options struct {
	// Formats is the ordered candidate list; nil means DefaultFormats.
	Formats []Format
	// ProtectEntities also replaces character entity references.
	ProtectEntities bool
}

// Encode replaces every markup fragment in markup with a numbered
// placeholder and returns the plain text plus the TagMap needed to
// invert the operation. Placeholder integers are dense, start at 0 and
// follow document order.
func Encode(markup string, opts Options) (string, *TagMap) {
	formats := opts.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}

	pattern := tagPattern
	if opts.ProtectEntities {
		pattern = regexp.MustCompile(tagPattern.String() + `|` + entityPattern.String())
	}

	locs := pattern.FindAllStringIndex(markup, -1)

	// Probe for a collision-free format against the text that will
	// remain after the fragments are removed.
	remainder := pattern.ReplaceAllString(markup, "")
	format := selectFormat(formats, remainder)

	m := &TagMap{format: format, fragments: make([]string, 0, len(locs))}
	var sb strings.Builder
	sb.Grow(len(markup))
	last := 0
	for i, loc := range locs {
		sb.WriteString(markup[last:loc[0]])
		sb.WriteString(format.Token(i))
		m.fragments = append(m.fragments, markup[loc[0]:loc[1]])
		last = loc[1]
	}
	sb.WriteString(markup[last:])

	logger.Debug("encoded markup",
		logger.Int("fragments", m.Len()),
		logger.String("format", format.Token(0)))

	return sb.String(), m
}

// CountFragments counts the markup fragments Encode would replace.
// Used for the tag-count conservation check after reconstruction.
func CountFragments(markup string, protectEntities bool) int {
	n := len(tagPattern.FindAllStringIndex(markup, -1))
	if protectEntities {
		n += len(entityPattern.FindAllStringIndex(tagPattern.ReplaceAllString(markup, ""), -1))
	}
	return n
}

// selectFormat returns the first candidate whose placeholder shape
// cannot collide with text already present in remainder.
func selectFormat(candidates []Format, remainder string) Format {
	for _, f := range candidates {
		if !f.Pattern().MatchString(remainder) {
			return f
		}
	}
	// Every candidate collides; the first one is still safe enough
	// because Decode replaces full-token matches only.
	logger.Warn("no collision-free placeholder format, using first candidate")
	return candidates[0]
}

// Decode replaces each placeholder in text with its original markup
// fragment. Substitution is a single atomic pass keyed by full token
// match, so [[1]] can never corrupt [[10]] or [[11]].
func Decode(text string, m *TagMap) string {
	if m == nil || m.Len() == 0 {
		return text
	}
	pat := m.format.Pattern()
	return pat.ReplaceAllStringFunc(text, func(tok string) string {
		idx, err := parseIndex(tok, m.format)
		if err != nil {
			return tok
		}
		frag, ok := m.Fragment(idx)
		if !ok {
			// Unknown index: leave the token visible rather than drop it.
			return tok
		}
		return frag
	})
}

// Indices returns the placeholder indices found in text, in first
// appearance order, including duplicates.
func Indices(text string, f Format) []int {
	matches := f.Pattern().FindAllStringSubmatch(text, -1)
	out := make([]int, 0, len(matches))
	for _, sm := range matches {
		n, err := strconv.Atoi(sm[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Strip removes every placeholder from text. Used by the
// token-alignment fallback, which translates clean text.
func Strip(text string, f Format) string {
	return f.Pattern().ReplaceAllString(text, "")
}

// Rewrite renumbers the placeholders of text according to mapping
// (old index → new index). It uses the two-pass temporary-marker
// strategy: a direct rewrite of 5→0 could corrupt an existing 0
// elsewhere in the same text, so every token is first replaced by a
// unique marker and only then by its final number. Tokens whose index
// is not in mapping are left unchanged.
func Rewrite(text string, f Format, mapping map[int]int) string {
	if len(mapping) == 0 {
		return text
	}

	const markerPrefix = "\x00\x00ph:"
	const markerSuffix = "\x00\x00"

	pat := f.Pattern()
	pass1 := pat.ReplaceAllStringFunc(text, func(tok string) string {
		old, err := parseIndex(tok, f)
		if err != nil {
			return tok
		}
		if _, ok := mapping[old]; !ok {
			return tok
		}
		return markerPrefix + strconv.Itoa(old) + markerSuffix
	})

	markerPat := regexp.MustCompile(regexp.QuoteMeta(markerPrefix) + `(\d+)` + regexp.QuoteMeta(markerSuffix))
	return markerPat.ReplaceAllStringFunc(pass1, func(marker string) string {
		sm := markerPat.FindStringSubmatch(marker)
		old, _ := strconv.Atoi(sm[1])
		return f.Token(mapping[old])
	})
}

func parseIndex(token string, f Format) (int, error) {
	body := strings.TrimPrefix(token, f.Prefix)
	if f.Suffix != "" {
		body = strings.TrimSuffix(body, f.Suffix)
	}
	return strconv.Atoi(body)
}
