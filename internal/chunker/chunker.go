// Package chunker splits placeholder-bearing text into token-bounded
// chunks and maintains the local/global placeholder index mapping for
// each chunk.
//
// Splitting is lossless: concatenating every chunk's text, with local
// placeholders rewritten back to their global numbers, reproduces the
// input exactly, whitespace included.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"epub-translator/internal/logger"
	"epub-translator/internal/placeholder"
	"epub-translator/internal/tokens"
	"epub-translator/internal/types"
)

// Chunk is one token-bounded slice of the document text. Text carries
// placeholders renumbered to a chunk-local 0-based sequence;
// GlobalIndices[i] is the document-global integer behind local index i.
type Chunk struct {
	Text          string
	LocalTags     *placeholder.TagMap
	GlobalIndices []int
}

// IsBlank reports whether the chunk holds no translatable content and
// should bypass the model entirely.
func (c *Chunk) IsBlank() bool {
	return strings.TrimSpace(placeholder.Strip(c.Text, c.LocalTags.Format())) == "" &&
		len(c.GlobalIndices) == 0
}

// ToGlobal rewrites a text carrying this chunk's local placeholder
// numbers back to the document-global numbering.
func (c *Chunk) ToGlobal(text string) string {
	if len(c.GlobalIndices) == 0 {
		return text
	}
	mapping := make(map[int]int, len(c.GlobalIndices))
	for local, global := range c.GlobalIndices {
		mapping[local] = global
	}
	return placeholder.Rewrite(text, c.LocalTags.Format(), mapping)
}

// Splitter produces chunks under a token budget.
type Splitter struct {
	counter   tokens.Counter
	maxTokens int
	softRatio float64
}

// NewSplitter creates a Splitter. softRatio in (0,1] is the fraction
// of maxTokens at which accumulation stops seeking more paragraphs;
// zero means 0.8.
func NewSplitter(counter tokens.Counter, maxTokens int, softRatio float64) *Splitter {
	if counter == nil {
		counter = tokens.NewWordCounter()
	}
	if softRatio <= 0 || softRatio > 1 {
		softRatio = 0.8
	}
	return &Splitter{counter: counter, maxTokens: maxTokens, softRatio: softRatio}
}

// Split cuts text into ordered chunks under the token budget and
// renumbers each chunk's placeholders to a local 0-based sequence.
func (s *Splitter) Split(text string, tags *placeholder.TagMap) ([]*Chunk, error) {
	segments := s.accumulate(splitParagraphs(text), tags.Format())

	chunks := make([]*Chunk, 0, len(segments))
	next := 0 // next expected global index, for the bijection check
	for _, seg := range segments {
		chunk, err := s.localize(seg, tags)
		if err != nil {
			return nil, err
		}
		for _, gi := range chunk.GlobalIndices {
			if gi != next {
				return nil, types.NewAppErrorWithDetails(types.ErrInternal,
					"placeholder indices out of sequence",
					fmt.Sprintf("expected global %d, found %d", next, gi), nil)
			}
			next++
		}
		chunks = append(chunks, chunk)
	}
	if next != tags.Len() {
		return nil, types.NewAppErrorWithDetails(types.ErrInternal,
			"placeholder coverage incomplete",
			fmt.Sprintf("chunks cover %d of %d placeholders", next, tags.Len()), nil)
	}

	logger.Debug("split text into chunks",
		logger.Int("chunks", len(chunks)),
		logger.Int("placeholders", tags.Len()))
	return chunks, nil
}

// localize renumbers one segment's placeholders to 0..k-1 in first
// appearance order and records the displaced global integers.
func (s *Splitter) localize(segment string, tags *placeholder.TagMap) (*Chunk, error) {
	format := tags.Format()
	var globals []int
	mapping := make(map[int]int)
	for _, gi := range placeholder.Indices(segment, format) {
		if _, ok := mapping[gi]; ok {
			continue
		}
		mapping[gi] = len(globals)
		globals = append(globals, gi)
	}

	local, err := tags.Slice(globals)
	if err != nil {
		return nil, err
	}
	return &Chunk{
		Text:          placeholder.Rewrite(segment, format, mapping),
		LocalTags:     local,
		GlobalIndices: globals,
	}, nil
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// splitParagraphs cuts text after each blank-line separator. The
// separator stays attached to the preceding piece so concatenation is
// exact.
func splitParagraphs(text string) []string {
	locs := paragraphBreak.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}
	var pieces []string
	last := 0
	for _, loc := range locs {
		pieces = append(pieces, text[last:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		pieces = append(pieces, text[last:])
	}
	return pieces
}

// accumulate packs paragraph pieces into segments up to the soft
// limit, breaking oversized pieces down through the fallback stages.
func (s *Splitter) accumulate(pieces []string, format placeholder.Format) []string {
	soft := int(float64(s.maxTokens) * s.softRatio)
	if soft < 1 {
		soft = 1
	}

	var segments []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
			currentTokens = 0
		}
	}

	for _, piece := range pieces {
		n := s.counter.Count(piece)
		if n > s.maxTokens {
			flush()
			segments = append(segments, s.splitAtStage(piece, 0, format)...)
			continue
		}
		if currentTokens+n > soft && current.Len() > 0 {
			flush()
		}
		current.WriteString(piece)
		currentTokens += n
	}
	flush()
	return segments
}

// Fallback boundary stages for a piece that alone exceeds the budget.
// Each stage is only engaged when the previous one still overflows.
var fallbackStages = []*regexp.Regexp{
	regexp.MustCompile(`[.!?。！？]["')\]]?\s`), // sentence boundary
	regexp.MustCompile(`[,;:，；：]\s?`),         // punctuation
	regexp.MustCompile(`\n`),                 // newline
}

func (s *Splitter) splitAtStage(piece string, stage int, format placeholder.Format) []string {
	if s.counter.Count(piece) <= s.maxTokens {
		return []string{piece}
	}
	if stage >= len(fallbackStages) {
		return s.forceSplit(piece, format)
	}

	locs := fallbackStages[stage].FindAllStringIndex(piece, -1)
	if len(locs) == 0 {
		return s.splitAtStage(piece, stage+1, format)
	}

	// Greedily pack boundary-delimited parts, recursing one stage down
	// for any part that still overflows.
	var parts []string
	last := 0
	for _, loc := range locs {
		parts = append(parts, piece[last:loc[1]])
		last = loc[1]
	}
	if last < len(piece) {
		parts = append(parts, piece[last:])
	}

	var segments []string
	var current strings.Builder
	currentTokens := 0
	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
			currentTokens = 0
		}
	}
	for _, part := range parts {
		n := s.counter.Count(part)
		if n > s.maxTokens {
			flush()
			segments = append(segments, s.splitAtStage(part, stage+1, format)...)
			continue
		}
		if currentTokens+n > s.maxTokens && current.Len() > 0 {
			flush()
		}
		current.WriteString(part)
		currentTokens += n
	}
	flush()
	return segments
}

// forceSplit is the last resort: binary-search the longest prefix
// under the budget, snap the cut to the nearest word boundary, repeat
// on the remainder. A cut is never allowed to land inside a
// placeholder token.
func (s *Splitter) forceSplit(piece string, format placeholder.Format) []string {
	var segments []string
	remaining := piece
	for s.counter.Count(remaining) > s.maxTokens {
		cut := s.searchCut(remaining)
		cut = snapToWordBoundary(remaining, cut)
		cut = avoidTokenSplit(remaining, cut, format)
		if cut <= 0 || cut >= len(remaining) {
			// Cannot make progress; emit as-is rather than loop.
			logger.Warn("forced split could not find a cut point",
				logger.Int("length", len(remaining)))
			break
		}
		segments = append(segments, remaining[:cut])
		remaining = remaining[cut:]
	}
	if remaining != "" {
		segments = append(segments, remaining)
	}
	return segments
}

// searchCut binary-searches the byte length of the longest prefix
// whose token count stays within the budget.
func (s *Splitter) searchCut(text string) int {
	lo, hi := 1, len(text)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if s.counter.Count(text[:mid]) <= s.maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// snapToWordBoundary moves pos back to the nearest preceding space so
// a forced cut never lands mid-word. The cut is never moved forward:
// an unbroken prefix with no space in it is cut at the budgeted
// position, rounded back onto a rune boundary.
func snapToWordBoundary(text string, pos int) int {
	if pos >= len(text) {
		return pos
	}
	pos = snapToRuneBoundary(text, pos)
	if idx := strings.LastIndexAny(text[:pos], " \t\n"); idx > 0 {
		return idx + 1
	}
	return pos
}

// snapToRuneBoundary moves a byte position back onto a UTF-8 rune
// start so a cut never splits a multi-byte character.
func snapToRuneBoundary(text string, pos int) int {
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

// avoidTokenSplit moves a cut that falls inside a placeholder token to
// the token's start.
func avoidTokenSplit(text string, pos int, format placeholder.Format) int {
	if pos <= 0 || pos >= len(text) {
		return pos
	}
	for _, loc := range format.Pattern().FindAllStringIndex(text, -1) {
		if pos > loc[0] && pos < loc[1] {
			return loc[0]
		}
		if loc[0] >= pos {
			break
		}
	}
	return pos
}
