package translator

import (
	"time"

	"epub-translator/internal/types"
)

// collector accumulates per-chunk outcomes into TranslationMetrics and
// the per-attempt log.
type collector struct {
	start    time.Time
	metrics  *types.TranslationMetrics
	attempts []types.TranslationAttempt
}

func newCollector(runID string) *collector {
	return &collector{
		start: time.Now(),
		metrics: &types.TranslationMetrics{
			RunID:          runID,
			RetryHistogram: make(map[int]int),
		},
	}
}

// recordAttempt appends one attempt record for a chunk.
func (c *collector) recordAttempt(chunk, number int, outcome types.AttemptOutcome,
	phase types.TranslationPhase, detail string) {
	c.attempts = append(c.attempts, types.TranslationAttempt{
		Chunk:   chunk,
		Number:  number,
		Outcome: outcome,
		Phase:   phase,
		Detail:  detail,
	})
}

func (c *collector) attemptLog() []types.TranslationAttempt { return c.attempts }

func (c *collector) addUsage(prompt, completion int) {
	c.metrics.PromptTokens += prompt
	c.metrics.CompletionTokens += completion
}

func (c *collector) chunkSkipped() {
	c.metrics.TotalChunks++
	c.metrics.SkippedChunks++
}

// chunkDone records a finished chunk: which phase produced its text and
// how many model attempts were spent on it.
func (c *collector) chunkDone(phase types.TranslationPhase, attempts int) {
	c.metrics.TotalChunks++
	c.metrics.RetryHistogram[attempts]++
	switch phase {
	case types.PhaseNormal:
		if attempts <= 1 {
			c.metrics.FirstTryChunks++
		} else {
			c.metrics.RetriedChunks++
		}
	case types.PhaseTokenAlignment:
		c.metrics.AlignedChunks++
	case types.PhaseUntranslated:
		c.metrics.UntranslatedChunks++
	}
}

func (c *collector) finalize() *types.TranslationMetrics {
	c.metrics.DurationMs = time.Since(c.start).Milliseconds()
	return c.metrics
}
