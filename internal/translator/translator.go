// Package translator drives the document translation pipeline:
// placeholder encoding, chunking, the per-chunk retry/fallback state
// machine, and reconstruction.
package translator

import (
	"context"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"epub-translator/internal/chunker"
	"epub-translator/internal/config"
	"epub-translator/internal/contextwin"
	"epub-translator/internal/document"
	"epub-translator/internal/logger"
	"epub-translator/internal/model"
	"epub-translator/internal/placeholder"
	"epub-translator/internal/tokens"
	"epub-translator/internal/types"
)

// providerAttempts bounds the transport-level retries inside one
// translation attempt. Placeholder-driven retries are governed
// separately by Config.MaxRetries.
const providerAttempts = 3

// Engine translates document bodies through a model provider. One
// Engine handles one document at a time; the capability cache it holds
// may be shared across engines.
type Engine struct {
	provider model.Provider
	cfg      *config.Config
	counter  tokens.Counter
	caps     *contextwin.CapabilityCache

	// OnEvent, when set, receives progress events synchronously.
	OnEvent func(Event)
}

// NewEngine creates a translation engine. caps may be nil, in which
// case every run assumes a standard (non-thinking) model.
func NewEngine(provider model.Provider, cfg *config.Config, caps *contextwin.CapabilityCache) *Engine {
	return &Engine{
		provider: provider,
		cfg:      cfg,
		counter:  tokens.NewWordCounter(),
		caps:     caps,
	}
}

// TranslateDocument translates a full XHTML document and returns the
// re-rendered markup together with the run result.
func (e *Engine) TranslateDocument(ctx context.Context, markup string) (string, *types.TranslationResult, error) {
	doc, err := document.Parse(markup)
	if err != nil {
		return "", nil, err
	}
	body, err := doc.ExtractBody()
	if err != nil {
		return "", nil, err
	}
	res, err := e.TranslateBody(ctx, body)
	if err != nil {
		return "", nil, err
	}
	if err := doc.ReplaceBody(res.TranslatedBody); err != nil {
		return "", nil, err
	}
	out, err := doc.Render()
	if err != nil {
		return "", nil, err
	}
	return out, res, nil
}

// TranslateBody translates one body fragment. Chunks are processed
// strictly in order. Cancellation is polled between chunks, never
// mid-request; once cancelled, the remaining chunks pass through
// untranslated so the partial output stays structurally valid.
// Corruption detected during reconstruction falls back to the original
// body rather than emitting broken markup.
func (e *Engine) TranslateBody(ctx context.Context, body string) (*types.TranslationResult, error) {
	runID := uuid.NewString()
	col := newCollector(runID)

	text, tags := placeholder.Encode(body, placeholder.Options{
		Formats:         e.cfg.PlaceholderFormats,
		ProtectEntities: e.cfg.ProtectEntities,
	})
	format := tags.Format()

	thinking := false
	if e.caps != nil {
		th, err := e.caps.ResolveThinking(ctx, e.provider)
		if err != nil {
			logger.Warn("thinking detection failed, assuming standard model", logger.Err(err))
		} else {
			thinking = th
		}
	}
	mgr := contextwin.NewManager(e.cfg.InitialWindow, e.cfg.MaxWindow, thinking)

	splitter := chunker.NewSplitter(e.counter, e.cfg.MaxChunkTokens, e.cfg.SoftLimitRatio)
	chunks, err := splitter.Split(text, tags)
	if err != nil {
		return nil, err
	}

	logger.Info("translation run started",
		logger.String("run_id", runID),
		logger.String("provider", e.provider.Name()),
		logger.Int("chunks", len(chunks)),
		logger.Int("placeholders", tags.Len()),
		logger.Int("window", mgr.WindowSize()))

	parts := make([]string, 0, len(chunks))
	prevContext := ""
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			// Cancelled between chunks: the rest passes through
			// untranslated so the output stays structurally valid.
			logger.Warn("translation cancelled, remaining chunks pass through untranslated",
				logger.String("run_id", runID),
				logger.Int("remaining", len(chunks)-i))
			for j, rest := range chunks[i:] {
				parts = append(parts, rest.ToGlobal(rest.Text))
				col.chunkDone(types.PhaseUntranslated, 0)
				e.emit(Event{Kind: EventFallbackUsed, RunID: runID, ChunkIndex: i + j,
					TotalChunks: len(chunks), Phase: types.PhaseUntranslated, Detail: "cancelled"})
			}
			break
		}
		e.emit(Event{Kind: EventChunkStarted, RunID: runID, ChunkIndex: i, TotalChunks: len(chunks)})

		if chunk.IsBlank() || strings.TrimSpace(placeholder.Strip(chunk.Text, format)) == "" {
			// Nothing translatable; markup-only chunks pass through.
			parts = append(parts, chunk.ToGlobal(chunk.Text))
			col.chunkSkipped()
			e.emit(Event{Kind: EventChunkDone, RunID: runID, ChunkIndex: i, TotalChunks: len(chunks)})
			continue
		}

		local, phase := e.translateChunk(ctx, chunk, mgr, prevContext, runID, i, len(chunks), col)
		parts = append(parts, chunk.ToGlobal(local))
		prevContext = tailRunes(placeholder.Strip(local, format), e.cfg.TrailingContextRunes)

		e.emit(Event{Kind: EventChunkDone, RunID: runID, ChunkIndex: i, TotalChunks: len(chunks), Phase: phase})
	}

	translated := placeholder.Decode(strings.Join(parts, ""), tags)
	if reason := e.checkReconstruction(translated, tags); reason != "" {
		logger.Error("reconstruction failed, keeping original body", nil,
			logger.String("run_id", runID),
			logger.String("reason", reason))
		translated = body
	}

	metrics := col.finalize()
	result := &types.TranslationResult{
		OriginalBody:   body,
		TranslatedBody: translated,
		TokensUsed:     metrics.PromptTokens + metrics.CompletionTokens,
		AttemptLog:     col.attemptLog(),
		Metrics:        metrics,
	}

	e.emit(Event{Kind: EventDocumentDone, RunID: runID, TotalChunks: len(chunks)})
	logger.Info("translation run finished",
		logger.String("run_id", runID),
		logger.Int("chunks", metrics.TotalChunks),
		logger.Int("untranslated", metrics.UntranslatedChunks),
		logger.Int64("duration_ms", metrics.DurationMs))
	return result, nil
}

// checkReconstruction verifies the decoded body still parses and that
// the markup fragment count is conserved. Returns an empty string when
// the body is sound.
func (e *Engine) checkReconstruction(decoded string, tags *placeholder.TagMap) string {
	if err := document.CheckFragment(decoded); err != nil {
		return err.Error()
	}
	if got := placeholder.CountFragments(decoded, e.cfg.ProtectEntities); got != tags.Len() {
		return "markup fragment count changed"
	}
	return ""
}

// translateChunk runs the three-phase state machine for one chunk and
// returns the chunk-local translated text. It never fails outright:
// every model failure degrades through the fallbacks, and cancellation
// mid-chunk degrades to the untranslated phase.
func (e *Engine) translateChunk(ctx context.Context, chunk *chunker.Chunk, mgr *contextwin.Manager,
	prevContext, runID string, idx, total int, col *collector) (string, types.TranslationPhase) {

	format := chunk.LocalTags.Format()
	system := buildSystemPrompt(e.cfg.SourceLang, e.cfg.TargetLang, format)

	// Phase 1: normal placeholder-preserving attempts.
	guidance := ""
	attempts := 0
	for attempt := 1; attempt <= e.cfg.MaxRetries && ctx.Err() == nil; attempt++ {
		attempts = attempt

		resp, err := e.generate(ctx, system, buildUserPrompt(chunk.Text, prevContext, guidance), mgr)
		if err != nil {
			mgr.RecordFailure(model.KindOf(err))
			col.recordAttempt(idx, attempt, types.OutcomeProviderError, types.PhaseNormal, err.Error())
			logger.Warn("chunk attempt failed",
				logger.String("run_id", runID),
				logger.Int("chunk", idx),
				logger.Int("attempt", attempt),
				logger.Err(err))
			e.emit(Event{Kind: EventAttemptFailed, RunID: runID, ChunkIndex: idx, TotalChunks: total,
				Attempt: attempt, Phase: types.PhaseNormal, Detail: err.Error()})
			continue
		}

		col.addUsage(resp.PromptTokens, resp.CompletionTokens)
		mgr.RecordOutcome(resp.PromptTokens, resp.CompletionTokens, resp.ContextLimit, resp.Truncated)

		candidate := strings.TrimSpace(resp.Text)
		if placeholder.Validate(candidate, chunk.LocalTags, e.cfg.StrictValidation) {
			col.recordAttempt(idx, attempt, types.OutcomeSuccess, types.PhaseNormal, "")
			col.chunkDone(types.PhaseNormal, attempt)
			return candidate, types.PhaseNormal
		}

		report := placeholder.Diagnose(candidate, chunk.LocalTags.Len(), format)
		guidance = report.Summary()
		col.recordAttempt(idx, attempt, types.OutcomePlaceholderMismatch, types.PhaseNormal, guidance)
		logger.Debug("placeholder validation failed",
			logger.String("run_id", runID),
			logger.Int("chunk", idx),
			logger.Int("attempt", attempt),
			logger.String("report", guidance))
		e.emit(Event{Kind: EventAttemptFailed, RunID: runID, ChunkIndex: idx, TotalChunks: total,
			Attempt: attempt, Phase: types.PhaseNormal, Detail: guidance})
	}

	// Phase 2: translate stripped text, re-insert placeholders by
	// proportional position.
	if e.cfg.EnableAlignmentFallback && chunk.LocalTags.Len() > 0 && ctx.Err() == nil {
		attempts++
		if aligned, ok := e.alignFallback(ctx, chunk, mgr, prevContext, idx, attempts, col); ok {
			e.emit(Event{Kind: EventFallbackUsed, RunID: runID, ChunkIndex: idx, TotalChunks: total,
				Phase: types.PhaseTokenAlignment})
			col.chunkDone(types.PhaseTokenAlignment, attempts)
			return aligned, types.PhaseTokenAlignment
		}
	}

	// Phase 3: keep the original text rather than lose content.
	logger.Warn("chunk left untranslated",
		logger.String("run_id", runID),
		logger.Int("chunk", idx))
	e.emit(Event{Kind: EventFallbackUsed, RunID: runID, ChunkIndex: idx, TotalChunks: total,
		Phase: types.PhaseUntranslated})
	col.chunkDone(types.PhaseUntranslated, attempts)
	return chunk.Text, types.PhaseUntranslated
}

// alignFallback translates the chunk with placeholders stripped and
// re-inserts them afterwards.
func (e *Engine) alignFallback(ctx context.Context, chunk *chunker.Chunk, mgr *contextwin.Manager,
	prevContext string, idx, number int, col *collector) (string, bool) {

	format := chunk.LocalTags.Format()
	stripped := placeholder.Strip(chunk.Text, format)

	resp, err := e.generate(ctx,
		buildPlainSystemPrompt(e.cfg.SourceLang, e.cfg.TargetLang),
		buildUserPrompt(stripped, prevContext, ""), mgr)
	if err != nil {
		mgr.RecordFailure(model.KindOf(err))
		col.recordAttempt(idx, number, types.OutcomeProviderError, types.PhaseTokenAlignment, err.Error())
		return "", false
	}
	col.addUsage(resp.PromptTokens, resp.CompletionTokens)
	mgr.RecordOutcome(resp.PromptTokens, resp.CompletionTokens, resp.ContextLimit, resp.Truncated)

	aligned := alignPlaceholders(chunk.Text, strings.TrimSpace(resp.Text), format)
	if !placeholder.Validate(aligned, chunk.LocalTags, false) {
		col.recordAttempt(idx, number, types.OutcomePlaceholderMismatch, types.PhaseTokenAlignment,
			"placeholders could not be re-inserted")
		return "", false
	}
	col.recordAttempt(idx, number, types.OutcomeSuccess, types.PhaseTokenAlignment, "")
	return aligned, true
}

// generate performs one model call, retrying transport-level failures
// with backoff. Context overflow and repetition loops are not retried
// here: they need a bigger window, which the caller arranges.
func (e *Engine) generate(ctx context.Context, system, user string, mgr *contextwin.Manager) (*model.Response, error) {
	req := model.Request{
		SystemPrompt:  system,
		UserPrompt:    user,
		ContextWindow: mgr.WindowSize(),
	}
	return retry.DoWithData(
		func() (*model.Response, error) {
			return e.provider.Generate(ctx, req)
		},
		retry.Context(ctx),
		retry.Attempts(providerAttempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			switch model.KindOf(err) {
			case model.KindContextOverflow, model.KindRepetitionLoop:
				return false
			}
			return true
		}),
	)
}

// tailRunes returns the last n runes of text.
func tailRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[len(r)-n:])
}
