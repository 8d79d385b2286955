// Package types defines core data types and enums shared across the
// EPUB translation pipeline.
package types

// TranslationPhase identifies the strategy that produced a chunk's
// final text.
type TranslationPhase string

const (
	// PhaseNormal is the standard placeholder-preserving translation.
	PhaseNormal TranslationPhase = "normal"
	// PhaseTokenAlignment strips placeholders, translates clean text and
	// re-inserts placeholders at proportional positions.
	PhaseTokenAlignment TranslationPhase = "token_alignment"
	// PhaseUntranslated returns the original chunk text unchanged.
	PhaseUntranslated TranslationPhase = "untranslated"
)

// AttemptOutcome classifies a single translation attempt.
type AttemptOutcome string

const (
	OutcomeSuccess             AttemptOutcome = "success"
	OutcomePlaceholderMismatch AttemptOutcome = "placeholder_mismatch"
	OutcomeProviderError       AttemptOutcome = "provider_error"
)

// TranslationAttempt records one attempt at translating a chunk.
// Attempts are numbered per chunk across all phases.
type TranslationAttempt struct {
	Chunk   int              `json:"chunk"`
	Number  int              `json:"number"`
	Outcome AttemptOutcome   `json:"outcome"`
	Phase   TranslationPhase `json:"phase"`
	Detail  string           `json:"detail,omitempty"`
}

// TranslationResult is the output of translating one document body.
type TranslationResult struct {
	OriginalBody   string               `json:"original_body"`
	TranslatedBody string               `json:"translated_body"`
	TokensUsed     int                  `json:"tokens_used"`
	AttemptLog     []TranslationAttempt `json:"attempt_log,omitempty"`
	Metrics        *TranslationMetrics  `json:"metrics"`
}

// TranslationMetrics aggregates per-chunk outcomes for one document
// translation run. It is observational only.
type TranslationMetrics struct {
	RunID              string      `json:"run_id"`
	TotalChunks        int         `json:"total_chunks"`
	FirstTryChunks     int         `json:"first_try_chunks"`
	RetriedChunks      int         `json:"retried_chunks"`
	AlignedChunks      int         `json:"aligned_chunks"`
	UntranslatedChunks int         `json:"untranslated_chunks"`
	SkippedChunks      int         `json:"skipped_chunks"`
	RetryHistogram     map[int]int `json:"retry_histogram"`
	PromptTokens       int         `json:"prompt_tokens"`
	CompletionTokens   int         `json:"completion_tokens"`
	DurationMs         int64       `json:"duration_ms"`
}

// ErrorCode is the coarse error taxonomy used across the pipeline.
type ErrorCode string

const (
	ErrNetwork      ErrorCode = "NETWORK_ERROR"
	ErrAPICall      ErrorCode = "API_CALL_ERROR"
	ErrAPIRateLimit ErrorCode = "API_RATE_LIMIT"
	ErrValidation   ErrorCode = "VALIDATION_ERROR"
	ErrTranslation  ErrorCode = "TRANSLATION_ERROR"
	ErrDocument     ErrorCode = "DOCUMENT_ERROR"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError carries an error code, a human message and an optional
// wrapped cause.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and
// optional cause.
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// NewAppErrorWithDetails creates a new AppError with details.
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Details: details, Cause: cause}
}
