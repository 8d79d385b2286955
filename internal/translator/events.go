package translator

import "epub-translator/internal/types"

// EventKind identifies a progress event emitted during a run.
type EventKind string

const (
	EventChunkStarted  EventKind = "chunk_started"
	EventAttemptFailed EventKind = "attempt_failed"
	EventFallbackUsed  EventKind = "fallback_used"
	EventChunkDone     EventKind = "chunk_done"
	EventDocumentDone  EventKind = "document_done"
)

// Event is one progress notification. Events are emitted synchronously
// from the translation goroutine; handlers must not block.
type Event struct {
	Kind        EventKind              `json:"kind"`
	RunID       string                 `json:"run_id"`
	ChunkIndex  int                    `json:"chunk_index"`
	TotalChunks int                    `json:"total_chunks"`
	Attempt     int                    `json:"attempt,omitempty"`
	Phase       types.TranslationPhase `json:"phase,omitempty"`
	Detail      string                 `json:"detail,omitempty"`
}

func (e *Engine) emit(ev Event) {
	if e.OnEvent != nil {
		e.OnEvent(ev)
	}
}

// EventChannel adapts OnEvent to a buffered channel. Events are
// dropped when the consumer falls behind, so a slow reader can never
// stall translation.
func EventChannel(buf int) (func(Event), <-chan Event) {
	ch := make(chan Event, buf)
	return func(ev Event) {
		select {
		case ch <- ev:
		default:
		}
	}, ch
}
