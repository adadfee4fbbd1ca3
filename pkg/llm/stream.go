package llm

// StreamEventType tags the canonical streaming event variants.
type StreamEventType string

const (
	// EventChunk carries one unit of generated text.
	EventChunk StreamEventType = "chunk"

	// EventDone terminates a stream that completed cleanly.
	EventDone StreamEventType = "done"

	// EventError terminates a stream that failed.
	EventError StreamEventType = "error"
)

// StreamEvent is the canonical streaming event all provider wire formats are
// normalized into. Chunks are delivered in transport arrival order and every
// stream ends with exactly one terminal event (done or error).
type StreamEvent struct {
	Type StreamEventType `json:"type"`

	// Text is the chunk payload. Set only for EventChunk.
	Text string `json:"text,omitempty"`

	// Message is the failure description. Set only for EventError.
	Message string `json:"message,omitempty"`
}

// Chunk builds a chunk event.
func Chunk(text string) StreamEvent {
	return StreamEvent{Type: EventChunk, Text: text}
}

// Done builds the clean-completion terminal event.
func Done() StreamEvent {
	return StreamEvent{Type: EventDone}
}

// ErrorEvent builds the failure terminal event.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Message: message}
}
