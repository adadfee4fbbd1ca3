// Package stream normalizes provider-specific streaming wire formats into the
// canonical llm.StreamEvent sequence.
//
// Two wire formats are supported:
//
//   - Event-delimited: "data: <json>" segments separated by blank lines, with
//     a "[DONE]" sentinel signalling completion (OpenAI-style).
//   - Newline-delimited JSON: one JSON object per line, where a line may span
//     transport reads arbitrarily and "done": true ends the stream
//     (Ollama-style).
//
// Both decoders guarantee: chunks are emitted in arrival order, exactly one
// terminal event (done on clean completion, error on transport failure) is
// emitted per stream, and partial trailing data that never completes a
// line/event is discarded without emitting a spurious chunk.
//
// The transport-reading loop runs in its own goroutine; callers consume the
// returned channel, which is closed after the terminal event.
package stream

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/llm"
)

const (
	initialScanBuffer = 64 * 1024
	maxScanBuffer     = 1024 * 1024
)

// emitter sends canonical events while honoring caller cancellation.
type emitter struct {
	ctx context.Context
	out chan<- llm.StreamEvent
}

// send delivers ev to the consumer. It returns false when the caller's
// context is cancelled, in which case the read loop should stop; the
// cancellation itself is the terminal condition and no further events are
// delivered.
func (e *emitter) send(ev llm.StreamEvent) bool {
	select {
	case e.out <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// closeWith emits the terminal event (best-effort under cancellation) and
// closes the channel.
func (e *emitter) closeWith(ev llm.StreamEvent) {
	select {
	case e.out <- ev:
	case <-e.ctx.Done():
	}
	close(e.out)
}

// closeBody releases the transport. Decode goroutines own the reader and
// close it regardless of how the stream ended.
func closeBody(rc io.ReadCloser, logger *zap.Logger) {
	if err := rc.Close(); err != nil {
		logger.Debug("closing stream body", zap.Error(err))
	}
}
