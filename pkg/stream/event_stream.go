package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/llm"
)

// doneSentinel is the literal payload that signals clean completion of an
// event-delimited stream with no further data.
const doneSentinel = "[DONE]"

// eventPayload is the slice of an event-delimited JSON payload the decoder
// cares about: a nested delta object carrying incremental text.
type eventPayload struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// DecodeEventStream reads an event-delimited stream ("data: <json>" segments
// separated by blank lines) from rc and emits canonical events on the
// returned channel. The decoder owns rc and closes it when the stream ends.
//
// Malformed payloads are logged and skipped, never fatal. An in-progress
// event that the stream ends on without a terminating blank line is
// discarded.
func DecodeEventStream(ctx context.Context, rc io.ReadCloser, logger *zap.Logger) <-chan llm.StreamEvent {
	out := make(chan llm.StreamEvent)

	go func() {
		defer closeBody(rc, logger)

		em := &emitter{ctx: ctx, out: out}

		scanner := bufio.NewScanner(rc)
		scanner.Buffer(make([]byte, initialScanBuffer), maxScanBuffer)

		// data lines accumulated for the event currently being built.
		var data []string

		for scanner.Scan() {
			line := scanner.Text()

			// A blank line terminates the current event.
			if line == "" {
				if len(data) == 0 {
					continue
				}
				payload := strings.Join(data, "\n")
				data = data[:0]

				if payload == doneSentinel {
					em.closeWith(llm.Done())
					return
				}

				text, ok := parseEventPayload(payload, logger)
				if ok && text != "" {
					if !em.send(llm.Chunk(text)) {
						close(out)
						return
					}
				}
				continue
			}

			// Comment lines are skipped per the wire format.
			if strings.HasPrefix(line, ":") {
				continue
			}

			if value, ok := strings.CutPrefix(line, "data:"); ok {
				data = append(data, strings.TrimPrefix(value, " "))
			}
			// Other fields (event:, id:, retry:) carry no chunk text.
		}

		if err := scanner.Err(); err != nil {
			logger.Error("reading event stream", zap.Error(err))
			em.closeWith(llm.ErrorEvent(err.Error()))
			return
		}

		// Clean EOF without the sentinel. An unterminated trailing event is
		// discarded rather than emitted.
		em.closeWith(llm.Done())
	}()

	return out
}

// parseEventPayload extracts the delta text from one JSON payload. The second
// return is false when the payload is malformed.
func parseEventPayload(payload string, logger *zap.Logger) (string, bool) {
	var parsed eventPayload
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		logger.Warn("skipping malformed event payload",
			zap.Error(err),
			zap.Int("payload_len", len(payload)),
		)
		return "", false
	}

	if len(parsed.Choices) == 0 {
		return "", true
	}
	return parsed.Choices[0].Delta.Content, true
}
