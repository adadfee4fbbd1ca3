package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/llm"
)

// ndjsonLine is the slice of one newline-delimited JSON object the decoder
// cares about.
type ndjsonLine struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// DecodeNDJSON reads a newline-delimited JSON stream from rc and emits
// canonical events on the returned channel. The decoder owns rc and closes
// it when the stream ends.
//
// A line may span transport reads arbitrarily: a trailing partial line is
// buffered across reads and prepended to the next read before re-splitting
// on newlines. A line with "done": true ends the stream (emitting a final
// chunk first if it also carries content). Malformed lines are logged and
// skipped. A partial line left at EOF is discarded without emitting a chunk.
func DecodeNDJSON(ctx context.Context, rc io.ReadCloser, logger *zap.Logger) <-chan llm.StreamEvent {
	out := make(chan llm.StreamEvent)

	go func() {
		defer closeBody(rc, logger)

		em := &emitter{ctx: ctx, out: out}

		buf := make([]byte, initialScanBuffer)
		var pending []byte

		for {
			n, readErr := rc.Read(buf)
			if n > 0 {
				pending = append(pending, buf[:n]...)

				for {
					idx := bytes.IndexByte(pending, '\n')
					if idx < 0 {
						break
					}
					line := pending[:idx]
					pending = pending[idx+1:]

					text, done, ok := parseNDJSONLine(line, logger)
					if !ok {
						continue
					}

					if text != "" {
						if !em.send(llm.Chunk(text)) {
							close(out)
							return
						}
					}
					if done {
						em.closeWith(llm.Done())
						return
					}
				}
			}

			if readErr == io.EOF {
				// Clean EOF without a done line. Whatever partial line is
				// still pending never completed and is discarded.
				em.closeWith(llm.Done())
				return
			}
			if readErr != nil {
				logger.Error("reading ndjson stream", zap.Error(readErr))
				em.closeWith(llm.ErrorEvent(readErr.Error()))
				return
			}

			select {
			case <-ctx.Done():
				close(out)
				return
			default:
			}
		}
	}()

	return out
}

// parseNDJSONLine parses one complete line. The last return is false when the
// line is blank or malformed and should be skipped.
func parseNDJSONLine(line []byte, logger *zap.Logger) (text string, done bool, ok bool) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return "", false, false
	}

	var parsed ndjsonLine
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		logger.Warn("skipping malformed ndjson line",
			zap.Error(err),
			zap.Int("line_len", len(trimmed)),
		)
		return "", false, false
	}

	return parsed.Message.Content, parsed.Done, true
}
