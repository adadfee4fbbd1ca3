package stream

import (
	"context"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/llm"
)

// chunkedReader returns its scripted reads one at a time, so specs can split
// payloads across transport reads at arbitrary byte boundaries.
type chunkedReader struct {
	reads  []string
	closed bool
	err    error
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.reads) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	next := r.reads[0]
	r.reads = r.reads[1:]
	n := copy(p, next)
	return n, nil
}

func (r *chunkedReader) Close() error {
	r.closed = true
	return nil
}

func collect(ch <-chan llm.StreamEvent) []llm.StreamEvent {
	var events []llm.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func texts(events []llm.StreamEvent) []string {
	var out []string
	for _, ev := range events {
		if ev.Type == llm.EventChunk {
			out = append(out, ev.Text)
		}
	}
	return out
}

func terminal(events []llm.StreamEvent) llm.StreamEvent {
	Expect(events).NotTo(BeEmpty())
	return events[len(events)-1]
}

var _ = Describe("DecodeEventStream", func() {
	var logger *zap.Logger

	BeforeEach(func() {
		logger = zap.NewNop()
	})

	decode := func(body string) []llm.StreamEvent {
		rc := io.NopCloser(strings.NewReader(body))
		return collect(DecodeEventStream(context.Background(), rc, logger))
	}

	It("emits one chunk per data event with non-empty delta text", func() {
		body := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
			"data: [DONE]\n\n"

		events := decode(body)
		Expect(texts(events)).To(Equal([]string{"Hel", "lo"}))
		Expect(terminal(events).Type).To(Equal(llm.EventDone))
	})

	It("emits exactly one terminal event", func() {
		events := decode("data: [DONE]\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"late\"}}]}\n\n")
		Expect(events).To(HaveLen(1))
		Expect(events[0].Type).To(Equal(llm.EventDone))
	})

	It("skips events with empty delta text", func() {
		body := "data: {\"choices\":[{\"delta\":{}}]}\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n" +
			"data: [DONE]\n\n"

		Expect(texts(decode(body))).To(Equal([]string{"x"}))
	})

	It("skips malformed payloads without killing the stream", func() {
		body := "data: {not json\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n" +
			"data: [DONE]\n\n"

		events := decode(body)
		Expect(texts(events)).To(Equal([]string{"ok"}))
		Expect(terminal(events).Type).To(Equal(llm.EventDone))
	})

	It("skips comment lines", func() {
		body := ": keep-alive\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n" +
			"data: [DONE]\n\n"

		Expect(texts(decode(body))).To(Equal([]string{"hi"}))
	})

	It("treats clean EOF without the sentinel as done", func() {
		events := decode("data: {\"choices\":[{\"delta\":{\"content\":\"tail\"}}]}\n\n")
		Expect(texts(events)).To(Equal([]string{"tail"}))
		Expect(terminal(events).Type).To(Equal(llm.EventDone))
	})

	It("discards an unterminated trailing event", func() {
		events := decode("data: {\"choices\":[{\"delta\":{\"content\":\"lost\"}}]}")
		Expect(texts(events)).To(BeEmpty())
		Expect(terminal(events).Type).To(Equal(llm.EventDone))
	})

	It("emits an error terminal on transport failure", func() {
		rc := &chunkedReader{
			reads: []string{"data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n"},
			err:   errors.New("connection reset"),
		}
		events := collect(DecodeEventStream(context.Background(), rc, logger))
		Expect(texts(events)).To(Equal([]string{"a"}))
		Expect(terminal(events).Type).To(Equal(llm.EventError))
		Expect(terminal(events).Message).To(ContainSubstring("connection reset"))
	})

	It("closes the transport when the stream ends", func() {
		rc := &chunkedReader{reads: []string{"data: [DONE]\n\n"}}
		collect(DecodeEventStream(context.Background(), rc, logger))
		Expect(rc.closed).To(BeTrue())
	})
})

var _ = Describe("DecodeNDJSON", func() {
	var logger *zap.Logger

	BeforeEach(func() {
		logger = zap.NewNop()
	})

	decodeReads := func(reads ...string) []llm.StreamEvent {
		rc := &chunkedReader{reads: reads}
		return collect(DecodeNDJSON(context.Background(), rc, logger))
	}

	It("emits one chunk per line with message content", func() {
		events := decodeReads(
			"{\"message\":{\"content\":\"Hel\"},\"done\":false}\n" +
				"{\"message\":{\"content\":\"lo\"},\"done\":false}\n" +
				"{\"message\":{\"content\":\"\"},\"done\":true}\n",
		)
		Expect(texts(events)).To(Equal([]string{"Hel", "lo"}))
		Expect(terminal(events).Type).To(Equal(llm.EventDone))
	})

	It("yields the same events when a line is split across reads", func() {
		unsplit := decodeReads("{\"message\":{\"content\":\"hi\"},\"done\":true}\n")
		split := decodeReads("{\"mess", "age\":{\"content\":\"hi\"},\"done\":true}\n")
		Expect(split).To(Equal(unsplit))
	})

	It("reassembles a line split at every byte boundary", func() {
		line := "{\"message\":{\"content\":\"abc\"},\"done\":true}\n"
		want := decodeReads(line)

		for i := 1; i < len(line)-1; i++ {
			got := decodeReads(line[:i], line[i:])
			Expect(got).To(Equal(want), "split at byte %d", i)
		}
	})

	It("emits a trailing chunk from the done line when it carries content", func() {
		events := decodeReads("{\"message\":{\"content\":\"bye\"},\"done\":true}\n")
		Expect(texts(events)).To(Equal([]string{"bye"}))
		Expect(terminal(events).Type).To(Equal(llm.EventDone))
	})

	It("stops reading after the done line", func() {
		events := decodeReads(
			"{\"message\":{\"content\":\"\"},\"done\":true}\n" +
				"{\"message\":{\"content\":\"late\"},\"done\":false}\n",
		)
		Expect(texts(events)).To(BeEmpty())
		Expect(events).To(HaveLen(1))
	})

	It("skips malformed lines without killing the stream", func() {
		events := decodeReads(
			"{broken\n",
			"{\"message\":{\"content\":\"ok\"},\"done\":false}\n",
			"{\"done\":true}\n",
		)
		Expect(texts(events)).To(Equal([]string{"ok"}))
		Expect(terminal(events).Type).To(Equal(llm.EventDone))
	})

	It("discards a partial trailing line at EOF", func() {
		events := decodeReads(
			"{\"message\":{\"content\":\"kept\"},\"done\":false}\n",
			"{\"message\":{\"content\":\"lost\"",
		)
		Expect(texts(events)).To(Equal([]string{"kept"}))
		Expect(terminal(events).Type).To(Equal(llm.EventDone))
	})

	It("emits an error terminal on transport failure", func() {
		rc := &chunkedReader{
			reads: []string{"{\"message\":{\"content\":\"a\"},\"done\":false}\n"},
			err:   errors.New("broken pipe"),
		}
		events := collect(DecodeNDJSON(context.Background(), rc, logger))
		Expect(texts(events)).To(Equal([]string{"a"}))
		Expect(terminal(events).Type).To(Equal(llm.EventError))
	})

	It("closes the transport when the stream ends", func() {
		rc := &chunkedReader{reads: []string{"{\"done\":true}\n"}}
		collect(DecodeNDJSON(context.Background(), rc, logger))
		Expect(rc.closed).To(BeTrue())
	})
})
