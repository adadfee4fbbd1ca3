package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/inkwellco/spool/pkg/storage"
	"github.com/inkwellco/spool/pkg/storage/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
	})

	It("fills in missing message ID and CreatedAt", func() {
		msg := &storage.Message{ConversationID: "conv-1", Role: "user", Content: "hello"}
		Expect(driver.CreateMessage(ctx, msg)).To(Succeed())
		Expect(msg.ID).NotTo(BeEmpty())
		Expect(msg.CreatedAt).NotTo(BeZero())
	})

	It("rejects nil messages and missing conversation IDs", func() {
		Expect(driver.CreateMessage(ctx, nil)).To(HaveOccurred())
		Expect(driver.CreateMessage(ctx, &storage.Message{Role: "user"})).To(HaveOccurred())
	})

	It("lists messages chronologically regardless of insert order", func() {
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		Expect(driver.CreateMessage(ctx, &storage.Message{
			ConversationID: "conv-1", Role: "user", Content: "second", CreatedAt: base.Add(time.Minute),
		})).To(Succeed())
		Expect(driver.CreateMessage(ctx, &storage.Message{
			ConversationID: "conv-1", Role: "assistant", Content: "first", CreatedAt: base,
		})).To(Succeed())

		msgs, err := driver.ListMessages(ctx, "conv-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs[0].Content).To(Equal("first"))
		Expect(msgs[1].Content).To(Equal("second"))
	})

	It("returns an empty list for unknown conversations", func() {
		msgs, err := driver.ListMessages(ctx, "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(BeEmpty())
	})

	It("round-trips the latest summary", func() {
		summary, err := driver.LatestSummary(ctx, "conv-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(BeNil())

		Expect(driver.PutSummary(ctx, &storage.Summary{
			ConversationID: "conv-1", Content: "recap", TokenCount: 9,
		})).To(Succeed())

		summary, err = driver.LatestSummary(ctx, "conv-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Content).To(Equal("recap"))
		Expect(summary.CreatedAt).NotTo(BeZero())
	})
})
