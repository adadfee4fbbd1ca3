package sqlite_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/inkwellco/spool/pkg/storage"
	"github.com/inkwellco/spool/pkg/storage/sqlite"
)

var _ = Describe("SQLiteDriver", func() {
	var (
		driver *sqlite.SQLiteDriver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		driver, err = sqlite.NewSQLiteDriver(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("NewSQLiteDriver", func() {
		It("creates a driver with file database", func() {
			tmpDir := GinkgoT().TempDir()
			dbPath := filepath.Join(tmpDir, "test.db")

			fileDriver, err := sqlite.NewSQLiteDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(fileDriver.Close()).To(Succeed())
		})
	})

	Describe("CreateMessage", func() {
		It("fills in missing ID and CreatedAt", func() {
			msg := &storage.Message{
				ConversationID: "conv-1",
				Role:           "user",
				Content:        "hello",
			}
			Expect(driver.CreateMessage(ctx, msg)).To(Succeed())
			Expect(msg.ID).NotTo(BeEmpty())
			Expect(msg.CreatedAt).NotTo(BeZero())
		})

		It("rejects messages without a conversation ID", func() {
			err := driver.CreateMessage(ctx, &storage.Message{Role: "user", Content: "hi"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ListMessages", func() {
		It("returns messages in chronological order", func() {
			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			for i, content := range []string{"third", "first", "second"} {
				offsets := []time.Duration{2 * time.Minute, 0, time.Minute}
				Expect(driver.CreateMessage(ctx, &storage.Message{
					ConversationID: "conv-1",
					Role:           "user",
					Content:        content,
					CreatedAt:      base.Add(offsets[i]),
				})).To(Succeed())
			}

			msgs, err := driver.ListMessages(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(3))
			Expect(msgs[0].Content).To(Equal("first"))
			Expect(msgs[1].Content).To(Equal("second"))
			Expect(msgs[2].Content).To(Equal("third"))
		})

		It("returns an empty list for an unknown conversation", func() {
			msgs, err := driver.ListMessages(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(BeEmpty())
		})

		It("keeps conversations separate", func() {
			Expect(driver.CreateMessage(ctx, &storage.Message{ConversationID: "a", Role: "user", Content: "in a"})).To(Succeed())
			Expect(driver.CreateMessage(ctx, &storage.Message{ConversationID: "b", Role: "user", Content: "in b"})).To(Succeed())

			msgs, err := driver.ListMessages(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Content).To(Equal("in a"))
		})
	})

	Describe("summaries", func() {
		It("returns nil when no summary exists", func() {
			summary, err := driver.LatestSummary(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(summary).To(BeNil())
		})

		It("stores and replaces the latest summary", func() {
			Expect(driver.PutSummary(ctx, &storage.Summary{
				ConversationID: "conv-1",
				Content:        "early recap",
				TokenCount:     12,
			})).To(Succeed())

			Expect(driver.PutSummary(ctx, &storage.Summary{
				ConversationID: "conv-1",
				Content:        "later recap",
				TokenCount:     20,
			})).To(Succeed())

			summary, err := driver.LatestSummary(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(summary).NotTo(BeNil())
			Expect(summary.Content).To(Equal("later recap"))
			Expect(summary.TokenCount).To(Equal(20))
		})
	})
})
