// Package inmemory provides an in-memory message store for tests and
// single-process development setups.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inkwellco/spool/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards both maps.
	mu sync.RWMutex

	// messages maps conversation ID to that conversation's messages.
	messages map[string][]storage.Message

	// summaries maps conversation ID to its latest summary.
	summaries map[string]storage.Summary
}

// NewDriver creates a new in-memory message store.
func NewDriver() *Driver {
	return &Driver{
		messages:  make(map[string][]storage.Message),
		summaries: make(map[string]storage.Summary),
	}
}

// CreateMessage stores a message, filling in a missing ID or CreatedAt.
func (s *Driver) CreateMessage(_ context.Context, msg *storage.Message) error {
	if msg == nil {
		return errors.New("cannot store nil message")
	}
	if msg.ConversationID == "" {
		return errors.New("message conversation ID is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	return nil
}

// ListMessages returns a conversation's messages in chronological order.
func (s *Driver) ListMessages(_ context.Context, conversationID string) ([]storage.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]storage.Message, len(s.messages[conversationID]))
	copy(msgs, s.messages[conversationID])

	sort.SliceStable(msgs, func(a, b int) bool {
		return msgs[a].CreatedAt.Before(msgs[b].CreatedAt)
	})
	return msgs, nil
}

// LatestSummary returns the newest summary for a conversation, or nil.
func (s *Driver) LatestSummary(_ context.Context, conversationID string) (*storage.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[conversationID]
	if !ok {
		return nil, nil
	}
	return &summary, nil
}

// PutSummary stores a summary as the conversation's latest.
func (s *Driver) PutSummary(_ context.Context, summary *storage.Summary) error {
	if summary == nil {
		return errors.New("cannot store nil summary")
	}
	if summary.ConversationID == "" {
		return errors.New("summary conversation ID is required")
	}

	stored := *summary
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[stored.ConversationID] = stored
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Driver) Close() error {
	return nil
}
