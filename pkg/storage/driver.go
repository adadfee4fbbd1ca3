// Package storage
package storage

import (
	"context"
	"time"
)

// Message is one conversation turn as persisted by the message store.
type Message struct {
	// ID is a unique identifier for the message.
	ID string `json:"id"`

	// ConversationID groups messages into one conversation.
	ConversationID string `json:"conversation_id"`

	// Role is the speaker role: system, user or assistant.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// CreatedAt orders messages chronologically.
	CreatedAt time.Time `json:"created_at"`
}

// Summary is a rolling condensation of a conversation's older turns.
type Summary struct {
	// ConversationID is the conversation the summary covers.
	ConversationID string `json:"conversation_id"`

	// Content is the summary text.
	Content string `json:"content"`

	// TokenCount is the estimated token cost of Content.
	TokenCount int `json:"token_count"`

	// CreatedAt is when the summary was produced.
	CreatedAt time.Time `json:"created_at"`
}

// Driver defines the interface for persisting and retrieving conversation
// history in a storage backend.
type Driver interface {
	// CreateMessage stores a message. A missing ID or CreatedAt is filled
	// in by the driver.
	CreateMessage(ctx context.Context, msg *Message) error

	// ListMessages returns a conversation's messages in chronological
	// order. An unknown conversation yields an empty list, not an error.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)

	// LatestSummary returns the newest summary for a conversation, or nil
	// when none exists.
	LatestSummary(ctx context.Context, conversationID string) (*Summary, error)

	// PutSummary stores a summary. It becomes the conversation's latest.
	PutSummary(ctx context.Context, summary *Summary) error

	// Close closes the store and releases any resources.
	Close() error
}
