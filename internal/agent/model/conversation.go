package model

import (
	"context"
	"time"
)

// Exchange is one question/answer pair in a conversation transcript.
type Exchange struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Route     Route     `json:"route"`
	Failed    bool      `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationRepository persists conversation transcripts. The workflow core
// never reads it; persistence of the conversation is the caller's concern.
type ConversationRepository interface {
	// AddExchange appends a question/answer pair to the transcript.
	AddExchange(ctx context.Context, conversationID string, exchange Exchange) error

	// LoadHistory retrieves the transcript for a conversation.
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// ClearHistory removes the transcript for a conversation.
	ClearHistory(ctx context.Context, conversationID string) error

	// ExchangeCount returns the number of stored exchanges.
	ExchangeCount(ctx context.Context, conversationID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ConversationID string
	Exchanges      []Exchange
}
