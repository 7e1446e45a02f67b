package model

import (
	"context"
	"encoding/json"
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one persisted message of a conversation. ContentJSON carries the
// structured reply document when the assistant produced one; the display text
// in Content is always present, structured or not.
type Turn struct {
	ID          string          `json:"id"`
	Role        string          `json:"role"`
	Content     string          `json:"content"`
	ContentJSON json.RawMessage `json:"content_json,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type TurnStore interface {
	// AppendTurn appends a turn to the conversation transcript (append-only).
	AppendTurn(ctx context.Context, conversationID string, turn *Turn) error

	// LoadTurns retrieves the full transcript for a conversation, oldest first.
	LoadTurns(ctx context.Context, conversationID string) ([]*Turn, error)

	// ClearTurns removes the transcript for a conversation.
	ClearTurns(ctx context.Context, conversationID string) error
}

// UsageTotals are a conversation's running counters. They only ever grow.
type UsageTotals struct {
	InputTokens     int64 `json:"input_tokens"`
	OutputTokens    int64 `json:"output_tokens"`
	ImagesGenerated int64 `json:"images_generated"`
}

type UsageStore interface {
	// AddUsage atomically adds token counts to the conversation's running
	// totals and returns the totals after the update. Concurrent turns on the
	// same conversation must not lose updates.
	AddUsage(ctx context.Context, conversationID string, inputTokens, outputTokens int64) (UsageTotals, error)

	// AddImage atomically increments the generated-image counter.
	AddImage(ctx context.Context, conversationID string) (UsageTotals, error)

	// ReadTotals returns the current running totals. A conversation with no
	// recorded usage yields zero totals, not an error.
	ReadTotals(ctx context.Context, conversationID string) (UsageTotals, error)
}
