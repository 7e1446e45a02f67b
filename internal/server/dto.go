package server

import "github.com/atelier-ai/server/internal/assistant/model"

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

// Wire events, one `data: <json>` line each.
type chunkEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type doneEvent struct {
	Type                string `json:"type"`
	Message             string `json:"message"`
	ShouldGenerateImage bool   `json:"shouldGenerateImage"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type transcriptResponse struct {
	ConversationID string        `json:"conversation_id"`
	Turns          []*model.Turn `json:"turns"`
}

type usageResponse struct {
	ConversationID string `json:"conversation_id"`
	model.UsageTotals
	CostUSD float64 `json:"cost_usd"`
}

type errorResponse struct {
	Error string `json:"error"`
}
