package assistant

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/atelier-ai/server/internal/assistant/prompts"
	logx "github.com/atelier-ai/server/pkg/logger"
)

type decisionDocument struct {
	ShouldGenerate *bool  `json:"shouldGenerate"`
	Reasoning      string `json:"reasoning"`
}

// decideImage issues the secondary non-streaming decision call. Any failure
// along the way resolves to false; this call must never fail the turn.
func (s *ChatService) decideImage(ctx context.Context, conversationID, userMessage, assistantMessage string) bool {
	prompt, err := prompts.RenderImageDecision(ctx, userMessage, assistantMessage)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to render decision prompt")
		return false
	}

	out, err := s.decision.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil || out == nil {
		logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("image decision call failed; defaulting to false")
		return false
	}

	verdict := parseDecision(out.Content)
	logx.Debug().
		Str("conversation_id", conversationID).
		Bool("should_generate", verdict).
		Msg("image decision resolved by secondary call")
	return verdict
}

// parseDecision reads the decision model's output: strict JSON first, then
// the legacy substring heuristic, then false. The heuristic is knowingly
// fragile and kept only for compatibility with earlier decision prompts.
func parseDecision(raw string) bool {
	var doc decisionDocument
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &doc); err == nil && doc.ShouldGenerate != nil {
		return *doc.ShouldGenerate
	}
	if strings.Contains(raw, `"shouldGenerate":true`) || strings.Contains(raw, "YES") {
		return true
	}
	return false
}

// extractJSONObject slices the first {...} span out of model output that may
// wrap the object in prose or fences.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return strings.TrimSpace(s)
}
