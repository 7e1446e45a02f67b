package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/atelier-ai/server/internal/assistant/images"
	"github.com/atelier-ai/server/internal/assistant/model"
	"github.com/atelier-ai/server/internal/assistant/prompts"
	"github.com/atelier-ai/server/internal/assistant/stream"
	errx "github.com/atelier-ai/server/internal/core/error"
	logx "github.com/atelier-ai/server/pkg/logger"
	"github.com/atelier-ai/server/pkg/metrics"
)

// ImageGenerator renders a design visual as a post-turn side effect.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (*images.Result, error)
}

// Config wires the collaborators of the ChatService. Both chat models are
// plain eino BaseChatModels so tests can substitute doubles.
type Config struct {
	Assistant          einomodel.BaseChatModel
	Decision           einomodel.BaseChatModel
	Turns              model.TurnStore
	Usage              model.UsageStore
	Images             ImageGenerator // optional; nil disables generation
	AssistantModelName string
	Prompt             model.PromptConfig
	Conversation       model.ConversationConfig
}

// ChatService orchestrates one conversation turn: it persists the user
// message, relays the streaming call, persists the assistant result, accounts
// usage, resolves the image decision and emits the terminal event. One
// instance serves many concurrent turns; all per-turn state is local.
type ChatService struct {
	relay     *stream.Relay
	decision  einomodel.BaseChatModel
	turns     model.TurnStore
	usage     model.UsageStore
	images    ImageGenerator
	modelName string
	promptCfg model.PromptConfig
	maxTurns  int
}

func NewChatService(cfg Config) (*ChatService, error) {
	if cfg.Assistant == nil || cfg.Decision == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if cfg.Turns == nil {
		return nil, fmt.Errorf("turn store is nil")
	}
	if cfg.Usage == nil {
		return nil, fmt.Errorf("usage store is nil")
	}
	return &ChatService{
		relay:     stream.NewRelay(cfg.Assistant),
		decision:  cfg.Decision,
		turns:     cfg.Turns,
		usage:     cfg.Usage,
		images:    cfg.Images,
		modelName: cfg.AssistantModelName,
		promptCfg: cfg.Prompt,
		maxTurns:  cfg.Conversation.MaxTurns,
	}, nil
}

// HandleTurn runs one turn end to end, emitting events through w. Only
// failures that make the turn impossible (bad input, user-turn persistence,
// opening the stream) surface as a terminal error event and a returned error;
// every later failure degrades to a defined fallback and the turn completes.
func (s *ChatService) HandleTurn(ctx context.Context, conversationID, message string, w stream.EventWriter) error {
	if conversationID == "" || message == "" {
		err := errx.New(nil, http.StatusBadRequest, "conversation id and message are required")
		s.emitError(w, err)
		return err
	}

	// The user turn is persisted before any external call and is retained
	// even when the turn later fails, so history is never corrupted.
	userTurn := &model.Turn{
		ID:        uuid.NewString(),
		Role:      model.RoleUser,
		Content:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.turns.AppendTurn(ctx, conversationID, userTurn); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to persist user turn")
		s.emitError(w, err)
		metrics.TurnsTotal.WithLabelValues(metrics.TurnOutcomeError).Inc()
		return err
	}

	msgs, err := s.buildContext(ctx, conversationID)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to build prompt context")
		s.emitError(w, err)
		metrics.TurnsTotal.WithLabelValues(metrics.TurnOutcomeError).Inc()
		return err
	}

	outcome, err := s.relay.Run(ctx, conversationID, msgs, w)
	if err != nil {
		s.emitError(w, err)
		metrics.TurnsTotal.WithLabelValues(metrics.TurnOutcomeError).Inc()
		return err
	}

	// A client disconnect cancels the request context, but the turn is
	// already complete at this point: persistence, usage accounting and the
	// decision call must still run so the turn is not silently lost.
	finCtx := context.WithoutCancel(ctx)

	s.persistAssistantTurn(finCtx, conversationID, outcome)
	s.recordUsage(finCtx, conversationID, outcome.Usage)

	shouldGenerate := s.resolveImageDecision(finCtx, conversationID, message, outcome)

	if err := w.Done(outcome.Message, shouldGenerate); err != nil {
		logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to write done event")
	}

	if outcome.Reply != nil {
		metrics.TurnsTotal.WithLabelValues(metrics.TurnOutcomeStructured).Inc()
	} else {
		metrics.TurnsTotal.WithLabelValues(metrics.TurnOutcomeFallback).Inc()
	}

	if shouldGenerate {
		s.generateImage(finCtx, conversationID, outcome.Message)
	}
	return nil
}

// Transcript returns the stored conversation, oldest first.
func (s *ChatService) Transcript(ctx context.Context, conversationID string) ([]*model.Turn, error) {
	return s.turns.LoadTurns(ctx, conversationID)
}

// Clear removes the stored conversation.
func (s *ChatService) Clear(ctx context.Context, conversationID string) error {
	return s.turns.ClearTurns(ctx, conversationID)
}

// UsageReport returns the running totals plus cost recomputed from them.
func (s *ChatService) UsageReport(ctx context.Context, conversationID string) (model.UsageTotals, float64, error) {
	totals, err := s.usage.ReadTotals(ctx, conversationID)
	if err != nil {
		return model.UsageTotals{}, 0, err
	}
	_, _, _, total := model.ComputeCost(totals, model.ResolvePricing(s.modelName))
	return totals, total, nil
}

// buildContext assembles the system prompt plus the ordered transcript
// (oldest first, trimmed to the configured window). The just-appended user
// turn is already part of the loaded transcript.
func (s *ChatService) buildContext(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	systemPrompt, err := prompts.RenderAssistantSystem(ctx, &s.promptCfg)
	if err != nil {
		return nil, fmt.Errorf("render assistant system prompt: %w", err)
	}

	turns, err := s.turns.LoadTurns(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	turns = trimTail(turns, s.maxTurns)

	msgs := make([]*schema.Message, 0, len(turns)+1)
	msgs = append(msgs, schema.SystemMessage(systemPrompt))
	for _, t := range turns {
		if t == nil || t.Content == "" {
			continue
		}
		switch t.Role {
		case model.RoleUser:
			msgs = append(msgs, schema.UserMessage(t.Content))
		case model.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(t.Content, nil))
		}
	}
	return msgs, nil
}

// persistAssistantTurn writes the assistant result. The displayed text is
// stored even when structured parsing failed; a write failure is logged and
// must not block the terminal event.
func (s *ChatService) persistAssistantTurn(ctx context.Context, conversationID string, outcome *stream.Outcome) {
	turn := &model.Turn{
		ID:        uuid.NewString(),
		Role:      model.RoleAssistant,
		Content:   outcome.Message,
		CreatedAt: time.Now().UTC(),
	}
	if outcome.Reply != nil {
		turn.ContentJSON = outcome.Reply.Raw
	}
	if err := s.turns.AppendTurn(ctx, conversationID, turn); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to persist assistant turn")
	}
}

// recordUsage adds the reported token counts to the conversation's running
// totals and logs the recomputed cost. Best-effort bookkeeping only.
func (s *ChatService) recordUsage(ctx context.Context, conversationID string, usage *schema.TokenUsage) {
	if usage == nil || (usage.PromptTokens == 0 && usage.CompletionTokens == 0) {
		return
	}

	totals, err := s.usage.AddUsage(ctx, conversationID, int64(usage.PromptTokens), int64(usage.CompletionTokens))
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to record usage")
		return
	}
	metrics.TokensTotal.WithLabelValues("input").Add(float64(usage.PromptTokens))
	metrics.TokensTotal.WithLabelValues("output").Add(float64(usage.CompletionTokens))

	inC, outC, imgC, totalC := model.ComputeCost(totals, model.ResolvePricing(s.modelName))
	logx.Debug().
		Str("conversation_id", conversationID).
		Str("model", s.modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int64("total_input_tokens", totals.InputTokens).
		Int64("total_output_tokens", totals.OutputTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("image_cost_usd", imgC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}

// resolveImageDecision honors an explicit flag in the structured document;
// only when the flag is absent (or the parse fell back to raw text) does the
// secondary decision call fire.
func (s *ChatService) resolveImageDecision(ctx context.Context, conversationID, userMessage string, outcome *stream.Outcome) bool {
	if outcome.Reply != nil && outcome.Reply.ShouldGenerateImage != nil {
		return *outcome.Reply.ShouldGenerateImage
	}
	return s.decideImage(ctx, conversationID, userMessage, outcome.Message)
}

// generateImage runs the post-turn side effect. The caller hands it a
// context detached from request cancellation; failure never propagates.
func (s *ChatService) generateImage(ctx context.Context, conversationID, prompt string) {
	if s.images == nil {
		return
	}
	res, err := s.images.Generate(ctx, prompt)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("post-turn image generation failed")
		return
	}
	if _, err := s.usage.AddImage(ctx, conversationID); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to record generated image")
	}
	metrics.ImagesGeneratedTotal.Inc()
	logx.Info().
		Str("conversation_id", conversationID).
		Str("mime_type", res.MIMEType).
		Int("bytes", len(res.Data)).
		Msg("design visual generated")
}

// emitError writes the terminal error event with the safe message of an
// errx.Error when available.
func (s *ChatService) emitError(w stream.EventWriter, err error) {
	msg := errx.SystemErrorMessage
	var xe *errx.Error
	if errors.As(err, &xe) && xe.Message != "" {
		msg = xe.Message
	}
	if werr := w.Error(msg); werr != nil {
		logx.Warn().Err(werr).Msg("failed to write error event")
	}
}

// trimTail keeps the most recent maxTurns turns.
func trimTail(turns []*model.Turn, maxTurns int) []*model.Turn {
	if maxTurns <= 0 || len(turns) <= maxTurns {
		return turns
	}
	return turns[len(turns)-maxTurns:]
}
