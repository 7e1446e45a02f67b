package assistant

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/atelier-ai/server/internal/assistant/model"
	logx "github.com/atelier-ai/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation.
type ChatModelConfig struct {
	APIKey         string
	BaseURL        string
	AssistantModel *model.AssistantModelConfig
	DecisionModel  *model.DecisionModelConfig
}

// ChatModels holds the streaming assistant model and the small non-streaming
// decision model, plus the shared genai client they were built from.
type ChatModels struct {
	Assistant          *gemini.ChatModel
	Decision           *gemini.ChatModel
	AssistantModelName string
	DecisionModelName  string
	Client             *genai.Client
}

// NewChatModels creates both chat models over one shared Gemini client. The
// client is explicit rather than a process-wide singleton so tests can swap
// in doubles at the BaseChatModel seam.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModelAssistant, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.AssistantModel.Model,
		Temperature: &config.AssistantModel.Temperature,
		MaxTokens:   &config.AssistantModel.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating assistant model")
		return nil, fmt.Errorf("error creating assistant model: %w", err)
	}

	chatModelDecision, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.DecisionModel.Model,
		Temperature: &config.DecisionModel.Temperature,
		MaxTokens:   &config.DecisionModel.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating decision model")
		return nil, fmt.Errorf("error creating decision model: %w", err)
	}

	return &ChatModels{
		Assistant:          chatModelAssistant,
		Decision:           chatModelDecision,
		AssistantModelName: config.AssistantModel.Model,
		DecisionModelName:  config.DecisionModel.Model,
		Client:             client,
	}, nil
}
