package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/atelier-ai/server/internal/assistant/model"
)

//go:embed template/assistant_prompt.txt
var assistantSystemPrompt string

//go:embed template/decision_prompt.txt
var decisionPrompt string

// RenderAssistantSystem renders the assistant system prompt via the Eino
// prompt component. This triggers Prompt callbacks and returns the final
// system prompt string.
func RenderAssistantSystem(ctx context.Context, cfg *model.PromptConfig) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("prompt config is nil")
	}

	// Safely render known tokens only to avoid interfering with the JSON
	// schema braces embedded in the template.
	content := strings.NewReplacer(
		"{studio_name}", cfg.StudioName,
		"{design_domain}", cfg.DesignDomain,
	).Replace(assistantSystemPrompt)

	return renderSystem(ctx, content, "assistant")
}

// RenderImageDecision renders the secondary non-streaming decision prompt.
// The decision model sees the user's request and the assistant's reply and
// answers with a single small JSON object.
func RenderImageDecision(ctx context.Context, userMessage, assistantMessage string) (string, error) {
	content := strings.NewReplacer(
		"{user_message}", userMessage,
		"{assistant_message}", assistantMessage,
	).Replace(decisionPrompt)

	return renderSystem(ctx, content, "decision")
}

// renderSystem wraps content via the Eino prompt component using a messages
// placeholder so prompt callbacks fire.
func renderSystem(ctx context.Context, content, name string) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("%s prompt callbacks: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt callbacks: empty result", name)
	}
	return msgs[0].Content, nil
}
