package model

// ================ Config ================
type ConversationConfig struct {
	TTL      string `envconfig:"CONVERSATION_TTL" default:"720h"`
	MaxTurns int    `envconfig:"CONVERSATION_MAX_TURNS" default:"40"`
}

type AssistantModelConfig struct {
	Model       string  `envconfig:"ASSISTANT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"ASSISTANT_MAX_TOKENS" default:"4000"`
	Temperature float32 `envconfig:"ASSISTANT_TEMPERATURE" default:"0.4"`
}

type DecisionModelConfig struct {
	Model       string  `envconfig:"DECISION_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"DECISION_MAX_TOKENS" default:"500"`
	Temperature float32 `envconfig:"DECISION_TEMPERATURE" default:"0.1"`
}

type ImageModelConfig struct {
	Enabled bool   `envconfig:"IMAGE_GENERATION_ENABLED" default:"true"`
	Model   string `envconfig:"IMAGE_MODEL" default:"imagen-3.0-generate-002"`
}

type PromptConfig struct {
	StudioName   string `envconfig:"PROMPT_STUDIO_NAME" default:"Atelier"`
	DesignDomain string `envconfig:"PROMPT_DESIGN_DOMAIN" default:"interior design"`
}
