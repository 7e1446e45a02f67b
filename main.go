package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/sync/errgroup"

	"github.com/atelier-ai/server/internal/assistant"
	"github.com/atelier-ai/server/internal/assistant/images"
	"github.com/atelier-ai/server/internal/assistant/model"
	"github.com/atelier-ai/server/internal/core"
	"github.com/atelier-ai/server/internal/repo"
	"github.com/atelier-ai/server/internal/server"
	logx "github.com/atelier-ai/server/pkg/logger"
	pkgredis "github.com/atelier-ai/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the server, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	CORSOrigins string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Assistant configs
	Assistant    model.AssistantModelConfig
	Decision     model.DecisionModelConfig
	Image        model.ImageModelConfig
	Prompt       model.PromptConfig
	Conversation model.ConversationConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	env := core.ParseEnvironment(envCfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()
	logx.Info().Msg("Connected to Redis successfully")

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("ttl", envCfg.Conversation.TTL).Msg("Invalid CONVERSATION_TTL")
	}

	cms, err := assistant.NewChatModels(ctx, assistant.ChatModelConfig{
		APIKey:         envCfg.APIKey,
		BaseURL:        envCfg.BaseURL,
		AssistantModel: &envCfg.Assistant,
		DecisionModel:  &envCfg.Decision,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create chat models")
	}

	var imageGen assistant.ImageGenerator
	if envCfg.Image.Enabled {
		imageGen = images.NewGenerator(cms.Client, envCfg.Image.Model)
	}

	svc, err := assistant.NewChatService(assistant.Config{
		Assistant:          cms.Assistant,
		Decision:           cms.Decision,
		Turns:              repo.NewRedisTurnStore(rdb, ttl),
		Usage:              repo.NewRedisUsageStore(rdb),
		Images:             imageGen,
		AssistantModelName: cms.AssistantModelName,
		Prompt:             envCfg.Prompt,
		Conversation:       envCfg.Conversation,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build chat service")
	}

	srv := server.New(server.Config{
		Addr:         envCfg.HTTPAddr,
		AllowOrigins: strings.Split(envCfg.CORSOrigins, ","),
		Environment:  env,
	}, svc, rdb)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		logx.Fatal().Err(err).Msg("server exited with error")
	}
	logx.Info().Msg("server stopped")
}
