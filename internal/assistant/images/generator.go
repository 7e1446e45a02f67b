package images

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	logx "github.com/atelier-ai/server/pkg/logger"
)

// Result is one generated image.
type Result struct {
	MIMEType string
	Data     []byte
}

// Generator renders design visuals through the Gemini image models. It is a
// post-turn side effect: callers treat failures as best-effort and never let
// them fail the turn.
type Generator struct {
	client *genai.Client
	model  string
}

func NewGenerator(client *genai.Client, model string) *Generator {
	return &Generator{client: client, model: model}
}

// Generate renders a single image for the prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Result, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		logx.Error().Err(err).Str("model", g.model).Msg("image generation failed")
		return nil, fmt.Errorf("generate image: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fmt.Errorf("image model returned no images")
	}

	img := resp.GeneratedImages[0].Image
	logx.Debug().Str("model", g.model).Int("bytes", len(img.ImageBytes)).Msg("image generated")
	return &Result{
		MIMEType: img.MIMEType,
		Data:     img.ImageBytes,
	}, nil
}
