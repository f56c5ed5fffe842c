package engine

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini provides an Engine implementation for Google's Gemini models.
type Gemini struct {
	model string

	client *genai.Client
}

// NewGemini creates a new Gemini instance with the specified API key and model
// name.
func NewGemini(ctx context.Context, apiKey, model string) (Gemini, error) {
	if apiKey == "" {
		return Gemini{}, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return Gemini{}, fmt.Errorf("failed to create genai client: %w", err)
	}

	return Gemini{
		model:  model,
		client: client,
	}, nil
}

// Load verifies the configured model is reachable by counting the tokens of a
// trivial prompt. Hosted models need no local loading.
func (g Gemini) Load(ctx context.Context) error {
	contents := []*genai.Content{
		genai.NewContentFromText("ping", genai.RoleUser),
	}
	if _, err := g.client.Models.CountTokens(ctx, g.model, contents, nil); err != nil {
		return fmt.Errorf("error fetching model: %w", err)
	}
	return nil
}

// Generate runs a single completion for the prompt.
func (g Gemini) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(params.Temperature),
		TopP:            genai.Ptr(params.TopP),
		MaxOutputTokens: int32(params.MaxNewTokens),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	return result.Text(), nil
}
