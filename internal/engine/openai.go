package engine

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides an Engine implementation for OpenAI's language models. A
// non-empty base URL points the client at any OpenAI-compatible host instead.
type OpenAI struct {
	model string

	client *goopenai.Client
}

// NewOpenAI creates a new OpenAI instance with the specified API key, base URL,
// and model name. An empty baseURL selects the official API endpoint.
func NewOpenAI(apiKey, baseURL, model string) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return OpenAI{
		model:  model,
		client: goopenai.NewClientWithConfig(cfg),
	}
}

// Load verifies the configured model is reachable. Hosted models need no local
// loading.
func (o OpenAI) Load(ctx context.Context) error {
	if _, err := o.client.GetModel(ctx, o.model); err != nil {
		return fmt.Errorf("error fetching model: %w", err)
	}
	return nil
}

// Generate runs a single chat completion for the prompt.
func (o OpenAI) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: o.model,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role:    goopenai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   params.MaxNewTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		// The API has no repetition_penalty; the frequency penalty is its
		// closest equivalent and shares the same neutral point of zero.
		FrequencyPenalty: params.RepetitionPenalty - 1,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices found")
	}

	return resp.Choices[0].Message.Content, nil
}
