package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Ollama provides an Engine implementation backed by a local Ollama server.
type Ollama struct {
	host  string
	model string

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates a new Ollama instance for the given host URL and model
// name. The host parameter should be a valid URL pointing to an Ollama server.
func NewOllama(host, model string, logger *slog.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host: %w", err)
	}

	return Ollama{
		host:   host,
		model:  model,
		client: api.NewClient(u, &http.Client{}),
		logger: logger.With(slog.String("module", "ollama")),
	}, nil
}

// Load pulls the model so the first generation does not block on a download.
func (o Ollama) Load(ctx context.Context) error {
	req := &api.PullRequest{Model: o.model}
	if err := o.client.Pull(ctx, req, func(res api.ProgressResponse) error {
		o.logger.Debug("Pulling model", slog.String("status", res.Status))
		return nil
	}); err != nil {
		return fmt.Errorf("error pulling model: %w", err)
	}
	return nil
}

// Generate runs a single non-streaming completion against the Ollama server.
func (o Ollama) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	f := false
	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &f,
		Options: map[string]any{
			"num_predict":    params.MaxNewTokens,
			"temperature":    params.Temperature,
			"top_p":          params.TopP,
			"repeat_penalty": params.RepetitionPenalty,
		},
	}

	var sb strings.Builder
	if err := o.client.Generate(ctx, req, func(res api.GenerateResponse) error {
		sb.WriteString(res.Response)
		return nil
	}); err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	return sb.String(), nil
}
