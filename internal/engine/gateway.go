package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultTokenBudget is the maximum number of prompt tokens passed to the
// engine. Longer prompts are truncated from the start so the most recent
// content is preserved.
const DefaultTokenBudget = 2048

const errLoggerKey = "err"

// Gateway coordinates access to the single shared model. Only one model
// instance is assumed loaded process-wide and the engine is not assumed
// reentrant-safe, so generation calls go through a single-slot queue.
type Gateway struct {
	engine Engine
	params GenerateParams
	budget int
	codec  tokenizer.Codec

	state atomic.Int32
	slot  chan struct{}

	logger *slog.Logger
}

// NewGateway creates a Gateway around the given engine. A tokenBudget of zero
// selects DefaultTokenBudget.
func NewGateway(eng Engine, params GenerateParams, tokenBudget int, logger *slog.Logger) (*Gateway, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer codec: %w", err)
	}
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}

	return &Gateway{
		engine: eng,
		params: params,
		budget: tokenBudget,
		codec:  codec,
		slot:   make(chan struct{}, 1),
		logger: logger.With(slog.String("module", "gateway")),
	}, nil
}

// Load drives the readiness state machine: unloaded -> loading -> ready, or
// unloaded -> loading -> failed when the engine cannot load.
func (g *Gateway) Load(ctx context.Context) error {
	g.state.Store(int32(StateLoading))
	g.logger.Info("Loading model")

	if err := g.engine.Load(ctx); err != nil {
		g.state.Store(int32(StateFailed))
		g.logger.Error("Model load failed", slog.String(errLoggerKey, err.Error()))
		return &InferenceError{Err: err}
	}

	g.state.Store(int32(StateReady))
	g.logger.Info("Model ready")
	return nil
}

// State returns the current readiness state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// Ready reports whether generation calls can be served.
func (g *Gateway) Ready() bool {
	return g.State() == StateReady
}

// GPUAvailable reports the engine's device placement when it is known.
func (g *Gateway) GPUAvailable() bool {
	if r, ok := g.engine.(GPUReporter); ok {
		return r.GPUAvailable()
	}
	return false
}

// Generate runs one generation against the shared model. It fails immediately
// with ErrModelNotReady while the model is not ready, and wraps every engine
// failure in an InferenceError. Prompts over the token budget are truncated
// from the start.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	if !g.Ready() {
		return "", ErrModelNotReady
	}

	prompt = g.truncate(prompt)

	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return "", &InferenceError{Err: ctx.Err()}
	}
	defer func() { <-g.slot }()

	text, err := g.engine.Generate(ctx, prompt, g.params)
	if err != nil {
		return "", &InferenceError{Err: err}
	}
	return strings.TrimSpace(text), nil
}

// truncate drops tokens from the front of the prompt until it fits the
// budget. If the prompt cannot be tokenized it is passed through unchanged
// and the engine's own limits apply.
func (g *Gateway) truncate(prompt string) string {
	ids, _, err := g.codec.Encode(prompt)
	if err != nil || len(ids) <= g.budget {
		return prompt
	}

	truncated, err := g.codec.Decode(ids[len(ids)-g.budget:])
	if err != nil {
		g.logger.Error("Failed to decode truncated prompt", slog.String(errLoggerKey, err.Error()))
		return prompt
	}

	g.logger.Info("Prompt truncated to token budget",
		slog.Int("tokens", len(ids)),
		slog.Int("budget", g.budget))
	return truncated
}
