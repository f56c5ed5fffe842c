// Package engine mediates all access to the language-model capability. The
// Gateway wraps a single Engine backend, tracks its readiness, enforces the
// prompt token budget, and serializes generation calls.
package engine

import (
	"context"
	"errors"
	"fmt"
)

// Engine is the opaque inference capability: given a prompt and generation
// parameters it returns generated text or fails. Backends are not assumed to
// be safe for concurrent generation; the Gateway serializes calls.
type Engine interface {
	// Load prepares the underlying model. For local backends this may
	// download model artifacts; hosted backends verify reachability.
	Load(ctx context.Context) error
	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string, params GenerateParams) (string, error)
}

// GPUReporter is implemented by engines that can report device placement.
type GPUReporter interface {
	GPUAvailable() bool
}

// GenerateParams holds the sampling parameters applied to every generation.
type GenerateParams struct {
	MaxNewTokens      int     `yaml:"maxNewTokens"`
	Temperature       float32 `yaml:"temperature"`
	TopP              float32 `yaml:"topP"`
	RepetitionPenalty float32 `yaml:"repetitionPenalty"`
}

// DefaultParams returns the default sampling parameters.
func DefaultParams() GenerateParams {
	return GenerateParams{
		MaxNewTokens:      512,
		Temperature:       0.7,
		TopP:              0.9,
		RepetitionPenalty: 1.1,
	}
}

// State describes the model readiness lifecycle. Valid transitions are
// unloaded -> loading -> ready and unloaded -> loading -> failed.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrModelNotReady is returned by Generate while the model is not in the ready
// state. Callers fail fast rather than queueing behind a load.
var ErrModelNotReady = errors.New("model is not ready")

// InferenceError wraps an engine-level failure during generation. Raw engine
// errors never cross the gateway boundary unconverted.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
