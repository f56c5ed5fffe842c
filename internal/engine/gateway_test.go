package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tiktoken-go/tokenizer"
	"github.com/traeworks/assistant/internal/engine"
	"golang.org/x/sync/errgroup"
)

type fakeEngine struct {
	response string
	loadErr  error
	genErr   error
	delay    time.Duration

	mu      sync.Mutex
	prompts []string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGateway(t *testing.T, eng engine.Engine, budget int) *engine.Gateway {
	t.Helper()
	g, err := engine.NewGateway(eng, engine.DefaultParams(), budget, discardLogger())
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	return g
}

func TestGatewayNotReady(t *testing.T) {
	g := newGateway(t, &fakeEngine{response: "hi"}, 0)

	if got := g.State(); got != engine.StateUnloaded {
		t.Errorf("State() = %v, want %v", got, engine.StateUnloaded)
	}

	_, err := g.Generate(context.Background(), "hello")
	if !errors.Is(err, engine.ErrModelNotReady) {
		t.Errorf("Generate() error = %v, want ErrModelNotReady", err)
	}
}

func TestGatewayLoadFailure(t *testing.T) {
	g := newGateway(t, &fakeEngine{loadErr: errors.New("weights missing")}, 0)

	err := g.Load(context.Background())
	if err == nil {
		t.Fatal("Load() error = nil, want failure")
	}
	var infErr *engine.InferenceError
	if !errors.As(err, &infErr) {
		t.Errorf("Load() error = %v, want *InferenceError", err)
	}

	if got := g.State(); got != engine.StateFailed {
		t.Errorf("State() = %v, want %v", got, engine.StateFailed)
	}

	if _, err := g.Generate(context.Background(), "hello"); !errors.Is(err, engine.ErrModelNotReady) {
		t.Errorf("Generate() error = %v, want ErrModelNotReady", err)
	}
}

func TestGatewayGenerate(t *testing.T) {
	eng := &fakeEngine{response: "  a generated reply \n"}
	g := newGateway(t, eng, 0)

	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !g.Ready() {
		t.Fatal("Ready() = false after successful load")
	}

	got, err := g.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "a generated reply" {
		t.Errorf("Generate() = %q, want trimmed reply", got)
	}
}

func TestGatewayWrapsEngineFailure(t *testing.T) {
	g := newGateway(t, &fakeEngine{genErr: errors.New("cuda out of memory")}, 0)

	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	_, err := g.Generate(context.Background(), "hello")
	var infErr *engine.InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("Generate() error = %v, want *InferenceError", err)
	}
	if !strings.Contains(infErr.Error(), "cuda out of memory") {
		t.Errorf("error = %q, want it to carry the engine detail", infErr.Error())
	}
	if errors.Is(err, engine.ErrModelNotReady) {
		t.Error("engine failure must not match ErrModelNotReady")
	}
}

func TestGatewayTruncatesLongPrompt(t *testing.T) {
	const budget = 16
	eng := &fakeEngine{response: "ok"}
	g := newGateway(t, eng, budget)

	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	prompt := strings.Repeat("alpha ", 200) + "omega"
	if _, err := g.Generate(context.Background(), prompt); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	prompts := eng.sentPrompts()
	if len(prompts) != 1 {
		t.Fatalf("prompt count = %d, want 1", len(prompts))
	}
	sent := prompts[0]

	if sent == prompt {
		t.Fatal("prompt was not truncated")
	}
	if !strings.HasSuffix(sent, "omega") {
		t.Errorf("sent prompt = %q, want the most recent content preserved", sent)
	}

	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		t.Fatalf("tokenizer.Get() error = %v", err)
	}
	ids, _, err := codec.Encode(sent)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(ids) > budget {
		t.Errorf("sent prompt has %d tokens, want at most %d", len(ids), budget)
	}
}

func TestGatewayShortPromptPassesThrough(t *testing.T) {
	eng := &fakeEngine{response: "ok"}
	g := newGateway(t, eng, 0)

	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := g.Generate(context.Background(), "hello world"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := eng.sentPrompts()[0]; got != "hello world" {
		t.Errorf("sent prompt = %q, want %q", got, "hello world")
	}
}

func TestGatewaySerializesGenerations(t *testing.T) {
	eng := &fakeEngine{response: "ok", delay: 10 * time.Millisecond}
	g := newGateway(t, eng, 0)

	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var group errgroup.Group
	for i := 0; i < 4; i++ {
		group.Go(func() error {
			_, err := g.Generate(context.Background(), "hello")
			return err
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if got := eng.maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent engine calls = %d, want 1", got)
	}
}

func (e *fakeEngine) Load(context.Context) error {
	return e.loadErr
}

func (e *fakeEngine) Generate(_ context.Context, prompt string, _ engine.GenerateParams) (string, error) {
	cur := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		max := e.maxInFlight.Load()
		if cur <= max || e.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}

	if e.delay > 0 {
		time.Sleep(e.delay)
	}

	e.mu.Lock()
	e.prompts = append(e.prompts, prompt)
	e.mu.Unlock()

	if e.genErr != nil {
		return "", e.genErr
	}
	return e.response, nil
}

func (e *fakeEngine) sentPrompts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prompts
}
