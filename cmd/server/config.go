package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/traeworks/assistant/internal/engine"
	"github.com/traeworks/assistant/internal/store"
	"gopkg.in/yaml.v3"
)

type engineConfig interface {
	engine(ctx context.Context, logger *slog.Logger) (engine.Engine, error)
}

// baseEngineConfig contains the common fields for all engine configurations.
type baseEngineConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port         string                `yaml:"port"`
	SystemPrompt string                `yaml:"systemPrompt"`
	TokenBudget  int                   `yaml:"tokenBudget"`
	Generation   engine.GenerateParams `yaml:"generation"`
	Engine       engineConfig          `yaml:"engine"`
	Store        storeConfig           `yaml:"store"`
}

// envOverrides are applied on top of the config file, so deployments can keep
// secrets out of it.
type envOverrides struct {
	Port         string `env:"PORT"`
	OllamaHost   string `env:"OLLAMA_HOST"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	PostgresDSN  string `env:"DATABASE_URL"`
}

type ollamaConfig struct {
	baseEngineConfig `yaml:",inline"`
	Host             string `yaml:"host"`
}

type openAIConfig struct {
	baseEngineConfig `yaml:",inline"`
	APIKey           string `yaml:"apiKey"`
	BaseURL          string `yaml:"baseURL"`
}

type geminiConfig struct {
	baseEngineConfig `yaml:",inline"`
	APIKey           string `yaml:"apiKey"`
}

type storeConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	DSN     string `yaml:"dsn"`
}

func defaultConfig() config {
	return config{
		Port:        "8000",
		TokenBudget: engine.DefaultTokenBudget,
		Generation:  engine.DefaultParams(),
		Engine: &ollamaConfig{
			baseEngineConfig: baseEngineConfig{Provider: "ollama", Model: "gemma2:9b"},
			Host:             "http://localhost:11434",
		},
		Store: storeConfig{Backend: "memory"},
	}
}

func loadConfig(r io.Reader) (config, error) {
	cfg := defaultConfig()
	if r != nil {
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return config{}, fmt.Errorf("error parsing environment: %w", err)
	}
	cfg.applyEnv(overrides)

	return cfg, nil
}

func (c *config) applyEnv(o envOverrides) {
	if o.Port != "" {
		c.Port = o.Port
	}
	if o.PostgresDSN != "" && c.Store.Backend == "postgres" {
		c.Store.DSN = o.PostgresDSN
	}
	switch e := c.Engine.(type) {
	case *ollamaConfig:
		if o.OllamaHost != "" {
			e.Host = o.OllamaHost
		}
	case *openAIConfig:
		if e.APIKey == "" {
			e.APIKey = o.OpenAIAPIKey
		}
	case *geminiConfig:
		if e.APIKey == "" {
			e.APIKey = o.GeminiAPIKey
		}
	}
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port         string                `yaml:"port"`
		SystemPrompt string                `yaml:"systemPrompt"`
		TokenBudget  int                   `yaml:"tokenBudget"`
		Generation   engine.GenerateParams `yaml:"generation"`
		Engine       map[string]any        `yaml:"engine"`
		Store        storeConfig           `yaml:"store"`
	}
	rawConfig.TokenBudget = c.TokenBudget
	rawConfig.Generation = c.Generation
	rawConfig.Port = c.Port
	rawConfig.Store = c.Store

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.SystemPrompt = rawConfig.SystemPrompt
	c.TokenBudget = rawConfig.TokenBudget
	c.Generation = rawConfig.Generation
	c.Store = rawConfig.Store

	if rawConfig.Engine == nil {
		return nil
	}

	provider, ok := rawConfig.Engine["provider"].(string)
	if !ok {
		return fmt.Errorf("engine provider is required")
	}

	engineRawYAML, err := yaml.Marshal(rawConfig.Engine)
	if err != nil {
		return err
	}

	var eng engineConfig
	switch provider {
	case "ollama":
		eng = &ollamaConfig{}
	case "openai":
		eng = &openAIConfig{}
	case "gemini":
		eng = &geminiConfig{}
	default:
		return fmt.Errorf("unknown engine provider: %s", provider)
	}

	if err := yaml.Unmarshal(engineRawYAML, eng); err != nil {
		return err
	}

	c.Engine = eng
	return nil
}

func (o ollamaConfig) engine(_ context.Context, logger *slog.Logger) (engine.Engine, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	host := o.Host
	if host == "" {
		host = "http://localhost:11434"
	}
	return engine.NewOllama(host, o.Model, logger)
}

func (o openAIConfig) engine(context.Context, *slog.Logger) (engine.Engine, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if o.APIKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	return engine.NewOpenAI(o.APIKey, o.BaseURL, o.Model), nil
}

func (g geminiConfig) engine(ctx context.Context, _ *slog.Logger) (engine.Engine, error) {
	if g.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return engine.NewGemini(ctx, g.APIKey, g.Model)
}

// newStore builds the configured store backend and returns it with a close
// function.
func (s storeConfig) newStore(ctx context.Context) (store.Store, func() error, error) {
	switch s.Backend {
	case "", "memory":
		return store.NewMemory(), func() error { return nil }, nil
	case "bolt":
		if s.Path == "" {
			return nil, nil, fmt.Errorf("store path is required for the bolt backend")
		}
		db, err := store.NewBoltDB(s.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case "postgres":
		if s.DSN == "" {
			return nil, nil, fmt.Errorf("store dsn is required for the postgres backend")
		}
		db, err := store.NewPostgres(ctx, s.DSN)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", s.Backend)
	}
}

func openConfigFile(logger *slog.Logger) io.ReadCloser {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		logger.Warn("Cannot resolve user config dir, using defaults", slog.String("err", err.Error()))
		return nil
	}

	path := filepath.Join(cfgDir, "traeassistant", "config.yaml")
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Cannot open config file, using defaults",
				slog.String("path", path),
				slog.String("err", err.Error()))
		}
		return nil
	}
	return f
}
