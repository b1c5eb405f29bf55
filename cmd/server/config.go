package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/MegaGrindStone/chatscreen/internal/handlers"
	"github.com/MegaGrindStone/chatscreen/internal/models"
	"github.com/MegaGrindStone/chatscreen/internal/screen"
	"github.com/MegaGrindStone/chatscreen/internal/services"
	"gopkg.in/yaml.v3"
)

type backendConfig interface {
	responder(logger *slog.Logger) (screen.Responder, error)
	requestTimeout() time.Duration
}

// BaseBackendConfig contains the common fields for all backend configurations.
type BaseBackendConfig struct {
	Provider string `yaml:"provider"`
	// Timeout bounds one backend call. Zero means no client-side timeout.
	Timeout time.Duration `yaml:"requestTimeout"`
}

type config struct {
	Port        string                `yaml:"port"`
	LogLevel    string                `yaml:"logLevel"`
	Render      string                `yaml:"render"`
	Title       string                `yaml:"title"`
	Greeting    string                `yaml:"greeting"`
	Modes       []models.Mode         `yaml:"modes"`
	DefaultMode string                `yaml:"defaultMode"`
	History     []models.HistoryEntry `yaml:"history"`
	Suggestions []string              `yaml:"suggestions"`
	Backend     backendConfig         `yaml:"backend"`
}

type chatAPIConfig struct {
	BaseBackendConfig `yaml:",inline"`
	BaseURL           string `yaml:"baseURL"`
}

type ollamaConfig struct {
	BaseBackendConfig `yaml:",inline"`
	Host              string `yaml:"host"`
	Model             string `yaml:"model"`
	SystemPrompt      string `yaml:"systemPrompt"`
}

type anthropicConfig struct {
	BaseBackendConfig `yaml:",inline"`
	APIKey            string `yaml:"apiKey"`
	BaseURL           string `yaml:"baseURL"`
	Model             string `yaml:"model"`
	SystemPrompt      string `yaml:"systemPrompt"`
	MaxTokens         int    `yaml:"maxTokens"`
}

type openAIConfig struct {
	BaseBackendConfig `yaml:",inline"`
	APIKey            string                 `yaml:"apiKey"`
	BaseURL           string                 `yaml:"baseURL"`
	Model             string                 `yaml:"model"`
	SystemPrompt      string                 `yaml:"systemPrompt"`
	Parameters        services.LLMParameters `yaml:"parameters"`
}

const (
	defaultPort     = "8080"
	defaultProvider = "http"
)

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port        string                `yaml:"port"`
		LogLevel    string                `yaml:"logLevel"`
		Render      string                `yaml:"render"`
		Title       string                `yaml:"title"`
		Greeting    string                `yaml:"greeting"`
		Modes       []models.Mode         `yaml:"modes"`
		DefaultMode string                `yaml:"defaultMode"`
		History     []models.HistoryEntry `yaml:"history"`
		Suggestions []string              `yaml:"suggestions"`
		Backend     map[string]any        `yaml:"backend"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.LogLevel = rawConfig.LogLevel
	c.Render = rawConfig.Render
	c.Title = rawConfig.Title
	c.Greeting = rawConfig.Greeting
	c.Modes = rawConfig.Modes
	c.DefaultMode = rawConfig.DefaultMode
	c.History = rawConfig.History
	c.Suggestions = rawConfig.Suggestions

	if rawConfig.Backend == nil {
		return nil
	}

	provider := defaultProvider
	if p, ok := rawConfig.Backend["provider"]; ok {
		s, ok := p.(string)
		if !ok {
			return fmt.Errorf("backend provider must be a string")
		}
		provider = s
	}

	backendRawYAML, err := yaml.Marshal(rawConfig.Backend)
	if err != nil {
		return err
	}

	var backend backendConfig
	switch provider {
	case "http":
		backend = &chatAPIConfig{}
	case "ollama":
		backend = &ollamaConfig{}
	case "openai":
		backend = &openAIConfig{}
	case "anthropic":
		backend = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown backend provider: %s", provider)
	}

	if err := yaml.Unmarshal(backendRawYAML, backend); err != nil {
		return err
	}

	c.Backend = backend

	return nil
}

// loadConfig reads the configuration at path. A missing file is only tolerated when required is false,
// in which case the defaults are used.
func loadConfig(path string, required bool) (config, error) {
	f, err := os.Open(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return decodeConfig(nil)
		}
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	return decodeConfig(f)
}

func decodeConfig(r io.Reader) (config, error) {
	cfg := config{}
	if r != nil {
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.Render == "" {
		cfg.Render = string(handlers.RenderText)
	}
	if cfg.Backend == nil {
		cfg.Backend = &chatAPIConfig{BaseBackendConfig: BaseBackendConfig{Provider: defaultProvider}}
	}
	if cfg.History == nil {
		cfg.History = models.DefaultHistory()
	}
	if cfg.Suggestions == nil {
		cfg.Suggestions = models.DefaultSuggestions()
	}

	return cfg, nil
}

func (c config) logLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c config) screenOptions(logger *slog.Logger) screen.Options {
	return screen.Options{
		Greeting:       c.Greeting,
		Modes:          c.Modes,
		DefaultMode:    c.DefaultMode,
		History:        c.History,
		Suggestions:    c.Suggestions,
		RequestTimeout: c.Backend.requestTimeout(),
		Logger:         logger,
	}
}

func (b BaseBackendConfig) requestTimeout() time.Duration {
	return b.Timeout
}

// baseURL resolves the chat endpoint base URL. The environment overrides the file so a deployment can
// point an unchanged config at another backend.
func (a chatAPIConfig) baseURL() string {
	for _, key := range []string{"CHATSCREEN_API_URL", "REACT_APP_API_URL"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	if a.BaseURL != "" {
		return a.BaseURL
	}
	return services.DefaultChatAPIBaseURL
}

func (a chatAPIConfig) responder(logger *slog.Logger) (screen.Responder, error) {
	return services.NewChatAPI(a.baseURL(), &http.Client{}, logger), nil
}

func (o ollamaConfig) responder(logger *slog.Logger) (screen.Responder, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	return services.NewOllama(host, o.Model, o.SystemPrompt, logger)
}

func (o openAIConfig) responder(logger *slog.Logger) (screen.Responder, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, o.SystemPrompt, o.Parameters, logger), nil
}

func (a anthropicConfig) responder(logger *slog.Logger) (screen.Responder, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.MaxTokens == 0 {
		return nil, fmt.Errorf("maxTokens is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.BaseURL, a.Model, a.SystemPrompt, a.MaxTokens, logger), nil
}
