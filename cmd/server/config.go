package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/MegaGrindStone/idea-generator/internal/handlers"
	"github.com/MegaGrindStone/idea-generator/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	generator(systemPrompt string, logger *slog.Logger) (handlers.Generator, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider     string                 `yaml:"provider"`
	Model        string                 `yaml:"model"`
	SystemPrompt string                 `yaml:"systemPrompt"`
	Parameters   services.LLMParameters `yaml:"parameters"`
}

type config struct {
	Port       string        `yaml:"port"`
	LogLevel   string        `yaml:"logLevel"`
	Secret     string        `yaml:"secret"`
	DBPath     string        `yaml:"dbPath"`
	IdeaPrompt string        `yaml:"ideaPrompt"`
	PaywallURL string        `yaml:"paywallURL"`
	APIURL     string        `yaml:"apiURL"`
	Session    sessionConfig `yaml:"session"`
	Stream     streamConfig  `yaml:"stream"`
	LLM        llmConfig     `yaml:"llm"`
}

type sessionConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	TokenTTL time.Duration `yaml:"tokenTTL"`
}

type streamConfig struct {
	Method          string        `yaml:"method"`
	InitialInterval time.Duration `yaml:"initialInterval"`
	MaxInterval     time.Duration `yaml:"maxInterval"`
	MaxRetries      int           `yaml:"maxRetries"`
	MaxElapsedTime  time.Duration `yaml:"maxElapsedTime"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type openaiConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint"`
}

const (
	defaultPort = "8080"

	secretEnv = "IDEAGEN_SECRET"
)

var errMissingSecret = errors.New("secret is required, set it in the config file or " + secretEnv)

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port       string         `yaml:"port"`
		LogLevel   string         `yaml:"logLevel"`
		Secret     string         `yaml:"secret"`
		DBPath     string         `yaml:"dbPath"`
		IdeaPrompt string         `yaml:"ideaPrompt"`
		PaywallURL string         `yaml:"paywallURL"`
		APIURL     string         `yaml:"apiURL"`
		Session    sessionConfig  `yaml:"session"`
		Stream     streamConfig   `yaml:"stream"`
		LLM        map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.LogLevel = rawConfig.LogLevel
	c.Secret = rawConfig.Secret
	c.DBPath = rawConfig.DBPath
	c.IdeaPrompt = rawConfig.IdeaPrompt
	c.PaywallURL = rawConfig.PaywallURL
	c.APIURL = rawConfig.APIURL
	c.Session = rawConfig.Session
	c.Stream = rawConfig.Stream

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "ollama":
		llm = &ollamaConfig{}
	case "openai":
		llm = &openaiConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

// applyDefaults fills unset fields and validates the result.
func (c *config) applyDefaults() error {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.Secret == "" {
		c.Secret = os.Getenv(secretEnv)
	}
	if c.Secret == "" {
		return errMissingSecret
	}
	if c.APIURL == "" {
		c.APIURL = "http://localhost:" + c.Port + "/api"
	}
	if _, err := url.ParseRequestURI(c.APIURL); err != nil {
		return fmt.Errorf("invalid apiURL %q: %w", c.APIURL, err)
	}
	if c.LLM == nil {
		return fmt.Errorf("llm is required")
	}
	return nil
}

func (c config) logLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c config) streamOptions() services.EventSourceOptions {
	return services.EventSourceOptions{
		Method:          strings.ToUpper(c.Stream.Method),
		InitialInterval: c.Stream.InitialInterval,
		MaxInterval:     c.Stream.MaxInterval,
		MaxRetries:      c.Stream.MaxRetries,
		MaxElapsedTime:  c.Stream.MaxElapsedTime,
	}
}

func (o ollamaConfig) generator(systemPrompt string, logger *slog.Logger) (handlers.Generator, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if o.SystemPrompt != "" {
		systemPrompt = o.SystemPrompt
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	ol, err := services.NewOllama(host, o.Model, systemPrompt, o.Parameters, logger)
	if err != nil {
		return nil, err
	}
	return ol, nil
}

func (o openaiConfig) generator(systemPrompt string, logger *slog.Logger) (handlers.Generator, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if o.SystemPrompt != "" {
		systemPrompt = o.SystemPrompt
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt, o.Parameters, logger), nil
}

func (a anthropicConfig) generator(systemPrompt string, logger *slog.Logger) (handlers.Generator, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.SystemPrompt != "" {
		systemPrompt = a.SystemPrompt
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Endpoint, a.Model, systemPrompt, a.Parameters, logger), nil
}
