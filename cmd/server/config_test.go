package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigUnmarshalYAML(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantErr  string
		wantType any
	}{
		{
			name: "Ollama",
			yaml: `
port: "9000"
llm:
  provider: ollama
  model: llama3
  host: http://localhost:11434
  parameters:
    temperature: 0.7
`,
			wantType: &ollamaConfig{},
		},
		{
			name: "OpenAI",
			yaml: `
llm:
  provider: openai
  model: gpt-4o-mini
  baseURL: https://openrouter.ai/api/v1
`,
			wantType: &openaiConfig{},
		},
		{
			name: "Anthropic",
			yaml: `
llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
  parameters:
    maxTokens: 512
`,
			wantType: &anthropicConfig{},
		},
		{
			name:    "Missing provider",
			yaml:    "llm:\n  model: llama3\n",
			wantErr: "llm provider is required",
		},
		{
			name:    "Unknown provider",
			yaml:    "llm:\n  provider: parrot\n",
			wantErr: "unknown llm provider: parrot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg config
			err := yaml.Unmarshal([]byte(tt.yaml), &cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, cfg.LLM)
		})
	}
}

func TestConfigFields(t *testing.T) {
	in := `
port: "9000"
logLevel: debug
secret: s3cret
ideaPrompt: Pitch a bakery.
paywallURL: https://example.com/pay
session:
  ttl: 24h
  tokenTTL: 30s
stream:
  method: post
  initialInterval: 100ms
  maxRetries: 3
  maxElapsedTime: 1m
llm:
  provider: ollama
  model: llama3
  systemPrompt: Be brief.
  parameters:
    temperature: 0.5
    maxTokens: 256
`
	var cfg config
	require.NoError(t, yaml.Unmarshal([]byte(in), &cfg))

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.logLevel())
	assert.Equal(t, "Pitch a bakery.", cfg.IdeaPrompt)
	assert.Equal(t, "https://example.com/pay", cfg.PaywallURL)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 30*time.Second, cfg.Session.TokenTTL)

	opts := cfg.streamOptions()
	assert.Equal(t, "POST", opts.Method)
	assert.Equal(t, 100*time.Millisecond, opts.InitialInterval)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, time.Minute, opts.MaxElapsedTime)

	ol, ok := cfg.LLM.(*ollamaConfig)
	require.True(t, ok)
	assert.Equal(t, "Be brief.", ol.SystemPrompt)
	require.NotNil(t, ol.Parameters.Temperature)
	assert.InDelta(t, 0.5, *ol.Parameters.Temperature, 1e-6)
	require.NotNil(t, ol.Parameters.MaxTokens)
	assert.Equal(t, 256, *ol.Parameters.MaxTokens)
}

func TestConfigApplyDefaults(t *testing.T) {
	t.Run("Derives port and API URL", func(t *testing.T) {
		cfg := config{Secret: "s", LLM: &ollamaConfig{}}
		require.NoError(t, cfg.applyDefaults())
		assert.Equal(t, defaultPort, cfg.Port)
		assert.Equal(t, "http://localhost:8080/api", cfg.APIURL)
	})

	t.Run("Secret from environment", func(t *testing.T) {
		t.Setenv(secretEnv, "from-env")
		cfg := config{LLM: &ollamaConfig{}}
		require.NoError(t, cfg.applyDefaults())
		assert.Equal(t, "from-env", cfg.Secret)
	})

	t.Run("Missing secret", func(t *testing.T) {
		t.Setenv(secretEnv, "")
		cfg := config{LLM: &ollamaConfig{}}
		assert.ErrorIs(t, cfg.applyDefaults(), errMissingSecret)
	})

	t.Run("Invalid API URL", func(t *testing.T) {
		cfg := config{Secret: "s", APIURL: "not a url", LLM: &ollamaConfig{}}
		assert.Error(t, cfg.applyDefaults())
	})

	t.Run("Missing llm", func(t *testing.T) {
		cfg := config{Secret: "s"}
		assert.Error(t, cfg.applyDefaults())
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "secret: s\nllm:\n  provider: anthropic\n  model: claude\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api", cfg.APIURL)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGenerators(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	_, err := (ollamaConfig{}).generator("sys", logger)
	assert.Error(t, err, "model is required")

	gen, err := (ollamaConfig{BaseLLMConfig: BaseLLMConfig{Model: "llama3"}, Host: "http://localhost:11434"}).
		generator("sys", logger)
	require.NoError(t, err)
	assert.NotNil(t, gen)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	gen, err = (openaiConfig{BaseLLMConfig: BaseLLMConfig{Model: "gpt-4o-mini"}}).generator("sys", logger)
	require.NoError(t, err)
	assert.NotNil(t, gen)

	_, err = (anthropicConfig{}).generator("sys", logger)
	assert.Error(t, err)
}
