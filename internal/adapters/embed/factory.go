package embed

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/policyradar/policyradar/internal/config"
	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

// Factory returns an embedder builder keyed by embedding config. Credentials
// and base URLs default to the app settings when the config leaves them
// empty.
func Factory(logger *slog.Logger, settings *config.Settings) func(cfg domain.EmbeddingConfig) (ports.Embedder, error) {
	return func(cfg domain.EmbeddingConfig) (ports.Embedder, error) {
		provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
		switch provider {
		case "openai":
			baseURL := cfg.BaseURL
			if baseURL == "" {
				baseURL = settings.OpenAIBaseURL
			}
			apiKey := cfg.APIKey
			if apiKey == "" {
				apiKey = settings.OpenAIAPIKey
			}
			if apiKey == "" {
				return nil, fmt.Errorf("openai embeddings require an API key")
			}
			return NewOpenAIEmbedder(logger, baseURL, apiKey, cfg.Model, settings.MaxRetries, settings.InitialBackoff), nil
		case "huggingface":
			baseURL := cfg.BaseURL
			if baseURL == "" {
				baseURL = settings.HuggingFaceBaseURL
			}
			apiKey := cfg.APIKey
			if apiKey == "" {
				apiKey = settings.HuggingFaceAPIKey
			}
			return NewHuggingFaceEmbedder(logger, baseURL, apiKey, cfg.Model, settings.MaxRetries, settings.InitialBackoff), nil
		case "", "local", "ollama":
			baseURL := cfg.BaseURL
			if baseURL == "" {
				baseURL = settings.OllamaBaseURL
			}
			return NewOllamaEmbedder(logger, baseURL, cfg.Model, settings.MaxRetries, settings.InitialBackoff), nil
		default:
			return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
		}
	}
}
