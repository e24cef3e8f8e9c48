package providers

import (
	"fmt"
	"strings"

	"github.com/policyradar/policyradar/internal/adapters/llm"
	"github.com/policyradar/policyradar/internal/config"
	"github.com/policyradar/policyradar/internal/core/ports"
)

// Factory builds conversation backends from app configuration. It hides
// provider selection and credentials from the orchestration layer.
type Factory struct {
	settings *config.Settings
}

// NewFactory creates the factory.
func NewFactory(settings *config.Settings) *Factory {
	return &Factory{settings: settings}
}

// Backend returns a conversation backend for the requested provider and
// model. Empty provider falls back to the configured default API mode;
// empty model falls back to the provider's configured model.
func (f *Factory) Backend(provider, model, prevHandle string) (ports.ConversationBackend, error) {
	s := f.settings
	key := strings.ToLower(strings.TrimSpace(provider))
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(s.DefaultAPIMode))
	}

	switch key {
	case "", "openai", "responses":
		if s.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		if model == "" {
			model = s.OpenAIModel
		}
		return llm.NewResponsesBackend(s.OpenAIBaseURL, s.OpenAIAPIKey, model, prevHandle), nil
	case "chat", "openai-chat", "compatible":
		if model == "" {
			model = s.OpenAIModel
		}
		return llm.NewChatBackend(s.OpenAIBaseURL, s.OpenAIAPIKey, model), nil
	case "gemini", "google":
		if s.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY is required for the gemini provider")
		}
		if model == "" {
			model = s.GeminiModel
		}
		return llm.NewGeminiBackend(s.GeminiBaseURL, s.GoogleAPIKey, model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
