package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/config"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

// NewIntentClassifier builds the provider-appropriate classifier from config.
func NewIntentClassifier(cfg config.LLMConfig, snippets []*models.ComposableSnippet, logger *zap.Logger) (IntentClassifier, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClassifier(cfg.APIKey, cfg.Model, cfg.BaseURL, snippets, logger)
	case "openai":
		return NewOpenAIClassifier(cfg.APIKey, cfg.Model, cfg.BaseURL, snippets, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
