package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

const defaultAnthropicModel = string(anthropic.ModelClaude3Dot5SonnetLatest)

// anthropicClassifier classifies intents through the Anthropic Messages API.
type anthropicClassifier struct {
	client       *anthropic.Client
	model        string
	systemPrompt string
	logger       *zap.Logger
}

var _ IntentClassifier = (*anthropicClassifier)(nil)

// NewAnthropicClassifier creates a classifier over the Anthropic API.
// The snippet inventory is rendered into the system prompt once, at
// construction; catalogs are immutable after load.
func NewAnthropicClassifier(apiKey, model, baseURL string, snippets []*models.ComposableSnippet, logger *zap.Logger) (IntentClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if model == "" {
		model = defaultAnthropicModel
	}

	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}

	return &anthropicClassifier{
		client:       anthropic.NewClient(apiKey, opts...),
		model:        model,
		systemPrompt: buildSystemPrompt(snippets),
		logger:       logger.Named("llm_anthropic"),
	}, nil
}

func (c *anthropicClassifier) ClassifyIntent(ctx context.Context, question string) (*models.StructuredIntent, error) {
	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		System:    c.systemPrompt,
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(question),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic messages request: %w", err)
	}

	content := resp.GetFirstContentText()
	c.logger.Debug("classification response received",
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_len", len(content)))

	return parseIntentResponse(content)
}

// parseIntentResponse decodes a StructuredIntent out of raw model output.
func parseIntentResponse(content string) (*models.StructuredIntent, error) {
	jsonStr, err := ExtractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("extract intent json: %w", err)
	}
	var intent models.StructuredIntent
	if err := json.Unmarshal([]byte(jsonStr), &intent); err != nil {
		return nil, fmt.Errorf("decode structured intent: %w", err)
	}
	if intent.Intent == "" {
		return nil, fmt.Errorf("classifier returned no intent")
	}
	return &intent, nil
}
