package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

const defaultOpenAIModel = openai.GPT4o

// openaiClassifier classifies intents through an OpenAI-compatible endpoint.
type openaiClassifier struct {
	client       *openai.Client
	model        string
	systemPrompt string
	logger       *zap.Logger
}

var _ IntentClassifier = (*openaiClassifier)(nil)

// NewOpenAIClassifier creates a classifier over an OpenAI-compatible API.
// A custom base URL supports local or proxied endpoints.
func NewOpenAIClassifier(apiKey, model, baseURL string, snippets []*models.ComposableSnippet, logger *zap.Logger) (IntentClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = defaultOpenAIModel
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return &openaiClassifier{
		client:       openai.NewClientWithConfig(clientConfig),
		model:        model,
		systemPrompt: buildSystemPrompt(snippets),
		logger:       logger.Named("llm_openai"),
	}, nil
}

func (c *openaiClassifier) ClassifyIntent(ctx context.Context, question string) (*models.StructuredIntent, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in completion response")
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("classification response received",
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return parseIntentResponse(content)
}
