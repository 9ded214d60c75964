// Package llm provides the intent-classification boundary. The engine treats
// classification as a black box: a question and the snippet catalog go in, a
// StructuredIntent comes out. Prompt engineering stays inside this package.
package llm

import (
	"context"

	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

// IntentClassifier turns a natural-language clinical question into a
// structured intent referencing catalog snippets.
// Use this interface for dependency injection to enable mocking in tests.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, question string) (*models.StructuredIntent, error)
}
