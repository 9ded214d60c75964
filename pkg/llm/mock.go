package llm

import (
	"context"

	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

// MockIntentClassifier is a configurable classifier for tests.
// Set ClassifyIntentFunc to control behavior.
type MockIntentClassifier struct {
	// ClassifyIntentFunc is called when ClassifyIntent is invoked.
	// If nil, returns an empty intent and nil error.
	ClassifyIntentFunc func(ctx context.Context, question string) (*models.StructuredIntent, error)

	// ClassifyIntentCalls counts invocations for verification.
	ClassifyIntentCalls int
}

var _ IntentClassifier = (*MockIntentClassifier)(nil)

func (m *MockIntentClassifier) ClassifyIntent(ctx context.Context, question string) (*models.StructuredIntent, error) {
	m.ClassifyIntentCalls++
	if m.ClassifyIntentFunc != nil {
		return m.ClassifyIntentFunc(ctx, question)
	}
	return &models.StructuredIntent{}, nil
}
