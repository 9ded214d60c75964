package models

// StructuredIntent is the result of the external intent-classification step.
// The engine treats its production as a black box; only the shape matters.
type StructuredIntent struct {
	// Intent names the analytical intent, e.g. "healing_trajectory".
	Intent string `json:"intent"`
	// SnippetIDs are the catalog snippets the classifier proposes to compose.
	SnippetIDs []string `json:"snippet_ids"`
	// Filters are the residual WHERE-clause constraints extracted from the question.
	Filters []ResidualFilter `json:"filters"`
	// Placeholders are user-supplied values for render-time substitution,
	// keyed by placeholder name without braces.
	Placeholders map[string]string `json:"placeholders,omitempty"`
	Confidence   float64           `json:"confidence"`
}
