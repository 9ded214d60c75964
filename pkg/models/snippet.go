package models

import "strings"

// UserInputPrefix marks a snippet input as user-supplied. Inputs with this
// prefix are filled at render time and never checked for an upstream producer.
const UserInputPrefix = "user:"

// ComposableSnippet is a named, reusable SQL fragment with declared inputs
// and outputs. Snippets are immutable catalog entries.
type ComposableSnippet struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Intent string `yaml:"intent" json:"intent"`
	// SQL is the fragment body. Outputs are typically CTE names it defines;
	// placeholders use {braces}, e.g. {timePointDays}.
	SQL string `yaml:"sql" json:"sql"`
	// Inputs are required upstream outputs or user-supplied placeholders.
	Inputs []string `yaml:"inputs" json:"inputs"`
	// Outputs are named result sets the snippet produces, usually CTE names.
	Outputs []string `yaml:"outputs" json:"outputs"`
	// RequiredContext are tokens that must appear verbatim in generated SQL
	// for this snippet to count as used.
	RequiredContext []string `yaml:"required_context" json:"required_context"`
}

// IsUserInput reports whether a declared input is filled at render time
// rather than by another snippet's output.
func IsUserInput(input string) bool {
	return strings.HasPrefix(input, UserInputPrefix) ||
		(strings.HasPrefix(input, "{") && strings.HasSuffix(input, "}"))
}

// CompositionChain declares the required and optional snippets for one
// analytical intent. Chains are static configuration, never derived data.
type CompositionChain struct {
	Intent           string   `yaml:"intent" json:"intent"`
	Name             string   `yaml:"name" json:"name"`
	RequiredSnippets []string `yaml:"required_snippets" json:"required_snippets"`
	OptionalSnippets []string `yaml:"optional_snippets" json:"optional_snippets"`
	RequiredOrder    bool     `yaml:"required_order" json:"required_order"`
}

// ResidualFilter is a question-derived constraint that generated SQL must
// honor in its WHERE clause. Optional filters produce warnings, not rejection.
type ResidualFilter struct {
	Field      string  `yaml:"field" json:"field"`
	Operator   string  `yaml:"operator" json:"operator"` // "=", "IN", "LIKE", ">", "<", ">=", "<="
	Value      string  `yaml:"value" json:"value"`
	Required   bool    `yaml:"required" json:"required"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
}
