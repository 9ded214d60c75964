package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/catalog"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

// CompositionResult is the typed outcome of validating a snippet composition
// against its intent's chain. It is a result, never an error: callers branch
// on Valid.
type CompositionResult struct {
	Valid        bool                     `json:"valid"`
	AppliedChain *models.CompositionChain `json:"appliedChain,omitempty"`
	Errors       []string                 `json:"errors,omitempty"`
	Warnings     []string                 `json:"warnings,omitempty"`
	Suggestions  []string                 `json:"suggestions,omitempty"`
}

// CompositionValidator checks a set of snippets against the static chain
// declared for an analytical intent.
type CompositionValidator interface {
	Validate(snippets []*models.ComposableSnippet, intent string) CompositionResult
}

type compositionValidator struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
}

var _ CompositionValidator = (*compositionValidator)(nil)

func NewCompositionValidator(cat *catalog.Catalog, logger *zap.Logger) CompositionValidator {
	return &compositionValidator{
		catalog: cat,
		logger:  logger.Named("composition_validator"),
	}
}

// Validate runs the chain checks in order: matching intents, required snippet
// presence, relative order when the chain demands one, and snippet-to-snippet
// data dependencies. User-supplied placeholder inputs are filled at render
// time and are never flagged as unsatisfied here. A composition with zero
// errors is valid regardless of warnings.
func (v *compositionValidator) Validate(snippets []*models.ComposableSnippet, intent string) CompositionResult {
	chain, ok := v.catalog.Chain(intent)
	if !ok {
		return CompositionResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("no composition chain defined for intent %q", intent)},
		}
	}

	result := CompositionResult{AppliedChain: chain}

	supplied := make(map[string]int, len(snippets))
	for i, s := range snippets {
		if s.Intent != "" && s.Intent != intent {
			result.Errors = append(result.Errors,
				fmt.Sprintf("mixed intents: snippet %q declares intent %q, composition targets %q",
					s.ID, s.Intent, intent))
		}
		if _, dup := supplied[s.ID]; !dup {
			supplied[s.ID] = i
		}
	}

	for _, required := range chain.RequiredSnippets {
		if _, ok := supplied[required]; !ok {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Missing required snippet %q for chain %q", required, chain.Name))
		}
	}

	if chain.RequiredOrder {
		lastPos := -1
		for _, step := range chain.RequiredSnippets {
			pos, ok := supplied[step]
			if !ok {
				continue
			}
			if pos < lastPos {
				result.Errors = append(result.Errors,
					fmt.Sprintf("snippet %q is out of order: chain %q requires its steps in sequence",
						step, chain.Name))
			}
			if pos > lastPos {
				lastPos = pos
			}
		}
	}

	// Snippet-to-snippet dependencies: every non-user input must be produced
	// by some supplied snippet's declared outputs.
	produced := make(map[string]bool)
	for _, s := range snippets {
		for _, out := range s.Outputs {
			produced[out] = true
		}
	}
	for _, s := range snippets {
		for _, in := range s.Inputs {
			if models.IsUserInput(in) {
				continue
			}
			if !produced[in] {
				result.Errors = append(result.Errors,
					fmt.Sprintf("snippet %q requires input %q but no supplied snippet produces it",
						s.ID, in))
			}
		}
	}

	for _, optional := range chain.OptionalSnippets {
		if _, ok := supplied[optional]; !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("optional snippet %q not included", optional))
			result.Suggestions = append(result.Suggestions,
				fmt.Sprintf("consider adding snippet %q to enrich the %q result", optional, chain.Name))
		}
	}

	result.Valid = len(result.Errors) == 0
	if !result.Valid {
		v.logger.Debug("composition rejected",
			zap.String("intent", intent),
			zap.Strings("errors", result.Errors))
	}
	return result
}
