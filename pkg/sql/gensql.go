package sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

// Verdict classifies generated SQL after inspection.
type Verdict string

const (
	VerdictPass    Verdict = "pass"
	VerdictClarify Verdict = "clarify"
	VerdictReject  Verdict = "reject"
)

// SQLValidationResult reports whether the expected snippets and residual
// filters actually surface in the generated SQL text.
type SQLValidationResult struct {
	Verdict         Verdict                 `json:"verdict"`
	MissingSnippets []string                `json:"missing_snippets,omitempty"`
	DroppedFilters  []models.ResidualFilter `json:"dropped_filters,omitempty"`
	Warnings        []string                `json:"warnings,omitempty"`
}

// wellKnownSnippetHints maps a few analytical snippet ids to column/keyword
// patterns that count as usage even when the CTE was inlined or renamed.
var wellKnownSnippetHints = map[string][]string{
	"area_reduction":     {"pct_area_reduction", "area_cm2"},
	"measurement_series": {"wound_measurements"},
	"time_buckets":       {"generate_series", "date_trunc"},
}

// GeneratedSQLValidator inspects generated SQL text and confirms the
// required snippets and filters appear. It never executes the SQL.
type GeneratedSQLValidator struct {
	inspector SQLInspector
}

// NewGeneratedSQLValidator creates a validator over the given inspector.
func NewGeneratedSQLValidator(inspector SQLInspector) *GeneratedSQLValidator {
	return &GeneratedSQLValidator{inspector: inspector}
}

// Validate checks the SQL text against expected snippets and filters.
//
// Verdict precedence: empty SQL is always reject; any dropped required
// filter forces reject; otherwise any missing snippet forces clarify;
// otherwise pass. Reject always wins over clarify.
func (v *GeneratedSQLValidator) Validate(
	sqlText string,
	expectedSnippets []*models.ComposableSnippet,
	expectedFilters []models.ResidualFilter,
) SQLValidationResult {
	result := SQLValidationResult{}

	if strings.TrimSpace(sqlText) == "" {
		result.Verdict = VerdictReject
		result.Warnings = append(result.Warnings, "generated SQL is empty")
		return result
	}

	cteNames := v.inspector.CTENames(sqlText)
	cteSet := make(map[string]bool, len(cteNames))
	for _, name := range cteNames {
		cteSet[strings.ToLower(name)] = true
	}

	lowerSQL := strings.ToLower(sqlText)

	for _, snippet := range expectedSnippets {
		if snippetDetected(snippet, cteSet, lowerSQL) {
			continue
		}
		result.MissingSnippets = append(result.MissingSnippets, snippet.ID)
	}

	whereContent, hasWhere := v.inspector.WhereClause(sqlText)

	for _, filter := range expectedFilters {
		found := hasWhere && filterDetected(filter, whereContent)
		if found {
			continue
		}
		if filter.Required {
			result.DroppedFilters = append(result.DroppedFilters, filter)
		} else {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("optional filter on %q not found in WHERE clause", filter.Field))
		}
	}

	switch {
	case len(result.DroppedFilters) > 0:
		result.Verdict = VerdictReject
	case len(result.MissingSnippets) > 0:
		result.Verdict = VerdictClarify
	default:
		result.Verdict = VerdictPass
	}

	return result
}

// snippetDetected reports snippet usage via any of: a declared output
// appearing as a CTE name, a required-context token appearing verbatim, or a
// well-known keyword hint.
func snippetDetected(snippet *models.ComposableSnippet, cteSet map[string]bool, lowerSQL string) bool {
	for _, output := range snippet.Outputs {
		if cteSet[strings.ToLower(output)] {
			return true
		}
	}

	for _, token := range snippet.RequiredContext {
		if token != "" && strings.Contains(lowerSQL, strings.ToLower(token)) {
			return true
		}
	}

	for _, hint := range wellKnownSnippetHints[snippet.ID] {
		if strings.Contains(lowerSQL, hint) {
			return true
		}
	}

	return false
}

// operatorForms are the recognized filter operator shapes, applied after the
// field token.
const operatorForms = `(=|!=|<>|>=|<=|>|<|\bIN\s*\(|\bLIKE\b)`

// filterDetected reports whether the filter's field token appears in the
// WHERE clause content followed by a recognized operator form. The search is
// case-insensitive and tolerates table qualifiers on the field.
func filterDetected(filter models.ResidualFilter, whereContent string) bool {
	field := regexp.QuoteMeta(filter.Field)
	pattern, err := regexp.Compile(`(?is)\b` + field + `\b\s*` + operatorForms)
	if err != nil {
		return false
	}
	return pattern.MatchString(whereContent)
}
