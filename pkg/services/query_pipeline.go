package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/catalog"
	"github.com/lucerna-health/lucerna-engine/pkg/config"
	"github.com/lucerna-health/lucerna-engine/pkg/llm"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
	enginesql "github.com/lucerna-health/lucerna-engine/pkg/sql"
)

// QueryPlan is the full compilation result for one clinical question. The
// caller branches on Verdict and Strategy; a clarify or reject plan carries
// the reasons but never an error.
type QueryPlan struct {
	Question    string                        `json:"question"`
	Intent      *models.StructuredIntent      `json:"intent,omitempty"`
	Composition *CompositionResult            `json:"composition,omitempty"`
	SQL         string                        `json:"sql,omitempty"`
	Validation  *enginesql.SQLValidationResult `json:"validation,omitempty"`
	Complexity  ComplexityResult              `json:"complexity"`
	Verdict     enginesql.Verdict             `json:"verdict"`
	Strategy    Strategy                      `json:"strategy"`
	Reasons     []string                      `json:"reasons,omitempty"`
}

// QueryPipeline compiles a natural-language question into a validated,
// complexity-scored SQL plan. It never executes the SQL.
type QueryPipeline interface {
	PlanQuery(ctx context.Context, question string) (*QueryPlan, error)
}

type queryPipeline struct {
	classifier           llm.IntentClassifier
	catalog              *catalog.Catalog
	compositionValidator CompositionValidator
	sqlValidator         *enginesql.GeneratedSQLValidator
	thresholds           ComplexityThresholds
	logger               *zap.Logger
}

var _ QueryPipeline = (*queryPipeline)(nil)

func NewQueryPipeline(
	classifier llm.IntentClassifier,
	cat *catalog.Catalog,
	compositionValidator CompositionValidator,
	sqlValidator *enginesql.GeneratedSQLValidator,
	cfg config.ClassifierConfig,
	logger *zap.Logger,
) QueryPipeline {
	return &queryPipeline{
		classifier:           classifier,
		catalog:              cat,
		compositionValidator: compositionValidator,
		sqlValidator:         sqlValidator,
		thresholds:           ComplexityThresholds{SimpleMax: cfg.SimpleMax, MediumMax: cfg.MediumMax},
		logger:               logger.Named("query_pipeline"),
	}
}

// PlanQuery runs the compilation stages in order: intent classification,
// injection screening, composition validation, SQL assembly, generated-SQL
// validation, complexity scoring. Classification failure is the only error
// path; every validation outcome is a verdict on the returned plan.
func (p *queryPipeline) PlanQuery(ctx context.Context, question string) (*QueryPlan, error) {
	plan := &QueryPlan{
		Question:   question,
		Complexity: AnalyzeComplexity(question, p.thresholds),
	}
	plan.Strategy = plan.Complexity.Strategy

	intent, err := p.classifier.ClassifyIntent(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("classify intent: %w", err)
	}
	plan.Intent = intent

	if findings := append(
		enginesql.CheckFiltersForInjection(intent.Filters),
		enginesql.CheckPlaceholdersForInjection(intent.Placeholders)...,
	); len(findings) > 0 {
		plan.Verdict = enginesql.VerdictReject
		for _, f := range findings {
			plan.Reasons = append(plan.Reasons,
				fmt.Sprintf("injection pattern in value for %q", f.Field))
		}
		p.logger.Warn("query rejected by injection screening",
			zap.String("intent", intent.Intent),
			zap.Int("findings", len(findings)))
		return plan, nil
	}

	snippets, unknown := p.resolveSnippets(intent.SnippetIDs)
	if len(unknown) > 0 {
		plan.Verdict = enginesql.VerdictClarify
		for _, id := range unknown {
			plan.Reasons = append(plan.Reasons,
				fmt.Sprintf("classifier referenced unknown snippet %q", id))
		}
		return plan, nil
	}

	composition := p.compositionValidator.Validate(snippets, intent.Intent)
	plan.Composition = &composition
	if !composition.Valid {
		plan.Verdict = enginesql.VerdictReject
		plan.Reasons = append(plan.Reasons, composition.Errors...)
		return plan, nil
	}

	sqlText, missingPlaceholders := p.assembleSQL(composition.AppliedChain, snippets, intent)
	if len(missingPlaceholders) > 0 {
		plan.Verdict = enginesql.VerdictClarify
		for _, name := range missingPlaceholders {
			plan.Reasons = append(plan.Reasons,
				fmt.Sprintf("placeholder {%s} has no value", name))
		}
		return plan, nil
	}

	normalized := enginesql.Normalize(sqlText)
	if normalized.Error != nil {
		plan.Verdict = enginesql.VerdictReject
		plan.Reasons = append(plan.Reasons, normalized.Error.Error())
		return plan, nil
	}
	plan.SQL = normalized.NormalizedSQL

	validation := p.sqlValidator.Validate(plan.SQL, snippets, intent.Filters)
	plan.Validation = &validation
	plan.Verdict = validation.Verdict
	plan.Reasons = append(plan.Reasons, validation.Warnings...)

	p.logger.Info("query plan compiled",
		zap.String("intent", intent.Intent),
		zap.String("verdict", string(plan.Verdict)),
		zap.String("strategy", string(plan.Strategy)),
		zap.Int("complexity_score", plan.Complexity.Score))
	return plan, nil
}

func (p *queryPipeline) resolveSnippets(ids []string) ([]*models.ComposableSnippet, []string) {
	snippets := make([]*models.ComposableSnippet, 0, len(ids))
	var unknown []string
	for _, id := range ids {
		snippet, ok := p.catalog.Snippet(id)
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		snippets = append(snippets, snippet)
	}
	return snippets, unknown
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// assembleSQL renders the supplied snippets as a WITH chain in the chain's
// declared step order, substitutes {placeholders}, and appends a final select
// over the last snippet's output constrained by the residual filters.
// Returns the names of placeholders left without a value, if any.
func (p *queryPipeline) assembleSQL(chain *models.CompositionChain, snippets []*models.ComposableSnippet, intent *models.StructuredIntent) (string, []string) {
	ordered := orderByChain(chain, snippets)
	if len(ordered) == 0 {
		return "", nil
	}

	fragments := make([]string, 0, len(ordered))
	for _, s := range ordered {
		fragments = append(fragments, strings.TrimRight(s.SQL, " \n"))
	}

	last := ordered[len(ordered)-1]
	finalFrom := last.ID
	if len(last.Outputs) > 0 {
		finalFrom = last.Outputs[0]
	}

	var b strings.Builder
	b.WriteString("WITH ")
	b.WriteString(strings.Join(fragments, ",\n"))
	b.WriteString("\nSELECT * FROM ")
	b.WriteString(finalFrom)
	if where := renderFilters(intent.Filters); where != "" {
		b.WriteString("\nWHERE ")
		b.WriteString(where)
	}

	sqlText := b.String()
	for name, value := range intent.Placeholders {
		sqlText = strings.ReplaceAll(sqlText, "{"+name+"}", escapeSingleQuotes(value))
	}

	var missing []string
	seen := map[string]bool{}
	for _, match := range placeholderPattern.FindAllStringSubmatch(sqlText, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			missing = append(missing, match[1])
		}
	}
	return sqlText, missing
}

// orderByChain arranges supplied snippets into the chain's step order:
// required steps first, then optional steps, then anything else in supplied
// order. Chain authors order steps to respect data dependencies.
func orderByChain(chain *models.CompositionChain, snippets []*models.ComposableSnippet) []*models.ComposableSnippet {
	byID := make(map[string]*models.ComposableSnippet, len(snippets))
	for _, s := range snippets {
		byID[s.ID] = s
	}

	placed := make(map[string]bool, len(snippets))
	ordered := make([]*models.ComposableSnippet, 0, len(snippets))
	for _, id := range append(append([]string{}, chain.RequiredSnippets...), chain.OptionalSnippets...) {
		if s, ok := byID[id]; ok && !placed[id] {
			ordered = append(ordered, s)
			placed[id] = true
		}
	}
	for _, s := range snippets {
		if !placed[s.ID] {
			ordered = append(ordered, s)
			placed[s.ID] = true
		}
	}
	return ordered
}

func renderFilters(filters []models.ResidualFilter) string {
	conditions := make([]string, 0, len(filters))
	for _, f := range filters {
		op := strings.ToUpper(strings.TrimSpace(f.Operator))
		switch op {
		case "IN":
			parts := strings.Split(f.Value, ",")
			quoted := make([]string, 0, len(parts))
			for _, part := range parts {
				quoted = append(quoted, "'"+escapeSingleQuotes(strings.TrimSpace(part))+"'")
			}
			conditions = append(conditions, fmt.Sprintf("%s IN (%s)", f.Field, strings.Join(quoted, ", ")))
		case "=", "!=", "<>", ">", "<", ">=", "<=", "LIKE":
			conditions = append(conditions, fmt.Sprintf("%s %s '%s'", f.Field, op, escapeSingleQuotes(f.Value)))
		default:
			conditions = append(conditions, fmt.Sprintf("%s = '%s'", f.Field, escapeSingleQuotes(f.Value)))
		}
	}
	return strings.Join(conditions, " AND ")
}

func escapeSingleQuotes(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
