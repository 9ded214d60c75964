package services

import (
	"regexp"
	"strings"
)

// Complexity buckets for a clinical question.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Execution strategies selected from the complexity bucket.
type Strategy string

const (
	// StrategyAuto executes the generated SQL directly.
	StrategyAuto Strategy = "auto"
	// StrategyPreview shows the plan, then runs automatically.
	StrategyPreview Strategy = "preview"
	// StrategyInspect blocks until a human reviews the plan.
	StrategyInspect Strategy = "inspect"
)

// ComplexityThresholds map a 0-10 score to a bucket.
type ComplexityThresholds struct {
	SimpleMax int // scores <= SimpleMax are simple
	MediumMax int // scores <= MediumMax are medium; above is complex
}

// DefaultThresholds returns the standard simple<=4 / medium<=7 split.
func DefaultThresholds() ComplexityThresholds {
	return ComplexityThresholds{SimpleMax: 4, MediumMax: 7}
}

// ComplexityResult is the scored classification of one question.
type ComplexityResult struct {
	Complexity Complexity `json:"complexity"`
	Score      int        `json:"score"`
	Strategy   Strategy   `json:"strategy"`
	Confidence float64    `json:"confidence"`
	Reasons    []string   `json:"reasons"`
	Indicators []string   `json:"indicators"`
}

// maxComplexityScore caps the summed signal weights.
const maxComplexityScore = 10

type complexitySignal struct {
	weight  int
	reason  string
	phrases []string
	// minHits is how many distinct phrases must match before the signal
	// fires. Most signals fire on a single hit.
	minHits int
}

var complexitySignals = []complexitySignal{
	{
		weight: 3,
		reason: "multi-step phrasing suggests chained sub-questions",
		phrases: []string{
			"and then", "after that", "followed by", "first", "as well as",
			"in addition to", "along with",
		},
	},
	{
		weight: 2,
		reason: "multiple aggregations requested",
		phrases: []string{
			"count", "how many", "sum", "total", "average", "avg", "mean",
			"median", "max", "min", "highest", "lowest",
		},
		minHits: 2,
	},
	{
		weight: 2,
		reason: "comparison phrasing",
		phrases: []string{
			"compare", "compared to", "versus", "vs", "difference between",
			"more than", "less than", "better than", "worse than",
		},
	},
	{
		weight: 2,
		reason: "time-series phrasing",
		phrases: []string{
			"over time", "trend", "trends", "trajectory", "by month",
			"by week", "by quarter", "monthly", "weekly", "quarterly",
			"time series", "week over week", "month over month",
		},
	},
	{
		weight: 2,
		reason: "three or more clinical entities referenced",
		phrases: []string{
			"patient", "patients", "wound", "wounds", "healing", "diabetic",
			"arterial", "venous", "pressure ulcer", "assessment",
			"assessments", "measurement", "measurements", "facility",
			"facilities", "clinician", "clinicians", "treatment",
			"treatments", "visit", "visits", "area", "depth",
		},
		minHits: 3,
	},
	{
		weight: 2,
		reason: "explicit per-entity grouping",
		phrases: []string{
			"for each", "per patient", "per wound", "per facility",
			"per clinician", "grouped by", "breakdown by", "broken down by",
			"by month", "by facility", "by clinician",
		},
	},
}

// AnalyzeComplexity scores a raw clinical question and selects an execution
// strategy. Pure and deterministic: identical input always yields identical
// output.
func AnalyzeComplexity(questionText string, thresholds ComplexityThresholds) ComplexityResult {
	if thresholds.MediumMax <= thresholds.SimpleMax {
		thresholds = DefaultThresholds()
	}

	question := strings.ToLower(questionText)

	score := 0
	var reasons, indicators []string

	for _, signal := range complexitySignals {
		hits := matchPhrases(question, signal.phrases)
		minHits := signal.minHits
		if minHits == 0 {
			minHits = 1
		}
		if len(hits) < minHits {
			continue
		}
		score += signal.weight
		reasons = append(reasons, signal.reason)
		indicators = append(indicators, hits...)
	}

	if score > maxComplexityScore {
		score = maxComplexityScore
	}

	var complexity Complexity
	var strategy Strategy
	switch {
	case score <= thresholds.SimpleMax:
		complexity = ComplexitySimple
		strategy = StrategyAuto
	case score <= thresholds.MediumMax:
		complexity = ComplexityMedium
		strategy = StrategyPreview
	default:
		complexity = ComplexityComplex
		strategy = StrategyInspect
	}

	confidence := float64(score) / float64(maxComplexityScore)
	if confidence > 0.95 {
		confidence = 0.95
	}

	return ComplexityResult{
		Complexity: complexity,
		Score:      score,
		Strategy:   strategy,
		Confidence: confidence,
		Reasons:    reasons,
		Indicators: indicators,
	}
}

// matchPhrases returns the distinct phrases found in the question with word
// boundaries on both sides.
func matchPhrases(question string, phrases []string) []string {
	var hits []string
	for _, phrase := range phrases {
		pattern := `\b` + regexp.QuoteMeta(phrase) + `\b`
		if matched, _ := regexp.MatchString(pattern, question); matched {
			hits = append(hits, phrase)
		}
	}
	return hits
}
