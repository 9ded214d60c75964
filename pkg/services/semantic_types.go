package services

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Semantic types assigned to discovered columns and form fields.
const (
	SemanticTypeIdentifier  = "identifier"
	SemanticTypeDate        = "date"
	SemanticTypeMeasurement = "measurement"
	SemanticTypeFlag        = "flag"
	SemanticTypeCategory    = "category"
	SemanticTypeNumber      = "number"
	SemanticTypeText        = "text"
)

var measurementTokens = []string{
	"area", "length", "width", "depth", "height", "volume", "circumference",
	"cm", "mm", "score", "count", "percent", "pct", "rate", "weight",
}

var categoryTokens = []string{
	"type", "status", "category", "stage", "grade", "severity", "etiology",
	"location", "side",
}

// classifyColumn infers a semantic type and a confidence for one column from
// its name and declared data type. Name evidence and type evidence agreeing
// yields the highest confidence; a bare fallback classification is low enough
// to flag for review.
func classifyColumn(columnName, dataType string) (string, float64) {
	name := strings.ToLower(columnName)
	dtype := strings.ToLower(dataType)

	isNumeric := strings.Contains(dtype, "int") || strings.Contains(dtype, "numeric") ||
		strings.Contains(dtype, "decimal") || strings.Contains(dtype, "float") ||
		strings.Contains(dtype, "double") || strings.Contains(dtype, "real") ||
		strings.Contains(dtype, "money")
	isTemporal := strings.Contains(dtype, "date") || strings.Contains(dtype, "time")
	isBool := strings.Contains(dtype, "bool") || dtype == "bit"

	switch {
	case name == "id" || strings.HasSuffix(name, "_id") || strings.Contains(dtype, "uuid"):
		return SemanticTypeIdentifier, 0.95
	case isTemporal || strings.HasSuffix(name, "_at") || strings.HasSuffix(name, "_date"):
		return SemanticTypeDate, 0.9
	case isBool || strings.HasPrefix(name, "is_") || strings.HasPrefix(name, "has_"):
		return SemanticTypeFlag, 0.9
	case isNumeric && containsToken(name, measurementTokens):
		return SemanticTypeMeasurement, 0.9
	case containsToken(name, measurementTokens):
		return SemanticTypeMeasurement, 0.75
	case containsToken(name, categoryTokens):
		return SemanticTypeCategory, 0.8
	case isNumeric:
		return SemanticTypeNumber, 0.6
	default:
		return SemanticTypeText, 0.5
	}
}

// containsToken reports whether any token appears as a full underscore-
// delimited word in the name.
func containsToken(name string, tokens []string) bool {
	parts := strings.Split(name, "_")
	for _, part := range parts {
		for _, token := range tokens {
			if part == token {
				return true
			}
		}
	}
	return false
}

// displayName turns a snake_case identifier into a human-readable label,
// singularizing the final word ("wound_measurements" -> "Wound Measurement").
func displayName(identifier string) string {
	parts := strings.Split(strings.ToLower(identifier), "_")
	if len(parts) == 0 {
		return identifier
	}
	parts[len(parts)-1] = inflection.Singular(parts[len(parts)-1])
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
