package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

// InjectionFinding describes a residual-filter value flagged as a SQL
// injection attempt.
type InjectionFinding struct {
	Field       string `json:"field"`
	Value       string `json:"value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint
}

// CheckFiltersForInjection screens every residual-filter value with
// libinjection before the value is ever embedded in rendered SQL.
// Returns an empty slice when all values are clean.
func CheckFiltersForInjection(filters []models.ResidualFilter) []InjectionFinding {
	var findings []InjectionFinding

	for _, f := range filters {
		if f.Value == "" {
			continue
		}
		isSQLi, fingerprint := libinjection.IsSQLi(f.Value)
		if isSQLi {
			findings = append(findings, InjectionFinding{
				Field:       f.Field,
				Value:       f.Value,
				Fingerprint: string(fingerprint),
			})
		}
	}

	return findings
}

// CheckPlaceholdersForInjection screens user-supplied placeholder values the
// same way; placeholders are substituted verbatim at render time.
func CheckPlaceholdersForInjection(placeholders map[string]string) []InjectionFinding {
	var findings []InjectionFinding

	for name, value := range placeholders {
		if value == "" {
			continue
		}
		isSQLi, fingerprint := libinjection.IsSQLi(value)
		if isSQLi {
			findings = append(findings, InjectionFinding{
				Field:       name,
				Value:       value,
				Fingerprint: string(fingerprint),
			})
		}
	}

	return findings
}
