package llm

import (
	"fmt"
	"strings"

	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

const classificationInstructions = `You classify clinical analytics questions
into a structured intent over a fixed snippet catalog.

Respond with a single JSON object, no prose, matching:
{
  "intent": "<analytical intent id>",
  "snippet_ids": ["<catalog snippet id>", ...],
  "filters": [{"field": "...", "operator": "=", "value": "...", "required": true, "confidence": 0.0}],
  "placeholders": {"<name>": "<value>"},
  "confidence": 0.0
}

Only reference snippet ids from the catalog below. Filters are residual
WHERE-clause constraints stated in the question that no snippet already
applies. Placeholders fill the {braced} inputs of the chosen snippets.`

// buildSystemPrompt renders the classification instructions plus the snippet
// catalog inventory the model may draw from.
func buildSystemPrompt(snippets []*models.ComposableSnippet) string {
	var b strings.Builder
	b.WriteString(classificationInstructions)
	b.WriteString("\n\nCatalog:\n")
	for _, s := range snippets {
		fmt.Fprintf(&b, "- id=%s intent=%s name=%q inputs=%v outputs=%v\n",
			s.ID, s.Intent, s.Name, s.Inputs, s.Outputs)
	}
	return b.String()
}
