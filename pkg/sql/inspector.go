package sql

import (
	"regexp"
	"strings"
)

// SQLInspector extracts structural features from generated SQL text.
// The engine ships a regex-based implementation; a real parser can be
// substituted here without touching verdict logic.
type SQLInspector interface {
	// CTENames returns every common-table-expression name declared in the
	// statement's WITH list, in order of appearance.
	CTENames(sqlText string) []string

	// WhereClause returns the raw content of the top-level WHERE clause,
	// bounded by the next ORDER BY / GROUP BY / HAVING / LIMIT or end of
	// statement. The bool is false when the statement has no top-level WHERE.
	WhereClause(sqlText string) (string, bool)
}

// cteNamePattern matches an identifier immediately followed by AS ( in a
// WITH list, tolerating arbitrary whitespace.
var cteNamePattern = regexp.MustCompile(`(?is)\b([A-Za-z_][A-Za-z0-9_]*)\s+AS\s*\(`)

// RegexInspector is the regex-heuristic SQLInspector.
type RegexInspector struct{}

// NewRegexInspector returns the default regex-based inspector.
func NewRegexInspector() *RegexInspector {
	return &RegexInspector{}
}

var _ SQLInspector = (*RegexInspector)(nil)

// CTENames extracts CTE names from the statement's WITH list.
// Matches are restricted to identifiers declared with `name AS (`; derived
// table aliases do not use that form so they are not picked up.
func (i *RegexInspector) CTENames(sqlText string) []string {
	if !containsKeyword(sqlText, "WITH") {
		return nil
	}

	var names []string
	for _, m := range cteNamePattern.FindAllStringSubmatch(sqlText, -1) {
		name := m[1]
		// WITH itself and set keywords can precede AS ( in odd formatting.
		if strings.EqualFold(name, "WITH") {
			continue
		}
		names = append(names, name)
	}
	return names
}

// WhereClause locates the last WHERE at parenthesis depth zero (CTE bodies
// and subqueries live at higher depth) and returns its content up to the
// next top-level clause keyword.
func (i *RegexInspector) WhereClause(sqlText string) (string, bool) {
	whereStart := -1

	depth := 0
	inSingle, inDouble := false, false
	upper := strings.ToUpper(sqlText)
	for pos := 0; pos < len(sqlText); pos++ {
		ch := sqlText[pos]
		switch {
		case inSingle:
			if ch == '\'' {
				inSingle = false
			}
		case inDouble:
			if ch == '"' {
				inDouble = false
			}
		case ch == '\'':
			inSingle = true
		case ch == '"':
			inDouble = true
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		default:
			if depth == 0 && ch != ' ' && keywordAt(upper, pos, "WHERE") {
				whereStart = pos + len("WHERE")
			}
		}
	}

	if whereStart == -1 {
		return "", false
	}

	content := sqlText[whereStart:]
	end := len(content)
	for _, kw := range []string{"ORDER BY", "GROUP BY", "HAVING", "LIMIT", ";"} {
		if idx := indexKeyword(strings.ToUpper(content), kw); idx != -1 && idx < end {
			end = idx
		}
	}

	return strings.TrimSpace(content[:end]), true
}

// keywordAt reports whether the uppercased SQL has the keyword at pos with
// word boundaries on both sides.
func keywordAt(upper string, pos int, kw string) bool {
	if pos+len(kw) > len(upper) || upper[pos:pos+len(kw)] != kw {
		return false
	}
	if pos > 0 && isWordByte(upper[pos-1]) {
		return false
	}
	if pos+len(kw) < len(upper) && isWordByte(upper[pos+len(kw)]) {
		return false
	}
	return true
}

// indexKeyword finds the first word-boundary occurrence of kw in upper.
func indexKeyword(upper, kw string) int {
	for from := 0; ; {
		idx := strings.Index(upper[from:], kw)
		if idx == -1 {
			return -1
		}
		abs := from + idx
		if keywordAt(upper, abs, kw) {
			return abs
		}
		from = abs + 1
	}
}

func containsKeyword(sqlText, kw string) bool {
	return indexKeyword(strings.ToUpper(sqlText), kw) != -1
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
