// Package rewrite implements query-time rule enforcement: statement
// classification, per-condition textual rewriting, and composition of all
// active rules of a database over one statement.
//
// Rewriting is deliberately textual and conservative. There is no SQL
// parser here; each transformation either makes a narrow, well-defined
// edit or leaves the statement alone.
package rewrite

import (
	"strings"

	"sqlward/internal/domain"
)

// Classify returns the top-level statement type of a raw SQL string via a
// prefix test on the trimmed, uppercased text. It is read-only and
// idempotent. Unrecognized statements classify as QueryUnknown, which
// matches no rule's query types, so they pass the pipeline unmodified.
func Classify(sqlText string) domain.QueryType {
	upper := strings.ToUpper(strings.TrimSpace(sqlText))
	switch {
	case strings.HasPrefix(upper, "SELECT"):
		return domain.QuerySelect
	case strings.HasPrefix(upper, "INSERT"):
		return domain.QueryInsert
	case strings.HasPrefix(upper, "UPDATE"):
		return domain.QueryUpdate
	case strings.HasPrefix(upper, "DELETE"):
		return domain.QueryDelete
	default:
		return domain.QueryUnknown
	}
}
