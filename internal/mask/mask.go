// Package mask applies column-level redaction policies to query results.
//
// Policies match rows purely by column-name presence, regardless of which
// table a row's query came from. A joined column with the same name gets
// masked too; this simplification is intentional and documented rather
// than corrected.
package mask

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"sqlward/internal/domain"
)

// Transformer masks result rows according to the masking policies of all
// active rules of a database.
type Transformer struct {
	rules  domain.RuleRepository
	logger *slog.Logger
}

// NewTransformer creates a Transformer backed by the given policy store.
func NewTransformer(rules domain.RuleRepository, logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{rules: rules, logger: logger}
}

// Apply returns a masked copy of rows. Masking is a data-exposure
// control, not a query-shape control: it is not gated by the rules' query
// types or by whether any condition fired — every active rule's policies
// apply. Rules are visited in load order and policies in list order, and
// each policy reads the already-masked value left by the previous one, so
// stacked policies on one column compose. The input rows are never
// mutated; nil or empty input is returned unchanged.
func (t *Transformer) Apply(ctx context.Context, databaseID string, rows []domain.Row) ([]domain.Row, error) {
	if len(rows) == 0 {
		return rows, nil
	}
	rules, err := t.rules.FindByDatabase(ctx, databaseID, true)
	if err != nil {
		return nil, err
	}

	policies := 0
	for _, r := range rules {
		policies += len(r.MaskingPolicies)
	}
	if policies == 0 {
		return rows, nil
	}

	masked := make([]domain.Row, len(rows))
	for i, row := range rows {
		out := make(domain.Row, len(row))
		for k, v := range row {
			out[k] = v
		}
		for _, rule := range rules {
			for _, p := range rule.MaskingPolicies {
				v, present := out[p.Column]
				if !present {
					continue
				}
				out[p.Column] = Value(p.Type, v)
			}
		}
		masked[i] = out
	}
	return masked, nil
}

// Value applies one masking function to a single value.
func Value(mt domain.MaskType, v interface{}) interface{} {
	switch mt {
	case domain.MaskPartial:
		return partial(v)
	case domain.MaskFull:
		return full(v)
	case domain.MaskHash:
		return hash(v)
	case domain.MaskCustom:
		return custom(v)
	case domain.MaskNone:
		// none only affects the trigger synchronizer; result values
		// pass through untouched.
		return v
	default:
		return v
	}
}

// partial keeps the last 4 characters and stars the rest. Strings of 4 or
// fewer characters pass through unchanged — a known weak case.
func partial(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	r := []rune(s)
	if len(r) <= 4 {
		return v
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

// full stars out a string preserving its length. Non-nil non-string
// values become the literal "****" so nothing of the value's shape leaks.
func full(v interface{}) interface{} {
	switch s := v.(type) {
	case string:
		return strings.Repeat("*", len([]rune(s)))
	case nil:
		return v
	default:
		return "****"
	}
}

// hash replaces the value with a short deterministic fingerprint of its
// string form. Determinism per value is the contract; compatibility with
// any other hash format is not.
func hash(v interface{}) interface{} {
	if v == nil {
		return v
	}
	sum := sha256.Sum256([]byte(fmt.Sprint(v)))
	return "HASH_" + hex.EncodeToString(sum[:4])
}

// custom keeps the first 2 and last 2 characters around a fixed
// separator. Strings of 4 or fewer characters pass through unchanged.
func custom(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	r := []rune(s)
	if len(r) <= 4 {
		return v
	}
	return string(r[:2]) + "-XXX-" + string(r[len(r)-2:])
}
