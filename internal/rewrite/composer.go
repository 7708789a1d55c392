package rewrite

import (
	"context"
	"log/slog"

	"sqlward/internal/domain"
)

// Composer folds every active rule of a database over a SQL statement.
type Composer struct {
	rules    domain.RuleRepository
	rewriter *Rewriter
	logger   *slog.Logger
}

// NewComposer creates a Composer backed by the given policy store.
func NewComposer(rules domain.RuleRepository, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		rules:    rules,
		rewriter: NewRewriter(logger),
		logger:   logger,
	}
}

// Compose loads the active rules for databaseID, in creation order, and
// applies each matching rule's conditions to sqlText. The rule set is a
// snapshot: concurrent rule mutations after the load are not observed by
// this call.
//
// The statement is classified exactly once, up front. Each condition sees
// the original statement's type, never a re-classification of the
// progressively rewritten text. A rule is reported as fired iff the text
// differs before vs. after folding its conditions; that equality check is
// the sole firing signal.
func (c *Composer) Compose(ctx context.Context, databaseID, sqlText string) (string, []domain.Rule, error) {
	rules, err := c.rules.FindByDatabase(ctx, databaseID, true)
	if err != nil {
		return "", nil, err
	}

	qt := Classify(sqlText)
	current := sqlText
	var fired []domain.Rule
	for _, rule := range rules {
		before := current
		current = c.rewriter.ApplyRule(rule, qt, current)
		if current != before {
			fired = append(fired, rule)
		}
	}

	if len(fired) > 0 {
		c.logger.Debug("statement rewritten",
			"database", databaseID,
			"type", qt,
			"rules_fired", len(fired),
		)
	}
	return current, fired, nil
}
