// Package trigger projects masking policies into at-rest enforcement
// artifacts: one plpgsql function plus one BEFORE INSERT OR UPDATE
// trigger per masked column, bound to the database's primary data table.
//
// Artifacts are never stored; they are regenerated from the current
// masking-policy state and named deterministically from the column, so
// re-applying a sync is idempotent. Query-time result masking and these
// triggers are two independent projections of the same rule record, with
// no shared source of truth beyond the record itself.
package trigger

import (
	"context"
	"fmt"
	"log/slog"

	"sqlward/internal/domain"
)

// Synchronizer applies and removes at-rest masking artifacts on target
// databases. DDL runs through the same executor, and therefore the same
// credentials, as ordinary query execution.
type Synchronizer struct {
	executor domain.QueryExecutor
	logger   *slog.Logger
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(executor domain.QueryExecutor, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{executor: executor, logger: logger}
}

// Sync applies the artifacts for every masking policy of the rule. A
// policy of type none emits a drop-only statement; every other type emits
// create-or-replace plus drop-then-create, so re-running an unchanged
// policy set produces no semantic change.
func (s *Synchronizer) Sync(ctx context.Context, db *domain.Database, rule *domain.Rule) error {
	for _, p := range rule.MaskingPolicies {
		ddl := ArtifactDDL(db.DatabaseName, p)
		if ddl == "" {
			continue
		}
		if err := s.executor.Exec(ctx, db, ddl); err != nil {
			return &domain.SyncError{RuleID: rule.ID, Column: p.Column, Err: err}
		}
		s.logger.Info("masking artifact synced",
			"rule", rule.ID,
			"column", p.Column,
			"mask", p.Type,
			"table", db.DatabaseName,
		)
	}
	return nil
}

// Drop removes every artifact derived from the rule's masking policies.
// Callers must drop before deleting the rule record — the reverse order
// leaves an orphaned trigger attributed to a policy that no longer
// exists.
func (s *Synchronizer) Drop(ctx context.Context, db *domain.Database, rule *domain.Rule) error {
	for _, p := range rule.MaskingPolicies {
		if err := s.executor.Exec(ctx, db, DropTriggerDDL(db.DatabaseName, p.Column)); err != nil {
			return &domain.SyncError{RuleID: rule.ID, Column: p.Column, Err: err}
		}
		s.logger.Info("masking artifact dropped",
			"rule", rule.ID,
			"column", p.Column,
			"table", db.DatabaseName,
		)
	}
	return nil
}

// ArtifactDDL builds the full DDL batch for one masking policy: the
// trigger function, a drop of any previous trigger, and the new trigger
// binding. For MaskNone it returns the drop-only statement. Unknown mask
// types yield "".
//
// The function body performs the same semantic transformation as the
// query-time masking branch for the policy's type.
func ArtifactDDL(tableName string, p domain.MaskingPolicy) string {
	var body string
	switch p.Type {
	case domain.MaskPartial:
		// REPEAT with a negative count is empty and RIGHT caps at the
		// full string, so values of 4 or fewer characters pass through
		// unchanged, matching the query-time behavior.
		body = fmt.Sprintf(
			"NEW.%[1]s = CONCAT(REPEAT('*', LENGTH(NEW.%[1]s) - 4), RIGHT(NEW.%[1]s, 4));",
			p.Column)
	case domain.MaskFull:
		body = fmt.Sprintf("NEW.%[1]s = REPEAT('*', LENGTH(NEW.%[1]s));", p.Column)
	case domain.MaskHash:
		body = fmt.Sprintf("NEW.%[1]s = MD5(NEW.%[1]s)::text;", p.Column)
	case domain.MaskCustom:
		body = fmt.Sprintf(
			"IF LENGTH(NEW.%[1]s) > 4 THEN NEW.%[1]s = CONCAT(LEFT(NEW.%[1]s, 2), '-XXX-', RIGHT(NEW.%[1]s, 2)); END IF;",
			p.Column)
	case domain.MaskNone:
		return DropTriggerDDL(tableName, p.Column)
	default:
		return ""
	}

	fn := functionName(p)
	return fmt.Sprintf(`CREATE OR REPLACE FUNCTION %[1]s()
RETURNS TRIGGER AS $$
BEGIN
  IF NEW.%[2]s IS NOT NULL THEN
    %[3]s
  END IF;
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS %[4]s ON %[5]q;

CREATE TRIGGER %[4]s
BEFORE INSERT OR UPDATE ON %[5]q
FOR EACH ROW
EXECUTE FUNCTION %[1]s();`,
		fn, p.Column, body, triggerName(p.Column), tableName)
}

// DropTriggerDDL builds the statement removing the trigger for a column.
func DropTriggerDDL(tableName, column string) string {
	return fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %q;", triggerName(column), tableName)
}

// triggerName derives the deterministic trigger name for a column.
func triggerName(column string) string {
	return "mask_" + column + "_trigger"
}

// functionName derives the deterministic function name for a policy.
func functionName(p domain.MaskingPolicy) string {
	return fmt.Sprintf("mask_%s_%s", p.Column, p.Type)
}
