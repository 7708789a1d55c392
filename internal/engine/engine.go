// Package engine orchestrates one enforced query execution: classify and
// rewrite under the database's active rules, execute the rewritten
// statement, mask the result rows, and report what was applied.
package engine

import (
	"context"
	"log/slog"

	"sqlward/internal/domain"
	"sqlward/internal/mask"
	"sqlward/internal/rewrite"
)

// Engine ties the composer, executor, and mask transformer together.
// It is stateless across calls: each call reads a snapshot of the active
// rule set, and concurrent calls for the same database do not coordinate.
type Engine struct {
	databases domain.DatabaseRepository
	composer  *rewrite.Composer
	executor  domain.QueryExecutor
	masker    *mask.Transformer
	logger    *slog.Logger
}

// New creates an Engine.
func New(databases domain.DatabaseRepository, composer *rewrite.Composer, executor domain.QueryExecutor, masker *mask.Transformer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		databases: databases,
		composer:  composer,
		executor:  executor,
		masker:    masker,
		logger:    logger,
	}
}

// ExecuteWithRules runs sqlText against the database identified by
// databaseID with full rule enforcement. Database resolution and
// execution failures are fatal for the call; condition no-ops and masking
// of absent columns are not. Execution failures carry both the original
// and the executed SQL so the caller can diagnose whether the rewrite
// introduced the fault.
func (e *Engine) ExecuteWithRules(ctx context.Context, databaseID, sqlText string) (*domain.EnforcementResult, error) {
	db, err := e.databases.FindByID(ctx, databaseID)
	if err != nil {
		return nil, err
	}

	executed, fired, err := e.composer.Compose(ctx, databaseID, sqlText)
	if err != nil {
		return nil, err
	}

	rows, err := e.executor.Query(ctx, db, executed)
	if err != nil {
		return nil, &domain.ExecutionError{
			OriginalQuery: sqlText,
			ExecutedQuery: executed,
			Err:           err,
		}
	}

	masked, err := e.masker.Apply(ctx, databaseID, rows)
	if err != nil {
		return nil, err
	}

	applied := make([]domain.AppliedRule, len(fired))
	for i, r := range fired {
		applied[i] = domain.AppliedRule{ID: r.ID, Name: r.Name}
	}

	e.logger.Info("query enforced",
		"database", databaseID,
		"rules_fired", len(applied),
		"rows", len(masked),
	)
	return &domain.EnforcementResult{
		OriginalQuery: sqlText,
		ExecutedQuery: executed,
		AppliedRules:  applied,
		Results:       masked,
	}, nil
}
