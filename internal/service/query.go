package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sqlward/internal/domain"
	"sqlward/internal/engine"
)

// QueryService wraps the enforcement engine with caller scoping and
// query-history recording.
type QueryService struct {
	engine    *engine.Engine
	databases domain.DatabaseRepository
	logs      domain.QueryLogRepository
	logger    *slog.Logger
}

// NewQueryService creates a QueryService.
func NewQueryService(eng *engine.Engine, databases domain.DatabaseRepository, logs domain.QueryLogRepository, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{
		engine:    eng,
		databases: databases,
		logs:      logs,
		logger:    logger,
	}
}

// Execute runs sqlText against the caller's database with full rule
// enforcement and records the outcome in the query history.
func (s *QueryService) Execute(ctx context.Context, databaseID, sqlText string) (*domain.EnforcementResult, error) {
	caller, ok := domain.CallerFromContext(ctx)
	if !ok {
		return nil, domain.ErrAccessDenied("no caller identity")
	}
	if _, err := s.databases.FindForUser(ctx, databaseID, caller.UserID); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.engine.ExecuteWithRules(ctx, databaseID, sqlText)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		s.record(ctx, &domain.QueryLog{
			DatabaseID:    databaseID,
			UserID:        caller.UserID,
			OriginalQuery: sqlText,
			ExecutedQuery: executedQueryFrom(err),
			Status:        "error",
			ErrorMessage:  err.Error(),
			DurationMs:    duration,
		})
		return nil, err
	}

	s.record(ctx, &domain.QueryLog{
		DatabaseID:    databaseID,
		UserID:        caller.UserID,
		OriginalQuery: result.OriginalQuery,
		ExecutedQuery: result.ExecutedQuery,
		AppliedRules:  len(result.AppliedRules),
		Status:        "ok",
		DurationMs:    duration,
	})
	return result, nil
}

// Logs returns the recent query history of a caller-scoped database.
func (s *QueryService) Logs(ctx context.Context, databaseID string, limit int) ([]domain.QueryLog, error) {
	caller, ok := domain.CallerFromContext(ctx)
	if !ok {
		return nil, domain.ErrAccessDenied("no caller identity")
	}
	if _, err := s.databases.FindForUser(ctx, databaseID, caller.UserID); err != nil {
		return nil, err
	}
	return s.logs.ListForDatabase(ctx, databaseID, limit)
}

// record inserts a history entry best-effort: a failed insert never fails
// the query it describes.
func (s *QueryService) record(ctx context.Context, entry *domain.QueryLog) {
	if err := s.logs.Insert(ctx, entry); err != nil {
		s.logger.Warn("query log insert failed", "database", entry.DatabaseID, "error", err)
	}
}

// executedQueryFrom pulls the rewritten SQL out of an execution error, so
// failed runs still record what was actually sent.
func executedQueryFrom(err error) string {
	var execErr *domain.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.ExecutedQuery
	}
	return ""
}
