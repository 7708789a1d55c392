package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sqlward/internal/domain"
)

// QueryLogRepo records enforced executions.
type QueryLogRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewQueryLogRepo creates a QueryLogRepo on the given pool pair.
func NewQueryLogRepo(writeDB, readDB *sql.DB) *QueryLogRepo {
	return &QueryLogRepo{writeDB: writeDB, readDB: readDB}
}

// Insert stores one log entry.
func (r *QueryLogRepo) Insert(ctx context.Context, e *domain.QueryLog) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.writeDB.ExecContext(ctx, `
		INSERT INTO query_logs (id, database_id, user_id, original_query, executed_query, applied_rules, status, error_message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DatabaseID, e.UserID, e.OriginalQuery, e.ExecutedQuery,
		e.AppliedRules, e.Status, e.ErrorMessage, e.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

// ListForDatabase returns the most recent entries for a database, newest
// first. limit <= 0 defaults to 50.
func (r *QueryLogRepo) ListForDatabase(ctx context.Context, databaseID string, limit int) ([]domain.QueryLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.readDB.QueryContext(ctx, `
		SELECT id, database_id, user_id, original_query, executed_query, applied_rules, status, error_message, duration_ms, created_at
		FROM query_logs
		WHERE database_id = ?
		ORDER BY rowid DESC
		LIMIT ?`, databaseID, limit)
	if err != nil {
		return nil, fmt.Errorf("list query logs: %w", err)
	}
	defer rows.Close()

	var out []domain.QueryLog
	for rows.Next() {
		var (
			e         domain.QueryLog
			createdAt time.Time
		)
		err := rows.Scan(
			&e.ID, &e.DatabaseID, &e.UserID, &e.OriginalQuery, &e.ExecutedQuery,
			&e.AppliedRules, &e.Status, &e.ErrorMessage, &e.DurationMs, &createdAt,
		)
		if err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt
		out = append(out, e)
	}
	return out, rows.Err()
}
