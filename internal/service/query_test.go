package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlward/internal/domain"
	"sqlward/internal/engine"
	"sqlward/internal/mask"
	"sqlward/internal/rewrite"
)

type memLogRepo struct {
	entries   []domain.QueryLog
	insertErr error
}

func (m *memLogRepo) Insert(_ context.Context, e *domain.QueryLog) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memLogRepo) ListForDatabase(_ context.Context, databaseID string, limit int) ([]domain.QueryLog, error) {
	var out []domain.QueryLog
	for _, e := range m.entries {
		if e.DatabaseID == databaseID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type rowExecutor struct {
	rows []domain.Row
	err  error
}

func (e *rowExecutor) Query(context.Context, *domain.Database, string) ([]domain.Row, error) {
	return e.rows, e.err
}

func (e *rowExecutor) Exec(context.Context, *domain.Database, string) error {
	panic("not used")
}

type queryFixture struct {
	svc  *QueryService
	logs *memLogRepo
	db   *domain.Database
}

func newQueryFixture(t *testing.T, rules []*domain.Rule, exec domain.QueryExecutor) *queryFixture {
	t.Helper()
	ruleRepo := &memRuleRepo{rules: rules}
	dbRepo := &memDatabaseRepo{}
	logs := &memLogRepo{}

	db := &domain.Database{ID: "db1", UserID: "alice", DatabaseName: "orders", Role: domain.RoleOwner}
	dbRepo.databases = append(dbRepo.databases, db)

	eng := engine.New(dbRepo, rewrite.NewComposer(ruleRepo, nil), exec, mask.NewTransformer(ruleRepo, nil), nil)
	return &queryFixture{
		svc:  NewQueryService(eng, dbRepo, logs, nil),
		logs: logs,
		db:   db,
	}
}

func TestQueryServiceExecuteRecordsHistory(t *testing.T) {
	rules := []*domain.Rule{{
		ID: "r1", DatabaseID: "db1", Name: "cap", Active: true,
		QueryTypes: []domain.QueryType{domain.QuerySelect},
		Conditions: []domain.Condition{{Type: domain.ConditionRowLimit, Value: "10"}},
	}}
	f := newQueryFixture(t, rules, &rowExecutor{rows: []domain.Row{{"id": 1}}})

	result, err := f.svc.Execute(callerCtx("alice"), "db1", "SELECT * FROM orders")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM orders LIMIT 10", result.ExecutedQuery)

	require.Len(t, f.logs.entries, 1)
	entry := f.logs.entries[0]
	assert.Equal(t, "db1", entry.DatabaseID)
	assert.Equal(t, "alice", entry.UserID)
	assert.Equal(t, "SELECT * FROM orders", entry.OriginalQuery)
	assert.Equal(t, "SELECT * FROM orders LIMIT 10", entry.ExecutedQuery)
	assert.Equal(t, 1, entry.AppliedRules)
	assert.Equal(t, "ok", entry.Status)
}

func TestQueryServiceExecuteRecordsFailures(t *testing.T) {
	f := newQueryFixture(t, nil, &rowExecutor{err: errors.New("relation does not exist")})

	_, err := f.svc.Execute(callerCtx("alice"), "db1", "SELECT * FROM missing")
	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)

	require.Len(t, f.logs.entries, 1)
	entry := f.logs.entries[0]
	assert.Equal(t, "error", entry.Status)
	assert.Equal(t, "SELECT * FROM missing", entry.ExecutedQuery)
	assert.NotEmpty(t, entry.ErrorMessage)
}

func TestQueryServiceExecuteFailedLogInsertDoesNotFailQuery(t *testing.T) {
	f := newQueryFixture(t, nil, &rowExecutor{rows: []domain.Row{{"id": 1}}})
	f.logs.insertErr = errors.New("disk full")

	result, err := f.svc.Execute(callerCtx("alice"), "db1", "SELECT id FROM orders")
	require.NoError(t, err)
	assert.Len(t, result.Results, 1)
}

func TestQueryServiceExecuteScopesToCaller(t *testing.T) {
	f := newQueryFixture(t, nil, &rowExecutor{})

	_, err := f.svc.Execute(callerCtx("mallory"), "db1", "SELECT 1")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Empty(t, f.logs.entries)
}

func TestQueryServiceLogs(t *testing.T) {
	f := newQueryFixture(t, nil, &rowExecutor{rows: []domain.Row{{"id": 1}}})

	_, err := f.svc.Execute(callerCtx("alice"), "db1", "SELECT id FROM orders")
	require.NoError(t, err)

	logs, err := f.svc.Logs(callerCtx("alice"), "db1", 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	_, err = f.svc.Logs(callerCtx("mallory"), "db1", 10)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
