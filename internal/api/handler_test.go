package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlward/internal/db"
	"sqlward/internal/db/repository"
	"sqlward/internal/domain"
	"sqlward/internal/engine"
	"sqlward/internal/mask"
	"sqlward/internal/rewrite"
	"sqlward/internal/service"
	"sqlward/internal/trigger"
)

// stubExecutor stands in for the target Postgres.
type stubExecutor struct {
	rows     []domain.Row
	queryErr error
	execErr  error
	ddl      []string
}

func (e *stubExecutor) Query(context.Context, *domain.Database, string) ([]domain.Row, error) {
	return e.rows, e.queryErr
}

func (e *stubExecutor) Exec(_ context.Context, _ *domain.Database, sqlText string) error {
	if e.execErr != nil {
		return e.execErr
	}
	e.ddl = append(e.ddl, sqlText)
	return nil
}

type apiFixture struct {
	server *httptest.Server
	exec   *stubExecutor
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	writeDB, readDB := db.OpenTestSQLite(t)

	rules := repository.NewRuleRepo(writeDB, readDB)
	databases := repository.NewDatabaseRepo(writeDB, readDB)
	logs := repository.NewQueryLogRepo(writeDB, readDB)

	exec := &stubExecutor{}
	synchronizer := trigger.NewSynchronizer(exec, nil)
	eng := engine.New(databases, rewrite.NewComposer(rules, nil), exec, mask.NewTransformer(rules, nil), nil)

	handler := NewHandler(
		service.NewRuleService(rules, databases, synchronizer, nil),
		service.NewDatabaseService(databases, nil),
		service.NewQueryService(eng, databases, logs, nil),
		nil,
	)
	srv := httptest.NewServer(NewRouter(handler, nil, []string{"*"}))
	t.Cleanup(srv.Close)
	return &apiFixture{server: srv, exec: exec}
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (f *apiFixture) registerDatabase(t *testing.T, userID string, role domain.DatabaseRole) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/v1/databases", userID, map[string]interface{}{
		"databaseName": "orders",
		"host":         "localhost",
		"port":         5432,
		"username":     "app",
		"password":     "secret",
		"role":         role,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.ID)
	return body.ID
}

func ruleBody(databaseID string) map[string]interface{} {
	return map[string]interface{}{
		"databaseId": databaseID,
		"name":       "mask ssn",
		"queryTypes": []string{"SELECT"},
		"conditions": []map[string]string{
			{"type": "enforce_where", "value": "tenant_id = 1"},
		},
		"maskingPolicies": []map[string]string{
			{"column": "ssn", "type": "partial"},
		},
	}
}

func TestMissingCallerHeaderIs401(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, http.MethodGet, "/api/v1/databases", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthNeedsNoCaller(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDatabaseLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	id := f.registerDatabase(t, "alice", domain.RoleOwner)

	resp := f.do(t, http.MethodGet, "/api/v1/databases", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []map[string]interface{}
	decodeBody(t, resp, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, id, listed[0]["id"])
	assert.NotContains(t, listed[0], "password", "credentials never leave the service")

	// Another caller sees nothing and cannot delete.
	resp = f.do(t, http.MethodGet, "/api/v1/databases", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var empty []map[string]interface{}
	decodeBody(t, resp, &empty)
	assert.Empty(t, empty)

	resp = f.do(t, http.MethodDelete, "/api/v1/databases/"+id, "bob", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/v1/databases/"+id, "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRuleLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	dbID := f.registerDatabase(t, "alice", domain.RoleOwner)

	resp := f.do(t, http.MethodPost, "/api/v1/rules", "alice", ruleBody(dbID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created ruleResponse
	decodeBody(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Active)
	require.Len(t, f.exec.ddl, 1, "masking policy projected on create")

	resp = f.do(t, http.MethodGet, "/api/v1/databases/"+dbID+"/rules", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rules []ruleResponse
	decodeBody(t, resp, &rules)
	require.Len(t, rules, 1)
	assert.Equal(t, created.ID, rules[0].ID)

	resp = f.do(t, http.MethodPut, "/api/v1/rules/"+created.ID, "alice", map[string]interface{}{
		"active": false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated ruleResponse
	decodeBody(t, resp, &updated)
	assert.False(t, updated.Active)
	assert.Equal(t, "mask ssn", updated.Name)

	resp = f.do(t, http.MethodDelete, "/api/v1/rules/"+created.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/rules/"+created.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateRuleOnReadOnlyDatabaseIs403(t *testing.T) {
	f := newAPIFixture(t)
	dbID := f.registerDatabase(t, "alice", domain.RoleReadOnly)

	resp := f.do(t, http.MethodPost, "/api/v1/rules", "alice", ruleBody(dbID))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateRuleWithInvalidEnumIs400(t *testing.T) {
	f := newAPIFixture(t)
	dbID := f.registerDatabase(t, "alice", domain.RoleOwner)

	body := ruleBody(dbID)
	body["queryTypes"] = []string{"TRUNCATE"}
	resp := f.do(t, http.MethodPost, "/api/v1/rules", "alice", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateRuleSyncFailureSurfacesWarning(t *testing.T) {
	f := newAPIFixture(t)
	dbID := f.registerDatabase(t, "alice", domain.RoleOwner)
	f.exec.execErr = errors.New("connection refused")

	resp := f.do(t, http.MethodPost, "/api/v1/rules", "alice", ruleBody(dbID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Rule        ruleResponse `json:"rule"`
		SyncWarning string       `json:"syncWarning"`
	}
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.Rule.ID)
	assert.Contains(t, body.SyncWarning, "masking sync failed")
}

func TestRuleTestEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	dbID := f.registerDatabase(t, "alice", domain.RoleOwner)

	resp := f.do(t, http.MethodPost, "/api/v1/rules", "alice", ruleBody(dbID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created ruleResponse
	decodeBody(t, resp, &created)

	resp = f.do(t, http.MethodPost, "/api/v1/rules/"+created.ID+"/test", "alice", map[string]string{
		"query": "SELECT * FROM orders",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result domain.RuleTestResult
	decodeBody(t, resp, &result)
	assert.True(t, result.Passed)
	require.NotNil(t, result.ModifiedQuery)
	assert.Equal(t, "SELECT * FROM orders WHERE tenant_id = 1", *result.ModifiedQuery)
}

func TestExecuteQueryMasksResults(t *testing.T) {
	f := newAPIFixture(t)
	dbID := f.registerDatabase(t, "alice", domain.RoleOwner)

	resp := f.do(t, http.MethodPost, "/api/v1/rules", "alice", ruleBody(dbID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	f.exec.rows = []domain.Row{{"id": float64(1), "ssn": "123-45-6789"}}
	resp = f.do(t, http.MethodPost, "/api/v1/databases/"+dbID+"/query", "alice", map[string]string{
		"query": "SELECT * FROM orders",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result domain.EnforcementResult
	decodeBody(t, resp, &result)
	assert.Equal(t, "SELECT * FROM orders", result.OriginalQuery)
	assert.Equal(t, "SELECT * FROM orders WHERE tenant_id = 1", result.ExecutedQuery)
	require.Len(t, result.AppliedRules, 1)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "*******6789", result.Results[0]["ssn"])
}

func TestExecuteQueryStatementErrorIs422(t *testing.T) {
	f := newAPIFixture(t)
	dbID := f.registerDatabase(t, "alice", domain.RoleOwner)
	f.exec.queryErr = fmt.Errorf("relation %q does not exist", "missing")

	resp := f.do(t, http.MethodPost, "/api/v1/databases/"+dbID+"/query", "alice", map[string]string{
		"query": "SELECT * FROM missing",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "SELECT * FROM missing", body["originalQuery"])
	assert.NotEmpty(t, body["executedQuery"])
}

func TestExecuteQueryEmptyBodyIs400(t *testing.T) {
	f := newAPIFixture(t)
	dbID := f.registerDatabase(t, "alice", domain.RoleOwner)

	resp := f.do(t, http.MethodPost, "/api/v1/databases/"+dbID+"/query", "alice", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryLogsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	dbID := f.registerDatabase(t, "alice", domain.RoleOwner)

	f.exec.rows = []domain.Row{{"id": float64(1)}}
	resp := f.do(t, http.MethodPost, "/api/v1/databases/"+dbID+"/query", "alice", map[string]string{
		"query": "SELECT id FROM orders",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/databases/"+dbID+"/logs?limit=10", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs []queryLogResponse
	decodeBody(t, resp, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "SELECT id FROM orders", logs[0].OriginalQuery)
	assert.Equal(t, "ok", logs[0].Status)
}
