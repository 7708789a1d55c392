// Package api exposes the rule, database, and query operations over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sqlward/internal/domain"
	"sqlward/internal/service"
)

// Handler serves the HTTP API.
type Handler struct {
	rules     *service.RuleService
	databases *service.DatabaseService
	queries   *service.QueryService
	logger    *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(rules *service.RuleService, databases *service.DatabaseService, queries *service.QueryService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		rules:     rules,
		databases: databases,
		queries:   queries,
		logger:    logger,
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listDatabases(w http.ResponseWriter, r *http.Request) {
	dbs, err := h.databases.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]databaseResponse, 0, len(dbs))
	for i := range dbs {
		out = append(out, toDatabaseResponse(&dbs[i]))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createDatabase(w http.ResponseWriter, r *http.Request) {
	var req createDatabaseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.databases.Register(r.Context(), domain.CreateDatabaseRequest{
		DatabaseName:  req.DatabaseName,
		ConnectionURI: req.ConnectionURI,
		Host:          req.Host,
		Port:          req.Port,
		Username:      req.Username,
		Password:      req.Password,
		Role:          req.Role,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toDatabaseResponse(created))
}

func (h *Handler) deleteDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.databases.Delete(r.Context(), chi.URLParam(r, "databaseID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.ListByDatabase(r.Context(), chi.URLParam(r, "databaseID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRuleResponses(rules))
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.rules.Create(r.Context(), domain.CreateRuleRequest{
		DatabaseID:      req.DatabaseID,
		Name:            req.Name,
		Description:     req.Description,
		QueryTypes:      req.QueryTypes,
		Conditions:      req.Conditions,
		MaskingPolicies: req.MaskingPolicies,
	})
	if err != nil && created == nil {
		h.writeError(w, r, err)
		return
	}
	// A SyncError arrives together with the persisted rule: the record is
	// live but its at-rest artifacts are behind. Surface both.
	if err != nil {
		h.writeJSON(w, http.StatusCreated, map[string]interface{}{
			"rule":        toRuleResponse(created),
			"syncWarning": err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusCreated, toRuleResponse(created))
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.Get(r.Context(), chi.URLParam(r, "ruleID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRuleResponse(rule))
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	var req updateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	updated, err := h.rules.Update(r.Context(), chi.URLParam(r, "ruleID"), domain.UpdateRuleRequest{
		Name:            req.Name,
		Description:     req.Description,
		QueryTypes:      req.QueryTypes,
		Conditions:      req.Conditions,
		MaskingPolicies: req.MaskingPolicies,
		Active:          req.Active,
	})
	if err != nil && updated == nil {
		h.writeError(w, r, err)
		return
	}
	if err != nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"rule":        toRuleResponse(updated),
			"syncWarning": err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, toRuleResponse(updated))
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.Delete(r.Context(), chi.URLParam(r, "ruleID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) testRule(w http.ResponseWriter, r *http.Request) {
	var req testRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Query == "" {
		h.writeError(w, r, domain.ErrValidation("query is required"))
		return
	}
	result, err := h.rules.Test(r.Context(), chi.URLParam(r, "ruleID"), req.Query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) executeQuery(w http.ResponseWriter, r *http.Request) {
	var req executeQueryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Query == "" {
		h.writeError(w, r, domain.ErrValidation("query is required"))
		return
	}
	result, err := h.queries.Execute(r.Context(), chi.URLParam(r, "databaseID"), req.Query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, r, domain.ErrValidation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	logs, err := h.queries.Logs(r.Context(), chi.URLParam(r, "databaseID"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toQueryLogResponses(logs))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encode failed", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound     *domain.NotFoundError
		accessDenied *domain.AccessDeniedError
		validation   *domain.ValidationError
		conflict     *domain.ConflictError
		execErr      *domain.ExecutionError
		syncErr      *domain.SyncError
	)
	switch {
	case errors.As(err, &notFound):
		h.writeJSON(w, http.StatusNotFound, errorBody(err))
	case errors.As(err, &accessDenied):
		h.writeJSON(w, http.StatusForbidden, errorBody(err))
	case errors.As(err, &validation):
		h.writeJSON(w, http.StatusBadRequest, errorBody(err))
	case errors.As(err, &conflict):
		h.writeJSON(w, http.StatusConflict, errorBody(err))
	case errors.As(err, &execErr):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"message":       execErr.Error(),
			"originalQuery": execErr.OriginalQuery,
			"executedQuery": execErr.ExecutedQuery,
		})
	case errors.As(err, &syncErr):
		h.writeJSON(w, http.StatusBadGateway, errorBody(err))
	default:
		h.logger.Error("internal error", "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
	}
}

func errorBody(err error) map[string]string {
	return map[string]string{"message": err.Error()}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}
