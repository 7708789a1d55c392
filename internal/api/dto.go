package api

import (
	"time"

	"sqlward/internal/domain"
)

type ruleResponse struct {
	ID              string                 `json:"id"`
	DatabaseID      string                 `json:"databaseId"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description,omitempty"`
	QueryTypes      []domain.QueryType     `json:"queryTypes"`
	Conditions      []domain.Condition     `json:"conditions"`
	MaskingPolicies []domain.MaskingPolicy `json:"maskingPolicies"`
	Active          bool                   `json:"active"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

func toRuleResponse(r *domain.Rule) ruleResponse {
	resp := ruleResponse{
		ID:              r.ID,
		DatabaseID:      r.DatabaseID,
		Name:            r.Name,
		Description:     r.Description,
		QueryTypes:      r.QueryTypes,
		Conditions:      r.Conditions,
		MaskingPolicies: r.MaskingPolicies,
		Active:          r.Active,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if resp.QueryTypes == nil {
		resp.QueryTypes = []domain.QueryType{}
	}
	if resp.Conditions == nil {
		resp.Conditions = []domain.Condition{}
	}
	if resp.MaskingPolicies == nil {
		resp.MaskingPolicies = []domain.MaskingPolicy{}
	}
	return resp
}

func toRuleResponses(rules []domain.Rule) []ruleResponse {
	out := make([]ruleResponse, 0, len(rules))
	for i := range rules {
		out = append(out, toRuleResponse(&rules[i]))
	}
	return out
}

type createRuleRequest struct {
	DatabaseID      string                 `json:"databaseId"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	QueryTypes      []domain.QueryType     `json:"queryTypes"`
	Conditions      []domain.Condition     `json:"conditions"`
	MaskingPolicies []domain.MaskingPolicy `json:"maskingPolicies"`
}

type updateRuleRequest struct {
	Name            *string                 `json:"name"`
	Description     *string                 `json:"description"`
	QueryTypes      *[]domain.QueryType     `json:"queryTypes"`
	Conditions      *[]domain.Condition     `json:"conditions"`
	MaskingPolicies *[]domain.MaskingPolicy `json:"maskingPolicies"`
	Active          *bool                   `json:"active"`
}

type testRuleRequest struct {
	Query string `json:"query"`
}

// databaseResponse omits the stored credentials.
type databaseResponse struct {
	ID           string              `json:"id"`
	DatabaseName string              `json:"databaseName"`
	Host         string              `json:"host,omitempty"`
	Port         int                 `json:"port,omitempty"`
	Username     string              `json:"username,omitempty"`
	Role         domain.DatabaseRole `json:"role"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func toDatabaseResponse(d *domain.Database) databaseResponse {
	return databaseResponse{
		ID:           d.ID,
		DatabaseName: d.DatabaseName,
		Host:         d.Host,
		Port:         d.Port,
		Username:     d.Username,
		Role:         d.Role,
		CreatedAt:    d.CreatedAt,
	}
}

type createDatabaseRequest struct {
	DatabaseName  string              `json:"databaseName"`
	ConnectionURI string              `json:"connectionUri"`
	Host          string              `json:"host"`
	Port          int                 `json:"port"`
	Username      string              `json:"username"`
	Password      string              `json:"password"`
	Role          domain.DatabaseRole `json:"role"`
}

type executeQueryRequest struct {
	Query string `json:"query"`
}

type queryLogResponse struct {
	ID            string    `json:"id"`
	DatabaseID    string    `json:"databaseId"`
	UserID        string    `json:"userId"`
	OriginalQuery string    `json:"originalQuery"`
	ExecutedQuery string    `json:"executedQuery,omitempty"`
	AppliedRules  int       `json:"appliedRules"`
	Status        string    `json:"status"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	DurationMs    int64     `json:"durationMs"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toQueryLogResponses(logs []domain.QueryLog) []queryLogResponse {
	out := make([]queryLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, queryLogResponse{
			ID:            l.ID,
			DatabaseID:    l.DatabaseID,
			UserID:        l.UserID,
			OriginalQuery: l.OriginalQuery,
			ExecutedQuery: l.ExecutedQuery,
			AppliedRules:  l.AppliedRules,
			Status:        l.Status,
			ErrorMessage:  l.ErrorMessage,
			DurationMs:    l.DurationMs,
			CreatedAt:     l.CreatedAt,
		})
	}
	return out
}
