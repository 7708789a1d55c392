package domain

import "time"

// Row is one result row as an ordered-by-nothing column→value mapping.
type Row map[string]interface{}

// AppliedRule identifies a rule whose conditions changed the statement.
type AppliedRule struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EnforcementResult is the outcome of one enforced query execution.
type EnforcementResult struct {
	OriginalQuery string        `json:"originalQuery"`
	ExecutedQuery string        `json:"executedQuery"`
	AppliedRules  []AppliedRule `json:"appliedRules"`
	Results       []Row         `json:"results"`
}

// RuleTestResult reports whether a rule's conditions would alter a
// statement, without executing anything. Passed is true iff the text
// changed; ModifiedQuery is nil when it did not.
type RuleTestResult struct {
	Passed        bool    `json:"passed"`
	ModifiedQuery *string `json:"modifiedQuery"`
	Error         *string `json:"error"`
}

// QueryLog is one recorded enforced execution.
type QueryLog struct {
	ID            string
	DatabaseID    string
	UserID        string
	OriginalQuery string
	ExecutedQuery string
	AppliedRules  int
	Status        string // "ok" or "error"
	ErrorMessage  string
	DurationMs    int64
	CreatedAt     time.Time
}
