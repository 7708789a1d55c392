package domain

import "time"

// QueryType identifies the top-level kind of a SQL statement.
type QueryType string

const (
	QuerySelect QueryType = "SELECT"
	QueryInsert QueryType = "INSERT"
	QueryUpdate QueryType = "UPDATE"
	QueryDelete QueryType = "DELETE"
	QueryJoin   QueryType = "JOIN"

	// QueryUnknown is a classification result only. It is never a valid
	// rule query type and matches no rule, so unrecognized statements
	// pass through the rewriting pipeline unchanged.
	QueryUnknown QueryType = "UNKNOWN"
)

// ValidQueryTypes is the closed set accepted on rule writes.
var ValidQueryTypes = map[QueryType]bool{
	QuerySelect: true,
	QueryInsert: true,
	QueryUpdate: true,
	QueryDelete: true,
	QueryJoin:   true,
}

// ConditionType identifies one kind of query-rewrite directive.
type ConditionType string

const (
	ConditionEnforceWhere    ConditionType = "enforce_where"
	ConditionRestrictColumns ConditionType = "restrict_columns"
	ConditionRowLimit        ConditionType = "row_limit"
	ConditionTimeWindow      ConditionType = "time_window"
)

// ValidConditionTypes is the closed set accepted on rule writes.
var ValidConditionTypes = map[ConditionType]bool{
	ConditionEnforceWhere:    true,
	ConditionRestrictColumns: true,
	ConditionRowLimit:        true,
	ConditionTimeWindow:      true,
}

// MaskType identifies one column-level redaction function.
type MaskType string

const (
	MaskPartial MaskType = "partial"
	MaskFull    MaskType = "full"
	MaskHash    MaskType = "hash"
	MaskCustom  MaskType = "custom"

	// MaskNone clears masking for a column: result rows pass through
	// untouched and the trigger synchronizer drops any existing artifact.
	MaskNone MaskType = "none"
)

// ValidMaskTypes is the closed set accepted on rule writes.
var ValidMaskTypes = map[MaskType]bool{
	MaskPartial: true,
	MaskFull:    true,
	MaskHash:    true,
	MaskCustom:  true,
	MaskNone:    true,
}

// Condition is one textual SQL-rewrite directive within a rule.
// Conditions are ordered: they are applied in list order and compound.
// The grammar of Value depends on Type: a boolean predicate fragment for
// enforce_where, a comma-separated column list for restrict_columns, an
// integer for row_limit, and "<field>:<interval>" for time_window.
type Condition struct {
	Type  ConditionType `json:"type"`
	Value string        `json:"value"`
}

// MaskingPolicy is one column-level redaction directive within a rule.
type MaskingPolicy struct {
	Column string   `json:"column"`
	Type   MaskType `json:"type"`
}

// Rule is a named, database-scoped policy bundling query-rewrite
// conditions and column-masking policies. A rule owns its conditions and
// masking policies; deleting the rule deletes both, along with any
// at-rest artifacts derived from the policies.
type Rule struct {
	ID              string
	DatabaseID      string
	Name            string
	Description     string
	QueryTypes      []QueryType
	Conditions      []Condition
	MaskingPolicies []MaskingPolicy
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AppliesTo reports whether the rule covers statements of the given type.
// QueryUnknown never matches.
func (r *Rule) AppliesTo(qt QueryType) bool {
	if qt == QueryUnknown {
		return false
	}
	for _, t := range r.QueryTypes {
		if t == qt {
			return true
		}
	}
	return false
}

// CreateRuleRequest holds parameters for creating a rule.
type CreateRuleRequest struct {
	DatabaseID      string
	Name            string
	Description     string
	QueryTypes      []QueryType
	Conditions      []Condition
	MaskingPolicies []MaskingPolicy
}

// Validate checks the request against the closed enums. Invalid query
// types, condition types, mask types, and malformed policy column names
// are rejected at write time so the record is never persisted.
func (r *CreateRuleRequest) Validate() error {
	if r.DatabaseID == "" {
		return ErrValidation("database_id is required")
	}
	if r.Name == "" {
		return ErrValidation("name is required")
	}
	if len(r.QueryTypes) == 0 {
		return ErrValidation("query_types must not be empty")
	}
	if err := validateQueryTypes(r.QueryTypes); err != nil {
		return err
	}
	if err := validateConditions(r.Conditions); err != nil {
		return err
	}
	return validateMaskingPolicies(r.MaskingPolicies)
}

// UpdateRuleRequest holds a partial update for a rule. Nil fields are
// left unchanged; non-nil fields replace the stored value wholesale.
type UpdateRuleRequest struct {
	Name            *string
	Description     *string
	QueryTypes      *[]QueryType
	Conditions      *[]Condition
	MaskingPolicies *[]MaskingPolicy
	Active          *bool
}

// Validate checks the provided fields against the closed enums.
func (r *UpdateRuleRequest) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return ErrValidation("name must not be empty")
	}
	if r.QueryTypes != nil {
		if len(*r.QueryTypes) == 0 {
			return ErrValidation("query_types must not be empty")
		}
		if err := validateQueryTypes(*r.QueryTypes); err != nil {
			return err
		}
	}
	if r.Conditions != nil {
		if err := validateConditions(*r.Conditions); err != nil {
			return err
		}
	}
	if r.MaskingPolicies != nil {
		return validateMaskingPolicies(*r.MaskingPolicies)
	}
	return nil
}

// ApplyTo overlays the update onto an existing rule.
func (r *UpdateRuleRequest) ApplyTo(rule *Rule) {
	if r.Name != nil {
		rule.Name = *r.Name
	}
	if r.Description != nil {
		rule.Description = *r.Description
	}
	if r.QueryTypes != nil {
		rule.QueryTypes = *r.QueryTypes
	}
	if r.Conditions != nil {
		rule.Conditions = *r.Conditions
	}
	if r.MaskingPolicies != nil {
		rule.MaskingPolicies = *r.MaskingPolicies
	}
	if r.Active != nil {
		rule.Active = *r.Active
	}
}

func validateQueryTypes(types []QueryType) error {
	for _, t := range types {
		if !ValidQueryTypes[t] {
			return ErrValidation("invalid query type %q", t)
		}
	}
	return nil
}

func validateConditions(conds []Condition) error {
	for _, c := range conds {
		if !ValidConditionTypes[c.Type] {
			return ErrValidation("invalid condition type %q", c.Type)
		}
	}
	return nil
}

func validateMaskingPolicies(policies []MaskingPolicy) error {
	for _, p := range policies {
		if !ValidMaskTypes[p.Type] {
			return ErrValidation("invalid mask type %q", p.Type)
		}
		if !IsIdentifier(p.Column) {
			return ErrValidation("invalid mask column %q", p.Column)
		}
	}
	return nil
}

// IsIdentifier reports whether s is a plain SQL identifier. Mask columns
// are restricted to this form because they are interpolated into trigger
// function names and DDL.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
