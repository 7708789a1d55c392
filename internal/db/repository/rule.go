// Package repository implements the metastore-backed policy and record
// stores over hand-written SQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sqlward/internal/domain"
)

// RuleRepo is the SQLite-backed policy store adapter. Reads go to the
// read pool, mutations to the single-connection write pool.
type RuleRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewRuleRepo creates a RuleRepo on the given pool pair.
func NewRuleRepo(writeDB, readDB *sql.DB) *RuleRepo {
	return &RuleRepo{writeDB: writeDB, readDB: readDB}
}

const ruleColumns = `id, database_id, name, description, query_types, conditions, masking_policies, active, created_at, updated_at`

// FindByDatabase returns the rules scoped to a database in creation
// order. rowid ordering is insertion order, which keeps composition
// stable across reads.
func (r *RuleRepo) FindByDatabase(ctx context.Context, databaseID string, activeOnly bool) ([]domain.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE database_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY rowid`

	rows, err := r.readDB.QueryContext(ctx, query, databaseID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// FindByID returns one rule or NotFoundError.
func (r *RuleRepo) FindByID(ctx context.Context, id string) (*domain.Rule, error) {
	row := r.readDB.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("rule %s not found", id)
	}
	return rule, err
}

// Create persists a new rule, assigning an id when absent.
func (r *RuleRepo) Create(ctx context.Context, rule *domain.Rule) (*domain.Rule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	queryTypes, conditions, policies, err := marshalRule(rule)
	if err != nil {
		return nil, err
	}

	_, err = r.writeDB.ExecContext(ctx, `
		INSERT INTO rules (id, database_id, name, description, query_types, conditions, masking_policies, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.DatabaseID, rule.Name, rule.Description,
		queryTypes, conditions, policies, boolToInt(rule.Active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert rule: %w", err)
	}
	return r.FindByID(ctx, rule.ID)
}

// Update replaces the mutable fields of a rule.
func (r *RuleRepo) Update(ctx context.Context, rule *domain.Rule) (*domain.Rule, error) {
	queryTypes, conditions, policies, err := marshalRule(rule)
	if err != nil {
		return nil, err
	}

	res, err := r.writeDB.ExecContext(ctx, `
		UPDATE rules
		SET name = ?, description = ?, query_types = ?, conditions = ?, masking_policies = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		rule.Name, rule.Description, queryTypes, conditions, policies,
		boolToInt(rule.Active), rule.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrNotFound("rule %s not found", rule.ID)
	}
	return r.FindByID(ctx, rule.ID)
}

// Delete removes a rule record. The rule's conditions and masking
// policies live inside the record, so they go with it.
func (r *RuleRepo) Delete(ctx context.Context, id string) error {
	res, err := r.writeDB.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("rule %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*domain.Rule, error) {
	var (
		rule                           domain.Rule
		queryTypes, conditions, policies string
		active                         int
		createdAt, updatedAt           time.Time
	)
	err := row.Scan(
		&rule.ID, &rule.DatabaseID, &rule.Name, &rule.Description,
		&queryTypes, &conditions, &policies, &active,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(queryTypes), &rule.QueryTypes); err != nil {
		return nil, fmt.Errorf("decode query_types for rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("decode conditions for rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(policies), &rule.MaskingPolicies); err != nil {
		return nil, fmt.Errorf("decode masking_policies for rule %s: %w", rule.ID, err)
	}
	rule.Active = active != 0
	rule.CreatedAt = createdAt
	rule.UpdatedAt = updatedAt
	return &rule, nil
}

func marshalRule(rule *domain.Rule) (queryTypes, conditions, policies string, err error) {
	qt, err := json.Marshal(rule.QueryTypes)
	if err != nil {
		return "", "", "", fmt.Errorf("encode query_types: %w", err)
	}
	conds, err := json.Marshal(emptyIfNilConditions(rule.Conditions))
	if err != nil {
		return "", "", "", fmt.Errorf("encode conditions: %w", err)
	}
	pols, err := json.Marshal(emptyIfNilPolicies(rule.MaskingPolicies))
	if err != nil {
		return "", "", "", fmt.Errorf("encode masking_policies: %w", err)
	}
	return string(qt), string(conds), string(pols), nil
}

func emptyIfNilConditions(c []domain.Condition) []domain.Condition {
	if c == nil {
		return []domain.Condition{}
	}
	return c
}

func emptyIfNilPolicies(p []domain.MaskingPolicy) []domain.MaskingPolicy {
	if p == nil {
		return []domain.MaskingPolicy{}
	}
	return p
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
