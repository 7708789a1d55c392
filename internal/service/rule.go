// Package service implements the application services: rule lifecycle
// with owner gating and at-rest synchronization, database registration,
// and enforced query execution with history.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"sqlward/internal/domain"
	"sqlward/internal/rewrite"
	"sqlward/internal/trigger"
)

// RuleService owns the rule lifecycle. Mutations are gated on the owner
// role of the scoping database; every masking-policy change is projected
// into at-rest artifacts through the synchronizer.
type RuleService struct {
	rules     domain.RuleRepository
	databases domain.DatabaseRepository
	sync      *trigger.Synchronizer
	rewriter  *rewrite.Rewriter
	logger    *slog.Logger
}

// NewRuleService creates a RuleService.
func NewRuleService(rules domain.RuleRepository, databases domain.DatabaseRepository, sync *trigger.Synchronizer, logger *slog.Logger) *RuleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleService{
		rules:     rules,
		databases: databases,
		sync:      sync,
		rewriter:  rewrite.NewRewriter(logger),
		logger:    logger,
	}
}

// ListByDatabase returns all rules of a database the caller is connected
// to, active or not.
func (s *RuleService) ListByDatabase(ctx context.Context, databaseID string) ([]domain.Rule, error) {
	if _, err := s.databaseForCaller(ctx, databaseID); err != nil {
		return nil, err
	}
	return s.rules.FindByDatabase(ctx, databaseID, false)
}

// Get returns one rule. The caller must be connected to the scoping
// database; otherwise the rule is hidden behind AccessDenied.
func (s *RuleService) Get(ctx context.Context, id string) (*domain.Rule, error) {
	rule, err := s.rules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.databaseForCaller(ctx, rule.DatabaseID); err != nil {
		return nil, asAccessDenied(err)
	}
	return rule, nil
}

// Create validates and persists a new rule, then projects its masking
// policies into at-rest artifacts. A failed projection does not roll the
// record back: the created rule is returned together with the SyncError
// so the divergence is user-visible and a re-sync can repair it.
func (s *RuleService) Create(ctx context.Context, req domain.CreateRuleRequest) (*domain.Rule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	db, err := s.databaseForCaller(ctx, req.DatabaseID)
	if err != nil {
		return nil, err
	}
	if db.Role != domain.RoleOwner {
		return nil, domain.ErrAccessDenied("owner access is required to create rules")
	}

	rule := &domain.Rule{
		ID:              uuid.NewString(),
		DatabaseID:      req.DatabaseID,
		Name:            req.Name,
		Description:     req.Description,
		QueryTypes:      req.QueryTypes,
		Conditions:      req.Conditions,
		MaskingPolicies: req.MaskingPolicies,
		Active:          true,
	}
	created, err := s.rules.Create(ctx, rule)
	if err != nil {
		return nil, err
	}
	s.logger.Info("rule created", "rule", created.ID, "database", db.ID, "name", created.Name)

	if err := s.syncArtifacts(ctx, db, created); err != nil {
		return created, err
	}
	return created, nil
}

// Update applies a partial update and re-projects the masking policies.
// As with Create, a failed projection leaves the updated record in place
// and surfaces the SyncError.
func (s *RuleService) Update(ctx context.Context, id string, req domain.UpdateRuleRequest) (*domain.Rule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rule, err := s.rules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	db, err := s.databaseForCaller(ctx, rule.DatabaseID)
	if err != nil {
		return nil, asAccessDenied(err)
	}
	if db.Role != domain.RoleOwner {
		return nil, domain.ErrAccessDenied("owner access is required to update rules")
	}

	req.ApplyTo(rule)
	updated, err := s.rules.Update(ctx, rule)
	if err != nil {
		return nil, err
	}
	s.logger.Info("rule updated", "rule", updated.ID, "database", db.ID)

	if err := s.syncArtifacts(ctx, db, updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// Delete drops the rule's at-rest artifacts and then the record, in that
// order. A failed drop aborts the delete so no trigger is left behind
// attributed to a vanished policy.
func (s *RuleService) Delete(ctx context.Context, id string) error {
	rule, err := s.rules.FindByID(ctx, id)
	if err != nil {
		return err
	}
	db, err := s.databaseForCaller(ctx, rule.DatabaseID)
	if err != nil {
		return asAccessDenied(err)
	}
	if db.Role != domain.RoleOwner {
		return domain.ErrAccessDenied("owner access is required to delete rules")
	}

	if len(rule.MaskingPolicies) > 0 {
		if err := s.sync.Drop(ctx, db, rule); err != nil {
			return err
		}
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("rule deleted", "rule", id, "database", db.ID)
	return nil
}

// Test dry-runs a rule's conditions against a statement without
// executing anything. Passed reports whether the text changed; a rule
// with no conditions therefore never passes.
func (s *RuleService) Test(ctx context.Context, ruleID, query string) (*domain.RuleTestResult, error) {
	rule, err := s.Get(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	qt := rewrite.Classify(query)
	modified := s.rewriter.ApplyRule(*rule, qt, query)

	result := &domain.RuleTestResult{}
	if modified != query {
		result.Passed = true
		result.ModifiedQuery = &modified
	}
	return result, nil
}

func (s *RuleService) syncArtifacts(ctx context.Context, db *domain.Database, rule *domain.Rule) error {
	if len(rule.MaskingPolicies) == 0 {
		return nil
	}
	return s.sync.Sync(ctx, db, rule)
}

// databaseForCaller resolves a database scoped to the authenticated
// caller.
func (s *RuleService) databaseForCaller(ctx context.Context, databaseID string) (*domain.Database, error) {
	caller, ok := domain.CallerFromContext(ctx)
	if !ok {
		return nil, domain.ErrAccessDenied("no caller identity")
	}
	return s.databases.FindForUser(ctx, databaseID, caller.UserID)
}

// asAccessDenied converts a NotFound from a caller-scoped database lookup
// into AccessDenied: the rule exists, the caller just may not reach it.
func asAccessDenied(err error) error {
	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		return domain.ErrAccessDenied("access denied")
	}
	return err
}
