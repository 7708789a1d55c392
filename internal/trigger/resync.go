package trigger

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"sqlward/internal/domain"
)

// Reconciler periodically re-applies the at-rest artifacts for every
// active rule of every database. A sync that failed at rule-write time
// leaves the record and its artifacts diverged; because Sync is
// idempotent, re-running it heals the divergence without operator action.
type Reconciler struct {
	cron      *cron.Cron
	databases domain.DatabaseRepository
	rules     domain.RuleRepository
	sync      *Synchronizer
	logger    *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(databases domain.DatabaseRepository, rules domain.RuleRepository, sync *Synchronizer, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		cron:      cron.New(),
		databases: databases,
		rules:     rules,
		sync:      sync,
		logger:    logger,
	}
}

// Start schedules the reconciliation loop with a cron expression and
// starts the scheduler.
func (r *Reconciler) Start(schedule string) error {
	if _, err := r.cron.AddFunc(schedule, r.runOnce); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info("masking re-sync scheduler started", "schedule", schedule)
	return nil
}

// Stop gracefully stops the scheduler.
func (r *Reconciler) Stop() {
	r.cron.Stop()
	r.logger.Info("masking re-sync scheduler stopped")
}

// runOnce walks all databases and re-syncs every active rule that carries
// masking policies. Failures are logged and skipped; the next run retries
// them.
func (r *Reconciler) runOnce() {
	ctx := context.Background()

	databases, err := r.databases.ListAll(ctx)
	if err != nil {
		r.logger.Warn("re-sync: list databases failed", "error", err)
		return
	}

	for i := range databases {
		db := &databases[i]
		rules, err := r.rules.FindByDatabase(ctx, db.ID, true)
		if err != nil {
			r.logger.Warn("re-sync: list rules failed", "database", db.ID, "error", err)
			continue
		}
		for j := range rules {
			rule := &rules[j]
			if len(rule.MaskingPolicies) == 0 {
				continue
			}
			if err := r.sync.Sync(ctx, db, rule); err != nil {
				r.logger.Warn("re-sync failed", "database", db.ID, "rule", rule.ID, "error", err)
			}
		}
	}
}
