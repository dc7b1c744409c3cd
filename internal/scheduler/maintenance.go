package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ninjaos/autopilot/internal/config"
	"github.com/ninjaos/autopilot/internal/store"
)

// dedupRetentionDays is how long signal_dedup rows are kept. Well past any
// emission window, so pruning never re-opens a dedup key that still matters.
const dedupRetentionDays = 90

// Maintenance owns the housekeeping jobs: daily retention pruning and the
// hourly expiry sweep.
type Maintenance struct {
	store     *store.Store
	retention config.RetentionConfig
}

// NewMaintenance creates the maintenance jobs.
func NewMaintenance(st *store.Store, retention config.RetentionConfig) *Maintenance {
	return &Maintenance{store: st, retention: retention}
}

// PruneRun deletes aged-out derived state: system events (child actions
// first), soft-deleted interactions, and old dedup records.
func (m *Maintenance) PruneRun(ctx context.Context, now time.Time) error {
	days := m.retention.EventDays
	if days <= 0 {
		days = 7
	}
	cutoff := now.UTC().AddDate(0, 0, -days)
	actions, events, err := m.store.PruneEvents(cutoff)
	if err != nil {
		return err
	}
	interactions, err := m.store.CleanupOldDeletedInteractions(m.retention.DeletedInteractionDays)
	if err != nil {
		return err
	}
	dedup, err := m.store.PruneSignalDedup(now.UTC().AddDate(0, 0, -dedupRetentionDays))
	if err != nil {
		return err
	}
	slog.Info("Retention prune complete",
		"events", events, "actions", actions,
		"interactions", interactions, "dedup", dedup)
	return nil
}

// SweepRun expires overdue follow-up signals and observer suggestions.
func (m *Maintenance) SweepRun(ctx context.Context, now time.Time) error {
	signals, err := m.store.ExpireOverdueSignals(now)
	if err != nil {
		return err
	}
	suggestions, err := m.store.ExpireOverdueSuggestions(now)
	if err != nil {
		return err
	}
	if signals > 0 || suggestions > 0 {
		slog.Info("Expiry sweep complete", "signals", signals, "suggestions", suggestions)
	}
	return nil
}
