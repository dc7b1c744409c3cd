package crmsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/ninjaos/autopilot/internal/config"
	"github.com/ninjaos/autopilot/internal/store"
)

// ResolveFunc builds a provider for an integration. Swapped in tests.
type ResolveFunc func(*store.CrmIntegration) (Provider, error)

// Worker drains the sync queue: claims due items, dispatches them to their
// provider with rate limiting and per-call timeouts, and routes failures
// through the backoff policy.
type Worker struct {
	store     *store.Store
	cfg       config.SyncConfig
	resolve   ResolveFunc
	limiter   *rate.Limiter
	providers map[string]Provider // integrationID -> resolved provider
}

// NewWorker creates the queue worker.
func NewWorker(st *store.Store, cfg config.SyncConfig) *Worker {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	return &Worker{
		store:     st,
		cfg:       cfg,
		resolve:   Resolve,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RateBurst),
		providers: make(map[string]Provider),
	}
}

// SetResolver overrides provider resolution (tests).
func (w *Worker) SetResolver(fn ResolveFunc) {
	w.resolve = fn
	w.providers = make(map[string]Provider)
}

// Run drains the queue on an interval until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	every := w.cfg.DrainEvery
	if every <= 0 {
		every = 30 * time.Second
	}
	slog.Info("Sync worker started", "drain_every", every, "batch", w.cfg.BatchLimit)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Sync worker stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessQueue(ctx, w.cfg.BatchLimit); err != nil {
				slog.Error("Sync drain failed", "error", err)
			}
		}
	}
}

// ProcessQueue claims up to limit due items and processes each one.
// Individual item failures are absorbed into the retry/fail path; the
// returned error covers queue-level problems only.
func (w *Worker) ProcessQueue(ctx context.Context, limit int) (int, error) {
	items, err := w.store.ClaimDueSyncItems(time.Now().UTC(), limit)
	if err != nil {
		return 0, err
	}
	for i := range items {
		w.processItem(ctx, &items[i])
	}
	return len(items), nil
}

func (w *Worker) processItem(ctx context.Context, item *store.CrmSyncItem) {
	if err := w.store.MarkSyncItemProcessing(item.ItemID); err != nil {
		slog.Warn("Sync item not claimable", "item", item.ItemID, "error", err)
		return
	}
	item.Attempts++

	provider, err := w.providerFor(item.IntegrationID)
	if err != nil {
		w.handleFailure(item, fmt.Sprintf("resolve provider: %v", err))
		return
	}

	if err := w.limiter.Wait(ctx); err != nil {
		w.handleFailure(item, fmt.Sprintf("rate limit: %v", err))
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(item.Payload), &payload); err != nil {
		w.fail(item, fmt.Sprintf("bad payload: %v", err))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
	defer cancel()

	res, err := w.dispatch(callCtx, provider, item, payload)
	if err != nil {
		w.handleFailure(item, err.Error())
		return
	}
	if !res.Success {
		w.handleFailure(item, res.Error)
		return
	}

	externalID := res.ExternalID
	if externalID == "" {
		externalID = item.ExternalID
	}
	if err := w.store.PutFieldMapping(&store.CrmFieldMapping{
		IntegrationID:   item.IntegrationID,
		LocalEntityType: item.EntityType,
		LocalEntityID:   item.EntityID,
		ExternalID:      externalID,
		LastSyncedAt:    time.Now().UTC(),
	}); err != nil {
		// The provider call succeeded. Stash the external id on the item
		// and reschedule; the retry writes the mapping without calling
		// the provider again.
		slog.Error("Mapping write failed after provider success",
			"item", item.ItemID, "external_id", externalID, "error", err)
		_ = w.store.SetSyncItemExternalID(item.ItemID, externalID)
		_ = w.store.RetrySyncItem(item.ItemID, time.Now().UTC().Add(Backoff(item.Attempts)),
			fmt.Sprintf("mapping write: %v", err))
		return
	}

	if err := w.store.CompleteSyncItem(item.ItemID, externalID); err != nil {
		slog.Error("Sync item completion failed", "item", item.ItemID, "error", err)
		return
	}
	if err := w.store.StampIntegrationSync(item.IntegrationID, "ok", "", time.Now().UTC()); err != nil {
		slog.Warn("Integration stamp failed", "integration", item.IntegrationID, "error", err)
	}
	slog.Info("Sync item completed",
		"item", item.ItemID, "integration", item.IntegrationID,
		"entity_type", item.EntityType, "external_id", externalID)
}

// dispatch routes one item to the right provider call. An item that already
// carries an external id from an earlier attempt reconciles locally without
// touching the provider.
func (w *Worker) dispatch(ctx context.Context, provider Provider, item *store.CrmSyncItem, payload map[string]any) (*Result, error) {
	if item.ExternalID != "" {
		return &Result{Success: true, ExternalID: item.ExternalID}, nil
	}

	mapping, err := w.store.GetFieldMapping(item.IntegrationID, item.EntityType, item.EntityID)
	if err != nil {
		return nil, fmt.Errorf("lookup mapping: %w", err)
	}

	switch item.EntityType {
	case store.EntityPerson:
		if mapping != nil {
			return provider.UpdateContact(ctx, mapping.ExternalID, payload)
		}
		return provider.CreateContact(ctx, payload)
	case store.EntityInteraction:
		contactExternalID := ""
		if personID, _ := payload["personId"].(string); personID != "" {
			pm, err := w.store.GetFieldMapping(item.IntegrationID, store.EntityPerson, personID)
			if err != nil {
				return nil, fmt.Errorf("lookup contact mapping: %w", err)
			}
			if pm != nil {
				contactExternalID = pm.ExternalID
			}
		}
		return provider.CreateNote(ctx, contactExternalID, payload)
	case store.EntityTask:
		if mapping != nil {
			return provider.UpdateTask(ctx, mapping.ExternalID, payload)
		}
		return provider.CreateTask(ctx, payload)
	default:
		return nil, fmt.Errorf("unknown entity type: %s", item.EntityType)
	}
}

// providerFor resolves and caches the provider for an integration.
func (w *Worker) providerFor(integrationID string) (Provider, error) {
	if p, ok := w.providers[integrationID]; ok {
		return p, nil
	}
	integration, err := w.store.GetIntegration(integrationID)
	if err != nil {
		return nil, err
	}
	p, err := w.resolve(integration)
	if err != nil {
		return nil, err
	}
	w.providers[integrationID] = p
	return p, nil
}

// handleFailure retries with backoff until attempts are exhausted, then
// fails the item terminally.
func (w *Worker) handleFailure(item *store.CrmSyncItem, reason string) {
	if item.Attempts < item.MaxAttempts {
		next := time.Now().UTC().Add(Backoff(item.Attempts))
		if err := w.store.RetrySyncItem(item.ItemID, next, reason); err != nil {
			slog.Error("Sync retry scheduling failed", "item", item.ItemID, "error", err)
			return
		}
		slog.Warn("Sync item retry scheduled",
			"item", item.ItemID, "attempts", item.Attempts, "next", next, "reason", reason)
		return
	}
	w.fail(item, reason)
}

func (w *Worker) fail(item *store.CrmSyncItem, reason string) {
	if err := w.store.FailSyncItem(item.ItemID, reason); err != nil {
		slog.Error("Sync item fail-mark failed", "item", item.ItemID, "error", err)
		return
	}
	if err := w.store.StampIntegrationSync(item.IntegrationID, "error", reason, time.Now().UTC()); err != nil {
		slog.Warn("Integration stamp failed", "integration", item.IntegrationID, "error", err)
	}
	slog.Error("Sync item failed terminally",
		"item", item.ItemID, "attempts", item.Attempts, "reason", reason)
}
