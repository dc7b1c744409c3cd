package crmsync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ninjaos/autopilot/internal/store"
)

// Queue enqueues outbound replication work for every active integration that
// has the relevant entity flag enabled.
type Queue struct {
	store       *store.Store
	maxAttempts int
}

// NewQueue creates the enqueue side of the sync pipeline.
func NewQueue(st *store.Store, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Queue{store: st, maxAttempts: maxAttempts}
}

// SyncPerson enqueues the contact for every person-syncing integration. The
// operation is decided at process time from the field mapping; enqueue
// always records the current snapshot.
func (q *Queue) SyncPerson(p *store.Person) error {
	payload := map[string]any{
		"name":    p.Name,
		"email":   p.Email,
		"phone":   p.Phone,
		"segment": p.Segment,
	}
	return q.enqueue(store.EntityPerson, p.PersonID, payload, func(in *store.CrmIntegration) bool {
		return in.SyncPeopleEnabled
	})
}

// SyncInteraction enqueues a touch as a CRM note on the linked contact.
func (q *Queue) SyncInteraction(i *store.Interaction) error {
	payload := map[string]any{
		"personId":   i.PersonID,
		"kind":       i.Kind,
		"summary":    i.Summary,
		"occurredAt": i.OccurredAt.UTC().Format(time.RFC3339),
	}
	return q.enqueue(store.EntityInteraction, strconv.FormatInt(i.ID, 10), payload, func(in *store.CrmIntegration) bool {
		return in.SyncInteractionsEnabled
	})
}

// SyncTask enqueues a task for every task-syncing integration.
func (q *Queue) SyncTask(t *store.Task) error {
	payload := map[string]any{
		"personId": t.PersonID,
		"title":    t.Title,
		"status":   t.Status,
	}
	if t.DueAt != nil {
		payload["dueAt"] = t.DueAt.UTC().Format(time.RFC3339)
	}
	return q.enqueue(store.EntityTask, t.TaskID, payload, func(in *store.CrmIntegration) bool {
		return in.SyncTasksEnabled
	})
}

func (q *Queue) enqueue(entityType, entityID string, payload map[string]any, enabled func(*store.CrmIntegration) bool) error {
	integrations, err := q.store.ListActiveIntegrations()
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sync payload: %w", err)
	}
	for i := range integrations {
		in := &integrations[i]
		if !enabled(in) {
			continue
		}
		// Recorded operation is advisory; the worker re-resolves the
		// mapping at process time.
		op := store.OpCreate
		if n, err := q.store.CountFieldMappings(in.IntegrationID, entityType, entityID); err == nil && n > 0 {
			op = store.OpUpdate
		}
		item, err := q.store.EnqueueSyncItem(&store.CrmSyncItem{
			IntegrationID: in.IntegrationID,
			EntityType:    entityType,
			EntityID:      entityID,
			Operation:     op,
			Payload:       string(body),
			MaxAttempts:   q.maxAttempts,
		})
		if err != nil {
			return err
		}
		slog.Debug("Sync item enqueued",
			"item", item.ItemID, "integration", in.IntegrationID,
			"entity_type", entityType, "entity_id", entityID)
	}
	return nil
}
