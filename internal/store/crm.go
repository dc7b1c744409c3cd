package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateIntegration persists a CRM integration.
func (s *Store) CreateIntegration(in *CrmIntegration) (*CrmIntegration, error) {
	if in.IntegrationID == "" {
		in.IntegrationID = uuid.NewString()
	}
	if in.Config == "" {
		in.Config = "{}"
	}
	res, err := s.db.Exec(`
	INSERT INTO crm_integrations (integration_id, provider, config, is_active, is_primary, sync_people_enabled, sync_interactions_enabled, sync_tasks_enabled)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.IntegrationID, in.Provider, in.Config, in.IsActive, in.IsPrimary,
		in.SyncPeopleEnabled, in.SyncInteractionsEnabled, in.SyncTasksEnabled)
	if err != nil {
		return nil, fmt.Errorf("create integration: %w", err)
	}
	in.ID, _ = res.LastInsertId()
	return in, nil
}

const integrationColumns = `id, integration_id, provider, COALESCE(config,'{}'),
	is_active, is_primary, sync_people_enabled, sync_interactions_enabled, sync_tasks_enabled,
	last_sync_at, COALESCE(last_sync_status,''), COALESCE(last_sync_error,''), created_at`

func scanIntegrations(rows *sql.Rows) ([]CrmIntegration, error) {
	var out []CrmIntegration
	for rows.Next() {
		var in CrmIntegration
		var lastSyncAt sql.NullTime
		if err := rows.Scan(
			&in.ID, &in.IntegrationID, &in.Provider, &in.Config,
			&in.IsActive, &in.IsPrimary, &in.SyncPeopleEnabled, &in.SyncInteractionsEnabled, &in.SyncTasksEnabled,
			&lastSyncAt, &in.LastSyncStatus, &in.LastSyncError, &in.CreatedAt,
		); err != nil {
			return nil, err
		}
		if lastSyncAt.Valid {
			in.LastSyncAt = &lastSyncAt.Time
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// ListActiveIntegrations returns all active integrations.
func (s *Store) ListActiveIntegrations() ([]CrmIntegration, error) {
	rows, err := s.db.Query(`SELECT ` + integrationColumns + ` FROM crm_integrations WHERE is_active = 1 ORDER BY is_primary DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()
	return scanIntegrations(rows)
}

// GetIntegration returns one integration by id.
func (s *Store) GetIntegration(integrationID string) (*CrmIntegration, error) {
	rows, err := s.db.Query(`SELECT `+integrationColumns+` FROM crm_integrations WHERE integration_id = ?`, integrationID)
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}
	defer rows.Close()
	out, err := scanIntegrations(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("integration not found: %s", integrationID)
	}
	return &out[0], nil
}

// StampIntegrationSync records the outcome of the most recent sync attempt.
func (s *Store) StampIntegrationSync(integrationID, status, errText string, at time.Time) error {
	_, err := s.db.Exec(`
	UPDATE crm_integrations SET last_sync_at = ?, last_sync_status = ?, last_sync_error = ?
	WHERE integration_id = ?`, at, status, errText, integrationID)
	return err
}

// GetFieldMapping returns the external id mapping for a local entity.
// Returns (nil, nil) when absent; the caller dispatches create vs update on this.
func (s *Store) GetFieldMapping(integrationID, entityType, entityID string) (*CrmFieldMapping, error) {
	var m CrmFieldMapping
	err := s.db.QueryRow(`
	SELECT integration_id, local_entity_type, local_entity_id, external_id, last_synced_at
	FROM crm_field_mappings
	WHERE integration_id = ? AND local_entity_type = ? AND local_entity_id = ?`,
		integrationID, entityType, entityID).Scan(
		&m.IntegrationID, &m.LocalEntityType, &m.LocalEntityID, &m.ExternalID, &m.LastSyncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get field mapping: %w", err)
	}
	return &m, nil
}

// PutFieldMapping upserts the mapping; the primary key keeps it unique per
// (integration, entity type, entity id).
func (s *Store) PutFieldMapping(m *CrmFieldMapping) error {
	if m.LastSyncedAt.IsZero() {
		m.LastSyncedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
	INSERT INTO crm_field_mappings (integration_id, local_entity_type, local_entity_id, external_id, last_synced_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(integration_id, local_entity_type, local_entity_id) DO UPDATE SET
		external_id = excluded.external_id,
		last_synced_at = excluded.last_synced_at`,
		m.IntegrationID, m.LocalEntityType, m.LocalEntityID, m.ExternalID, m.LastSyncedAt)
	if err != nil {
		return fmt.Errorf("put field mapping: %w", err)
	}
	return nil
}

// CountFieldMappings returns the number of mappings for a local entity.
func (s *Store) CountFieldMappings(integrationID, entityType, entityID string) (int, error) {
	var n int
	err := s.db.QueryRow(`
	SELECT COUNT(*) FROM crm_field_mappings
	WHERE integration_id = ? AND local_entity_type = ? AND local_entity_id = ?`,
		integrationID, entityType, entityID).Scan(&n)
	return n, err
}

// EnqueueSyncItem adds a pending replication unit to the queue.
func (s *Store) EnqueueSyncItem(item *CrmSyncItem) (*CrmSyncItem, error) {
	if item.ItemID == "" {
		item.ItemID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = SyncPending
	}
	if item.MaxAttempts <= 0 {
		item.MaxAttempts = 3
	}
	if item.ScheduledFor.IsZero() {
		item.ScheduledFor = time.Now().UTC()
	}
	if item.Payload == "" {
		item.Payload = "{}"
	}
	res, err := s.db.Exec(`
	INSERT INTO crm_sync_queue (item_id, integration_id, entity_type, entity_id, operation, payload, status, attempts, max_attempts, scheduled_for)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ItemID, item.IntegrationID, item.EntityType, item.EntityID, item.Operation,
		item.Payload, item.Status, item.Attempts, item.MaxAttempts, item.ScheduledFor)
	if err != nil {
		return nil, fmt.Errorf("enqueue sync item: %w", err)
	}
	item.ID, _ = res.LastInsertId()
	return item, nil
}

const syncItemColumns = `id, item_id, integration_id, entity_type, entity_id, operation,
	COALESCE(payload,'{}'), status, attempts, max_attempts, scheduled_for,
	COALESCE(last_error,''), COALESCE(external_id,''), processed_at, created_at`

func scanSyncItems(rows *sql.Rows) ([]CrmSyncItem, error) {
	var items []CrmSyncItem
	for rows.Next() {
		var it CrmSyncItem
		var processedAt sql.NullTime
		if err := rows.Scan(
			&it.ID, &it.ItemID, &it.IntegrationID, &it.EntityType, &it.EntityID, &it.Operation,
			&it.Payload, &it.Status, &it.Attempts, &it.MaxAttempts, &it.ScheduledFor,
			&it.LastError, &it.ExternalID, &processedAt, &it.CreatedAt,
		); err != nil {
			return nil, err
		}
		if processedAt.Valid {
			it.ProcessedAt = &processedAt.Time
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ClaimDueSyncItems returns up to limit items in pending/retry whose
// scheduled time has passed, oldest first.
func (s *Store) ClaimDueSyncItems(now time.Time, limit int) ([]CrmSyncItem, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
	SELECT `+syncItemColumns+` FROM crm_sync_queue
	WHERE status IN (?, ?) AND scheduled_for <= ?
	ORDER BY scheduled_for ASC
	LIMIT ?`, SyncPending, SyncRetry, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due sync items: %w", err)
	}
	defer rows.Close()
	return scanSyncItems(rows)
}

// GetSyncItem returns one queue item by item_id.
func (s *Store) GetSyncItem(itemID string) (*CrmSyncItem, error) {
	rows, err := s.db.Query(`SELECT `+syncItemColumns+` FROM crm_sync_queue WHERE item_id = ?`, itemID)
	if err != nil {
		return nil, fmt.Errorf("get sync item: %w", err)
	}
	defer rows.Close()
	items, err := scanSyncItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("sync item not found: %s", itemID)
	}
	return &items[0], nil
}

// MarkSyncItemProcessing flips an item to processing and increments attempts.
func (s *Store) MarkSyncItemProcessing(itemID string) error {
	res, err := s.db.Exec(`
	UPDATE crm_sync_queue SET status = ?, attempts = attempts + 1
	WHERE item_id = ? AND status IN (?, ?)`,
		SyncProcessing, itemID, SyncPending, SyncRetry)
	if err != nil {
		return fmt.Errorf("mark sync item processing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sync item not claimable: %s", itemID)
	}
	return nil
}

// CompleteSyncItem marks an item done.
func (s *Store) CompleteSyncItem(itemID, externalID string) error {
	_, err := s.db.Exec(`
	UPDATE crm_sync_queue SET status = ?, external_id = ?, last_error = '', processed_at = ?
	WHERE item_id = ?`, SyncCompleted, externalID, time.Now().UTC(), itemID)
	return err
}

// RetrySyncItem reschedules a failed attempt. scheduledFor must strictly
// increase across retries; the backoff policy guarantees that.
func (s *Store) RetrySyncItem(itemID string, nextAt time.Time, lastError string) error {
	_, err := s.db.Exec(`
	UPDATE crm_sync_queue SET status = ?, scheduled_for = ?, last_error = ?
	WHERE item_id = ?`, SyncRetry, nextAt, lastError, itemID)
	return err
}

// FailSyncItem marks an item permanently failed.
func (s *Store) FailSyncItem(itemID, lastError string) error {
	_, err := s.db.Exec(`
	UPDATE crm_sync_queue SET status = ?, last_error = ?, processed_at = ?
	WHERE item_id = ?`, SyncFailed, lastError, time.Now().UTC(), itemID)
	return err
}

// SetSyncItemExternalID stores the provider id on the item itself. Used when
// the provider call succeeded but the mapping write failed, so the retry can
// reconcile without a second provider call.
func (s *Store) SetSyncItemExternalID(itemID, externalID string) error {
	_, err := s.db.Exec(`UPDATE crm_sync_queue SET external_id = ? WHERE item_id = ?`, externalID, itemID)
	return err
}

// SyncQueueDepth returns item counts grouped by status.
func (s *Store) SyncQueueDepth() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM crm_sync_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("sync queue depth: %w", err)
	}
	defer rows.Close()

	depth := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		depth[status] = n
	}
	return depth, rows.Err()
}
