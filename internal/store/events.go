package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertEvent persists a SystemEvent. An empty EventID is filled in.
func (s *Store) InsertEvent(evt *SystemEvent) error {
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	if evt.Payload == "" {
		evt.Payload = "{}"
	}
	_, err := s.db.Exec(`
	INSERT INTO system_events (event_id, event_type, source_entity_id, payload, created_at)
	VALUES (?, ?, ?, ?, ?)`,
		evt.EventID, evt.EventType, evt.SourceEntityID, evt.Payload, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns an event by its event_id.
func (s *Store) GetEvent(eventID string) (*SystemEvent, error) {
	var e SystemEvent
	err := s.db.QueryRow(`
	SELECT id, event_id, event_type, COALESCE(source_entity_id,''), COALESCE(payload,'{}'), created_at
	FROM system_events WHERE event_id = ?`, eventID).Scan(
		&e.ID, &e.EventID, &e.EventType, &e.SourceEntityID, &e.Payload, &e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event not found: %s", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// ListRecentEvents returns the newest events, optionally filtered by type.
func (s *Store) ListRecentEvents(eventType string, limit int) ([]SystemEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, event_id, event_type, COALESCE(source_entity_id,''), COALESCE(payload,'{}'), created_at
	FROM system_events WHERE 1=1`
	args := []interface{}{}
	if eventType != "" {
		query += " AND event_type = ?"
		args = append(args, eventType)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []SystemEvent
	for rows.Next() {
		var e SystemEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.SourceEntityID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// PruneEvents deletes events created before cutoff. Dependent agent actions
// are deleted first to satisfy the foreign key. Returns (actions, events) deleted.
func (s *Store) PruneEvents(cutoff time.Time) (int64, int64, error) {
	actionsRes, err := s.db.Exec(`
	DELETE FROM agent_actions
	WHERE event_id IN (SELECT event_id FROM system_events WHERE created_at < ?)`, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("prune child actions: %w", err)
	}
	eventsRes, err := s.db.Exec(`DELETE FROM system_events WHERE created_at < ?`, cutoff)
	if err != nil {
		actions, _ := actionsRes.RowsAffected()
		return actions, 0, fmt.Errorf("prune events: %w", err)
	}
	actions, _ := actionsRes.RowsAffected()
	events, _ := eventsRes.RowsAffected()
	return actions, events, nil
}

// UpsertSubscription records an agent's declared interest in an event type.
func (s *Store) UpsertSubscription(sub *AgentSubscription) error {
	_, err := s.db.Exec(`
	INSERT INTO agent_subscriptions (agent_name, event_type, is_active, priority, updated_at)
	VALUES (?, ?, ?, ?, datetime('now'))
	ON CONFLICT(agent_name, event_type) DO UPDATE SET
		is_active = excluded.is_active,
		priority = excluded.priority,
		updated_at = datetime('now')`,
		sub.AgentName, sub.EventType, sub.IsActive, sub.Priority,
	)
	return err
}

// ListSubscriptions returns all registered subscriptions ordered by priority.
func (s *Store) ListSubscriptions() ([]AgentSubscription, error) {
	rows, err := s.db.Query(`
	SELECT agent_name, event_type, is_active, priority, updated_at
	FROM agent_subscriptions ORDER BY event_type, priority, agent_name`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []AgentSubscription
	for rows.Next() {
		var sub AgentSubscription
		if err := rows.Scan(&sub.AgentName, &sub.EventType, &sub.IsActive, &sub.Priority, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
