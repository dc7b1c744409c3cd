package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// validActionTransitions encodes the forward-only action lifecycle.
var validActionTransitions = map[string][]string{
	ActionProposed: {ActionApproved, ActionRejected},
	ActionApproved: {ActionExecuted, ActionFailed},
}

// CanTransitionAction reports whether an action may move from one status to another.
func CanTransitionAction(from, to string) bool {
	for _, allowed := range validActionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CreateAction persists a proposed agent action.
func (s *Store) CreateAction(a *AgentAction) (*AgentAction, error) {
	if a.ActionID == "" {
		a.ActionID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = ActionProposed
	}
	if a.RiskLevel == "" {
		a.RiskLevel = RiskLow
	}
	// Pass NULL for scheduler-synthesized actions with no parent event.
	var eventID interface{}
	if a.EventID != "" {
		eventID = a.EventID
	}
	res, err := s.db.Exec(`
	INSERT INTO agent_actions (action_id, event_id, agent_name, action_type, target_entity, target_id, proposed_content, risk_level, reasoning, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ActionID, eventID, a.AgentName, a.ActionType, a.TargetEntity, a.TargetID,
		a.ProposedContent, a.RiskLevel, a.Reasoning, a.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("create action: %w", err)
	}
	a.ID, _ = res.LastInsertId()
	return s.GetAction(a.ActionID)
}

const actionColumns = `id, action_id, COALESCE(event_id,''), agent_name, action_type,
	COALESCE(target_entity,''), COALESCE(target_id,''), COALESCE(proposed_content,''),
	risk_level, COALESCE(reasoning,''), status, COALESCE(approved_by,''),
	approved_at, executed_at, COALESCE(error_message,''), created_at`

func scanAction(row interface{ Scan(...interface{}) error }) (*AgentAction, error) {
	var a AgentAction
	var approvedAt, executedAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.ActionID, &a.EventID, &a.AgentName, &a.ActionType,
		&a.TargetEntity, &a.TargetID, &a.ProposedContent,
		&a.RiskLevel, &a.Reasoning, &a.Status, &a.ApprovedBy,
		&approvedAt, &executedAt, &a.ErrorMessage, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		a.ApprovedAt = &approvedAt.Time
	}
	if executedAt.Valid {
		a.ExecutedAt = &executedAt.Time
	}
	return &a, nil
}

// GetAction returns an action by action_id.
func (s *Store) GetAction(actionID string) (*AgentAction, error) {
	a, err := scanAction(s.db.QueryRow(
		`SELECT `+actionColumns+` FROM agent_actions WHERE action_id = ?`, actionID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("action not found: %s", actionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get action: %w", err)
	}
	return a, nil
}

// ListActions returns actions filtered by optional status, newest first.
func (s *Store) ListActions(status string, limit int) ([]AgentAction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + actionColumns + ` FROM agent_actions WHERE 1=1`
	args := []interface{}{}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []AgentAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, *a)
	}
	return actions, rows.Err()
}

// CountPendingActionsForTarget returns how many proposed actions of one type
// already exist for an entity. Used by agents to stay idempotent under
// duplicate signals.
func (s *Store) CountPendingActionsForTarget(actionType, targetEntity, targetID string) (int, error) {
	var n int
	err := s.db.QueryRow(`
	SELECT COUNT(*) FROM agent_actions
	WHERE action_type = ? AND target_entity = ? AND target_id = ? AND status = ?`,
		actionType, targetEntity, targetID, ActionProposed).Scan(&n)
	return n, err
}

// TransitionAction moves an action to a new status, enforcing the
// forward-only lifecycle. Terminal states never revert.
func (s *Store) TransitionAction(actionID, newStatus, actor, errorMessage string) error {
	a, err := s.GetAction(actionID)
	if err != nil {
		return err
	}
	if !CanTransitionAction(a.Status, newStatus) {
		return fmt.Errorf("invalid action transition %s -> %s for %s", a.Status, newStatus, actionID)
	}

	query := `UPDATE agent_actions SET status = ?`
	args := []interface{}{newStatus}
	switch newStatus {
	case ActionApproved, ActionRejected:
		query += `, approved_by = ?, approved_at = ?`
		args = append(args, actor, time.Now().UTC())
	case ActionExecuted, ActionFailed:
		query += `, executed_at = ?, error_message = ?`
		args = append(args, time.Now().UTC(), errorMessage)
	}
	query += ` WHERE action_id = ? AND status = ?`
	args = append(args, actionID, a.Status)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("transition action: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("action %s changed concurrently", actionID)
	}
	return nil
}

// ExpireStaleProposedActions rejects proposed actions older than cutoff.
// Used at startup to clear leftovers a previous process never resolved.
func (s *Store) ExpireStaleProposedActions(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`
	UPDATE agent_actions SET status = ?, approved_by = 'system', approved_at = ?
	WHERE status = ? AND created_at < ?`,
		ActionRejected, time.Now().UTC(), ActionProposed, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
