package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetOrCreatePattern returns the pattern row, lazily creating it on first firing.
func (s *Store) GetOrCreatePattern(patternID, triggerConditions string) (*ObserverPattern, error) {
	if triggerConditions == "" {
		triggerConditions = "{}"
	}
	_, err := s.db.Exec(`
	INSERT INTO observer_patterns (pattern_id, trigger_conditions) VALUES (?, ?)
	ON CONFLICT(pattern_id) DO NOTHING`, patternID, triggerConditions)
	if err != nil {
		return nil, fmt.Errorf("create pattern: %w", err)
	}
	return s.GetPattern(patternID)
}

// GetPattern returns one pattern by id.
func (s *Store) GetPattern(patternID string) (*ObserverPattern, error) {
	var p ObserverPattern
	err := s.db.QueryRow(`
	SELECT pattern_id, COALESCE(trigger_conditions,'{}'), is_enabled, user_feedback_score, created_at
	FROM observer_patterns WHERE pattern_id = ?`, patternID).Scan(
		&p.PatternID, &p.TriggerConditions, &p.IsEnabled, &p.UserFeedbackScore, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pattern not found: %s", patternID)
	}
	if err != nil {
		return nil, fmt.Errorf("get pattern: %w", err)
	}
	return &p, nil
}

// ListEnabledPatterns returns all enabled patterns.
func (s *Store) ListEnabledPatterns() ([]ObserverPattern, error) {
	rows, err := s.db.Query(`
	SELECT pattern_id, COALESCE(trigger_conditions,'{}'), is_enabled, user_feedback_score, created_at
	FROM observer_patterns WHERE is_enabled = 1`)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var patterns []ObserverPattern
	for rows.Next() {
		var p ObserverPattern
		if err := rows.Scan(&p.PatternID, &p.TriggerConditions, &p.IsEnabled, &p.UserFeedbackScore, &p.CreatedAt); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// AdjustPatternFeedback accumulates user feedback (+1 / -1) for a pattern.
func (s *Store) AdjustPatternFeedback(patternID string, delta int) error {
	res, err := s.db.Exec(`
	UPDATE observer_patterns SET user_feedback_score = user_feedback_score + ?
	WHERE pattern_id = ?`, delta, patternID)
	if err != nil {
		return fmt.Errorf("adjust pattern feedback: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("pattern not found: %s", patternID)
	}
	return nil
}

// LastPatternFiredAt returns when the pattern last produced a suggestion.
// Returns (zero, false) if it never fired.
func (s *Store) LastPatternFiredAt(patternID string) (time.Time, bool, error) {
	var t time.Time
	err := s.db.QueryRow(`
	SELECT created_at FROM observer_suggestions
	WHERE pattern_id = ? ORDER BY created_at DESC LIMIT 1`, patternID).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last pattern fired: %w", err)
	}
	return t, true, nil
}

// CreateSuggestion persists an observer suggestion.
func (s *Store) CreateSuggestion(sg *ObserverSuggestion) (*ObserverSuggestion, error) {
	if sg.SuggestionID == "" {
		sg.SuggestionID = uuid.NewString()
	}
	if sg.Status == "" {
		sg.Status = SuggestionActive
	}
	if sg.ExpiresAt.IsZero() {
		sg.ExpiresAt = time.Now().UTC().Add(24 * time.Hour)
	}
	_, err := s.db.Exec(`
	INSERT INTO observer_suggestions (suggestion_id, agent_name, intent, title, description, confidence, context_route, pattern_id, target_id, status, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sg.SuggestionID, sg.AgentName, sg.Intent, sg.Title, sg.Description,
		sg.Confidence, sg.ContextRoute, sg.PatternID, sg.TargetID, sg.Status, sg.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create suggestion: %w", err)
	}
	return sg, nil
}

const suggestionColumns = `id, suggestion_id, agent_name, intent, title,
	COALESCE(description,''), confidence, COALESCE(context_route,''), pattern_id,
	COALESCE(target_id,''), status, expires_at, created_at`

// ListSuggestions returns the newest suggestions up to limit.
func (s *Store) ListSuggestions(limit int) ([]ObserverSuggestion, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
	SELECT `+suggestionColumns+` FROM observer_suggestions
	ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()
	return scanSuggestions(rows)
}

// HasPendingSuggestionForTarget reports whether an unexpired active
// suggestion already exists for the target entity.
func (s *Store) HasPendingSuggestionForTarget(targetID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`
	SELECT COUNT(*) FROM observer_suggestions
	WHERE target_id = ? AND status = ? AND expires_at > ?`,
		targetID, SuggestionActive, time.Now().UTC()).Scan(&n)
	return n > 0, err
}

// UpdateSuggestionStatus records a user reaction on a suggestion.
func (s *Store) UpdateSuggestionStatus(suggestionID, status string) error {
	res, err := s.db.Exec(`
	UPDATE observer_suggestions SET status = ? WHERE suggestion_id = ?`, status, suggestionID)
	if err != nil {
		return fmt.Errorf("update suggestion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("suggestion not found: %s", suggestionID)
	}
	return nil
}

// GetSuggestion returns one suggestion by id.
func (s *Store) GetSuggestion(suggestionID string) (*ObserverSuggestion, error) {
	rows, err := s.db.Query(`
	SELECT `+suggestionColumns+` FROM observer_suggestions WHERE suggestion_id = ?`, suggestionID)
	if err != nil {
		return nil, fmt.Errorf("get suggestion: %w", err)
	}
	defer rows.Close()
	out, err := scanSuggestions(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("suggestion not found: %s", suggestionID)
	}
	return &out[0], nil
}

// ExpireOverdueSuggestions flips active suggestions past their expiry.
func (s *Store) ExpireOverdueSuggestions(now time.Time) (int64, error) {
	res, err := s.db.Exec(`
	UPDATE observer_suggestions SET status = ? WHERE status = ? AND expires_at <= ?`,
		SuggestionExpired, SuggestionActive, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanSuggestions(rows *sql.Rows) ([]ObserverSuggestion, error) {
	var out []ObserverSuggestion
	for rows.Next() {
		var sg ObserverSuggestion
		if err := rows.Scan(
			&sg.ID, &sg.SuggestionID, &sg.AgentName, &sg.Intent, &sg.Title,
			&sg.Description, &sg.Confidence, &sg.ContextRoute, &sg.PatternID,
			&sg.TargetID, &sg.Status, &sg.ExpiresAt, &sg.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}
