package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSignal persists a pending follow-up obligation.
func (s *Store) CreateSignal(sig *FollowUpSignal) (*FollowUpSignal, error) {
	if sig.SignalID == "" {
		sig.SignalID = uuid.NewString()
	}
	if sig.Status == "" {
		sig.Status = SignalPending
	}
	if sig.ExpiresAt.IsZero() {
		sig.ExpiresAt = time.Now().UTC().Add(72 * time.Hour)
	}
	res, err := s.db.Exec(`
	INSERT INTO follow_up_signals (signal_id, person_id, signal_type, status, expires_at)
	VALUES (?, ?, ?, ?, ?)`,
		sig.SignalID, sig.PersonID, sig.SignalType, sig.Status, sig.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("create signal: %w", err)
	}
	sig.ID, _ = res.LastInsertId()
	return sig, nil
}

// ListSignals returns signals filtered by optional status.
func (s *Store) ListSignals(status string) ([]FollowUpSignal, error) {
	query := `SELECT id, signal_id, COALESCE(person_id,''), signal_type, status, expires_at, created_at
	FROM follow_up_signals WHERE 1=1`
	args := []interface{}{}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var signals []FollowUpSignal
	for rows.Next() {
		var sig FollowUpSignal
		if err := rows.Scan(&sig.ID, &sig.SignalID, &sig.PersonID, &sig.SignalType,
			&sig.Status, &sig.ExpiresAt, &sig.CreatedAt); err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// ExpireOverdueSignals flips pending signals past their expiry to expired.
func (s *Store) ExpireOverdueSignals(now time.Time) (int64, error) {
	res, err := s.db.Exec(`
	UPDATE follow_up_signals SET status = ? WHERE status = ? AND expires_at <= ?`,
		SignalExpired, SignalPending, now)
	if err != nil {
		return 0, fmt.Errorf("expire signals: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClaimSignalDedup records that a signal fired for an entity on a given date.
// Returns true if this is the first firing (caller may emit), false if the
// (signal, entity, date) key was already claimed. Durable across restarts.
func (s *Store) ClaimSignalDedup(signalType, entityID, signalDate string) (bool, error) {
	res, err := s.db.Exec(`
	INSERT INTO signal_dedup (signal_type, entity_id, signal_date) VALUES (?, ?, ?)
	ON CONFLICT(signal_type, entity_id, signal_date) DO NOTHING`,
		signalType, entityID, signalDate)
	if err != nil {
		return false, fmt.Errorf("claim signal dedup: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// PruneSignalDedup removes dedup records older than cutoff.
func (s *Store) PruneSignalDedup(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM signal_dedup WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// UpsertSchedulerRun persists the run status for a scheduler job.
func (s *Store) UpsertSchedulerRun(jobName, status string, runAt time.Time) error {
	_, err := s.db.Exec(`
	INSERT INTO scheduler_runs (job_name, last_status, last_run_at, run_count)
	VALUES (?, ?, ?, 1)
	ON CONFLICT(job_name) DO UPDATE SET
		last_status = excluded.last_status,
		last_run_at = excluded.last_run_at,
		run_count = run_count + 1,
		updated_at = datetime('now')`,
		jobName, status, runAt)
	return err
}

// ListSchedulerRuns returns persisted per-job run state.
func (s *Store) ListSchedulerRuns() ([]SchedulerRun, error) {
	rows, err := s.db.Query(`
	SELECT id, job_name, COALESCE(last_status,''), last_run_at, run_count, created_at, updated_at
	FROM scheduler_runs ORDER BY job_name`)
	if err != nil {
		return nil, fmt.Errorf("list scheduler runs: %w", err)
	}
	defer rows.Close()

	var runs []SchedulerRun
	for rows.Next() {
		var r SchedulerRun
		if err := rows.Scan(&r.ID, &r.JobName, &r.LastStatus, &r.LastRunAt, &r.RunCount, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
