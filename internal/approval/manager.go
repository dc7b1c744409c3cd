// Package approval governs whether a proposed agent action becomes a real
// side effect. The lifecycle is forward-only:
// proposed -> approved|rejected -> executed|failed.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ninjaos/autopilot/internal/store"
)

// Executor performs the real side effect for an approved action.
type Executor func(ctx context.Context, a *store.AgentAction) error

// Manager handles the action lifecycle: propose, approve/reject, execute.
type Manager struct {
	store *store.Store
	mu    sync.Mutex
	hooks []func(*store.AgentAction)
}

// NewManager creates an approval manager. Any proposed actions older than
// staleAfter are rejected on startup; they are leftovers from a previous
// process that never resolved them. staleAfter <= 0 skips the sweep.
func NewManager(st *store.Store, staleAfter time.Duration) *Manager {
	m := &Manager{store: st}
	if staleAfter > 0 {
		cutoff := time.Now().UTC().Add(-staleAfter)
		if n, err := st.ExpireStaleProposedActions(cutoff); err != nil {
			slog.Warn("Stale action sweep failed", "error", err)
		} else if n > 0 {
			slog.Info("Stale proposed actions rejected", "count", n)
		}
	}
	return m
}

// OnPropose registers a hook invoked for every newly proposed action.
// Hooks are best-effort observers (e.g. reviewer notifications).
func (m *Manager) OnPropose(fn func(*store.AgentAction)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Propose persists a new proposed action and notifies hooks.
func (m *Manager) Propose(a *store.AgentAction) (*store.AgentAction, error) {
	created, err := m.store.CreateAction(a)
	if err != nil {
		return nil, err
	}
	slog.Info("Action proposed",
		"action_id", created.ActionID, "agent", created.AgentName,
		"type", created.ActionType, "risk", created.RiskLevel)

	m.mu.Lock()
	hooks := make([]func(*store.AgentAction), len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()
	for _, fn := range hooks {
		fn(created)
	}
	return created, nil
}

// Approve moves a proposed action to approved.
func (m *Manager) Approve(actionID, approver string) error {
	if approver == "" {
		return fmt.Errorf("approver required")
	}
	return m.store.TransitionAction(actionID, store.ActionApproved, approver, "")
}

// Reject moves a proposed action to rejected. Terminal.
func (m *Manager) Reject(actionID, approver string) error {
	if approver == "" {
		return fmt.Errorf("approver required")
	}
	return m.store.TransitionAction(actionID, store.ActionRejected, approver, "")
}

// Execute runs the side effect for an approved action and records the
// outcome. The action ends executed on success, failed on error.
func (m *Manager) Execute(ctx context.Context, actionID string, exec Executor) error {
	a, err := m.store.GetAction(actionID)
	if err != nil {
		return err
	}
	if a.Status != store.ActionApproved {
		return fmt.Errorf("action %s is %s, not approved", actionID, a.Status)
	}

	if execErr := exec(ctx, a); execErr != nil {
		if err := m.store.TransitionAction(actionID, store.ActionFailed, "", execErr.Error()); err != nil {
			return err
		}
		slog.Warn("Action execution failed", "action_id", actionID, "error", execErr)
		return execErr
	}
	if err := m.store.TransitionAction(actionID, store.ActionExecuted, "", ""); err != nil {
		return err
	}
	slog.Info("Action executed", "action_id", actionID, "type", a.ActionType)
	return nil
}

// Pending returns proposed actions awaiting review.
func (m *Manager) Pending(limit int) ([]store.AgentAction, error) {
	return m.store.ListActions(store.ActionProposed, limit)
}
