package approval

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ninjaos/autopilot/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "approval.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewManager(st, 0), st
}

func propose(t *testing.T, m *Manager) *store.AgentAction {
	t.Helper()
	a, err := m.Propose(&store.AgentAction{
		AgentName:  "lead_intake",
		ActionType: store.ActionSuggestCall,
		RiskLevel:  store.RiskMedium,
		TargetID:   "lead-1",
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	return a
}

func TestApproveThenExecute(t *testing.T) {
	m, st := newTestManager(t)
	a := propose(t, m)

	if err := m.Approve(a.ActionID, "broker"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	var executed bool
	err := m.Execute(context.Background(), a.ActionID, func(ctx context.Context, act *store.AgentAction) error {
		executed = true
		return nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !executed {
		t.Fatal("executor not invoked")
	}
	got, _ := st.GetAction(a.ActionID)
	if got.Status != store.ActionExecuted || got.ExecutedAt == nil {
		t.Fatalf("expected executed, got %+v", got)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	m, _ := newTestManager(t)
	a := propose(t, m)

	if err := m.Reject(a.ActionID, "broker"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := m.Approve(a.ActionID, "broker"); err == nil {
		t.Fatal("rejected action must not be approvable")
	}
	err := m.Execute(context.Background(), a.ActionID, func(ctx context.Context, act *store.AgentAction) error {
		return nil
	})
	if err == nil {
		t.Fatal("rejected action must not execute")
	}
}

func TestExecuteFailureRecordsError(t *testing.T) {
	m, st := newTestManager(t)
	a := propose(t, m)

	if err := m.Approve(a.ActionID, "broker"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	execErr := errors.New("smtp unreachable")
	err := m.Execute(context.Background(), a.ActionID, func(ctx context.Context, act *store.AgentAction) error {
		return execErr
	})
	if !errors.Is(err, execErr) {
		t.Fatalf("expected executor error, got %v", err)
	}
	got, _ := st.GetAction(a.ActionID)
	if got.Status != store.ActionFailed || got.ErrorMessage != "smtp unreachable" {
		t.Fatalf("failure not recorded: %+v", got)
	}
}

func TestExecuteRequiresApproval(t *testing.T) {
	m, _ := newTestManager(t)
	a := propose(t, m)

	err := m.Execute(context.Background(), a.ActionID, func(ctx context.Context, act *store.AgentAction) error {
		t.Fatal("executor must not run for unapproved action")
		return nil
	})
	if err == nil {
		t.Fatal("expected error executing proposed action")
	}
}

func TestStaleProposedSweptOnStartup(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "approval.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	a, err := st.CreateAction(&store.AgentAction{AgentName: "coach", ActionType: store.ActionLogInsight})
	if err != nil {
		t.Fatalf("create action: %v", err)
	}
	// Backdate the action past the stale cutoff.
	if _, err := st.DB().Exec(`UPDATE agent_actions SET created_at = ? WHERE action_id = ?`,
		time.Now().UTC().Add(-48*time.Hour), a.ActionID); err != nil {
		t.Fatalf("backdate action: %v", err)
	}

	NewManager(st, 24*time.Hour)

	got, _ := st.GetAction(a.ActionID)
	if got.Status != store.ActionRejected {
		t.Fatalf("stale action not swept: %s", got.Status)
	}
}

func TestOnProposeHookFires(t *testing.T) {
	m, _ := newTestManager(t)

	var notified []string
	m.OnPropose(func(a *store.AgentAction) {
		notified = append(notified, a.ActionID)
	})
	a := propose(t, m)

	if len(notified) != 1 || notified[0] != a.ActionID {
		t.Fatalf("hook not fired: %v", notified)
	}
}
