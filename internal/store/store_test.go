package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "autopilot.db")
	st, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestNewCreatesMissingDataDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "autopilot.db")
	st, err := New(dbPath)
	if err != nil {
		t.Fatalf("first-run open: %v", err)
	}
	defer st.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("db file missing: %v", err)
	}
}

func TestActionLifecycleForwardOnly(t *testing.T) {
	st := newTestStore(t)

	a, err := st.CreateAction(&AgentAction{
		AgentName:  "lead_intake",
		ActionType: ActionSuggestCall,
		RiskLevel:  RiskMedium,
	})
	if err != nil {
		t.Fatalf("create action: %v", err)
	}
	if a.Status != ActionProposed {
		t.Fatalf("expected proposed, got %s", a.Status)
	}

	if err := st.TransitionAction(a.ActionID, ActionExecuted, "", ""); err == nil {
		t.Fatal("expected proposed->executed to be rejected")
	}
	if err := st.TransitionAction(a.ActionID, ActionApproved, "broker", ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got, _ := st.GetAction(a.ActionID)
	if got.ApprovedBy != "broker" || got.ApprovedAt == nil {
		t.Fatalf("approval stamp missing: %+v", got)
	}

	if err := st.TransitionAction(a.ActionID, ActionExecuted, "", ""); err != nil {
		t.Fatalf("execute: %v", err)
	}
	// Terminal states never revert.
	if err := st.TransitionAction(a.ActionID, ActionApproved, "broker", ""); err == nil {
		t.Fatal("expected executed->approved to be rejected")
	}
}

func TestListRecentEventsFiltersByType(t *testing.T) {
	st := newTestStore(t)

	for _, typ := range []string{"lead.created", "lead.created", "contact.due"} {
		if err := st.InsertEvent(&SystemEvent{EventType: typ}); err != nil {
			t.Fatalf("insert %s: %v", typ, err)
		}
	}

	all, err := st.ListRecentEvents("", 10)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}

	leads, err := st.ListRecentEvents("lead.created", 10)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("expected 2 lead.created events, got %d", len(leads))
	}
	for _, e := range leads {
		if e.EventType != "lead.created" {
			t.Fatalf("filter leaked %s", e.EventType)
		}
	}
}

func TestPruneEventsDeletesChildActionsFirst(t *testing.T) {
	st := newTestStore(t)

	old := &SystemEvent{EventType: "lead.created", CreatedAt: time.Now().UTC().AddDate(0, 0, -10)}
	if err := st.InsertEvent(old); err != nil {
		t.Fatalf("insert old event: %v", err)
	}
	fresh := &SystemEvent{EventType: "lead.created"}
	if err := st.InsertEvent(fresh); err != nil {
		t.Fatalf("insert fresh event: %v", err)
	}
	// Two actions on the old event so the pruned counts differ.
	for i := 0; i < 2; i++ {
		if _, err := st.CreateAction(&AgentAction{EventID: old.EventID, AgentName: "lead_intake", ActionType: ActionLogInsight}); err != nil {
			t.Fatalf("create old action: %v", err)
		}
	}
	if _, err := st.CreateAction(&AgentAction{EventID: fresh.EventID, AgentName: "lead_intake", ActionType: ActionLogInsight}); err != nil {
		t.Fatalf("create fresh action: %v", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -7)
	actions, events, err := st.PruneEvents(cutoff)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if actions != 2 || events != 1 {
		t.Fatalf("expected 2 actions + 1 event pruned, got %d/%d", actions, events)
	}

	if _, err := st.GetEvent(fresh.EventID); err != nil {
		t.Fatalf("fresh event should survive: %v", err)
	}
	remaining, err := st.ListActions("", 10)
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(remaining) != 1 || remaining[0].EventID != fresh.EventID {
		t.Fatalf("expected only fresh action to survive, got %+v", remaining)
	}
}

func TestExpireStaleProposedActions(t *testing.T) {
	st := newTestStore(t)

	a, err := st.CreateAction(&AgentAction{AgentName: "coach", ActionType: ActionLogInsight})
	if err != nil {
		t.Fatalf("create action: %v", err)
	}

	n, err := st.ExpireStaleProposedActions(time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("expire stale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}
	got, _ := st.GetAction(a.ActionID)
	if got.Status != ActionRejected {
		t.Fatalf("expected rejected, got %s", got.Status)
	}
}

func TestLeadScoringUpdateAppendsAudit(t *testing.T) {
	st := newTestStore(t)

	l, err := st.CreateLead(&Lead{Name: "Jo Smith", Email: "jo@example.com"})
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}
	if err := st.UpdateLeadScoring(l.LeadID, 85, LeadQualified, "scored 85"); err != nil {
		t.Fatalf("update scoring: %v", err)
	}
	if err := st.UpdateLeadScoring(l.LeadID, 85, LeadQualified, "second note"); err != nil {
		t.Fatalf("second update: %v", err)
	}

	got, _ := st.GetLead(l.LeadID)
	if got.Score != 85 || got.Status != LeadQualified {
		t.Fatalf("scoring lost: %+v", got)
	}
	if got.QualifiedAt == nil {
		t.Fatal("expected qualified_at stamp")
	}
	if got.Notes != "scored 85\nsecond note" {
		t.Fatalf("audit trail wrong: %q", got.Notes)
	}
}

func TestLastPatternFiredAtScansStoredTimestamp(t *testing.T) {
	st := newTestStore(t)

	if _, _, err := st.LastPatternFiredAt("coach.leads.hot_waiting"); err != nil {
		t.Fatalf("never-fired lookup: %v", err)
	}
	if _, fired, _ := st.LastPatternFiredAt("coach.leads.hot_waiting"); fired {
		t.Fatal("pattern should not be marked fired before any suggestion")
	}

	if _, err := st.GetOrCreatePattern("coach.leads.hot_waiting", ""); err != nil {
		t.Fatalf("create pattern: %v", err)
	}
	if _, err := st.CreateSuggestion(&ObserverSuggestion{
		AgentName: "workflow_coach",
		Intent:    "review_leads",
		Title:     "Hot lead waiting",
		PatternID: "coach.leads.hot_waiting",
	}); err != nil {
		t.Fatalf("create suggestion: %v", err)
	}

	when, fired, err := st.LastPatternFiredAt("coach.leads.hot_waiting")
	if err != nil {
		t.Fatalf("fired lookup: %v", err)
	}
	if !fired {
		t.Fatal("expected pattern to report fired")
	}
	if time.Since(when) > time.Minute {
		t.Fatalf("fired-at not recent: %v", when)
	}
}

func TestSignalDedupClaimOncePerDate(t *testing.T) {
	st := newTestStore(t)

	first, err := st.ClaimSignalDedup("contact.due", "person-1", "2026-08-26")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !first {
		t.Fatal("first claim should win")
	}
	second, err := st.ClaimSignalDedup("contact.due", "person-1", "2026-08-26")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second {
		t.Fatal("same-day second claim should lose")
	}
	nextDay, err := st.ClaimSignalDedup("contact.due", "person-1", "2026-08-27")
	if err != nil {
		t.Fatalf("next day claim: %v", err)
	}
	if !nextDay {
		t.Fatal("next-day claim should win")
	}
}

func TestExpireOverdueSignals(t *testing.T) {
	st := newTestStore(t)

	if _, err := st.CreateSignal(&FollowUpSignal{
		PersonID:   "person-1",
		SignalType: "follow_up",
		ExpiresAt:  time.Now().UTC().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("create signal: %v", err)
	}
	if _, err := st.CreateSignal(&FollowUpSignal{
		PersonID:   "person-2",
		SignalType: "follow_up",
		ExpiresAt:  time.Now().UTC().Add(time.Hour),
	}); err != nil {
		t.Fatalf("create signal: %v", err)
	}

	n, err := st.ExpireOverdueSignals(time.Now().UTC())
	if err != nil {
		t.Fatalf("expire signals: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}
	pending, _ := st.ListSignals(SignalPending)
	if len(pending) != 1 || pending[0].PersonID != "person-2" {
		t.Fatalf("wrong signal survived: %+v", pending)
	}
}

func TestContactsDueForFollowUpBySegment(t *testing.T) {
	st := newTestStore(t)

	longAgo := time.Now().UTC().AddDate(0, 0, -45)
	recent := time.Now().UTC().AddDate(0, 0, -5)

	if _, err := st.CreatePerson(&Person{Name: "Ada", Segment: "a_list", LastContactAt: &longAgo}); err != nil {
		t.Fatalf("create person: %v", err)
	}
	if _, err := st.CreatePerson(&Person{Name: "Ben", Segment: "a_list", LastContactAt: &recent}); err != nil {
		t.Fatalf("create person: %v", err)
	}
	// c_list cadence is 90 days; 45 days ago is not due yet.
	if _, err := st.CreatePerson(&Person{Name: "Cam", Segment: "c_list", LastContactAt: &longAgo}); err != nil {
		t.Fatalf("create person: %v", err)
	}

	due, err := st.ContactsDueForFollowUp(time.Now().UTC(), 7)
	if err != nil {
		t.Fatalf("contacts due: %v", err)
	}
	if len(due) != 1 || due[0].Name != "Ada" {
		t.Fatalf("expected only Ada due, got %+v", due)
	}
}
