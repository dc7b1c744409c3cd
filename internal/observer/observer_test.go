package observer

import (
	"path/filepath"
	"testing"

	"github.com/ninjaos/autopilot/internal/store"
)

func newTestGate(t *testing.T) (*Gate, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "observer.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewGate(st), st
}

func testCandidate() Candidate {
	return Candidate{
		AgentName:    "workflow_coach",
		PatternID:    "leads.hot_leads_waiting",
		Intent:       IntentShortcut,
		Title:        "Call your hot leads",
		Description:  "2 qualified leads have no scheduled touch",
		Confidence:   90,
		ContextRoute: "/leads",
	}
}

func TestGateCreatesOncePerHour(t *testing.T) {
	g, st := newTestGate(t)

	created, err := g.CreateIfAllowed(testCandidate())
	if err != nil {
		t.Fatalf("first gate call: %v", err)
	}
	if !created {
		t.Fatal("first call should create")
	}

	created, err = g.CreateIfAllowed(testCandidate())
	if err != nil {
		t.Fatalf("second gate call: %v", err)
	}
	if created {
		t.Fatal("second call within the hour must be suppressed")
	}

	suggestions, _ := st.ListSuggestions(10)
	if len(suggestions) != 1 {
		t.Fatalf("expected exactly 1 suggestion, got %d", len(suggestions))
	}
}

func TestGateLazilyCreatesPattern(t *testing.T) {
	g, st := newTestGate(t)

	if _, err := st.GetPattern("leads.hot_leads_waiting"); err == nil {
		t.Fatal("pattern should not exist before first firing")
	}
	if _, err := g.CreateIfAllowed(testCandidate()); err != nil {
		t.Fatalf("gate: %v", err)
	}
	p, err := st.GetPattern("leads.hot_leads_waiting")
	if err != nil {
		t.Fatalf("pattern missing after firing: %v", err)
	}
	if !p.IsEnabled || p.UserFeedbackScore != 0 {
		t.Fatalf("unexpected fresh pattern: %+v", p)
	}
}

func TestGateSuppressesBelowFeedbackThreshold(t *testing.T) {
	g, st := newTestGate(t)

	if _, err := st.GetOrCreatePattern("leads.hot_leads_waiting", "{}"); err != nil {
		t.Fatalf("seed pattern: %v", err)
	}
	if err := st.AdjustPatternFeedback("leads.hot_leads_waiting", -4); err != nil {
		t.Fatalf("adjust feedback: %v", err)
	}

	created, err := g.CreateIfAllowed(testCandidate())
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if created {
		t.Fatal("pattern below -3 must be suppressed")
	}
}

func TestReactFeedsPatternScore(t *testing.T) {
	g, st := newTestGate(t)

	if _, err := g.CreateIfAllowed(testCandidate()); err != nil {
		t.Fatalf("gate: %v", err)
	}
	suggestions, _ := st.ListSuggestions(1)
	if len(suggestions) != 1 {
		t.Fatalf("expected suggestion, got %d", len(suggestions))
	}

	if err := g.React(suggestions[0].SuggestionID, false); err != nil {
		t.Fatalf("react: %v", err)
	}
	p, _ := st.GetPattern("leads.hot_leads_waiting")
	if p.UserFeedbackScore != -1 {
		t.Fatalf("expected score -1, got %d", p.UserFeedbackScore)
	}
	sg, _ := st.GetSuggestion(suggestions[0].SuggestionID)
	if sg.Status != store.SuggestionDismissed {
		t.Fatalf("expected dismissed, got %s", sg.Status)
	}
}
