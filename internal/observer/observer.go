// Package observer gates workflow suggestions behind per-pattern feedback
// scores and a recency window, so the same advice is not repeated at users
// who ignored or rejected it.
package observer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ninjaos/autopilot/internal/store"
)

const (
	// SuppressThreshold is the cumulative feedback score below which a
	// pattern stops producing suggestions.
	SuppressThreshold = -3
	// FireWindow is the rolling window within which a pattern fires at most once.
	FireWindow = time.Hour
)

// Suggestion intents.
const (
	IntentDelegate = "delegate"
	IntentAutomate = "automate"
	IntentShortcut = "shortcut"
	IntentInsight  = "insight"
)

// Candidate is a suggestion an agent wants to surface, keyed by the pattern
// that produced it.
type Candidate struct {
	AgentName         string
	PatternID         string
	TriggerConditions string // JSON describing the pattern, stored on first firing
	Intent            string
	Title             string
	Description       string
	Confidence        int // 0-100
	ContextRoute      string
	TargetID          string
	TTL               time.Duration
}

// Gate decides whether candidate suggestions are allowed to surface.
type Gate struct {
	store *store.Store
}

// NewGate creates a suppression gate over the store.
func NewGate(st *store.Store) *Gate {
	return &Gate{store: st}
}

// CreateIfAllowed persists the candidate unless its pattern is suppressed or
// fired within the last hour. Returns true when the suggestion was created.
// A suppressed candidate is a deliberate non-emission, not an error.
func (g *Gate) CreateIfAllowed(c Candidate) (bool, error) {
	if c.PatternID == "" {
		return false, fmt.Errorf("candidate missing pattern id")
	}

	pattern, err := g.store.GetOrCreatePattern(c.PatternID, c.TriggerConditions)
	if err != nil {
		return false, err
	}
	if !pattern.IsEnabled {
		slog.Debug("Suggestion suppressed: pattern disabled", "pattern", c.PatternID)
		return false, nil
	}
	if pattern.UserFeedbackScore < SuppressThreshold {
		slog.Info("Suggestion suppressed: feedback below threshold",
			"pattern", c.PatternID, "score", pattern.UserFeedbackScore)
		return false, nil
	}

	lastFired, fired, err := g.store.LastPatternFiredAt(c.PatternID)
	if err != nil {
		return false, err
	}
	if fired && time.Since(lastFired) < FireWindow {
		slog.Debug("Suggestion suppressed: fired within window",
			"pattern", c.PatternID, "last_fired", lastFired)
		return false, nil
	}

	ttl := c.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err = g.store.CreateSuggestion(&store.ObserverSuggestion{
		AgentName:    c.AgentName,
		Intent:       c.Intent,
		Title:        c.Title,
		Description:  c.Description,
		Confidence:   c.Confidence,
		ContextRoute: c.ContextRoute,
		PatternID:    c.PatternID,
		TargetID:     c.TargetID,
		ExpiresAt:    time.Now().UTC().Add(ttl),
	})
	if err != nil {
		return false, err
	}
	slog.Info("Suggestion created", "pattern", c.PatternID, "agent", c.AgentName, "title", c.Title)
	return true, nil
}

// React records a user reaction on a suggestion and feeds ±1 back into the
// pattern score that produced it.
func (g *Gate) React(suggestionID string, helpful bool) error {
	sg, err := g.store.GetSuggestion(suggestionID)
	if err != nil {
		return err
	}
	status := store.SuggestionDismissed
	delta := -1
	if helpful {
		status = store.SuggestionAccepted
		delta = 1
	}
	if err := g.store.UpdateSuggestionStatus(suggestionID, status); err != nil {
		return err
	}
	return g.store.AdjustPatternFeedback(sg.PatternID, delta)
}
