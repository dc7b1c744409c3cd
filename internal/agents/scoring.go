package agents

import (
	"fmt"
	"strings"

	"github.com/ninjaos/autopilot/internal/store"
)

// sourceBonus maps a lead source to its score bonus.
var sourceBonus = map[string]int{
	"referral":   25,
	"sphere":     20,
	"open_house": 15,
	"sign_call":  15,
	"website":    10,
	"zillow":     10,
	"realtor":    10,
	"social":     5,
	"cold_call":  5,
	"manual":     5,
	"other":      0,
}

// Qualification thresholds.
const (
	QualifiedScore = 80
	NurturingScore = 50
)

// ScoreInput carries the lead fields the score derives from.
type ScoreInput struct {
	Email        string
	Phone        string
	Budget       string
	Timeline     string
	Areas        string
	InterestType string
	Source       string
}

// ScoreLead sums independent readiness signals and clamps to [0,100].
// Returns the score and a human-readable factor breakdown.
func ScoreLead(in ScoreInput) (int, []string) {
	score := 0
	var factors []string

	add := func(points int, label string) {
		score += points
		factors = append(factors, fmt.Sprintf("%s: +%d", label, points))
	}

	hasEmail := strings.TrimSpace(in.Email) != ""
	hasPhone := strings.TrimSpace(in.Phone) != ""
	switch {
	case hasEmail && hasPhone:
		add(20, "email and phone")
	case hasEmail || hasPhone:
		add(10, "one contact method")
	}

	if strings.TrimSpace(in.Budget) != "" {
		add(15, "budget specified")
	}

	timeline := strings.ToLower(in.Timeline)
	switch {
	case containsAny(timeline, "immediate", "asap", "now"):
		add(25, "urgent timeline")
	case containsAny(timeline, "month", "1-3", "soon"):
		add(20, "near-term timeline")
	case containsAny(timeline, "6", "year"):
		add(10, "long timeline")
	}

	if strings.TrimSpace(in.Areas) != "" {
		add(10, "area specified")
	}
	if strings.TrimSpace(in.InterestType) != "" {
		add(10, "interest specified")
	}

	if bonus, ok := sourceBonus[strings.ToLower(strings.TrimSpace(in.Source))]; ok && bonus > 0 {
		add(bonus, "source "+strings.ToLower(in.Source))
	}

	if score > 100 {
		factors = append(factors, fmt.Sprintf("clamped from %d", score))
		score = 100
	}
	return score, factors
}

// StatusForScore maps a qualification score to the lead status.
func StatusForScore(score int) string {
	switch {
	case score >= QualifiedScore:
		return store.LeadQualified
	case score >= NurturingScore:
		return store.LeadNurturing
	default:
		return store.LeadNew
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NormalizeEmail lowercases and trims an email for duplicate matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone reduces a phone number to its digits, so
// "(555) 123-4567" and "5551234567" compare equal.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
