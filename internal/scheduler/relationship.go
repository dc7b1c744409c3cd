package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ninjaos/autopilot/internal/bus"
	"github.com/ninjaos/autopilot/internal/store"
)

// birthdayPattern matches loosely formatted birthday mentions in free-form
// person notes, e.g. "birthday: 1985-03-12", "Birthday 3/12".
var birthdayPattern = regexp.MustCompile(`(?i)birthday[:\s]+([0-9]{4}-[0-9]{2}-[0-9]{2}|[0-9]{1,2}/[0-9]{1,2}(?:/[0-9]{2,4})?|[A-Za-z]{3,9}\s+[0-9]{1,2})`)

var birthdayLayouts = []string{"2006-01-02", "1/2/2006", "1/2/06", "1/2", "January 2", "Jan 2"}

// RelationshipChecker scans for overdue contacts and upcoming anniversaries
// and emits the matching signals, deduplicated durably in signal_dedup so a
// restart never re-emits the same signal for the same day.
type RelationshipChecker struct {
	store       *store.Store
	bus         *bus.EventBus
	overdueDays int
	windowDays  int
}

// NewRelationshipChecker creates the checker.
func NewRelationshipChecker(st *store.Store, b *bus.EventBus, overdueDays, windowDays int) *RelationshipChecker {
	if overdueDays <= 0 {
		overdueDays = 7
	}
	if windowDays <= 0 {
		windowDays = 14
	}
	return &RelationshipChecker{store: st, bus: b, overdueDays: overdueDays, windowDays: windowDays}
}

// Run performs both scans. A failure in one scan does not stop the other.
func (c *RelationshipChecker) Run(ctx context.Context, now time.Time) error {
	return errors.Join(
		c.scanOverdueContacts(ctx, now),
		c.scanAnniversaries(ctx, now),
	)
}

// scanOverdueContacts emits contact.due for contacts past their segment
// cadence by at least overdueDays. Dedup key is (signal, person, day).
func (c *RelationshipChecker) scanOverdueContacts(ctx context.Context, now time.Time) error {
	people, err := c.store.ContactsDueForFollowUp(now, c.overdueDays)
	if err != nil {
		return err
	}
	day := now.UTC().Format("2006-01-02")
	for _, p := range people {
		claimed, err := c.store.ClaimSignalDedup(store.SignalOverdueContact, p.PersonID, day)
		if err != nil {
			return err
		}
		if !claimed {
			continue
		}
		err = c.bus.Publish(ctx, &bus.Event{
			Type:           bus.EventContactDue,
			SourceEntityID: p.PersonID,
			Payload: map[string]any{
				"personId": p.PersonID,
				"name":     p.Name,
				"segment":  p.Segment,
				"reason":   fmt.Sprintf("no contact for at least %d days past cadence", c.overdueDays),
			},
		})
		if err != nil {
			return err
		}
		slog.Info("Contact due signal emitted", "person", p.PersonID, "segment", p.Segment)
	}
	return nil
}

// scanAnniversaries parses birthday mentions from person notes and emits
// anniversary.approaching for dates within the lookahead window. Dedup key
// is (signal, person, exact date) so each occurrence fires once.
func (c *RelationshipChecker) scanAnniversaries(ctx context.Context, now time.Time) error {
	people, err := c.store.ListPeople()
	if err != nil {
		return err
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	horizon := today.AddDate(0, 0, c.windowDays)

	for _, p := range people {
		month, day, ok := parseBirthday(p.Notes)
		if !ok {
			continue
		}
		next := nextOccurrence(month, day, today)
		if next.After(horizon) {
			continue
		}
		date := next.Format("2006-01-02")
		claimed, err := c.store.ClaimSignalDedup(store.SignalAnniversary, p.PersonID, date)
		if err != nil {
			return err
		}
		if !claimed {
			continue
		}
		err = c.bus.Publish(ctx, &bus.Event{
			Type:           bus.EventAnniversary,
			SourceEntityID: p.PersonID,
			Payload: map[string]any{
				"personId": p.PersonID,
				"name":     p.Name,
				"date":     date,
			},
		})
		if err != nil {
			return err
		}
		slog.Info("Anniversary signal emitted", "person", p.PersonID, "date", date)
	}
	return nil
}

// parseBirthday extracts a month and day from a birthday mention in notes.
// The year, when present, is ignored.
func parseBirthday(notes string) (time.Month, int, bool) {
	m := birthdayPattern.FindStringSubmatch(notes)
	if m == nil {
		return 0, 0, false
	}
	raw := strings.TrimSpace(m[1])
	for _, layout := range birthdayLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Month(), t.Day(), true
		}
	}
	return 0, 0, false
}

// nextOccurrence places the month/day in the current year, rolling forward
// one year if the date has already passed.
func nextOccurrence(month time.Month, day int, today time.Time) time.Time {
	next := time.Date(today.Year(), month, day, 0, 0, 0, 0, time.UTC)
	if next.Before(today) {
		next = next.AddDate(1, 0, 0)
	}
	return next
}
