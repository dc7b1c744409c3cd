// Package bus provides the typed pub/sub dispatcher connecting domain
// events to interested agents.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ninjaos/autopilot/internal/store"
)

// Well-known event types.
const (
	EventLeadCreated    = "lead.created"
	EventLeadQualified  = "lead.qualified"
	EventContactDue     = "contact.due"
	EventAnniversary    = "anniversary.approaching"
	EventContextChanged = "ui.context.changed"
)

// Event is a domain event flowing through the bus. Payload is an opaque map.
type Event struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	SourceEntityID string         `json:"source_entity_id,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// String returns a payload field as a string, or "" when absent.
func (e *Event) String(key string) string {
	if e.Payload == nil {
		return ""
	}
	v, _ := e.Payload[key].(string)
	return v
}

// Handler reacts to one event. Returned errors are logged at the bus
// boundary and never propagate to the publisher.
type Handler func(ctx context.Context, evt *Event) error

type subscription struct {
	agentName string
	eventType string
	priority  int
	seq       int
	handler   Handler
	active    bool
}

// EventBus persists published events and dispatches them to registered
// agents in priority order. Dispatch is synchronous within one publish;
// independent publishes have no ordering guarantee.
type EventBus struct {
	store *store.Store
	mu    sync.RWMutex
	subs  map[string][]*subscription
	taps  []func(*Event)
	seq   int
}

// New creates an event bus over the given store.
func New(st *store.Store) *EventBus {
	return &EventBus{
		store: st,
		subs:  make(map[string][]*subscription),
	}
}

// Register binds an agent handler to one or more event types. Lower priority
// runs first; ties are broken by registration order. The declared interest
// is mirrored to the store for visibility (best-effort).
func (b *EventBus) Register(agentName string, eventTypes []string, priority int, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, et := range eventTypes {
		b.seq++
		sub := &subscription{
			agentName: agentName,
			eventType: et,
			priority:  priority,
			seq:       b.seq,
			handler:   h,
			active:    true,
		}
		b.subs[et] = append(b.subs[et], sub)
		sort.SliceStable(b.subs[et], func(i, j int) bool {
			a, c := b.subs[et][i], b.subs[et][j]
			if a.priority != c.priority {
				return a.priority < c.priority
			}
			return a.seq < c.seq
		})

		if b.store != nil {
			_ = b.store.UpsertSubscription(&store.AgentSubscription{
				AgentName: agentName,
				EventType: et,
				IsActive:  true,
				Priority:  priority,
			})
		}
		slog.Info("Agent registered", "agent", agentName, "event_type", et, "priority", priority)
	}
}

// SetActive toggles a registered subscription without removing it.
func (b *EventBus) SetActive(agentName, eventType string, active bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[eventType] {
		if sub.agentName == agentName {
			sub.active = active
			if b.store != nil {
				_ = b.store.UpsertSubscription(&store.AgentSubscription{
					AgentName: agentName,
					EventType: eventType,
					IsActive:  active,
					Priority:  sub.priority,
				})
			}
		}
	}
}

// Tap registers an observer called for every published event after
// persistence. Taps are best-effort and must not block.
func (b *EventBus) Tap(fn func(*Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.taps = append(b.taps, fn)
}

// Publish persists the event, then invokes every active matching handler in
// priority order. Handler errors and panics are contained per handler: one
// failing handler never blocks siblings and never fails the publish call.
func (b *EventBus) Publish(ctx context.Context, evt *Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if b.store != nil {
		if err := b.store.InsertEvent(&store.SystemEvent{
			EventID:        evt.ID,
			EventType:      evt.Type,
			SourceEntityID: evt.SourceEntityID,
			Payload:        string(payload),
			CreatedAt:      evt.CreatedAt,
		}); err != nil {
			return fmt.Errorf("persist event: %w", err)
		}
	}

	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subs[evt.Type]))
	for _, sub := range b.subs[evt.Type] {
		if sub.active {
			subs = append(subs, sub)
		}
	}
	taps := make([]func(*Event), len(b.taps))
	copy(taps, b.taps)
	b.mu.RUnlock()

	for _, tap := range taps {
		tap(evt)
	}

	for _, sub := range subs {
		b.invoke(ctx, sub, evt)
	}
	return nil
}

// invoke runs one handler inside its own error boundary.
func (b *EventBus) invoke(ctx context.Context, sub *subscription, evt *Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Agent handler panicked", "agent", sub.agentName, "event_type", evt.Type, "event_id", evt.ID, "panic", r)
		}
	}()
	if err := sub.handler(ctx, evt); err != nil {
		slog.Error("Agent handler failed", "agent", sub.agentName, "event_type", evt.Type, "event_id", evt.ID, "error", err)
	}
}
