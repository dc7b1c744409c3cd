package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/ninjaos/autopilot/internal/approval"
	"github.com/ninjaos/autopilot/internal/bus"
	"github.com/ninjaos/autopilot/internal/store"
)

// nowFn is swapped in tests.
var nowFn = time.Now

// NurtureAgent turns scheduler signals into proposed follow-up actions. It is
// idempotent: a duplicate signal for a person with a same-typed proposed
// action still pending is a no-op.
type NurtureAgent struct {
	store     *store.Store
	approvals *approval.Manager
}

// NewNurture creates the nurture agent.
func NewNurture(st *store.Store, m *approval.Manager) *NurtureAgent {
	return &NurtureAgent{store: st, approvals: m}
}

// Register subscribes the agent to relationship signals.
func (a *NurtureAgent) Register(b *bus.EventBus) {
	b.Register(AgentNurture, []string{bus.EventContactDue}, 10, a.HandleContactDue)
	b.Register(AgentNurture, []string{bus.EventAnniversary}, 10, a.HandleAnniversary)
}

// HandleContactDue proposes a reach-out email for an overdue contact and
// records the follow-up signal.
func (a *NurtureAgent) HandleContactDue(ctx context.Context, evt *bus.Event) error {
	personID := evt.String("personId")
	if personID == "" {
		personID = evt.SourceEntityID
	}
	pending, err := a.store.CountPendingActionsForTarget(store.ActionSuggestEmail, "person", personID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}

	name := evt.String("name")
	if name == "" {
		name = personID
	}
	_, err = a.approvals.Propose(&store.AgentAction{
		EventID:         evt.ID,
		AgentName:       AgentNurture,
		ActionType:      store.ActionSuggestEmail,
		TargetEntity:    "person",
		TargetID:        personID,
		RiskLevel:       store.RiskLow,
		ProposedContent: fmt.Sprintf("Send %s a check-in email; they are past their touch cadence.", name),
		Reasoning:       evt.String("reason"),
	})
	if err != nil {
		return err
	}
	_, err = a.store.CreateSignal(&store.FollowUpSignal{
		PersonID:   personID,
		SignalType: store.SignalOverdueContact,
		Status:     store.SignalPending,
	})
	return err
}

// HandleAnniversary proposes a call ahead of a birthday or anniversary and
// records the follow-up signal.
func (a *NurtureAgent) HandleAnniversary(ctx context.Context, evt *bus.Event) error {
	personID := evt.String("personId")
	if personID == "" {
		personID = evt.SourceEntityID
	}
	pending, err := a.store.CountPendingActionsForTarget(store.ActionSuggestCall, "person", personID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}

	name := evt.String("name")
	if name == "" {
		name = personID
	}
	when := evt.String("date")
	_, err = a.approvals.Propose(&store.AgentAction{
		EventID:         evt.ID,
		AgentName:       AgentNurture,
		ActionType:      store.ActionSuggestCall,
		TargetEntity:    "person",
		TargetID:        personID,
		RiskLevel:       store.RiskMedium,
		ProposedContent: fmt.Sprintf("Call %s; their special date is coming up on %s.", name, when),
		Reasoning:       "anniversary within lookahead window",
	})
	if err != nil {
		return err
	}
	_, err = a.store.CreateSignal(&store.FollowUpSignal{
		PersonID:   personID,
		SignalType: store.SignalAnniversary,
		Status:     store.SignalPending,
	})
	return err
}
