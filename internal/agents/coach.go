package agents

import (
	"context"
	"fmt"

	"github.com/ninjaos/autopilot/internal/bus"
	"github.com/ninjaos/autopilot/internal/observer"
	"github.com/ninjaos/autopilot/internal/store"
)

// Routes the coach knows how to advise on.
const (
	RouteLeads     = "/leads"
	RoutePeople    = "/people"
	RouteDashboard = "/dashboard"
)

// WorkflowCoachAgent surfaces contextual suggestions when the user navigates
// and when a hot lead lands. All candidates pass through the observer gate.
type WorkflowCoachAgent struct {
	store *store.Store
	gate  *observer.Gate
}

// NewWorkflowCoach creates the coach.
func NewWorkflowCoach(st *store.Store, gate *observer.Gate) *WorkflowCoachAgent {
	return &WorkflowCoachAgent{store: st, gate: gate}
}

// Register subscribes the coach after lead intake so it reads scored state.
func (a *WorkflowCoachAgent) Register(b *bus.EventBus) {
	b.Register(AgentWorkflowCoach, []string{bus.EventContextChanged}, 20, a.HandleContextChanged)
	b.Register(AgentWorkflowCoach, []string{bus.EventLeadCreated}, 20, a.HandleLeadCreated)
}

// HandleContextChanged dispatches the route named in the event to its
// generator. Candidates are evaluated in strict priority order and the first
// one the gate accepts wins; the rest are not considered.
func (a *WorkflowCoachAgent) HandleContextChanged(ctx context.Context, evt *bus.Event) error {
	route := evt.String("route")
	var candidates []observer.Candidate
	var err error
	switch route {
	case RouteLeads:
		candidates, err = a.leadsCandidates()
	case RoutePeople:
		candidates, err = a.peopleCandidates()
	case RouteDashboard:
		candidates, err = a.dashboardCandidates()
	default:
		return nil
	}
	if err != nil {
		return err
	}
	for _, c := range candidates {
		created, err := a.gate.CreateIfAllowed(c)
		if err != nil {
			return err
		}
		if created {
			return nil
		}
	}
	return nil
}

// HandleLeadCreated raises a high-confidence nudge for hot leads, unless a
// suggestion for that lead is already pending.
func (a *WorkflowCoachAgent) HandleLeadCreated(ctx context.Context, evt *bus.Event) error {
	leadID := evt.String("leadId")
	if leadID == "" {
		leadID = evt.SourceEntityID
	}
	lead, err := a.store.GetLead(leadID)
	if err != nil {
		return err
	}
	if lead.Score < QualifiedScore {
		return nil
	}
	pending, err := a.store.HasPendingSuggestionForTarget(leadID)
	if err != nil {
		return err
	}
	if pending {
		return nil
	}
	_, err = a.gate.CreateIfAllowed(observer.Candidate{
		AgentName:         AgentWorkflowCoach,
		PatternID:         "coach.hot_lead." + leadID,
		TriggerConditions: fmt.Sprintf(`{"event":"lead.created","minScore":%d}`, QualifiedScore),
		Intent:            observer.IntentShortcut,
		Title:             "Hot lead just came in",
		Description:       fmt.Sprintf("%s scored %d/100. Reach out while the inquiry is fresh.", lead.Name, lead.Score),
		Confidence:        90,
		ContextRoute:      RouteLeads,
		TargetID:          leadID,
	})
	return err
}

// leadsCandidates: hot leads, then warm leads, then empty-inbox praise.
func (a *WorkflowCoachAgent) leadsCandidates() ([]observer.Candidate, error) {
	leads, err := a.store.ListLeads()
	if err != nil {
		return nil, err
	}
	var hot, warm int
	for _, l := range leads {
		switch l.Status {
		case store.LeadQualified:
			hot++
		case store.LeadNurturing:
			warm++
		}
	}
	var out []observer.Candidate
	if hot > 0 {
		out = append(out, observer.Candidate{
			AgentName:         AgentWorkflowCoach,
			PatternID:         "coach.leads.hot_waiting",
			TriggerConditions: `{"route":"/leads","status":"QUALIFIED"}`,
			Intent:            observer.IntentShortcut,
			Title:             fmt.Sprintf("%d qualified lead(s) waiting", hot),
			Description:       "Start with the qualified list; those inquiries go cold fastest.",
			Confidence:        85,
			ContextRoute:      RouteLeads,
		})
	}
	if warm > 0 {
		out = append(out, observer.Candidate{
			AgentName:         AgentWorkflowCoach,
			PatternID:         "coach.leads.warm_nurture",
			TriggerConditions: `{"route":"/leads","status":"NURTURING"}`,
			Intent:            observer.IntentAutomate,
			Title:             fmt.Sprintf("%d lead(s) in nurture", warm),
			Description:       "Queue a drip email so warm leads keep hearing from you.",
			Confidence:        70,
			ContextRoute:      RouteLeads,
		})
	}
	out = append(out, observer.Candidate{
		AgentName:         AgentWorkflowCoach,
		PatternID:         "coach.leads.inbox_zero",
		TriggerConditions: `{"route":"/leads","status":"empty"}`,
		Intent:            observer.IntentInsight,
		Title:             "Lead inbox is clear",
		Description:       "Nothing urgent here. Good time to check in on past clients.",
		Confidence:        40,
		ContextRoute:      RouteLeads,
	})
	return out, nil
}

// peopleCandidates: overdue follow-ups first, then a sphere-touch reminder.
func (a *WorkflowCoachAgent) peopleCandidates() ([]observer.Candidate, error) {
	due, err := a.store.ContactsDueForFollowUp(nowFn(), 7)
	if err != nil {
		return nil, err
	}
	var out []observer.Candidate
	if len(due) > 0 {
		out = append(out, observer.Candidate{
			AgentName:         AgentWorkflowCoach,
			PatternID:         "coach.people.overdue",
			TriggerConditions: `{"route":"/people","overdueDays":7}`,
			Intent:            observer.IntentDelegate,
			Title:             fmt.Sprintf("%d contact(s) overdue for a touch", len(due)),
			Description:       "Sort by last-contacted and work the oldest first.",
			Confidence:        80,
			ContextRoute:      RoutePeople,
		})
	}
	out = append(out, observer.Candidate{
		AgentName:         AgentWorkflowCoach,
		PatternID:         "coach.people.sphere",
		TriggerConditions: `{"route":"/people"}`,
		Intent:            observer.IntentInsight,
		Title:             "Keep the sphere warm",
		Description:       "A quick personal note beats a newsletter. Pick three names.",
		Confidence:        35,
		ContextRoute:      RoutePeople,
	})
	return out, nil
}

// dashboardCandidates: pending approvals first, then open tasks.
func (a *WorkflowCoachAgent) dashboardCandidates() ([]observer.Candidate, error) {
	actions, err := a.store.ListActions(store.ActionProposed, 50)
	if err != nil {
		return nil, err
	}
	tasks, err := a.store.ListTasks("open")
	if err != nil {
		return nil, err
	}
	var out []observer.Candidate
	if len(actions) > 0 {
		out = append(out, observer.Candidate{
			AgentName:         AgentWorkflowCoach,
			PatternID:         "coach.dashboard.approvals",
			TriggerConditions: `{"route":"/dashboard","pendingActions":true}`,
			Intent:            observer.IntentShortcut,
			Title:             fmt.Sprintf("%d action(s) awaiting review", len(actions)),
			Description:       "Approve or reject the queue so follow-ups go out today.",
			Confidence:        75,
			ContextRoute:      RouteDashboard,
		})
	}
	if len(tasks) > 0 {
		out = append(out, observer.Candidate{
			AgentName:         AgentWorkflowCoach,
			PatternID:         "coach.dashboard.open_tasks",
			TriggerConditions: `{"route":"/dashboard","openTasks":true}`,
			Intent:            observer.IntentInsight,
			Title:             fmt.Sprintf("%d open task(s)", len(tasks)),
			Description:       "Knock out the short ones before prospecting time.",
			Confidence:        50,
			ContextRoute:      RouteDashboard,
		})
	}
	return out, nil
}
