// Package agents contains the stateless handlers that react to domain
// events: lead intake, the workflow coach, and nurture follow-ups.
package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ninjaos/autopilot/internal/approval"
	"github.com/ninjaos/autopilot/internal/bus"
	"github.com/ninjaos/autopilot/internal/store"
)

// Agent names as they appear on subscriptions and actions.
const (
	AgentLeadIntake    = "lead_intake"
	AgentWorkflowCoach = "workflow_coach"
	AgentNurture       = "nurture"
)

// Intake stages. Each run moves strictly forward through them.
type IntakeStage string

const (
	StageReceived         IntakeStage = "received"
	StageDuplicateChecked IntakeStage = "duplicate_checked"
	StageScored           IntakeStage = "scored"
	StageActionProposed   IntakeStage = "action_proposed"
)

// IntakeRun is the working state of one lead passing through intake.
type IntakeRun struct {
	Stage       IntakeStage
	Lead        *store.Lead
	EventID     string
	DuplicateOf string // entity id of the matched contact/lead, if any
	MatchedBy   string // "email" or "phone"
	Score       int
	Factors     []string
	Status      string
}

// LeadIntakeAgent qualifies inbound leads: duplicate check, scoring,
// status mapping, and a proposed next action.
type LeadIntakeAgent struct {
	store     *store.Store
	bus       *bus.EventBus
	approvals *approval.Manager
}

// NewLeadIntake creates the intake agent.
func NewLeadIntake(st *store.Store, b *bus.EventBus, m *approval.Manager) *LeadIntakeAgent {
	return &LeadIntakeAgent{store: st, bus: b, approvals: m}
}

// Register subscribes the agent. It runs before the workflow coach so the
// coach sees the scored lead.
func (a *LeadIntakeAgent) Register(b *bus.EventBus) {
	b.Register(AgentLeadIntake, []string{bus.EventLeadCreated}, 10, a.HandleLeadCreated)
}

// HandleLeadCreated drives a full intake run for the lead named in the event.
func (a *LeadIntakeAgent) HandleLeadCreated(ctx context.Context, evt *bus.Event) error {
	leadID := evt.String("leadId")
	if leadID == "" {
		leadID = evt.SourceEntityID
	}
	lead, err := a.store.GetLead(leadID)
	if err != nil {
		return err
	}

	run := &IntakeRun{Stage: StageReceived, Lead: lead, EventID: evt.ID}
	if err := a.CheckDuplicate(run); err != nil {
		return err
	}
	if run.DuplicateOf != "" {
		return a.FinalizeDuplicate(ctx, run)
	}
	if err := a.ScoreStage(run); err != nil {
		return err
	}
	return a.ProposeStage(ctx, run)
}

// CheckDuplicate moves received -> duplicate_checked. Matches by normalized
// email or phone, contacts first then other leads; within each collection an
// email match wins over a phone match, first found wins.
func (a *LeadIntakeAgent) CheckDuplicate(run *IntakeRun) error {
	if run.Stage != StageReceived {
		return fmt.Errorf("duplicate check in stage %s", run.Stage)
	}
	email := NormalizeEmail(run.Lead.Email)
	phone := NormalizePhone(run.Lead.Phone)

	people, err := a.store.ListPeople()
	if err != nil {
		return err
	}
	for _, p := range people {
		if email != "" && NormalizeEmail(p.Email) == email {
			run.DuplicateOf, run.MatchedBy = p.PersonID, "email"
			run.Stage = StageDuplicateChecked
			return nil
		}
	}
	for _, p := range people {
		if phone != "" && NormalizePhone(p.Phone) == phone {
			run.DuplicateOf, run.MatchedBy = p.PersonID, "phone"
			run.Stage = StageDuplicateChecked
			return nil
		}
	}

	leads, err := a.store.ListLeads()
	if err != nil {
		return err
	}
	for _, l := range leads {
		if l.LeadID == run.Lead.LeadID {
			continue
		}
		if email != "" && NormalizeEmail(l.Email) == email {
			run.DuplicateOf, run.MatchedBy = l.LeadID, "email"
			run.Stage = StageDuplicateChecked
			return nil
		}
	}
	for _, l := range leads {
		if l.LeadID == run.Lead.LeadID {
			continue
		}
		if phone != "" && NormalizePhone(l.Phone) == phone {
			run.DuplicateOf, run.MatchedBy = l.LeadID, "phone"
			run.Stage = StageDuplicateChecked
			return nil
		}
	}

	run.Stage = StageDuplicateChecked
	return nil
}

// FinalizeDuplicate closes out a run that matched an existing record. The
// lead is marked DUPLICATE with an audit note; it never receives a score.
func (a *LeadIntakeAgent) FinalizeDuplicate(ctx context.Context, run *IntakeRun) error {
	if run.Stage != StageDuplicateChecked || run.DuplicateOf == "" {
		return fmt.Errorf("finalize duplicate in stage %s", run.Stage)
	}
	note := fmt.Sprintf("[%s] duplicate of %s (matched by %s)",
		time.Now().UTC().Format(time.RFC3339), run.DuplicateOf, run.MatchedBy)
	if err := a.store.UpdateLeadScoring(run.Lead.LeadID, 0, store.LeadDuplicate, note); err != nil {
		return err
	}
	_, err := a.approvals.Propose(&store.AgentAction{
		EventID:         run.EventID,
		AgentName:       AgentLeadIntake,
		ActionType:      store.ActionLogInsight,
		TargetEntity:    "lead",
		TargetID:        run.Lead.LeadID,
		RiskLevel:       store.RiskLow,
		ProposedContent: fmt.Sprintf("Lead %s looks like a duplicate of %s.", run.Lead.Name, run.DuplicateOf),
		Reasoning:       fmt.Sprintf("normalized %s matched existing record", run.MatchedBy),
	})
	if err != nil {
		return err
	}
	run.Stage = StageActionProposed
	return nil
}

// ScoreStage moves duplicate_checked -> scored.
func (a *LeadIntakeAgent) ScoreStage(run *IntakeRun) error {
	if run.Stage != StageDuplicateChecked {
		return fmt.Errorf("score in stage %s", run.Stage)
	}
	run.Score, run.Factors = ScoreLead(ScoreInput{
		Email:        run.Lead.Email,
		Phone:        run.Lead.Phone,
		Budget:       run.Lead.Budget,
		Timeline:     run.Lead.Timeline,
		Areas:        run.Lead.Areas,
		InterestType: run.Lead.InterestType,
		Source:       run.Lead.Source,
	})
	run.Status = StatusForScore(run.Score)
	run.Stage = StageScored
	return nil
}

// ProposeStage moves scored -> action_proposed: persists the scoring outcome
// and proposes the follow-up action matching the score band. Qualified leads
// additionally emit lead.qualified.
func (a *LeadIntakeAgent) ProposeStage(ctx context.Context, run *IntakeRun) error {
	if run.Stage != StageScored {
		return fmt.Errorf("propose in stage %s", run.Stage)
	}
	note := fmt.Sprintf("[%s] scored %d -> %s (%s)",
		time.Now().UTC().Format(time.RFC3339), run.Score, run.Status, strings.Join(run.Factors, ", "))
	if err := a.store.UpdateLeadScoring(run.Lead.LeadID, run.Score, run.Status, note); err != nil {
		return err
	}

	action := &store.AgentAction{
		EventID:      run.EventID,
		AgentName:    AgentLeadIntake,
		TargetEntity: "lead",
		TargetID:     run.Lead.LeadID,
		Reasoning:    strings.Join(run.Factors, ", "),
	}
	switch run.Status {
	case store.LeadQualified:
		action.ActionType = store.ActionSuggestCall
		action.RiskLevel = store.RiskMedium
		action.ProposedContent = fmt.Sprintf("Call %s today: scored %d/100.", run.Lead.Name, run.Score)
	case store.LeadNurturing:
		action.ActionType = store.ActionSuggestEmail
		action.RiskLevel = store.RiskLow
		action.ProposedContent = fmt.Sprintf("Send %s a warm intro email: scored %d/100.", run.Lead.Name, run.Score)
	default:
		action.ActionType = store.ActionLogInsight
		action.RiskLevel = store.RiskLow
		action.ProposedContent = fmt.Sprintf("Lead %s scored %d/100; keep in drip.", run.Lead.Name, run.Score)
	}
	if _, err := a.approvals.Propose(action); err != nil {
		return err
	}

	if run.Status == store.LeadQualified {
		if err := a.bus.Publish(ctx, &bus.Event{
			Type:           bus.EventLeadQualified,
			SourceEntityID: run.Lead.LeadID,
			Payload:        map[string]any{"leadId": run.Lead.LeadID, "score": run.Score},
		}); err != nil {
			return err
		}
	}
	run.Stage = StageActionProposed
	return nil
}
