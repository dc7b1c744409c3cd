package store

import (
	"time"
)

// SystemEvent is an immutable, append-only domain event.
type SystemEvent struct {
	ID             int64     `json:"id"`
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	SourceEntityID string    `json:"source_entity_id,omitempty"`
	Payload        string    `json:"payload"` // JSON blob
	CreatedAt      time.Time `json:"created_at"`
}

// AgentSubscription declares an agent's interest in an event type.
type AgentSubscription struct {
	AgentName string    `json:"agent_name"`
	EventType string    `json:"event_type"`
	IsActive  bool      `json:"is_active"`
	Priority  int       `json:"priority"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AgentAction is one proposed side effect awaiting human review.
type AgentAction struct {
	ID              int64      `json:"id"`
	ActionID        string     `json:"action_id"`
	EventID         string     `json:"event_id,omitempty"` // empty for scheduler-synthesized actions
	AgentName       string     `json:"agent_name"`
	ActionType      string     `json:"action_type"`
	TargetEntity    string     `json:"target_entity"`
	TargetID        string     `json:"target_id"`
	ProposedContent string     `json:"proposed_content,omitempty"`
	RiskLevel       string     `json:"risk_level"`
	Reasoning       string     `json:"reasoning,omitempty"`
	Status          string     `json:"status"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	ExecutedAt      *time.Time `json:"executed_at,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// AgentAction statuses. Forward-only: proposed -> approved|rejected -> executed|failed.
const (
	ActionProposed = "proposed"
	ActionApproved = "approved"
	ActionRejected = "rejected"
	ActionExecuted = "executed"
	ActionFailed   = "failed"
)

// Action types proposed by agents.
const (
	ActionSuggestCall  = "suggest_call"
	ActionSuggestEmail = "suggest_email"
	ActionLogInsight   = "log_insight"
)

// Risk levels for proposed actions.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// ObserverPattern is a named recurring trigger condition with a learned
// feedback score. Created lazily the first time it fires.
type ObserverPattern struct {
	PatternID         string    `json:"pattern_id"`
	TriggerConditions string    `json:"trigger_conditions"` // JSON blob
	IsEnabled         bool      `json:"is_enabled"`
	UserFeedbackScore int       `json:"user_feedback_score"`
	CreatedAt         time.Time `json:"created_at"`
}

// ObserverSuggestion is a time-boxed workflow suggestion surfaced to the user.
type ObserverSuggestion struct {
	ID           int64     `json:"id"`
	SuggestionID string    `json:"suggestion_id"`
	AgentName    string    `json:"agent_name"`
	Intent       string    `json:"intent"` // delegate, automate, shortcut, insight
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Confidence   int       `json:"confidence"` // 0-100
	ContextRoute string    `json:"context_route"`
	PatternID    string    `json:"pattern_id"`
	TargetID     string    `json:"target_id,omitempty"`
	Status       string    `json:"status"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// ObserverSuggestion statuses.
const (
	SuggestionActive    = "active"
	SuggestionAccepted  = "accepted"
	SuggestionDismissed = "dismissed"
	SuggestionExpired   = "expired"
)

// FollowUpSignal is a pending obligation that self-expires.
type FollowUpSignal struct {
	ID         int64     `json:"id"`
	SignalID   string    `json:"signal_id"`
	PersonID   string    `json:"person_id"`
	SignalType string    `json:"signal_type"`
	Status     string    `json:"status"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// FollowUpSignal statuses.
const (
	SignalPending = "pending"
	SignalDone    = "done"
	SignalExpired = "expired"
)

// FollowUpSignal types.
const (
	SignalOverdueContact = "overdue_contact"
	SignalAnniversary    = "anniversary"
)

// Lead is an inbound prospect working through intake.
type Lead struct {
	ID           int64      `json:"id"`
	LeadID       string     `json:"lead_id"`
	Name         string     `json:"name"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Budget       string     `json:"budget,omitempty"`
	Timeline     string     `json:"timeline,omitempty"`
	Areas        string     `json:"areas,omitempty"` // comma-separated
	InterestType string     `json:"interest_type,omitempty"`
	Source       string     `json:"source,omitempty"`
	Score        int        `json:"score"`
	Status       string     `json:"status"`
	Notes        string     `json:"notes,omitempty"` // appended audit trail
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	QualifiedAt  *time.Time `json:"qualified_at,omitempty"`
}

// Lead statuses set by intake.
const (
	LeadNew       = "NEW"
	LeadNurturing = "NURTURING"
	LeadQualified = "QUALIFIED"
	LeadDuplicate = "DUPLICATE"
)

// Person is an existing contact in the book of business.
type Person struct {
	ID            int64      `json:"id"`
	PersonID      string     `json:"person_id"`
	Name          string     `json:"name"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Segment       string     `json:"segment,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	LastContactAt *time.Time `json:"last_contact_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Interaction is a logged touch with a person. Soft-deleted rows are kept
// for a retention window, then purged.
type Interaction struct {
	ID         int64      `json:"id"`
	PersonID   string     `json:"person_id"`
	Kind       string     `json:"kind"` // call, email, text, meeting, note
	Summary    string     `json:"summary,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// Task is a simple to-do attached to a person.
type Task struct {
	ID        int64      `json:"id"`
	TaskID    string     `json:"task_id"`
	PersonID  string     `json:"person_id,omitempty"`
	Title     string     `json:"title"`
	Status    string     `json:"status"` // open, done
	DueAt     *time.Time `json:"due_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CrmIntegration is one configured external CRM destination.
type CrmIntegration struct {
	ID                      int64      `json:"id"`
	IntegrationID           string     `json:"integration_id"`
	Provider                string     `json:"provider"`
	Config                  string     `json:"config"` // JSON blob: url, api key, ...
	IsActive                bool       `json:"is_active"`
	IsPrimary               bool       `json:"is_primary"`
	SyncPeopleEnabled       bool       `json:"sync_people_enabled"`
	SyncInteractionsEnabled bool       `json:"sync_interactions_enabled"`
	SyncTasksEnabled        bool       `json:"sync_tasks_enabled"`
	LastSyncAt              *time.Time `json:"last_sync_at,omitempty"`
	LastSyncStatus          string     `json:"last_sync_status,omitempty"`
	LastSyncError           string     `json:"last_sync_error,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
}

// CrmFieldMapping links a local entity to its external CRM counterpart.
// Unique per (integration, entity type, entity id); the sole duplicate guard.
type CrmFieldMapping struct {
	IntegrationID   string    `json:"integration_id"`
	LocalEntityType string    `json:"local_entity_type"`
	LocalEntityID   string    `json:"local_entity_id"`
	ExternalID      string    `json:"external_id"`
	LastSyncedAt    time.Time `json:"last_synced_at"`
}

// CrmSyncItem is one queued outbound replication unit.
type CrmSyncItem struct {
	ID            int64      `json:"id"`
	ItemID        string     `json:"item_id"`
	IntegrationID string     `json:"integration_id"`
	EntityType    string     `json:"entity_type"`
	EntityID      string     `json:"entity_id"`
	Operation     string     `json:"operation"` // create, update
	Payload       string     `json:"payload"`   // provider-neutral JSON
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	ScheduledFor  time.Time  `json:"scheduled_for"`
	LastError     string     `json:"last_error,omitempty"`
	ExternalID    string     `json:"external_id,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Sync queue item statuses.
const (
	SyncPending    = "pending"
	SyncProcessing = "processing"
	SyncRetry      = "retry"
	SyncCompleted  = "completed"
	SyncFailed     = "failed"
)

// Local entity types replicated outward.
const (
	EntityPerson      = "person"
	EntityInteraction = "interaction"
	EntityTask        = "task"
)

// Sync queue item operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
)

// SchedulerRun is persisted per-job scheduler run state.
type SchedulerRun struct {
	ID         int64     `json:"id"`
	JobName    string    `json:"job_name"`
	LastStatus string    `json:"last_status"`
	LastRunAt  time.Time `json:"last_run_at"`
	RunCount   int       `json:"run_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const Schema = `
CREATE TABLE IF NOT EXISTS system_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT UNIQUE NOT NULL,
	event_type TEXT NOT NULL,
	source_entity_id TEXT DEFAULT '',
	payload TEXT DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_events_type ON system_events(event_type);
CREATE INDEX IF NOT EXISTS idx_events_created ON system_events(created_at);

CREATE TABLE IF NOT EXISTS agent_subscriptions (
	agent_name TEXT NOT NULL,
	event_type TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT 1,
	priority INTEGER NOT NULL DEFAULT 100,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (agent_name, event_type)
);

CREATE TABLE IF NOT EXISTS agent_actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action_id TEXT UNIQUE NOT NULL,
	event_id TEXT DEFAULT '' REFERENCES system_events(event_id),
	agent_name TEXT NOT NULL,
	action_type TEXT NOT NULL,
	target_entity TEXT DEFAULT '',
	target_id TEXT DEFAULT '',
	proposed_content TEXT DEFAULT '',
	risk_level TEXT NOT NULL DEFAULT 'low',
	reasoning TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'proposed',
	approved_by TEXT DEFAULT '',
	approved_at DATETIME,
	executed_at DATETIME,
	error_message TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_actions_status ON agent_actions(status);
CREATE INDEX IF NOT EXISTS idx_actions_event ON agent_actions(event_id);
CREATE INDEX IF NOT EXISTS idx_actions_target ON agent_actions(target_entity, target_id);

CREATE TABLE IF NOT EXISTS observer_patterns (
	pattern_id TEXT PRIMARY KEY,
	trigger_conditions TEXT DEFAULT '{}',
	is_enabled BOOLEAN NOT NULL DEFAULT 1,
	user_feedback_score INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS observer_suggestions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	suggestion_id TEXT UNIQUE NOT NULL,
	agent_name TEXT NOT NULL,
	intent TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT DEFAULT '',
	confidence INTEGER NOT NULL DEFAULT 0,
	context_route TEXT DEFAULT '',
	pattern_id TEXT NOT NULL,
	target_id TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	expires_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_suggestions_pattern ON observer_suggestions(pattern_id, created_at);
CREATE INDEX IF NOT EXISTS idx_suggestions_status ON observer_suggestions(status);
CREATE INDEX IF NOT EXISTS idx_suggestions_target ON observer_suggestions(target_id);

CREATE TABLE IF NOT EXISTS follow_up_signals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	signal_id TEXT UNIQUE NOT NULL,
	person_id TEXT DEFAULT '',
	signal_type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	expires_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_signals_status ON follow_up_signals(status, expires_at);

CREATE TABLE IF NOT EXISTS leads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	lead_id TEXT UNIQUE NOT NULL,
	name TEXT DEFAULT '',
	email TEXT DEFAULT '',
	phone TEXT DEFAULT '',
	budget TEXT DEFAULT '',
	timeline TEXT DEFAULT '',
	areas TEXT DEFAULT '',
	interest_type TEXT DEFAULT '',
	source TEXT DEFAULT '',
	score INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'NEW',
	notes TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	qualified_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);

CREATE TABLE IF NOT EXISTS people (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	person_id TEXT UNIQUE NOT NULL,
	name TEXT DEFAULT '',
	email TEXT DEFAULT '',
	phone TEXT DEFAULT '',
	segment TEXT DEFAULT '',
	notes TEXT DEFAULT '',
	last_contact_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	person_id TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT 'note',
	summary TEXT DEFAULT '',
	occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	deleted_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_interactions_person ON interactions(person_id);
CREATE INDEX IF NOT EXISTS idx_interactions_deleted ON interactions(deleted_at);

CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT UNIQUE NOT NULL,
	person_id TEXT DEFAULT '',
	title TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	due_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS crm_integrations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	integration_id TEXT UNIQUE NOT NULL,
	provider TEXT NOT NULL,
	config TEXT DEFAULT '{}',
	is_active BOOLEAN NOT NULL DEFAULT 1,
	is_primary BOOLEAN NOT NULL DEFAULT 0,
	sync_people_enabled BOOLEAN NOT NULL DEFAULT 1,
	sync_interactions_enabled BOOLEAN NOT NULL DEFAULT 0,
	sync_tasks_enabled BOOLEAN NOT NULL DEFAULT 0,
	last_sync_at DATETIME,
	last_sync_status TEXT DEFAULT '',
	last_sync_error TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS crm_field_mappings (
	integration_id TEXT NOT NULL,
	local_entity_type TEXT NOT NULL,
	local_entity_id TEXT NOT NULL,
	external_id TEXT NOT NULL,
	last_synced_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (integration_id, local_entity_type, local_entity_id)
);

CREATE TABLE IF NOT EXISTS crm_sync_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id TEXT UNIQUE NOT NULL,
	integration_id TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	operation TEXT NOT NULL DEFAULT 'create',
	payload TEXT DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3,
	scheduled_for DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_error TEXT DEFAULT '',
	external_id TEXT DEFAULT '',
	processed_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sync_queue_due ON crm_sync_queue(status, scheduled_for);
CREATE INDEX IF NOT EXISTS idx_sync_queue_entity ON crm_sync_queue(integration_id, entity_type, entity_id);

CREATE TABLE IF NOT EXISTS signal_dedup (
	signal_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	signal_date TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (signal_type, entity_id, signal_date)
);

CREATE TABLE IF NOT EXISTS scheduler_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_name TEXT UNIQUE NOT NULL,
	last_status TEXT DEFAULT '',
	last_run_at DATETIME,
	run_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
