// Package config provides configuration types and loading for autopilot.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Retention, Scheduler, Sync, Notify, Relay.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Retention RetentionConfig `json:"retention"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Sync      SyncConfig      `json:"sync"`
	Notify    NotifyConfig    `json:"notify"`
	Relay     RelayConfig     `json:"relay"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	DBPath  string `json:"dbPath" envconfig:"DB_PATH"`
}

// RetentionConfig controls how long derived state is kept.
type RetentionConfig struct {
	EventDays              int `json:"eventDays" envconfig:"EVENT_RETENTION_DAYS"`
	DeletedInteractionDays int `json:"deletedInteractionDays" envconfig:"DELETED_INTERACTION_DAYS"`
}

// SchedulerConfig groups the periodic scan settings.
type SchedulerConfig struct {
	Enabled           bool          `json:"enabled" envconfig:"SCHEDULER_ENABLED"`
	StartupDelay      time.Duration `json:"startupDelay"`
	RelationshipEvery time.Duration `json:"relationshipEvery"`
	MaintenanceEvery  time.Duration `json:"maintenanceEvery"`
	SignalSweepEvery  time.Duration `json:"signalSweepEvery"`
	OverdueDays       int           `json:"overdueDays" envconfig:"OVERDUE_DAYS"`
	AnniversaryWindow int           `json:"anniversaryWindowDays" envconfig:"ANNIVERSARY_WINDOW_DAYS"`
}

// SyncConfig groups the outbound CRM replication settings.
type SyncConfig struct {
	Enabled      bool          `json:"enabled" envconfig:"SYNC_ENABLED"`
	DrainEvery   time.Duration `json:"drainEvery"`
	BatchLimit   int           `json:"batchLimit" envconfig:"SYNC_BATCH_LIMIT"`
	MaxAttempts  int           `json:"maxAttempts" envconfig:"SYNC_MAX_ATTEMPTS"`
	CallTimeout  time.Duration `json:"callTimeout"`
	RatePerSec   float64       `json:"ratePerSec" envconfig:"SYNC_RATE_PER_SEC"`
	RateBurst    int           `json:"rateBurst" envconfig:"SYNC_RATE_BURST"`
	ProviderBase string        `json:"providerBase" envconfig:"SYNC_PROVIDER_BASE"`
}

// NotifyConfig configures the Slack reviewer channel for proposed actions.
type NotifyConfig struct {
	SlackToken   string `json:"slackToken" envconfig:"SLACK_TOKEN"`
	SlackChannel string `json:"slackChannel" envconfig:"SLACK_CHANNEL"`
}

// RelayConfig configures the optional Kafka event firehose.
type RelayConfig struct {
	Enabled bool   `json:"enabled" envconfig:"RELAY_ENABLED"`
	Brokers string `json:"brokers" envconfig:"RELAY_BROKERS"`
	Topic   string `json:"topic" envconfig:"RELAY_TOPIC"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Retention: RetentionConfig{
			EventDays:              7,
			DeletedInteractionDays: 30,
		},
		Scheduler: SchedulerConfig{
			Enabled:           true,
			StartupDelay:      10 * time.Second,
			RelationshipEvery: time.Hour,
			MaintenanceEvery:  24 * time.Hour,
			SignalSweepEvery:  time.Hour,
			OverdueDays:       7,
			AnniversaryWindow: 14,
		},
		Sync: SyncConfig{
			Enabled:     true,
			DrainEvery:  30 * time.Second,
			BatchLimit:  10,
			MaxAttempts: 3,
			CallTimeout: 30 * time.Second,
			RatePerSec:  5,
			RateBurst:   10,
		},
		Relay: RelayConfig{
			Topic: "autopilot.events",
		},
	}
}
