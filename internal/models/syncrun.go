package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncRunStatus represents the status of a sync run
type SyncRunStatus string

const (
	SyncRunRunning   SyncRunStatus = "RUNNING"
	SyncRunCompleted SyncRunStatus = "COMPLETED"
	SyncRunFailed    SyncRunStatus = "FAILED"
)

// TriggerType represents what triggered a sync run
type TriggerType string

const (
	TriggerManual    TriggerType = "MANUAL"
	TriggerScheduled TriggerType = "SCHEDULED"
	TriggerWebhook   TriggerType = "WEBHOOK"
)

// SyncRun is the bookkeeping record of one execution of a scheduled entry
// point (order pull, inventory push, status refresh).
type SyncRun struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	IntegrationID uuid.UUID     `gorm:"type:uuid;not null;index:idx_sync_runs_integration" json:"integrationId"`
	JobKey        string        `gorm:"type:varchar(100);not null" json:"jobKey"`
	Status        SyncRunStatus `gorm:"type:varchar(50);not null;default:'RUNNING';index:idx_sync_runs_status" json:"status"`
	TriggeredBy   TriggerType   `gorm:"type:varchar(50)" json:"triggeredBy,omitempty"`

	TotalItems      int `gorm:"default:0" json:"totalItems"`
	SuccessfulItems int `gorm:"default:0" json:"successfulItems"`
	FailedItems     int `gorm:"default:0" json:"failedItems"`
	SkippedItems    int `gorm:"default:0" json:"skippedItems"`

	ErrorMessage string `gorm:"type:text" json:"errorMessage,omitempty"`

	StartedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Logs []SyncRunLog `gorm:"foreignKey:RunID" json:"logs,omitempty"`
}

// TableName specifies the table name for SyncRun
func (SyncRun) TableName() string {
	return "integration_sync_runs"
}

// LogLevel represents the severity level of a sync run log
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// SyncRunLog is one structured log row attached to a run. Operator-facing
// failures always get one of these with the method name, error kind and
// description.
type SyncRunLog struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RunID uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_run_logs_run" json:"runId"`

	Level   LogLevel `gorm:"type:varchar(20);not null;default:'info'" json:"level"`
	Message string   `gorm:"type:text;not null" json:"message"`
	Data    JSONB    `gorm:"type:jsonb;default:'{}'" json:"data,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for SyncRunLog
func (SyncRunLog) TableName() string {
	return "integration_sync_run_logs"
}
