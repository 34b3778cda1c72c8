package models

import (
	"encoding/json"
	"time"
)

// Sync task types.
const (
	SyncTypeContext      = "context"
	SyncTypeConversation = "conversation"
	SyncTypeSettings     = "settings"
	SyncTypeProject      = "project"
)

// Sync task statuses. Transitions are strict:
// pending -> syncing -> {synced, failed}. Terminal states are never left.
const (
	StatusPending = "pending"
	StatusSyncing = "syncing"
	StatusSynced  = "synced"
	StatusFailed  = "failed"
)

// Conflict types.
const (
	ConflictConversationEdit = "conversation_edit"
	ConflictSettingsChange   = "settings_change"
)

// SettingsResourceID is the synthetic resource id used for settings
// conflicts, since preferences are global per user.
const SettingsResourceID = "user_settings"

// Continuity suggestion types.
const (
	SuggestContinueConversation = "continue_conversation"
	SuggestResumeProject        = "resume_project"
	SuggestSyncSettings         = "sync_settings"
)

// Finding severities.
const (
	SeverityInfo   = "info"
	SeverityMedium = "medium"
)

// DeviceContext is the in-progress UI state carried by a device session.
// The engine overwrites it during context broadcasts; heartbeats update it
// from the device side.
type DeviceContext struct {
	ActiveConversationID string         `json:"active_conversation_id,omitempty"`
	ConversationTitle    string         `json:"conversation_title,omitempty"`
	ScrollPosition       *float64       `json:"scroll_position,omitempty"`
	ActiveProjectID      string         `json:"active_project_id,omitempty"`
	ProjectName          string         `json:"project_name,omitempty"`
	Preferences          map[string]any `json:"preferences,omitempty"`
	UpdatedAt            time.Time      `json:"updated_at,omitempty"`
}

// DeviceSession represents one physical device's presence for a user.
type DeviceSession struct {
	ID             string        `json:"id"`
	DeviceID       string        `json:"device_id"`
	UserID         string        `json:"-"`
	DeviceType     string        `json:"device_type"`
	DeviceName     string        `json:"device_name"`
	IsActive       bool          `json:"is_active"`
	LastHeartbeat  time.Time     `json:"last_heartbeat"`
	CurrentContext DeviceContext `json:"current_context"`
	CreatedAt      time.Time     `json:"created_at"`
}

// SyncTask is one unit of queued propagation work. ToDeviceID nil means
// broadcast to all other active devices of the user. Seq is a per-user
// monotonic sequence assigned at enqueue time, used instead of wall-clock
// timestamps when ordering competing edits.
type SyncTask struct {
	ID           string          `json:"id"`
	UserID       string          `json:"-"`
	FromDeviceID string          `json:"from_device_id"`
	ToDeviceID   *string         `json:"to_device_id,omitempty"`
	SyncType     string          `json:"sync_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	Priority     int             `json:"priority"`
	Seq          int64           `json:"seq"`
	CreatedAt    time.Time       `json:"created_at"`
	SyncedAt     *time.Time      `json:"synced_at,omitempty"`
}

// ConflictEdit is one side of a detected conflict.
type ConflictEdit struct {
	TaskID    string          `json:"task_id"`
	DeviceID  string          `json:"device_id"`
	Seq       int64           `json:"seq"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Conflict is materialized at detection time from two or more tasks touching
// the same resource within the detection window from different devices.
// Earliest and Latest span the full conflicting window.
type Conflict struct {
	Type       string       `json:"type"`
	ResourceID string       `json:"resource_id"`
	Earliest   ConflictEdit `json:"earliest"`
	Latest     ConflictEdit `json:"latest"`
	Resolution string       `json:"resolution,omitempty"`
}

// ContinuitySuggestion is a heuristic, non-binding recommendation to resume
// an activity on a different device.
type ContinuitySuggestion struct {
	Type         string `json:"type"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	SourceDevice string `json:"source_device"`
	TargetDevice string `json:"target_device"`
	ResourceID   string `json:"resource_id"`
	Confidence   int    `json:"confidence"`
}

// Finding is an advisory record written to the findings sink: conflict
// resolution audits and continuity suggestions both land here.
type Finding struct {
	ID          int64           `json:"id"`
	UserID      string          `json:"-"`
	Severity    string          `json:"severity"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Evidence    json.RawMessage `json:"evidence"`
	Method      string          `json:"method"`
	Fingerprint string          `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RunSummary is the aggregate result of one orchestrator invocation.
type RunSummary struct {
	SyncsProcessed       int   `json:"syncsProcessed"`
	ConflictsDetected    int   `json:"conflictsDetected"`
	SuggestionsGenerated int   `json:"suggestionsGenerated"`
	ExecutionTimeMs      int64 `json:"executionTimeMs"`
}
