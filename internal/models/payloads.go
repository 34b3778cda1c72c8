package models

import (
	"encoding/json"
	"fmt"
)

// Payload is the tagged union of sync task payloads, keyed by sync type.
type Payload interface {
	Validate() error
}

// ContextPayload carries a full device context snapshot to overwrite the
// target device's current context.
type ContextPayload struct {
	Context DeviceContext `json:"context"`
}

func (p *ContextPayload) Validate() error {
	return nil
}

// ConversationPayload is a partial update to one conversation record.
type ConversationPayload struct {
	ConversationID string         `json:"conversation_id"`
	Fields         map[string]any `json:"fields,omitempty"`
}

func (p *ConversationPayload) Validate() error {
	if p.ConversationID == "" {
		return fmt.Errorf("conversation_id is required")
	}
	return nil
}

// SettingsPayload carries per-user preference keys to upsert.
type SettingsPayload struct {
	Settings map[string]any `json:"settings"`
}

func (p *SettingsPayload) Validate() error {
	if len(p.Settings) == 0 {
		return fmt.Errorf("settings is required")
	}
	return nil
}

// ProjectPayload is a partial update to one project record.
type ProjectPayload struct {
	ProjectID string         `json:"project_id"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func (p *ProjectPayload) Validate() error {
	if p.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	return nil
}

// DecodePayload parses raw payload bytes into the payload type selected by
// syncType. Unknown sync types are an error; the executor treats them as a
// task failure rather than dropping them silently.
func DecodePayload(syncType string, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch syncType {
	case SyncTypeContext:
		p = &ContextPayload{}
	case SyncTypeConversation:
		p = &ConversationPayload{}
	case SyncTypeSettings:
		p = &SettingsPayload{}
	case SyncTypeProject:
		p = &ProjectPayload{}
	default:
		return nil, fmt.Errorf("unknown sync type %q", syncType)
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", syncType, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", syncType, err)
	}
	return p, nil
}
