// Package engine implements the device synchronization and conflict
// resolution engine: device session registry, durable sync queue, task
// executor, conflict detector/resolver, continuity suggestions and the
// orchestrator that sequences them once per invocation.
package engine

import (
	"time"

	"device-sync/internal/logging"
	"device-sync/internal/models"
	"device-sync/internal/repos"
)

// ActiveWindow bounds how stale a heartbeat may be for a device to count as
// active. Older sessions are excluded from all sync operations but kept.
const ActiveWindow = 10 * time.Minute

// Registry defines which of a user's devices are active.
type Registry struct {
	sessions *repos.SessionRepo
	log      *logging.Logger
}

func NewRegistry(sessions *repos.SessionRepo, log *logging.Logger) *Registry {
	return &Registry{sessions: sessions, log: log}
}

// ListActiveDevices returns sessions with the active flag set and a
// heartbeat inside the window, most recent first. A storage error degrades
// to an empty list so the rest of the run continues as "no devices".
func (r *Registry) ListActiveDevices(userID string) []models.DeviceSession {
	cutoff := time.Now().UTC().Add(-ActiveWindow)
	sessions, err := r.sessions.ListActive(userID, cutoff)
	if err != nil {
		r.log.Error("failed to load active devices", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil
	}
	return sessions
}

// Heartbeat records a device's presence and context snapshot. This is the
// ingest path for the device-side heartbeat collaborator.
func (r *Registry) Heartbeat(s *models.DeviceSession) error {
	return r.sessions.UpsertHeartbeat(s)
}
