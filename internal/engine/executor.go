package engine

import (
	"time"

	"device-sync/internal/logging"
	"device-sync/internal/models"
	"device-sync/internal/repos"
)

// Executor applies one queued task's effect to target state. It reports
// success or failure and never aborts the batch: the orchestrator marks the
// task failed and moves on.
type Executor struct {
	sessions *repos.SessionRepo
	records  *repos.RecordRepo
	prefs    *repos.PrefsRepo
	log      *logging.Logger
}

func NewExecutor(sessions *repos.SessionRepo, records *repos.RecordRepo, prefs *repos.PrefsRepo, log *logging.Logger) *Executor {
	return &Executor{sessions: sessions, records: records, prefs: prefs, log: log}
}

// Execute dispatches on the task's sync type. Unknown types and invalid
// payloads are rejected, not silently dropped.
func (e *Executor) Execute(task models.SyncTask) bool {
	payload, err := models.DecodePayload(task.SyncType, task.Payload)
	if err != nil {
		e.log.Warn("rejected sync task", map[string]any{
			"task_id":   task.ID,
			"sync_type": task.SyncType,
			"error":     err.Error(),
		})
		return false
	}

	switch p := payload.(type) {
	case *models.ContextPayload:
		return e.applyContext(task, p)
	case *models.ConversationPayload:
		return e.fail(task, e.records.ApplyConversationUpdate(task.UserID, p.ConversationID, p.Fields))
	case *models.ProjectPayload:
		return e.fail(task, e.records.ApplyProjectUpdate(task.UserID, p.ProjectID, p.Fields))
	case *models.SettingsPayload:
		return e.fail(task, e.prefs.Merge(task.UserID, p.Settings))
	}
	return false
}

// applyContext overwrites the target device's context, or every other active
// device's when the task is a broadcast. The source device never receives
// its own broadcast.
func (e *Executor) applyContext(task models.SyncTask, p *models.ContextPayload) bool {
	ctx := p.Context
	if ctx.UpdatedAt.IsZero() {
		ctx.UpdatedAt = time.Now().UTC()
	}

	if task.ToDeviceID != nil {
		return e.fail(task, e.sessions.UpdateContext(task.UserID, *task.ToDeviceID, ctx))
	}

	cutoff := time.Now().UTC().Add(-ActiveWindow)
	devices, err := e.sessions.ListActive(task.UserID, cutoff)
	if err != nil {
		return e.fail(task, err)
	}
	for _, d := range devices {
		if d.DeviceID == task.FromDeviceID {
			continue
		}
		if err := e.sessions.UpdateContext(task.UserID, d.DeviceID, ctx); err != nil {
			return e.fail(task, err)
		}
	}
	return true
}

func (e *Executor) fail(task models.SyncTask, err error) bool {
	if err == nil {
		return true
	}
	e.log.Warn("sync task execution failed", map[string]any{
		"task_id":   task.ID,
		"sync_type": task.SyncType,
		"error":     err.Error(),
	})
	return false
}
