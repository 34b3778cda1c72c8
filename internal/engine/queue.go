package engine

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"device-sync/internal/logging"
	"device-sync/internal/models"
	"device-sync/internal/repos"
)

// DefaultBatchSize caps how many tasks one orchestrator run drains.
const DefaultBatchSize = 50

// DefaultPriority is used when a producer does not care about ordering.
const DefaultPriority = 5

// Queue is the durable queue of pending cross-device propagation tasks.
type Queue struct {
	repo *repos.QueueRepo
	log  *logging.Logger
}

func NewQueue(repo *repos.QueueRepo, log *logging.Logger) *Queue {
	return &Queue{repo: repo, log: log}
}

// Enqueue inserts a pending task and returns its id. toDevice nil means
// broadcast. Beyond the required fields no payload validation happens here;
// the executor rejects what it cannot apply, so a malformed task surfaces as
// failed rather than being dropped at the door.
func (q *Queue) Enqueue(userID, fromDevice, syncType string, payload json.RawMessage, priority int, toDevice *string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	if fromDevice == "" {
		return "", fmt.Errorf("from device is required")
	}
	if syncType == "" {
		return "", fmt.Errorf("sync type is required")
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	task := &models.SyncTask{
		ID:           uuid.NewString(),
		UserID:       userID,
		FromDeviceID: fromDevice,
		ToDeviceID:   toDevice,
		SyncType:     syncType,
		Payload:      payload,
		Status:       models.StatusPending,
		Priority:     priority,
		CreatedAt:    time.Now().UTC(),
	}
	err := q.repo.WithTx(func(tx *sql.Tx) error {
		seq, err := q.repo.NextSeqTx(tx, userID)
		if err != nil {
			return err
		}
		task.Seq = seq
		return q.repo.InsertTx(tx, task)
	})
	if err != nil {
		return "", fmt.Errorf("enqueue %s task: %w", syncType, err)
	}
	q.log.Debug("task enqueued", map[string]any{
		"task_id":   task.ID,
		"sync_type": syncType,
		"priority":  priority,
	})
	return task.ID, nil
}

// DequeuePending returns up to limit pending tasks in priority-then-FIFO
// order. It does not change their status; the orchestrator walks each task
// through markSyncing before executing it.
func (q *Queue) DequeuePending(userID string, limit int) ([]models.SyncTask, error) {
	if limit <= 0 || limit > DefaultBatchSize {
		limit = DefaultBatchSize
	}
	return q.repo.ListPending(userID, limit)
}

func (q *Queue) MarkSyncing(taskID string) error { return q.repo.MarkSyncing(taskID) }
func (q *Queue) MarkSynced(taskID string) error  { return q.repo.MarkSynced(taskID) }
func (q *Queue) MarkFailed(taskID string) error  { return q.repo.MarkFailed(taskID) }

// PurgeSyncedOlderThan removes synced tasks past the retention cutoff.
// Failed tasks are never purged here; they accumulate for inspection.
func (q *Queue) PurgeSyncedOlderThan(userID string, cutoff time.Time) (int64, error) {
	return q.repo.PurgeSyncedBefore(userID, cutoff)
}

// ListFailed exposes the failed backlog.
func (q *Queue) ListFailed(userID string, limit int) ([]models.SyncTask, error) {
	return q.repo.ListFailed(userID, limit)
}
