package repos

import (
	"database/sql"
	"errors"
	"time"

	"device-sync/internal/models"
)

// ErrBadTransition is returned when a status update would leave the strict
// pending -> syncing -> {synced, failed} state machine.
var ErrBadTransition = errors.New("invalid status transition")

// QueueRepo stores sync_queue rows.
type QueueRepo struct {
	db *sql.DB
}

func NewQueueRepo(db *sql.DB) *QueueRepo {
	return &QueueRepo{db: db}
}

func (r *QueueRepo) WithTx(fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// NextSeqTx allocates the next per-user sequence number inside the enqueue
// transaction. Sequence order is immune to device clock skew, unlike the
// stored wall-clock timestamps.
func (r *QueueRepo) NextSeqTx(tx *sql.Tx, userID string) (int64, error) {
	var next int64
	err := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM sync_queue WHERE user_id = ?`, userID).Scan(&next)
	return next, err
}

func (r *QueueRepo) InsertTx(tx *sql.Tx, t *models.SyncTask) error {
	var toDevice any
	if t.ToDeviceID != nil {
		toDevice = *t.ToDeviceID
	}
	_, err := tx.Exec(`
		INSERT INTO sync_queue (id, user_id, from_device_id, to_device_id, sync_type, payload, status, priority, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.FromDeviceID, toDevice, t.SyncType, string(t.Payload),
		t.Status, t.Priority, t.Seq, t.CreatedAt.UTC())
	return err
}

// ListPending returns up to limit pending tasks, highest priority first and
// oldest first within a priority band.
func (r *QueueRepo) ListPending(userID string, limit int) ([]models.SyncTask, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, user_id, from_device_id, to_device_id, sync_type, payload, status, priority, seq, created_at, synced_at
		FROM sync_queue
		WHERE user_id = ? AND status = ?
		ORDER BY priority DESC, created_at ASC
		LIMIT ?
	`, userID, models.StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListRecentEditTasks returns conversation and settings tasks created at or
// after the cutoff, regardless of status, in enqueue order. These are the
// only types the conflict detector cares about.
func (r *QueueRepo) ListRecentEditTasks(userID string, since time.Time) ([]models.SyncTask, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, from_device_id, to_device_id, sync_type, payload, status, priority, seq, created_at, synced_at
		FROM sync_queue
		WHERE user_id = ? AND sync_type IN (?, ?) AND created_at >= ?
		ORDER BY seq ASC, created_at ASC
	`, userID, models.SyncTypeConversation, models.SyncTypeSettings, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListFailed returns the failed backlog, newest first. Failed tasks are never
// purged or retried; this is the inspection surface for them.
func (r *QueueRepo) ListFailed(userID string, limit int) ([]models.SyncTask, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`
		SELECT id, user_id, from_device_id, to_device_id, sync_type, payload, status, priority, seq, created_at, synced_at
		FROM sync_queue
		WHERE user_id = ? AND status = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, models.StatusFailed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *QueueRepo) GetByID(taskID string) (*models.SyncTask, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, from_device_id, to_device_id, sync_type, payload, status, priority, seq, created_at, synced_at
		FROM sync_queue WHERE id = ?
	`, taskID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// MarkSyncing moves a pending task to syncing.
func (r *QueueRepo) MarkSyncing(taskID string) error {
	return r.transition(taskID, models.StatusPending, models.StatusSyncing, false)
}

// MarkSynced moves a syncing task to synced and stamps synced_at.
func (r *QueueRepo) MarkSynced(taskID string) error {
	return r.transition(taskID, models.StatusSyncing, models.StatusSynced, true)
}

// MarkFailed moves a syncing task to failed.
func (r *QueueRepo) MarkFailed(taskID string) error {
	return r.transition(taskID, models.StatusSyncing, models.StatusFailed, false)
}

func (r *QueueRepo) transition(taskID, from, to string, stampSynced bool) error {
	var (
		res sql.Result
		err error
	)
	if stampSynced {
		res, err = r.db.Exec(`UPDATE sync_queue SET status = ?, synced_at = ? WHERE id = ? AND status = ?`,
			to, time.Now().UTC(), taskID, from)
	} else {
		res, err = r.db.Exec(`UPDATE sync_queue SET status = ? WHERE id = ? AND status = ?`,
			to, taskID, from)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBadTransition
	}
	return nil
}

// PurgeSyncedBefore hard-deletes synced tasks whose synced_at is before the
// cutoff. Pending, syncing and failed rows are untouched regardless of age.
func (r *QueueRepo) PurgeSyncedBefore(userID string, cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`
		DELETE FROM sync_queue
		WHERE user_id = ? AND status = ? AND synced_at IS NOT NULL AND synced_at < ?
	`, userID, models.StatusSynced, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func collectTasks(rows *sql.Rows) ([]models.SyncTask, error) {
	var tasks []models.SyncTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func scanTask(row interface{ Scan(dest ...any) error }) (*models.SyncTask, error) {
	var (
		t        models.SyncTask
		toDevice sql.NullString
		payload  string
		syncedAt sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.FromDeviceID, &toDevice, &t.SyncType,
		&payload, &t.Status, &t.Priority, &t.Seq, &t.CreatedAt, &syncedAt); err != nil {
		return nil, err
	}
	if toDevice.Valid {
		t.ToDeviceID = &toDevice.String
	}
	t.Payload = []byte(payload)
	if syncedAt.Valid {
		t.SyncedAt = &syncedAt.Time
	}
	return &t, nil
}
