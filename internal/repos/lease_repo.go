package repos

import (
	"database/sql"
	"errors"
	"time"
)

// ErrLeaseHeld is returned when another run holds the user's sync lease.
var ErrLeaseHeld = errors.New("sync lease held by another run")

// LeaseRepo serializes orchestrator runs per user. A lease is taken at the
// start of a run and released at the end; a crashed run's lease falls off at
// its expiry instead of blocking the user forever.
type LeaseRepo struct {
	db *sql.DB
}

func NewLeaseRepo(db *sql.DB) *LeaseRepo {
	return &LeaseRepo{db: db}
}

// Acquire takes the user's lease for runID, stealing only expired leases.
func (r *LeaseRepo) Acquire(userID, runID string, ttl time.Duration) error {
	now := time.Now().UTC()
	res, err := r.db.Exec(`
		INSERT INTO sync_leases (user_id, run_id, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			run_id = excluded.run_id,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE sync_leases.expires_at <= excluded.acquired_at
	`, userID, runID, now, now.Add(ttl))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLeaseHeld
	}
	return nil
}

// Release drops the lease if runID still owns it.
func (r *LeaseRepo) Release(userID, runID string) error {
	_, err := r.db.Exec(`DELETE FROM sync_leases WHERE user_id = ? AND run_id = ?`, userID, runID)
	return err
}

// Holder returns the run id currently holding the user's unexpired lease.
func (r *LeaseRepo) Holder(userID string) (string, error) {
	var runID string
	err := r.db.QueryRow(`
		SELECT run_id FROM sync_leases WHERE user_id = ? AND expires_at > ?
	`, userID, time.Now().UTC()).Scan(&runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return runID, nil
}
