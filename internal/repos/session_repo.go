package repos

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"device-sync/internal/models"
)

// SessionRepo reads and writes device_sessions rows. Heartbeats are produced
// by the device-side collaborator; the engine itself only rewrites the
// current_context column during context broadcasts.
type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// ListActive returns sessions with the active flag set and a heartbeat at or
// after the cutoff, most recent heartbeat first.
func (r *SessionRepo) ListActive(userID string, heartbeatAfter time.Time) ([]models.DeviceSession, error) {
	rows, err := r.db.Query(`
		SELECT id, device_id, user_id, device_type, device_name, is_active, last_heartbeat, current_context, created_at
		FROM device_sessions
		WHERE user_id = ? AND is_active = 1 AND last_heartbeat >= ?
		ORDER BY last_heartbeat DESC
	`, userID, heartbeatAfter.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.DeviceSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// GetByDeviceID returns the session for one of the user's devices.
func (r *SessionRepo) GetByDeviceID(userID, deviceID string) (*models.DeviceSession, error) {
	row := r.db.QueryRow(`
		SELECT id, device_id, user_id, device_type, device_name, is_active, last_heartbeat, current_context, created_at
		FROM device_sessions
		WHERE user_id = ? AND device_id = ?
	`, userID, deviceID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// UpsertHeartbeat records device presence. Existing sessions keep their row
// id and created_at; the heartbeat timestamp and context snapshot move
// forward.
func (r *SessionRepo) UpsertHeartbeat(s *models.DeviceSession) error {
	ctxJSON, err := json.Marshal(s.CurrentContext)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	now := time.Now().UTC()
	if s.LastHeartbeat.IsZero() {
		s.LastHeartbeat = now
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	_, err = r.db.Exec(`
		INSERT INTO device_sessions (id, device_id, user_id, device_type, device_name, is_active, last_heartbeat, current_context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, device_id) DO UPDATE SET
			device_type = excluded.device_type,
			device_name = excluded.device_name,
			is_active = excluded.is_active,
			last_heartbeat = excluded.last_heartbeat,
			current_context = excluded.current_context
	`, s.ID, s.DeviceID, s.UserID, s.DeviceType, s.DeviceName, s.IsActive,
		s.LastHeartbeat.UTC(), string(ctxJSON), s.CreatedAt.UTC())
	return err
}

// UpdateContext overwrites one device's current_context. Used by the
// executor when applying context sync tasks.
func (r *SessionRepo) UpdateContext(userID, deviceID string, ctx models.DeviceContext) error {
	ctxJSON, err := json.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	res, err := r.db.Exec(`
		UPDATE device_sessions SET current_context = ?
		WHERE user_id = ? AND device_id = ?
	`, string(ctxJSON), userID, deviceID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSession(row interface{ Scan(dest ...any) error }) (*models.DeviceSession, error) {
	var (
		s       models.DeviceSession
		ctxJSON string
	)
	if err := row.Scan(&s.ID, &s.DeviceID, &s.UserID, &s.DeviceType, &s.DeviceName,
		&s.IsActive, &s.LastHeartbeat, &ctxJSON, &s.CreatedAt); err != nil {
		return nil, err
	}
	if ctxJSON != "" {
		if err := json.Unmarshal([]byte(ctxJSON), &s.CurrentContext); err != nil {
			return nil, fmt.Errorf("parse context for device %s: %w", s.DeviceID, err)
		}
	}
	return &s, nil
}
