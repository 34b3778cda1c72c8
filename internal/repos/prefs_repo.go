package repos

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PrefsRepo stores the per-user device_preferences record.
type PrefsRepo struct {
	db *sql.DB
}

func NewPrefsRepo(db *sql.DB) *PrefsRepo {
	return &PrefsRepo{db: db}
}

// Get returns the user's preferences and when they last changed.
// ErrNotFound when the user has no preferences record yet.
func (r *PrefsRepo) Get(userID string) (map[string]any, time.Time, error) {
	var (
		prefsJSON string
		updatedAt time.Time
	)
	err := r.db.QueryRow(`SELECT preferences, updated_at FROM device_preferences WHERE user_id = ?`, userID).
		Scan(&prefsJSON, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, ErrNotFound
		}
		return nil, time.Time{}, err
	}
	prefs := map[string]any{}
	if prefsJSON != "" {
		if err := json.Unmarshal([]byte(prefsJSON), &prefs); err != nil {
			return nil, time.Time{}, fmt.Errorf("parse preferences: %w", err)
		}
	}
	return prefs, updatedAt, nil
}

// Merge upserts the given keys into the user's preferences record. Keys not
// present in settings are kept.
func (r *PrefsRepo) Merge(userID string, settings map[string]any) error {
	prefs, _, err := r.Get(userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		prefs = map[string]any{}
	}
	for k, v := range settings {
		prefs[k] = v
	}
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	_, err = r.db.Exec(`
		INSERT INTO device_preferences (user_id, preferences, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			preferences = excluded.preferences,
			updated_at = excluded.updated_at
	`, userID, string(prefsJSON), time.Now().UTC())
	return err
}
