package engine

import (
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"device-sync/internal/logging"
	"device-sync/internal/models"
	"device-sync/internal/repos"
)

func setupEngine(t *testing.T) (*Orchestrator, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	// One connection: a second pool connection would see its own empty
	// in-memory database.
	db.SetMaxOpenConns(1)
	if err := repos.InitSchema(db); err != nil {
		t.Fatal(err)
	}
	log := logging.NewWithWriter("error", io.Discard)
	return New(db, log), db
}

func heartbeat(t *testing.T, orc *Orchestrator, userID, deviceID string, ctx models.DeviceContext) {
	t.Helper()
	err := orc.Registry.Heartbeat(&models.DeviceSession{
		ID:             uuid.NewString(),
		DeviceID:       deviceID,
		UserID:         userID,
		DeviceType:     "desktop",
		DeviceName:     deviceID,
		IsActive:       true,
		LastHeartbeat:  time.Now().UTC(),
		CurrentContext: ctx,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func backdateHeartbeat(t *testing.T, db *sql.DB, userID, deviceID string, age time.Duration) {
	t.Helper()
	_, err := db.Exec(`UPDATE device_sessions SET last_heartbeat = ? WHERE user_id = ? AND device_id = ?`,
		time.Now().UTC().Add(-age), userID, deviceID)
	if err != nil {
		t.Fatal(err)
	}
}

func backdateTask(t *testing.T, db *sql.DB, taskID string, age time.Duration) {
	t.Helper()
	_, err := db.Exec(`UPDATE sync_queue SET created_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-age), taskID)
	if err != nil {
		t.Fatal(err)
	}
}

func scrollPos(v float64) *float64 { return &v }
