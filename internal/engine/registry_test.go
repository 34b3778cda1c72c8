package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"device-sync/internal/models"
)

func TestListActiveDevicesExcludesStaleHeartbeats(t *testing.T) {
	orc, db := setupEngine(t)
	user := "u1"

	heartbeat(t, orc, user, "fresh-old", models.DeviceContext{})
	heartbeat(t, orc, user, "fresh-new", models.DeviceContext{})
	heartbeat(t, orc, user, "stale", models.DeviceContext{})

	backdateHeartbeat(t, db, user, "fresh-old", 5*time.Minute)
	// Active flag still set, but outside the 10-minute window.
	backdateHeartbeat(t, db, user, "stale", 11*time.Minute)

	devices := orc.Registry.ListActiveDevices(user)
	require.Len(t, devices, 2)
	require.Equal(t, "fresh-new", devices[0].DeviceID, "most recent heartbeat first")
	require.Equal(t, "fresh-old", devices[1].DeviceID)
}

func TestListActiveDevicesExcludesInactiveFlag(t *testing.T) {
	orc, db := setupEngine(t)
	user := "u1"

	heartbeat(t, orc, user, "d1", models.DeviceContext{})
	_, err := db.Exec(`UPDATE device_sessions SET is_active = 0 WHERE user_id = ? AND device_id = ?`, user, "d1")
	require.NoError(t, err)

	require.Empty(t, orc.Registry.ListActiveDevices(user))
}

func TestListActiveDevicesDegradesOnStorageError(t *testing.T) {
	orc, db := setupEngine(t)
	heartbeat(t, orc, "u1", "d1", models.DeviceContext{})

	require.NoError(t, db.Close())
	require.Nil(t, orc.Registry.ListActiveDevices("u1"))
}
