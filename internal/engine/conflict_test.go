package engine

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"device-sync/internal/models"
)

func enqueueConversationEdit(t *testing.T, orc *Orchestrator, user, device, convID string) string {
	t.Helper()
	payload, _ := json.Marshal(models.ConversationPayload{
		ConversationID: convID,
		Fields:         map[string]any{"edited_by": device},
	})
	id, err := orc.Queue.Enqueue(user, device, models.SyncTypeConversation, payload, 3, nil)
	require.NoError(t, err)
	return id
}

func TestDetectConversationConflict(t *testing.T) {
	orc, _ := setupEngine(t)
	user := "u1"

	enqueueConversationEdit(t, orc, user, "a", "conv-1")
	enqueueConversationEdit(t, orc, user, "b", "conv-1")

	conflicts, err := orc.Detector.Detect(user)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	require.Equal(t, models.ConflictConversationEdit, c.Type)
	require.Equal(t, "conv-1", c.ResourceID)
	require.Equal(t, "a", c.Earliest.DeviceID)
	require.Equal(t, "b", c.Latest.DeviceID)
}

func TestSingleDeviceEditsAreNotConflicts(t *testing.T) {
	orc, _ := setupEngine(t)
	user := "u1"

	enqueueConversationEdit(t, orc, user, "a", "conv-1")
	enqueueConversationEdit(t, orc, user, "a", "conv-1")
	enqueueConversationEdit(t, orc, user, "a", "conv-1")

	conflicts, err := orc.Detector.Detect(user)
	require.NoError(t, err)
	require.Empty(t, conflicts)
}

func TestDetectIgnoresTasksOutsideWindow(t *testing.T) {
	orc, db := setupEngine(t)
	user := "u1"

	old := enqueueConversationEdit(t, orc, user, "a", "conv-1")
	backdateTask(t, db, old, 6*time.Minute)
	enqueueConversationEdit(t, orc, user, "b", "conv-1")

	conflicts, err := orc.Detector.Detect(user)
	require.NoError(t, err)
	require.Empty(t, conflicts, "the older edit fell out of the 5-minute window")
}

func TestDetectSettingsConflict(t *testing.T) {
	orc, _ := setupEngine(t)
	user := "u1"

	for _, device := range []string{"a", "b"} {
		payload, _ := json.Marshal(models.SettingsPayload{Settings: map[string]any{"theme": device}})
		_, err := orc.Queue.Enqueue(user, device, models.SyncTypeSettings, payload, 1, nil)
		require.NoError(t, err)
	}

	conflicts, err := orc.Detector.Detect(user)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, models.ConflictSettingsChange, conflicts[0].Type)
	require.Equal(t, models.SettingsResourceID, conflicts[0].ResourceID)
}

func TestResolveLastWriteWins(t *testing.T) {
	orc, _ := setupEngine(t)
	user := "u1"

	enqueueConversationEdit(t, orc, user, "a", "conv-1")
	enqueueConversationEdit(t, orc, user, "b", "conv-1")

	conflicts, err := orc.Detector.Detect(user)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	resolved := orc.Resolver.Resolve(user, conflicts)
	require.Equal(t, 1, resolved)

	findings, err := orc.Findings.ListByMethod(user, MethodConflictResolution, 10)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Equal(t, models.SeverityMedium, findings[0].Severity)
	require.Contains(t, findings[0].Description, fmt.Sprintf("kept the edit from %s", "b"),
		"the later edit wins")
}

func TestResolveAuditIsDedupedWithinWindow(t *testing.T) {
	orc, _ := setupEngine(t)
	user := "u1"

	enqueueConversationEdit(t, orc, user, "a", "conv-1")
	enqueueConversationEdit(t, orc, user, "b", "conv-1")

	conflicts, err := orc.Detector.Detect(user)
	require.NoError(t, err)

	require.Equal(t, 1, orc.Resolver.Resolve(user, conflicts))
	// Second pass over unchanged state still resolves but records nothing new.
	require.Equal(t, 1, orc.Resolver.Resolve(user, conflicts))

	findings, err := orc.Findings.ListByMethod(user, MethodConflictResolution, 10)
	require.NoError(t, err)
	require.Len(t, findings, 1)
}
