package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"device-sync/internal/models"
	"device-sync/internal/repos"
)

func contextTask(user, from string, to *string, ctx models.DeviceContext) models.SyncTask {
	payload, _ := json.Marshal(models.ContextPayload{Context: ctx})
	return models.SyncTask{
		ID:           "t-ctx",
		UserID:       user,
		FromDeviceID: from,
		ToDeviceID:   to,
		SyncType:     models.SyncTypeContext,
		Payload:      payload,
	}
}

func TestContextBroadcastExcludesSourceDevice(t *testing.T) {
	orc, db := setupEngine(t)
	user := "u1"
	heartbeat(t, orc, user, "a", models.DeviceContext{ActiveConversationID: "conv-a"})
	heartbeat(t, orc, user, "b", models.DeviceContext{})
	heartbeat(t, orc, user, "c", models.DeviceContext{})

	ctx := models.DeviceContext{ActiveConversationID: "conv-a", ScrollPosition: scrollPos(0.4)}
	require.True(t, orc.Executor.Execute(contextTask(user, "a", nil, ctx)))

	sessions := repos.NewSessionRepo(db)
	for _, device := range []string{"b", "c"} {
		s, err := sessions.GetByDeviceID(user, device)
		require.NoError(t, err)
		require.Equal(t, "conv-a", s.CurrentContext.ActiveConversationID)
		require.NotNil(t, s.CurrentContext.ScrollPosition)
	}

	a, err := sessions.GetByDeviceID(user, "a")
	require.NoError(t, err)
	require.Nil(t, a.CurrentContext.ScrollPosition, "source device must not receive its own broadcast")
}

func TestContextTargetedDelivery(t *testing.T) {
	orc, db := setupEngine(t)
	user := "u1"
	heartbeat(t, orc, user, "a", models.DeviceContext{})
	heartbeat(t, orc, user, "b", models.DeviceContext{})
	heartbeat(t, orc, user, "c", models.DeviceContext{})

	target := "b"
	ctx := models.DeviceContext{ActiveConversationID: "conv-x"}
	require.True(t, orc.Executor.Execute(contextTask(user, "a", &target, ctx)))

	sessions := repos.NewSessionRepo(db)
	b, err := sessions.GetByDeviceID(user, "b")
	require.NoError(t, err)
	require.Equal(t, "conv-x", b.CurrentContext.ActiveConversationID)

	c, err := sessions.GetByDeviceID(user, "c")
	require.NoError(t, err)
	require.Empty(t, c.CurrentContext.ActiveConversationID)
}

func TestConversationPartialUpdate(t *testing.T) {
	orc, db := setupEngine(t)
	user := "u1"
	records := repos.NewRecordRepo(db)
	require.NoError(t, records.InsertConversation(user, "conv-1", "Notes"))
	require.NoError(t, records.ApplyConversationUpdate(user, "conv-1", map[string]any{"pinned": true}))

	payload, _ := json.Marshal(models.ConversationPayload{
		ConversationID: "conv-1",
		Fields:         map[string]any{"last_message": "hello"},
	})
	ok := orc.Executor.Execute(models.SyncTask{
		ID: "t1", UserID: user, FromDeviceID: "a",
		SyncType: models.SyncTypeConversation, Payload: payload,
	})
	require.True(t, ok)

	doc, err := records.GetConversationDoc(user, "conv-1")
	require.NoError(t, err)
	require.Equal(t, "hello", doc["last_message"])
	require.Equal(t, true, doc["pinned"], "untouched fields survive a partial update")
}

func TestMissingConversationFailsTask(t *testing.T) {
	orc, _ := setupEngine(t)

	payload, _ := json.Marshal(models.ConversationPayload{ConversationID: "nope", Fields: map[string]any{"x": 1}})
	ok := orc.Executor.Execute(models.SyncTask{
		ID: "t1", UserID: "u1", FromDeviceID: "a",
		SyncType: models.SyncTypeConversation, Payload: payload,
	})
	require.False(t, ok)
}

func TestSettingsUpsertMerges(t *testing.T) {
	orc, db := setupEngine(t)
	user := "u1"
	prefs := repos.NewPrefsRepo(db)
	require.NoError(t, prefs.Merge(user, map[string]any{"theme": "dark", "lang": "en"}))

	payload, _ := json.Marshal(models.SettingsPayload{Settings: map[string]any{"theme": "light"}})
	ok := orc.Executor.Execute(models.SyncTask{
		ID: "t1", UserID: user, FromDeviceID: "a",
		SyncType: models.SyncTypeSettings, Payload: payload,
	})
	require.True(t, ok)

	got, _, err := prefs.Get(user)
	require.NoError(t, err)
	require.Equal(t, "light", got["theme"])
	require.Equal(t, "en", got["lang"])
}

func TestUnknownSyncTypeIsRejected(t *testing.T) {
	orc, _ := setupEngine(t)

	ok := orc.Executor.Execute(models.SyncTask{
		ID: "t1", UserID: "u1", FromDeviceID: "a",
		SyncType: "carrier-pigeon", Payload: json.RawMessage(`{}`),
	})
	require.False(t, ok)
}

func TestInvalidPayloadIsRejected(t *testing.T) {
	orc, _ := setupEngine(t)

	// conversation payload without a conversation id
	ok := orc.Executor.Execute(models.SyncTask{
		ID: "t1", UserID: "u1", FromDeviceID: "a",
		SyncType: models.SyncTypeConversation, Payload: json.RawMessage(`{"fields":{"x":1}}`),
	})
	require.False(t, ok)
}
