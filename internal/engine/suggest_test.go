package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"device-sync/internal/models"
)

func TestGenerateSuggestionsForOrderedPairs(t *testing.T) {
	orc, _ := setupEngine(t)
	user := "u1"

	heartbeat(t, orc, user, "laptop", models.DeviceContext{
		ActiveConversationID: "conv-1",
		ConversationTitle:    "Trip planning",
		ActiveProjectID:      "proj-1",
		ProjectName:          "Website",
	})
	heartbeat(t, orc, user, "phone", models.DeviceContext{})
	heartbeat(t, orc, user, "desktop", models.DeviceContext{})

	devices := orc.Registry.ListActiveDevices(user)
	suggestions := orc.Suggestions.Generate(user, devices)

	// laptop's context suggests continuing on the two other devices, once for
	// the conversation and once for the project.
	var conv, proj int
	for _, s := range suggestions {
		require.Equal(t, "laptop", s.SourceDevice)
		require.NotEqual(t, s.SourceDevice, s.TargetDevice)
		switch s.Type {
		case models.SuggestContinueConversation:
			conv++
			require.Equal(t, "conv-1", s.ResourceID)
			require.Equal(t, 85, s.Confidence)
		case models.SuggestResumeProject:
			proj++
			require.Equal(t, "proj-1", s.ResourceID)
			require.Equal(t, 75, s.Confidence)
		default:
			t.Fatalf("unexpected suggestion type %q", s.Type)
		}
	}
	require.Equal(t, 2, conv)
	require.Equal(t, 2, proj)
}

func TestSyncSettingsSuggestedForDevicesMissingPreferences(t *testing.T) {
	orc, _ := setupEngine(t)
	user := "u1"

	heartbeat(t, orc, user, "laptop", models.DeviceContext{
		Preferences: map[string]any{"theme": "dark"},
	})
	heartbeat(t, orc, user, "phone", models.DeviceContext{})

	devices := orc.Registry.ListActiveDevices(user)
	suggestions := orc.Suggestions.Generate(user, devices)
	require.Len(t, suggestions, 1)

	s := suggestions[0]
	require.Equal(t, models.SuggestSyncSettings, s.Type)
	require.Equal(t, "laptop", s.SourceDevice)
	require.Equal(t, "phone", s.TargetDevice)
	require.Equal(t, models.SettingsResourceID, s.ResourceID)
	require.Equal(t, 60, s.Confidence)
}

func TestNoSuggestionsWithoutContext(t *testing.T) {
	orc, _ := setupEngine(t)
	user := "u1"

	heartbeat(t, orc, user, "a", models.DeviceContext{})
	heartbeat(t, orc, user, "b", models.DeviceContext{})

	devices := orc.Registry.ListActiveDevices(user)
	require.Empty(t, orc.Suggestions.Generate(user, devices))
}

func TestSuggestionFindingsAreDedupedWithinWindow(t *testing.T) {
	orc, _ := setupEngine(t)
	user := "u1"

	heartbeat(t, orc, user, "a", models.DeviceContext{ActiveConversationID: "conv-1"})
	heartbeat(t, orc, user, "b", models.DeviceContext{})

	devices := orc.Registry.ListActiveDevices(user)

	first := orc.Suggestions.Generate(user, devices)
	require.Len(t, first, 1)
	second := orc.Suggestions.Generate(user, devices)
	require.Len(t, second, 1, "the suggestion is still derived")

	findings, err := orc.Findings.ListByMethod(user, MethodContinuity, 10)
	require.NoError(t, err)
	require.Len(t, findings, 1, "but persisted only once per window")
}
