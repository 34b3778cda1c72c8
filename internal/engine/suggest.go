package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"device-sync/internal/logging"
	"device-sync/internal/models"
	"device-sync/internal/repos"
)

// MethodContinuity tags suggestion findings.
const MethodContinuity = "continuity-suggestion"

// Confidence scores for the suggestion heuristics.
const (
	confidenceConversation = 85
	confidenceProject      = 75
	confidenceSettings     = 60
)

// SuggestionEngine derives "resume elsewhere" suggestions from active device
// contexts. Quadratic in device count, which stays in single digits per user.
type SuggestionEngine struct {
	findings *repos.FindingRepo
	log      *logging.Logger
}

func NewSuggestionEngine(findings *repos.FindingRepo, log *logging.Logger) *SuggestionEngine {
	return &SuggestionEngine{findings: findings, log: log}
}

// Generate emits one suggestion per ordered pair of distinct active devices
// whose source context names a conversation or project, or carries a
// preferences snapshot the target is still missing. Suggestions are
// persisted as informational findings, deduped by fingerprint within the
// conflict window so unchanged state does not re-emit them every run.
func (s *SuggestionEngine) Generate(userID string, devices []models.DeviceSession) []models.ContinuitySuggestion {
	var suggestions []models.ContinuitySuggestion
	for _, src := range devices {
		for _, dst := range devices {
			if src.DeviceID == dst.DeviceID {
				continue
			}
			ctx := src.CurrentContext
			if ctx.ActiveConversationID != "" {
				title := ctx.ConversationTitle
				if title == "" {
					title = ctx.ActiveConversationID
				}
				suggestions = append(suggestions, models.ContinuitySuggestion{
					Type:  models.SuggestContinueConversation,
					Title: fmt.Sprintf("Continue %q on %s", title, deviceLabel(dst)),
					Description: fmt.Sprintf("You have an open conversation on %s; pick it up on %s.",
						deviceLabel(src), deviceLabel(dst)),
					SourceDevice: src.DeviceID,
					TargetDevice: dst.DeviceID,
					ResourceID:   ctx.ActiveConversationID,
					Confidence:   confidenceConversation,
				})
			}
			if ctx.ActiveProjectID != "" {
				name := ctx.ProjectName
				if name == "" {
					name = ctx.ActiveProjectID
				}
				suggestions = append(suggestions, models.ContinuitySuggestion{
					Type:  models.SuggestResumeProject,
					Title: fmt.Sprintf("Resume project %q on %s", name, deviceLabel(dst)),
					Description: fmt.Sprintf("Project %s is active on %s; resume it on %s.",
						name, deviceLabel(src), deviceLabel(dst)),
					SourceDevice: src.DeviceID,
					TargetDevice: dst.DeviceID,
					ResourceID:   ctx.ActiveProjectID,
					Confidence:   confidenceProject,
				})
			}
			if len(ctx.Preferences) > 0 && len(dst.CurrentContext.Preferences) == 0 {
				suggestions = append(suggestions, models.ContinuitySuggestion{
					Type:  models.SuggestSyncSettings,
					Title: fmt.Sprintf("Sync settings to %s", deviceLabel(dst)),
					Description: fmt.Sprintf("%s carries preferences that %s does not have yet; sync them over.",
						deviceLabel(src), deviceLabel(dst)),
					SourceDevice: src.DeviceID,
					TargetDevice: dst.DeviceID,
					ResourceID:   models.SettingsResourceID,
					Confidence:   confidenceSettings,
				})
			}
		}
	}

	for _, sg := range suggestions {
		s.persist(userID, sg)
	}
	return suggestions
}

func (s *SuggestionEngine) persist(userID string, sg models.ContinuitySuggestion) {
	fp := fingerprint(sg.Type, sg.ResourceID, sg.SourceDevice, sg.TargetDevice)
	seen, err := s.findings.SeenSince(userID, fp, time.Now().UTC().Add(-ConflictWindow))
	if err != nil {
		s.log.Error("suggestion dedupe check failed", map[string]any{"error": err.Error()})
	}
	if seen {
		return
	}
	evidence, _ := json.Marshal(sg)
	f := &models.Finding{
		UserID:      userID,
		Severity:    models.SeverityInfo,
		Title:       sg.Title,
		Description: sg.Description,
		Evidence:    evidence,
		Method:      MethodContinuity,
		Fingerprint: fp,
	}
	if err := s.findings.Insert(f); err != nil {
		s.log.Error("failed to persist suggestion", map[string]any{
			"type":  sg.Type,
			"error": err.Error(),
		})
	}
}

func deviceLabel(d models.DeviceSession) string {
	if d.DeviceName != "" {
		return d.DeviceName
	}
	return d.DeviceID
}
