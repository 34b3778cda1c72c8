package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"device-sync/internal/logging"
	"device-sync/internal/models"
	"device-sync/internal/repos"
)

// ConflictWindow is how far back the detector scans queue activity.
const ConflictWindow = 5 * time.Minute

// MethodConflictResolution tags audit findings written by the resolver.
const MethodConflictResolution = "conflict-resolution"

// Detector scans recent queue activity for multi-device edits to the same
// resource. It is a best-effort heuristic over history, not a live lock:
// tasks falling just outside the window are missed.
type Detector struct {
	queue *repos.QueueRepo
	log   *logging.Logger
}

func NewDetector(queue *repos.QueueRepo, log *logging.Logger) *Detector {
	return &Detector{queue: queue, log: log}
}

// Detect groups conversation tasks by the conversation id in their payload
// and settings tasks under the synthetic "user_settings" resource. Any group
// touched by more than one distinct source device yields one conflict
// spanning the earliest and latest task of the group.
func (d *Detector) Detect(userID string) ([]models.Conflict, error) {
	since := time.Now().UTC().Add(-ConflictWindow)
	tasks, err := d.queue.ListRecentEditTasks(userID, since)
	if err != nil {
		return nil, fmt.Errorf("scan recent queue activity: %w", err)
	}

	type group struct {
		conflictType string
		tasks        []models.SyncTask
	}
	groups := map[string]*group{}
	for _, t := range tasks {
		var resource, conflictType string
		switch t.SyncType {
		case models.SyncTypeSettings:
			resource = models.SettingsResourceID
			conflictType = models.ConflictSettingsChange
		case models.SyncTypeConversation:
			p, err := models.DecodePayload(t.SyncType, t.Payload)
			if err != nil {
				// Malformed tasks are the executor's problem; skip them here.
				continue
			}
			resource = p.(*models.ConversationPayload).ConversationID
			conflictType = models.ConflictConversationEdit
		default:
			continue
		}
		g, ok := groups[resource]
		if !ok {
			g = &group{conflictType: conflictType}
			groups[resource] = g
		}
		g.tasks = append(g.tasks, t)
	}

	resources := make([]string, 0, len(groups))
	for resource := range groups {
		resources = append(resources, resource)
	}
	sort.Strings(resources)

	var conflicts []models.Conflict
	for _, resource := range resources {
		g := groups[resource]
		devices := map[string]struct{}{}
		for _, t := range g.tasks {
			devices[t.FromDeviceID] = struct{}{}
		}
		if len(devices) < 2 {
			continue
		}
		// Tasks arrive ordered by seq; first and last span the whole window.
		earliest := g.tasks[0]
		latest := g.tasks[len(g.tasks)-1]
		conflicts = append(conflicts, models.Conflict{
			Type:       g.conflictType,
			ResourceID: resource,
			Earliest:   toEdit(earliest),
			Latest:     toEdit(latest),
		})
	}
	if len(conflicts) > 0 {
		d.log.Info("conflicts detected", map[string]any{
			"user_id": userID,
			"count":   len(conflicts),
		})
	}
	return conflicts, nil
}

func toEdit(t models.SyncTask) models.ConflictEdit {
	return models.ConflictEdit{
		TaskID:    t.ID,
		DeviceID:  t.FromDeviceID,
		Seq:       t.Seq,
		CreatedAt: t.CreatedAt,
		Payload:   t.Payload,
	}
}

// Resolver applies last-write-wins to detected conflicts and records each
// outcome as an advisory audit finding. It is observational only: the losing
// edit was already executed and is not rolled back, so the underlying record
// keeps whichever task's executor ran more recently.
type Resolver struct {
	findings *repos.FindingRepo
	log      *logging.Logger
}

func NewResolver(findings *repos.FindingRepo, log *logging.Logger) *Resolver {
	return &Resolver{findings: findings, log: log}
}

// Resolve returns how many conflicts were resolved. Audit findings are
// deduped by fingerprint inside the conflict window, so re-running over
// unchanged state does not pile up identical entries.
func (r *Resolver) Resolve(userID string, conflicts []models.Conflict) int {
	resolved := 0
	for i := range conflicts {
		c := &conflicts[i]
		winner, loser := c.Latest, c.Earliest
		if laterEdit(c.Earliest, c.Latest) == c.Earliest.TaskID {
			winner, loser = c.Earliest, c.Latest
		}
		c.Resolution = "last_write_wins"
		resolved++

		fp := fingerprint(c.Type, c.ResourceID, winner.TaskID, loser.TaskID)
		seen, err := r.findings.SeenSince(userID, fp, time.Now().UTC().Add(-ConflictWindow))
		if err != nil {
			r.log.Error("finding dedupe check failed", map[string]any{"error": err.Error()})
		}
		if seen {
			continue
		}

		evidence, _ := json.Marshal(c)
		f := &models.Finding{
			UserID:   userID,
			Severity: models.SeverityMedium,
			Title:    fmt.Sprintf("Sync conflict resolved: %s", c.ResourceID),
			Description: fmt.Sprintf(
				"Devices %s and %s edited %s within %s of each other; kept the edit from %s (last write wins).",
				c.Earliest.DeviceID, c.Latest.DeviceID, c.ResourceID, ConflictWindow, winner.DeviceID),
			Evidence:    evidence,
			Method:      MethodConflictResolution,
			Fingerprint: fp,
		}
		if err := r.findings.Insert(f); err != nil {
			r.log.Error("failed to record conflict resolution", map[string]any{
				"resource": c.ResourceID,
				"error":    err.Error(),
			})
		}
	}
	return resolved
}

// laterEdit returns the task id of the later of two edits, ordered by the
// per-user enqueue sequence. Wall-clock timestamps are only consulted for
// rows that predate sequence assignment.
func laterEdit(a, b models.ConflictEdit) string {
	if a.Seq != 0 && b.Seq != 0 {
		if a.Seq > b.Seq {
			return a.TaskID
		}
		return b.TaskID
	}
	if a.CreatedAt.After(b.CreatedAt) {
		return a.TaskID
	}
	return b.TaskID
}

func fingerprint(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:16])
}
