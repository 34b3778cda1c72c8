package engine

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"device-sync/internal/logging"
	"device-sync/internal/models"
	"device-sync/internal/repos"
)

// RetentionWindow is how long synced tasks are kept before cleanup.
const RetentionWindow = 72 * time.Hour

// LeaseTTL bounds how long a crashed run can keep other runs locked out.
const LeaseTTL = 2 * time.Minute

// ErrRunInProgress is returned when another orchestrator run holds the
// user's lease, so overlapping scheduled and manual invocations serialize
// instead of double-draining the queue.
var ErrRunInProgress = errors.New("sync run already in progress for this user")

// Orchestrator sequences one synchronization pass: devices, queue drain,
// conflict detection and resolution, continuity suggestions, context and
// settings rebroadcast, retention cleanup. One value per storage handle; no
// process-global state.
type Orchestrator struct {
	Registry    *Registry
	Queue       *Queue
	Executor    *Executor
	Detector    *Detector
	Resolver    *Resolver
	Suggestions *SuggestionEngine
	Findings    *repos.FindingRepo

	sessions *repos.SessionRepo
	prefs    *repos.PrefsRepo
	leases   *repos.LeaseRepo
	log      *logging.Logger
}

// New wires an engine over one database handle.
func New(db *sql.DB, log *logging.Logger) *Orchestrator {
	sessions := repos.NewSessionRepo(db)
	queueRepo := repos.NewQueueRepo(db)
	records := repos.NewRecordRepo(db)
	prefs := repos.NewPrefsRepo(db)
	findings := repos.NewFindingRepo(db)

	return &Orchestrator{
		Registry:    NewRegistry(sessions, log),
		Queue:       NewQueue(queueRepo, log),
		Executor:    NewExecutor(sessions, records, prefs, log),
		Detector:    NewDetector(queueRepo, log),
		Resolver:    NewResolver(findings, log),
		Suggestions: NewSuggestionEngine(findings, log),
		Findings:    findings,
		sessions:    sessions,
		prefs:       prefs,
		leases:      repos.NewLeaseRepo(db),
		log:         log,
	}
}

// Run executes one synchronization pass for the user and returns aggregate
// counters. Per-task failures and a failed device fetch degrade; anything
// else propagates to the caller, who owns retry scheduling.
func (o *Orchestrator) Run(userID string) (models.RunSummary, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := o.log.WithRun(runID)

	if err := o.leases.Acquire(userID, runID, LeaseTTL); err != nil {
		if errors.Is(err, repos.ErrLeaseHeld) {
			return models.RunSummary{}, ErrRunInProgress
		}
		return models.RunSummary{}, fmt.Errorf("acquire sync lease: %w", err)
	}
	defer func() {
		if err := o.leases.Release(userID, runID); err != nil {
			log.Error("failed to release sync lease", map[string]any{"error": err.Error()})
		}
	}()

	devices := o.Registry.ListActiveDevices(userID)

	tasks, err := o.Queue.DequeuePending(userID, DefaultBatchSize)
	if err != nil {
		return models.RunSummary{}, fmt.Errorf("dequeue pending tasks: %w", err)
	}

	synced, failed := 0, 0
	for _, task := range tasks {
		if err := o.Queue.MarkSyncing(task.ID); err != nil {
			// Likely claimed by a concurrent producer path; skip, don't abort.
			log.Warn("could not claim task", map[string]any{"task_id": task.ID, "error": err.Error()})
			continue
		}
		if o.Executor.Execute(task) {
			if err := o.Queue.MarkSynced(task.ID); err != nil {
				log.Error("failed to mark task synced", map[string]any{"task_id": task.ID, "error": err.Error()})
				continue
			}
			synced++
		} else {
			if err := o.Queue.MarkFailed(task.ID); err != nil {
				log.Error("failed to mark task failed", map[string]any{"task_id": task.ID, "error": err.Error()})
			}
			failed++
		}
	}

	conflicts, err := o.Detector.Detect(userID)
	if err != nil {
		return models.RunSummary{}, err
	}
	o.Resolver.Resolve(userID, conflicts)

	suggestions := o.Suggestions.Generate(userID, devices)

	if err := o.rebroadcastContexts(userID, devices); err != nil {
		return models.RunSummary{}, err
	}
	if err := o.broadcastSettings(userID, devices, log); err != nil {
		return models.RunSummary{}, err
	}

	purged, err := o.Queue.PurgeSyncedOlderThan(userID, time.Now().UTC().Add(-RetentionWindow))
	if err != nil {
		return models.RunSummary{}, fmt.Errorf("purge synced tasks: %w", err)
	}

	summary := models.RunSummary{
		SyncsProcessed:       synced,
		ConflictsDetected:    len(conflicts),
		SuggestionsGenerated: len(suggestions),
		ExecutionTimeMs:      time.Since(start).Milliseconds(),
	}
	log.Info("sync run complete", map[string]any{
		"user_id":     userID,
		"synced":      synced,
		"failed":      failed,
		"conflicts":   summary.ConflictsDetected,
		"suggestions": summary.SuggestionsGenerated,
		"purged":      purged,
		"duration_ms": summary.ExecutionTimeMs,
	})
	return summary, nil
}

// rebroadcastContexts enqueues one broadcast context task per device that
// has both an open conversation and a scroll position, so the user's place
// follows them to their other devices on the next pass.
func (o *Orchestrator) rebroadcastContexts(userID string, devices []models.DeviceSession) error {
	for _, d := range devices {
		ctx := d.CurrentContext
		if ctx.ActiveConversationID == "" || ctx.ScrollPosition == nil {
			continue
		}
		payload, err := json.Marshal(models.ContextPayload{Context: ctx})
		if err != nil {
			return fmt.Errorf("marshal context payload: %w", err)
		}
		if _, err := o.Queue.Enqueue(userID, d.DeviceID, models.SyncTypeContext, payload, DefaultPriority, nil); err != nil {
			return err
		}
	}
	return nil
}

// broadcastSettings folds the latest preferences record into every active
// device's context. No-op when the user has no preferences yet. Each context
// is re-read here rather than taken from the device snapshot loaded at the
// start of the run: the drain may have delivered context updates since, and
// those must not be overwritten.
func (o *Orchestrator) broadcastSettings(userID string, devices []models.DeviceSession, log *logging.Logger) error {
	prefs, _, err := o.prefs.Get(userID)
	if err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load preferences: %w", err)
	}
	for _, d := range devices {
		s, err := o.sessions.GetByDeviceID(userID, d.DeviceID)
		if err != nil {
			// The device may have vanished between the load and the write.
			log.Warn("settings broadcast skipped device", map[string]any{
				"device_id": d.DeviceID,
				"error":     err.Error(),
			})
			continue
		}
		ctx := s.CurrentContext
		ctx.Preferences = prefs
		ctx.UpdatedAt = time.Now().UTC()
		if err := o.sessions.UpdateContext(userID, d.DeviceID, ctx); err != nil {
			log.Warn("settings broadcast skipped device", map[string]any{
				"device_id": d.DeviceID,
				"error":     err.Error(),
			})
		}
	}
	return nil
}

// QueueOfflineSync lets an external caller (a device going offline) enqueue
// a propagation task without waiting for a full run. The type is not
// validated here: a malformed task must surface as failed after a run, not
// vanish at enqueue time.
func (o *Orchestrator) QueueOfflineSync(userID, deviceID, syncType string, payload json.RawMessage, priority int) (string, error) {
	if priority <= 0 {
		priority = DefaultPriority
	}
	return o.Queue.Enqueue(userID, deviceID, syncType, payload, priority, nil)
}
