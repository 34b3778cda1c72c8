package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"device-sync/internal/engine"
	"device-sync/internal/middleware"
	"device-sync/internal/models"
	"device-sync/internal/repos"
)

type SyncHandler struct {
	orc *engine.Orchestrator
}

func NewSyncHandler(orc *engine.Orchestrator) *SyncHandler {
	return &SyncHandler{orc: orc}
}

// Run invokes one synchronization pass for the acting user. This is the
// endpoint the cron/manual trigger hits.
func (h *SyncHandler) Run(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	summary, err := h.orc.Run(userID)
	if err != nil {
		if errors.Is(err, engine.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "run already in progress"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// QueueSync enqueues an offline-sync task without waiting for a full run.
func (h *SyncHandler) QueueSync(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	var body struct {
		DeviceID string          `json:"device_id"`
		SyncType string          `json:"sync_type"`
		Payload  json.RawMessage `json:"payload"`
		Priority int             `json:"priority"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	if strings.TrimSpace(body.DeviceID) == "" || strings.TrimSpace(body.SyncType) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id and sync_type are required"})
		return
	}
	taskID, err := h.orc.QueueOfflineSync(userID, body.DeviceID, body.SyncType, body.Payload, body.Priority)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": taskID})
}

// Heartbeat upserts a device session. Devices call this periodically with
// their current context snapshot.
func (h *SyncHandler) Heartbeat(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	var body struct {
		DeviceID   string               `json:"device_id"`
		DeviceType string               `json:"device_type"`
		DeviceName string               `json:"device_name"`
		IsActive   *bool                `json:"is_active"`
		Context    models.DeviceContext `json:"context"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	if strings.TrimSpace(body.DeviceID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}
	active := true
	if body.IsActive != nil {
		active = *body.IsActive
	}
	session := &models.DeviceSession{
		ID:             uuid.NewString(),
		DeviceID:       strings.TrimSpace(body.DeviceID),
		UserID:         userID,
		DeviceType:     body.DeviceType,
		DeviceName:     body.DeviceName,
		IsActive:       active,
		LastHeartbeat:  time.Now().UTC(),
		CurrentContext: body.Context,
	}
	if err := h.orc.Registry.Heartbeat(session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Devices lists the user's currently active device sessions.
func (h *SyncHandler) Devices(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	devices := h.orc.Registry.ListActiveDevices(userID)
	if devices == nil {
		devices = []models.DeviceSession{}
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// Suggestions returns recent continuity-suggestion findings.
func (h *SyncHandler) Suggestions(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	findings, err := h.orc.Findings.ListByMethod(userID, engine.MethodContinuity, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if findings == nil {
		findings = []models.Finding{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": findings})
}

// FailedTasks exposes the failed backlog for inspection and external
// alerting; these rows are never retried or purged automatically.
func (h *SyncHandler) FailedTasks(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	tasks, err := h.orc.Queue.ListFailed(userID, 100)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if tasks == nil {
		tasks = []models.SyncTask{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *SyncHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repos.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
