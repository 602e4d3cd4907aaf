package apihandlers

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"whisperd/internal/app"
	"whisperd/internal/models"
	"whisperd/internal/queue"
)

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{App: a}
}

// HealthHandler reports the service lifecycle state.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	status, _ := h.App.Health()
	c.JSON(http.StatusOK, gin.H{"status": status})
}

type transcribeForm struct {
	Model       string `form:"model" binding:"required"`
	CallbackURL string `form:"callback_url" binding:"required"`
	Language    string `form:"language"`
}

// TranscribeHandler accepts a transcription submission: multipart audio
// plus model, callback target and optional language.
func (h *APIHandler) TranscribeHandler(c *gin.Context) {
	if !h.App.Ready() {
		status, _ := h.App.Health()
		Unavailable(c, "service not ready: "+status)
		return
	}

	var form transcribeForm
	if err := c.ShouldBind(&form); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "audio file is required")
		return
	}

	if !h.App.Registry.IsReady(form.Model) {
		BadRequest(c, models.ErrUnknownModel.Error())
		return
	}

	jobID := uuid.NewString()
	jobDir := filepath.Join(h.App.Config.Storage.UploadDir, jobID)
	if err := c.SaveUploadedFile(file, filepath.Join(jobDir, "input")); err != nil {
		Internal(c, "failed to store upload: "+err.Error())
		return
	}

	language := form.Language
	if language == "" {
		language = h.App.Config.Whisper.DefaultLanguage
	}

	job := models.JobRecord{
		JobID:       jobID,
		Status:      models.JobStatusQueued,
		Model:       form.Model,
		Language:    language,
		CallbackURL: form.CallbackURL,
		CreatedAtMS: models.NowMS(),
		FileDir:     jobDir,
	}
	if err := h.App.Scheduler.Enqueue(job); err != nil {
		if errors.Is(err, models.ErrQueueFull) {
			Unavailable(c, err.Error())
			return
		}
		Internal(c, err.Error())
		return
	}

	h.App.Log.WithField("job_id", jobID).Info("transcribe accepted")
	c.JSON(http.StatusOK, gin.H{"job_id": jobID})
}

// StatusHandler serves the full result document for one job.
func (h *APIHandler) StatusHandler(c *gin.Context) {
	jobID := c.Query("job_id")
	job, ok := h.App.Store.Get(jobID)
	if !ok {
		NotFound(c, models.ErrJobNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, queue.SerializeJob(job))
}

// QueueHandler serves the queued/running id snapshot.
func (h *APIHandler) QueueHandler(c *gin.Context) {
	queued, running := h.App.Store.SnapshotIDs()
	status := "busy"
	if len(queued) == 0 && len(running) == 0 {
		status = "idle"
	}
	if queued == nil {
		queued = []string{}
	}
	if running == nil {
		running = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "queued": queued, "running": running})
}

// DashboardStateHandler aggregates everything the dashboard renders.
func (h *APIHandler) DashboardStateHandler(c *gin.Context) {
	status, errMsg := h.App.Health()
	var healthErr any
	if errMsg != "" {
		healthErr = errMsg
	}

	total, queued, running := h.App.Store.Counts()
	queuedIDs, runningIDs := h.App.Store.SnapshotIDs()
	if queuedIDs == nil {
		queuedIDs = []string{}
	}
	if runningIDs == nil {
		runningIDs = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"health": gin.H{"status": status, "error": healthErr},
		"models": h.App.Registry.Snapshot(),
		"gpus":   h.App.Scheduler.GPUStatuses(c.Request.Context()),
		"jobs": gin.H{
			"total":       total,
			"queued":      queued,
			"running":     running,
			"queued_ids":  queuedIDs,
			"running_ids": runningIDs,
		},
		"refresh_ms": h.App.Config.Dashboard.RefreshMS,
	})
}

// DashboardHandler serves the static dashboard page.
func (h *APIHandler) DashboardHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(dashboardPage(h.App.Config.Dashboard.RefreshMS)))
}
