package apihandlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisperd/internal/apihandlers"
	"whisperd/internal/app"
	"whisperd/internal/catalog"
	"whisperd/internal/config"
	"whisperd/internal/gpu"
	"whisperd/internal/models"
	"whisperd/internal/queue"
	"whisperd/internal/registry"
	"whisperd/internal/transcribe"
)

type fakeCatalog struct {
	rows []catalog.Model
}

func (f *fakeCatalog) ListEnabledModels(ctx context.Context) ([]catalog.Model, error) {
	return f.rows, nil
}
func (f *fakeCatalog) Ping(ctx context.Context) error { return nil }
func (f *fakeCatalog) Close() error                   { return nil }

type okDownloader struct{}

func (okDownloader) Fetch(ctx context.Context, modelName string) error { return nil }

type idleSource struct{}

func (idleSource) Devices(ctx context.Context) ([]gpu.Device, error) { return nil, nil }
func (idleSource) Sample(ctx context.Context, index int) (gpu.Metrics, error) {
	return gpu.Metrics{}, nil
}
func (idleSource) VerifyCompute(ctx context.Context) error { return nil }

type noopPreprocessor struct{}

func (noopPreprocessor) Normalize(ctx context.Context, in, out string) error { return nil }

type noopTranscriber struct{}

func (noopTranscriber) Check(ctx context.Context) error { return nil }
func (noopTranscriber) Transcribe(ctx context.Context, gpuIndex int, wavPath, model, language string) (*transcribe.Output, error) {
	return &transcribe.Output{}, nil
}

// newTestApp wires an app with a ready registry for model "base" and a
// scheduler that is never started, so accepted jobs stay queued.
func newTestApp(t *testing.T) *app.App {
	t.Helper()

	cfg := &config.Config{}
	cfg.Storage.UploadDir = t.TempDir()
	cfg.Whisper.DefaultLanguage = "Russian"
	cfg.Dashboard.RefreshMS = 2000

	logger := log.New()
	logger.SetOutput(io.Discard)

	cat := &fakeCatalog{rows: []catalog.Model{{ID: 1, Name: "base"}}}
	reg := registry.New(cat, okDownloader{}, 3, logger)
	require.NoError(t, reg.LoadAndPrepare(context.Background()))

	store := queue.NewJobStore()
	sched := queue.NewScheduler(queue.SchedulerDeps{
		Store:        store,
		Ready:        reg,
		Metrics:      idleSource{},
		Preprocessor: noopPreprocessor{},
		Transcriber:  noopTranscriber{},
		Deliverer:    queue.NewDeliverer(store, time.Second, logger),
		Log:          logger,
	}, 8, time.Millisecond)

	a := &app.App{
		Config:    cfg,
		Log:       logger,
		Catalog:   cat,
		Registry:  reg,
		Store:     store,
		Scheduler: sched,
		Metrics:   idleSource{},
	}
	a.SetHealth(models.HealthReady, "")
	return a
}

func newRouter(a *app.App) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := apihandlers.NewAPIHandler(a)
	router.GET("/health", h.HealthHandler)
	router.POST("/transcribe", h.TranscribeHandler)
	router.GET("/status", h.StatusHandler)
	router.GET("/queue", h.QueueHandler)
	router.GET("/dashboard/state", h.DashboardStateHandler)
	return router
}

func multipartBody(t *testing.T, fields map[string]string, withFile bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if withFile {
		fw, err := w.CreateFormFile("file", "audio.ogg")
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake-audio"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHealthHandler(t *testing.T) {
	a := newTestApp(t)
	router := newRouter(a)

	a.SetHealth(models.HealthStarting, "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"starting"}`, rec.Body.String())

	a.SetHealth(models.HealthReady, "")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestTranscribeRejectedWhileStarting(t *testing.T) {
	a := newTestApp(t)
	a.SetHealth(models.HealthStarting, "")
	router := newRouter(a)

	body, ctype := multipartBody(t, map[string]string{
		"model":        "base",
		"callback_url": "http://example.com/cb",
	}, true)
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", ctype)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTranscribeUnknownModel(t *testing.T) {
	router := newRouter(newTestApp(t))

	body, ctype := multipartBody(t, map[string]string{
		"model":        "large-v3",
		"callback_url": "http://example.com/cb",
	}, true)
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", ctype)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown model")
}

func TestTranscribeMissingFields(t *testing.T) {
	router := newRouter(newTestApp(t))

	body, ctype := multipartBody(t, map[string]string{"model": "base"}, true)
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", ctype)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranscribeMissingFile(t *testing.T) {
	router := newRouter(newTestApp(t))

	body, ctype := multipartBody(t, map[string]string{
		"model":        "base",
		"callback_url": "http://example.com/cb",
	}, false)
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", ctype)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "audio file is required")
}

func TestTranscribeAccepted(t *testing.T) {
	a := newTestApp(t)
	router := newRouter(a)

	body, ctype := multipartBody(t, map[string]string{
		"model":        "base",
		"callback_url": "http://example.com/cb",
	}, true)
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", ctype)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)

	job, ok := a.Store.Get(resp.JobID)
	require.True(t, ok)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, "base", job.Model)
	assert.Equal(t, "Russian", job.Language, "empty language falls back to the default")
	assert.Equal(t, "http://example.com/cb", job.CallbackURL)
}

func TestStatusHandler(t *testing.T) {
	a := newTestApp(t)
	router := newRouter(a)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status?job_id=missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	a.Store.Insert(models.JobRecord{
		JobID:       "j1",
		Status:      models.JobStatusQueued,
		Model:       "base",
		CreatedAtMS: models.NowMS(),
	})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status?job_id=j1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "j1", doc["job_id"])
	assert.Equal(t, "queued", doc["status"])
}

func TestQueueHandler(t *testing.T) {
	a := newTestApp(t)
	router := newRouter(a)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queue", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"idle","queued":[],"running":[]}`, rec.Body.String())

	a.Store.Insert(models.JobRecord{JobID: "j1", Status: models.JobStatusQueued})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queue", nil))
	assert.JSONEq(t, `{"status":"busy","queued":["j1"],"running":[]}`, rec.Body.String())
}

func TestDashboardStateHandler(t *testing.T) {
	a := newTestApp(t)
	router := newRouter(a)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Health struct {
			Status string `json:"status"`
		} `json:"health"`
		Models    []models.ModelState `json:"models"`
		RefreshMS int                 `json:"refresh_ms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "ready", doc.Health.Status)
	assert.Equal(t, 2000, doc.RefreshMS)
	require.Len(t, doc.Models, 1)
	assert.Equal(t, "base", doc.Models[0].Name)
	assert.Equal(t, models.ModelStatusReady, doc.Models[0].Status)
}
