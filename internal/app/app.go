// Package app wires the service's components together and owns the
// readiness lifecycle: the process starts serving HTTP immediately but stays
// in a non-ready state, retrying the preparation cycle, until the
// environment checks pass, every enabled model is prepared and the workers
// are running.
package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"whisperd/internal/catalog"
	"whisperd/internal/config"
	"whisperd/internal/gpu"
	"whisperd/internal/models"
	"whisperd/internal/preprocess"
	"whisperd/internal/queue"
	"whisperd/internal/registry"
	"whisperd/internal/transcribe"
)

type App struct {
	Config *config.Config
	Log    *log.Logger

	Catalog      catalog.Catalog
	Registry     *registry.Registry
	Store        *queue.JobStore
	Scheduler    *queue.Scheduler
	Metrics      gpu.Source
	Preprocessor *preprocess.FFmpeg
	Transcriber  transcribe.Transcriber

	healthMu     sync.Mutex
	healthStatus string
	healthError  string

	initCancel context.CancelFunc
	initDone   chan struct{}
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cat, err := catalog.Open(context.Background(), cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("init model catalog: %w", err)
	}

	smi := gpu.NewSMI()
	ffmpeg := preprocess.NewFFmpeg(cfg.Whisper.FFmpeg)

	var tr transcribe.Transcriber
	switch cfg.Transcriber.Backend {
	case "openai":
		tr, err = transcribe.NewOpenAIWhisper(cfg.Transcriber.OpenAIAPIKey)
		if err != nil {
			cat.Close()
			return nil, fmt.Errorf("init transcriber: %w", err)
		}
	case "local", "":
		tr = transcribe.NewLocalWhisper(
			cfg.Whisper.Bin,
			cfg.Storage.ModelCacheDir,
			cfg.Whisper.Temperature,
			cfg.Whisper.LogprobThreshold,
			smi.MaxAccountedMB,
		)
	default:
		cat.Close()
		return nil, fmt.Errorf("unknown transcriber backend %q", cfg.Transcriber.Backend)
	}

	dl := registry.NewHTTPDownloader(
		cfg.Storage.ModelCacheDir,
		cfg.Models.DownloadBaseURL,
		cfg.Models.DownloadTimeout,
	)
	reg := registry.New(cat, dl, cfg.Models.DownloadAttempts, logger)

	store := queue.NewJobStore()
	deliverer := queue.NewDeliverer(store, cfg.Callback.Timeout, logger)
	sched := queue.NewScheduler(queue.SchedulerDeps{
		Store:        store,
		Ready:        reg,
		Metrics:      smi,
		Preprocessor: ffmpeg,
		Transcriber:  tr,
		Deliverer:    deliverer,
		Log:          logger,
	}, cfg.Queue.Capacity, cfg.Sampler.Interval)

	return &App{
		Config:       cfg,
		Log:          logger,
		Catalog:      cat,
		Registry:     reg,
		Store:        store,
		Scheduler:    sched,
		Metrics:      smi,
		Preprocessor: ffmpeg,
		Transcriber:  tr,
		healthStatus: models.HealthStarting,
	}, nil
}

// Startup creates the data directories and kicks off initialization in the
// background; the HTTP surface is usable immediately and reports
// starting/error until the cycle succeeds.
func (a *App) Startup() error {
	for _, dir := range []string{
		a.Config.Storage.DataDir,
		a.Config.Storage.UploadDir,
		a.Config.Storage.ModelCacheDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.initCancel = cancel
	a.initDone = make(chan struct{})
	go a.initialize(ctx)
	return nil
}

// initialize retries the whole preparation cycle after a cooldown until it
// succeeds. Staying degraded beats crashing when a model backend is
// transiently unreachable.
func (a *App) initialize(ctx context.Context) {
	defer close(a.initDone)
	for {
		err := a.initOnce(ctx)
		if err == nil {
			a.SetHealth(models.HealthReady, "")
			a.Log.Info("service ready")
			return
		}
		if ctx.Err() != nil {
			return
		}
		a.SetHealth(models.HealthError, err.Error())
		a.Log.WithError(err).Error("service failed to initialize, will retry")

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.Config.Models.RetryCooldown):
		}
	}
}

func (a *App) initOnce(ctx context.Context) error {
	a.Log.Info("initializing service")
	if err := a.Preprocessor.Check(); err != nil {
		return err
	}
	if err := a.Transcriber.Check(ctx); err != nil {
		return err
	}
	if err := a.Registry.LoadAndPrepare(ctx); err != nil {
		return err
	}
	return a.Scheduler.Start(ctx)
}

// Health returns the current status and error message, if any.
func (a *App) Health() (status, errMsg string) {
	a.healthMu.Lock()
	defer a.healthMu.Unlock()
	return a.healthStatus, a.healthError
}

// SetHealth replaces the health state.
func (a *App) SetHealth(status, errMsg string) {
	a.healthMu.Lock()
	defer a.healthMu.Unlock()
	a.healthStatus = status
	a.healthError = errMsg
}

// Ready reports whether submissions are currently accepted.
func (a *App) Ready() bool {
	status, _ := a.Health()
	return status == models.HealthReady
}

// Shutdown stops initialization if still in flight, drains the workers and
// releases the catalog. In-flight inference runs to completion.
func (a *App) Shutdown() {
	if a.initCancel != nil {
		a.initCancel()
		<-a.initDone
	}
	a.Scheduler.Stop()
	if a.Catalog != nil {
		a.Catalog.Close()
	}
}
