// Package registry tracks per-model preparation state and gates job
// admission: only models it has marked ready may be assigned work.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"whisperd/internal/catalog"
	"whisperd/internal/models"
)

// maxBackoff caps the exponential wait between download attempts.
const maxBackoff = 30 * time.Second

// Downloader prepares one model's checkpoint so the runner can load it.
type Downloader interface {
	Fetch(ctx context.Context, modelName string) error
}

// Registry holds the model state set. All mutation happens under one mutex;
// readers get copies so the scheduler's admission check never blocks a
// download in progress.
type Registry struct {
	mu     sync.Mutex
	models map[string]models.ModelState

	catalog  catalog.Catalog
	dl       Downloader
	attempts int
	log      *log.Logger
}

func New(cat catalog.Catalog, dl Downloader, attempts int, logger *log.Logger) *Registry {
	if attempts <= 0 {
		attempts = 3
	}
	return &Registry{
		models:   make(map[string]models.ModelState),
		catalog:  cat,
		dl:       dl,
		attempts: attempts,
		log:      logger,
	}
}

// LoadAndPrepare reads the enabled model set from the catalog, swaps the
// in-memory state set atomically, then downloads every model. It returns an
// error when any model is still not ready afterwards; the caller retries the
// whole cycle after a cooldown instead of crashing.
func (r *Registry) LoadAndPrepare(ctx context.Context) error {
	r.log.Info("loading models from catalog")
	rows, err := r.catalog.ListEnabledModels(ctx)
	if err != nil {
		return fmt.Errorf("load model catalog: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no enabled whisper models")
	}

	fresh := make(map[string]models.ModelState, len(rows))
	for _, row := range rows {
		fresh[row.Name] = models.ModelState{
			ID:      row.ID,
			Name:    row.Name,
			Enabled: true,
			Status:  models.ModelStatusPending,
		}
	}
	r.mu.Lock()
	r.models = fresh
	r.mu.Unlock()

	r.log.WithField("count", len(fresh)).Info("enabled whisper models")

	names := make([]string, 0, len(fresh))
	for name := range fresh {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.prepare(ctx, name); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if summary := r.UnreadySummary(); summary != "" {
		return fmt.Errorf("models not ready: %s", summary)
	}
	return nil
}

// prepare drives one model through up to r.attempts download attempts with
// capped exponential backoff.
func (r *Registry) prepare(ctx context.Context, name string) error {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		r.setState(name, models.ModelStatusDownloading, 0, "")
		r.log.WithField("model", name).Info("downloading model")

		err := r.dl.Fetch(ctx, name)
		if err == nil {
			r.setState(name, models.ModelStatusReady, 100, "")
			r.log.WithField("model", name).Info("model downloaded")
			return nil
		}

		lastErr = err
		r.setState(name, models.ModelStatusFailed, 0, err.Error())
		r.log.WithFields(log.Fields{
			"model":   name,
			"attempt": attempt + 1,
			"of":      r.attempts,
		}).WithError(err).Warn("model download failed")

		if attempt+1 < r.attempts {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			if wait > maxBackoff {
				wait = maxBackoff
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return lastErr
}

// IsReady reports whether a model may be assigned new jobs.
func (r *Registry) IsReady(modelName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[modelName]
	return ok && m.Status == models.ModelStatusReady
}

// UnreadySummary lists non-ready models with status and error, for
// operators. Empty string when everything is ready.
func (r *Registry) UnreadySummary() string {
	var bad []string
	for _, m := range r.Snapshot() {
		if m.Status != models.ModelStatusReady {
			detail := fmt.Sprintf("%s(status=%s", m.Name, m.Status)
			if m.Error != "" {
				detail += ", error=" + m.Error
			}
			bad = append(bad, detail+")")
		}
	}
	return strings.Join(bad, ", ")
}

// Snapshot returns a point-in-time copy of all model states, sorted by name.
func (r *Registry) Snapshot() []models.ModelState {
	r.mu.Lock()
	out := make([]models.ModelState, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) setState(name, status string, progress float64, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[name]
	if !ok {
		return
	}
	m.Status = status
	m.Progress = progress
	m.Error = errMsg
	r.models[name] = m
}
