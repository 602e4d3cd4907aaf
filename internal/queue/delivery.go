package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"whisperd/internal/models"
)

// Deliverer performs the single outbound notification for a terminal job
// and, only on success, erases the job's working storage. At-most-once by
// design: a failed delivery is recorded on the job and never retried, and
// the storage is left intact for operators to inspect.
type Deliverer struct {
	store  *JobStore
	client *http.Client
	log    *log.Logger
}

func NewDeliverer(store *JobStore, timeout time.Duration, logger *log.Logger) *Deliverer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Deliverer{
		store:  store,
		client: &http.Client{Timeout: timeout},
		log:    logger,
	}
}

func (d *Deliverer) DeliverAndCleanup(ctx context.Context, jobID string) {
	job, ok := d.store.Get(jobID)
	if !ok {
		return
	}

	if err := d.post(ctx, job); err != nil {
		d.store.Update(jobID, func(j *models.JobRecord) {
			j.CallbackError = err.Error()
		})
		d.log.WithField("job_id", jobID).WithError(err).Warn("callback failed")
		return
	}

	delivered := models.NowMS()
	d.store.Update(jobID, func(j *models.JobRecord) {
		j.CallbackDeliveredAtMS = &delivered
		j.CallbackError = ""
	})
	d.log.WithField("job_id", jobID).Info("callback delivered")

	// Cleanup outcome is independent of delivery: a filesystem error here is
	// logged and swallowed, never reflected back onto the job.
	if err := os.RemoveAll(job.FileDir); err != nil {
		d.log.WithField("job_id", jobID).WithError(err).Warn("cleanup failed")
		return
	}
	d.log.WithField("job_id", jobID).Info("job cleaned up")
}

func (d *Deliverer) post(ctx context.Context, job models.JobRecord) error {
	body, err := json.Marshal(SerializeJob(job))
	if err != nil {
		return fmt.Errorf("encode callback payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}
