package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"whisperd/internal/gpu"
	"whisperd/internal/models"
	"whisperd/internal/preprocess"
	"whisperd/internal/transcribe"
)

// stopTokenPrefix marks queue sentinels that tell a worker to exit. One
// distinct token per worker is pushed at shutdown so every blocked dequeue
// unblocks exactly once.
const stopTokenPrefix = "__stop__:"

func stopToken(n int) string {
	return fmt.Sprintf("%s%d", stopTokenPrefix, n)
}

// ReadyChecker is the admission gate; satisfied by the readiness registry.
type ReadyChecker interface {
	IsReady(modelName string) bool
}

// SchedulerDeps collects the collaborators a Scheduler drives.
type SchedulerDeps struct {
	Store        *JobStore
	Ready        ReadyChecker
	Metrics      gpu.Source
	Preprocessor preprocess.Preprocessor
	Transcriber  transcribe.Transcriber
	Deliverer    *Deliverer
	Log          *log.Logger
}

// Scheduler owns the shared FIFO queue and one long-lived worker per
// accelerator slot. Jobs are dequeued in submission order; completion order
// across slots is not guaranteed.
type Scheduler struct {
	deps           SchedulerDeps
	queue          chan string
	slots          *SlotTable
	sampleInterval time.Duration

	mu      sync.Mutex
	devices []gpu.Device
	started bool
	wg      sync.WaitGroup
}

func NewScheduler(deps SchedulerDeps, capacity int, sampleInterval time.Duration) *Scheduler {
	if capacity <= 0 {
		capacity = 1024
	}
	if sampleInterval <= 0 {
		sampleInterval = 500 * time.Millisecond
	}
	return &Scheduler{
		deps:           deps,
		queue:          make(chan string, capacity),
		slots:          NewSlotTable(),
		sampleInterval: sampleInterval,
	}
}

// Start discovers the accelerators and launches one worker per slot. It
// fails fast when no device is present, and separately when devices exist
// but cannot run inference.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	devices, err := s.deps.Metrics.Devices(ctx)
	if err != nil {
		return fmt.Errorf("detect GPUs: %w", err)
	}
	if len(devices) == 0 {
		return models.ErrNoDevices
	}
	if err := s.deps.Metrics.VerifyCompute(ctx); err != nil {
		return err
	}

	s.deps.Log.WithField("workers", len(devices)).Info("starting workers")
	s.devices = devices
	for _, dev := range devices {
		s.wg.Add(1)
		go s.workerLoop(dev)
	}
	s.started = true
	return nil
}

// Stop pushes one sentinel per worker and waits for all of them to exit.
// In-flight jobs run to completion first; there is no mid-job cancellation.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	n := len(s.devices)
	s.started = false
	s.mu.Unlock()

	for i := 0; i < n; i++ {
		s.queue <- stopToken(i)
	}
	s.wg.Wait()
}

// Devices returns the slots discovered at startup.
func (s *Scheduler) Devices() []gpu.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gpu.Device, len(s.devices))
	copy(out, s.devices)
	return out
}

// Enqueue records the job and appends it to the shared queue. The record is
// backed out when the queue is at capacity, so a rejected submission leaves
// no trace.
func (s *Scheduler) Enqueue(job models.JobRecord) error {
	s.deps.Store.Insert(job)
	select {
	case s.queue <- job.JobID:
	default:
		s.deps.Store.remove(job.JobID)
		return models.ErrQueueFull
	}
	s.deps.Log.WithFields(log.Fields{
		"job_id":   job.JobID,
		"model":    job.Model,
		"language": job.Language,
	}).Info("job queued")
	return nil
}

func (s *Scheduler) workerLoop(dev gpu.Device) {
	defer s.wg.Done()
	for id := range s.queue {
		if strings.HasPrefix(id, stopTokenPrefix) {
			return
		}
		s.runJob(dev, id)
	}
}

// runJob drives one job through its full lifetime on this worker's slot.
// Failures never escape: every error lands on the job record and the worker
// moves on to the next queue item.
func (s *Scheduler) runJob(dev gpu.Device, jobID string) {
	job, ok := s.deps.Store.Get(jobID)
	if !ok {
		return
	}

	if !s.deps.Ready.IsReady(job.Model) {
		// Fast rejection: no slot bound, no resource consumed.
		s.deps.Store.Update(jobID, func(j *models.JobRecord) {
			j.Status = models.JobStatusFailed
			j.Error = models.ErrModelNotReady.Error()
		})
		s.deps.Log.WithFields(log.Fields{"job_id": jobID, "model": job.Model}).
			Warn("job rejected: model not ready")
		return
	}

	started := models.NowMS()
	s.deps.Store.Update(jobID, func(j *models.JobRecord) {
		j.Status = models.JobStatusRunning
		j.StartedAtMS = &started
	})
	s.slots.Bind(dev.Index, jobID)

	s.deps.Log.WithFields(log.Fields{
		"job_id": jobID,
		"gpu":    dev.Index,
		"model":  job.Model,
	}).Info("job started")

	ctx := context.Background()
	inPath := filepath.Join(job.FileDir, "input")
	wavPath := filepath.Join(job.FileDir, "audio.wav")

	result, jobErr := s.execute(ctx, dev, job, inPath, wavPath)

	finished := models.NowMS()
	s.deps.Store.Update(jobID, func(j *models.JobRecord) {
		if jobErr != nil {
			j.Status = models.JobStatusFailed
			j.Error = jobErr.Error()
		} else {
			j.Status = models.JobStatusCompleted
			j.Result = result
			j.Error = ""
		}
		j.FinishedAtMS = &finished
	})

	// Free the slot before delivery: callback latency must not hold a GPU.
	s.slots.Release(dev.Index)
	if err := os.Remove(wavPath); err != nil && !os.IsNotExist(err) {
		s.deps.Log.WithField("job_id", jobID).WithError(err).Debug("wav cleanup failed")
	}

	if jobErr != nil {
		s.deps.Log.WithField("job_id", jobID).WithError(jobErr).Warn("job failed")
	} else {
		s.deps.Log.WithField("job_id", jobID).Info("job completed")
	}

	s.deps.Deliverer.DeliverAndCleanup(ctx, jobID)
}

// execute runs preprocess then inference with the sampler bound to the same
// slot. The sampler is always joined before returning, so no background
// sampling outlives the job.
func (s *Scheduler) execute(ctx context.Context, dev gpu.Device, job models.JobRecord, inPath, wavPath string) (*models.TranscriptionResult, error) {
	if err := s.deps.Preprocessor.Normalize(ctx, inPath, wavPath); err != nil {
		return nil, err
	}
	s.deps.Log.WithField("job_id", job.JobID).Info("job preprocessed")

	sampler := gpu.NewSampler(s.deps.Metrics, dev.Index, s.sampleInterval)
	sampler.Start()
	out, err := s.deps.Transcriber.Transcribe(ctx, dev.Index, wavPath, job.Model, job.Language)
	stats := sampler.Stop(ctx)
	if err != nil {
		return nil, err
	}

	stats.VRAMPeakAllocatedMB = out.VRAMPeakAllocatedMB
	return &models.TranscriptionResult{
		Text:       out.Text,
		Segments:   out.Segments,
		TokenCount: out.TokenCount,
		GPU:        &stats,
	}, nil
}

// GPUStatuses samples every slot for the dashboard, merging live metrics
// with the current bindings.
func (s *Scheduler) GPUStatuses(ctx context.Context) []models.GPUStatus {
	devices := s.Devices()
	items := make([]models.GPUStatus, 0, len(devices))
	for _, dev := range devices {
		m, err := s.deps.Metrics.Sample(ctx, dev.Index)
		if err != nil {
			m = gpu.Metrics{}
		}
		st := models.GPUStatus{
			Index:       dev.Index,
			Name:        dev.Name,
			UtilPercent: m.UtilPercent,
			VRAMUsedMB:  m.VRAMUsedMB,
			VRAMTotalMB: m.VRAMTotalMB,
			Status:      "idle",
		}
		if m.VRAMTotalMB > 0 {
			st.VRAMUsedPercent = m.VRAMUsedMB / m.VRAMTotalMB * 100.0
		}
		if jobID, ok := s.slots.Current(dev.Index); ok {
			st.Status = "running"
			st.CurrentJobID = &jobID
			if job, ok := s.deps.Store.Get(jobID); ok {
				model := job.Model
				st.CurrentModel = &model
			}
		}
		items = append(items, st)
	}
	return items
}
