// Package queue holds the scheduling core: the authoritative job store, the
// per-GPU worker pool fed by one shared FIFO queue, and the single-attempt
// callback delivery with conditional cleanup.
package queue

import (
	"sync"

	"whisperd/internal/models"
)

// JobStore is the authoritative map of every job submitted during this
// process's lifetime. Accepted jobs are never removed, so status queries
// stay valid after completion; only the on-disk working storage goes away.
//
// Writes go through Update under the lock; reads hand out copies so the
// dashboard and status endpoints never observe a job mid-mutation.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*models.JobRecord
	order []string
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*models.JobRecord)}
}

func (s *JobStore) Insert(job models.JobRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.JobID]; exists {
		return
	}
	j := job
	s.jobs[job.JobID] = &j
	s.order = append(s.order, job.JobID)
}

// remove backs out a record whose enqueue failed; it is never called for a
// job a worker could have seen.
func (s *JobStore) remove(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	for i, id := range s.order {
		if id == jobID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the job record.
func (s *JobStore) Get(jobID string) (models.JobRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return models.JobRecord{}, false
	}
	return *j, true
}

// Update applies fn to the job under the write lock. Only the worker that
// owns a job (and delivery, after terminal status) may call this.
func (s *JobStore) Update(jobID string, fn func(*models.JobRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return false
	}
	fn(j)
	return true
}

// SnapshotIDs returns queued and running job ids in submission order.
func (s *JobStore) SnapshotIDs() (queued, running []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		switch s.jobs[id].Status {
		case models.JobStatusQueued:
			queued = append(queued, id)
		case models.JobStatusRunning:
			running = append(running, id)
		}
	}
	return queued, running
}

// Counts returns total/queued/running tallies for the dashboard.
func (s *JobStore) Counts() (total, queued, running int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total = len(s.jobs)
	for _, j := range s.jobs {
		switch j.Status {
		case models.JobStatusQueued:
			queued++
		case models.JobStatusRunning:
			running++
		}
	}
	return total, queued, running
}
