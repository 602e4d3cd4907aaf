package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisperd/internal/models"
	"whisperd/internal/queue"
)

func TestJobStoreInsertAndGet(t *testing.T) {
	store := queue.NewJobStore()

	store.Insert(models.JobRecord{
		JobID:       "a",
		Status:      models.JobStatusQueued,
		Model:       "base",
		CreatedAtMS: 1000,
	})

	job, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, "base", job.Model)
	assert.Equal(t, models.JobStatusQueued, job.Status)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestJobStoreGetReturnsCopy(t *testing.T) {
	store := queue.NewJobStore()
	store.Insert(models.JobRecord{JobID: "a", Status: models.JobStatusQueued})

	job, _ := store.Get("a")
	job.Status = models.JobStatusFailed

	again, _ := store.Get("a")
	assert.Equal(t, models.JobStatusQueued, again.Status, "mutating a snapshot must not touch the store")
}

func TestJobStoreSnapshotOrder(t *testing.T) {
	store := queue.NewJobStore()
	for _, id := range []string{"j1", "j2", "j3"} {
		store.Insert(models.JobRecord{JobID: id, Status: models.JobStatusQueued})
	}
	store.Update("j2", func(j *models.JobRecord) { j.Status = models.JobStatusRunning })

	queued, running := store.SnapshotIDs()
	assert.Equal(t, []string{"j1", "j3"}, queued)
	assert.Equal(t, []string{"j2"}, running)

	total, q, r := store.Counts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, q)
	assert.Equal(t, 1, r)
}

func TestJobStoreUpdateMissing(t *testing.T) {
	store := queue.NewJobStore()
	ok := store.Update("nope", func(j *models.JobRecord) { j.Status = models.JobStatusFailed })
	assert.False(t, ok)
}
