package queue

import "whisperd/internal/models"

// SerializeJob builds the result document served by the status endpoint and
// delivered to the callback target. Field names are wire format.
func SerializeJob(job models.JobRecord) map[string]any {
	created := job.CreatedAtMS
	started := created
	if job.StartedAtMS != nil {
		started = *job.StartedAtMS
	}
	finished := started
	if job.FinishedAtMS != nil {
		finished = *job.FinishedAtMS
	}
	queueTime := models.MSToS(started - created)
	processingTime := models.MSToS(finished - started)

	var result any
	if job.Status == models.JobStatusCompleted && job.Result != nil {
		result = map[string]any{
			"text":              job.Result.Text,
			"segments":          job.Result.Segments,
			"queue_time_s":      queueTime,
			"processing_time_s": processingTime,
			"gpu":               job.Result.GPU,
			"token_count":       job.Result.TokenCount,
		}
	}

	var errField any
	if job.Status == models.JobStatusFailed && job.Error != "" {
		errField = job.Error
	}

	var deliveredAt any
	if job.CallbackDeliveredAtMS != nil {
		deliveredAt = *job.CallbackDeliveredAtMS
	}
	var callbackErr any
	if job.CallbackError != "" {
		callbackErr = job.CallbackError
	}

	return map[string]any{
		"job_id":            job.JobID,
		"status":            job.Status,
		"model":             job.Model,
		"language":          job.Language,
		"queue_time_s":      queueTime,
		"processing_time_s": processingTime,
		"result":            result,
		"error":             errField,
		"callback": map[string]any{
			"delivered":       job.CallbackDeliveredAtMS != nil,
			"delivered_at_ms": deliveredAt,
			"error":           callbackErr,
		},
	}
}
