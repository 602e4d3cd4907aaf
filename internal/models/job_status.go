package models

/*
Job, model and health status constants for use throughout the codebase.
Centralizing these avoids magic strings; the values are wire format and
must not change.
*/

// Job status constants
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Model preparation status constants
const (
	ModelStatusPending     = "queued_for_download"
	ModelStatusDownloading = "downloading"
	ModelStatusReady       = "downloaded"
	ModelStatusFailed      = "error"
)

// Service health status constants
const (
	HealthStarting = "starting"
	HealthReady    = "ready"
	HealthError    = "error"
)
