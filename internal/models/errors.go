package models

import "errors"

var (
	// ErrJobNotFound is returned when a job id is not present in the store.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnknownModel is returned at admission time for a model that is not
	// enabled or has not finished preparation.
	ErrUnknownModel = errors.New("unknown model")

	// ErrModelNotReady is the per-job failure reason when a worker dequeues
	// a job whose model lost readiness after admission.
	ErrModelNotReady = errors.New("unknown or unready model")

	// ErrQueueFull is returned when the submission backlog is at capacity.
	ErrQueueFull = errors.New("job queue is full")

	// ErrNoDevices indicates that no accelerator was detected at startup.
	ErrNoDevices = errors.New("no NVIDIA GPUs detected")

	// ErrNoCUDA indicates devices were detected but lack the compute
	// capability required for inference.
	ErrNoCUDA = errors.New("detected GPUs lack required compute capability")
)
