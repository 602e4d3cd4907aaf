// Package transcribe defines the inference collaborator interface and its
// backends. The scheduler treats a Transcriber as a black box: waveform in,
// transcript out, bound to the accelerator index it was given.
package transcribe

import (
	"context"

	"whisperd/internal/models"
)

// Output is what a backend returns for one inference call.
type Output struct {
	Text       string
	Segments   []models.Segment
	TokenCount int
	// VRAMPeakAllocatedMB is the peak allocated memory the backend observed
	// for this execution; 0 when the backend cannot report it.
	VRAMPeakAllocatedMB float64
}

// Transcriber runs inference for one job on one accelerator slot.
type Transcriber interface {
	Transcribe(ctx context.Context, gpuIndex int, wavPath, model, language string) (*Output, error)
	// Check reports whether the backend is usable; called once per
	// readiness cycle before workers start.
	Check(ctx context.Context) error
}
