package models

import "time"

// ModelState tracks one enabled whisper model through its download/preparation
// lifecycle. The readiness registry owns all mutation; everything else sees
// copies.
type ModelState struct {
	ID       int64   `json:"id_model"`
	Name     string  `json:"model_name"`
	Enabled  bool    `json:"enabled"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

// JobRecord is the authoritative record of one transcription job. Timestamps
// are unix milliseconds; pointer fields stay nil until the lifecycle reaches
// them.
type JobRecord struct {
	JobID       string
	Status      string
	Model       string
	Language    string
	CallbackURL string

	CreatedAtMS  int64
	StartedAtMS  *int64
	FinishedAtMS *int64

	Result *TranscriptionResult
	Error  string

	CallbackDeliveredAtMS *int64
	CallbackError         string

	// FileDir is the job's working storage: the uploaded input plus any
	// intermediate artifacts. Removed only after successful delivery.
	FileDir string
}

// Segment is one time-aligned piece of a transcript.
type Segment struct {
	ID     int     `json:"id"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Text   string  `json:"text"`
	Tokens []int   `json:"tokens,omitempty"`
}

// GPUStats carries the per-job GPU cost accounting folded into a completed
// job's result.
type GPUStats struct {
	Index               int     `json:"index"`
	UtilAvgPercent      float64 `json:"util_avg_percent"`
	UtilMaxPercent      float64 `json:"util_max_percent"`
	VRAMTotalMB         float64 `json:"vram_total_mb"`
	VRAMUsedAvgMB       float64 `json:"vram_used_avg_mb"`
	VRAMUsedMaxMB       float64 `json:"vram_used_max_mb"`
	VRAMUsedPercent     float64 `json:"vram_used_percent"`
	VRAMUsedPercentMax  float64 `json:"vram_used_percent_max"`
	VRAMPeakAllocatedMB float64 `json:"vram_peak_allocated_mb"`
}

// TranscriptionResult is the payload of a completed job.
type TranscriptionResult struct {
	Text       string    `json:"text"`
	Segments   []Segment `json:"segments"`
	TokenCount int       `json:"token_count"`
	GPU        *GPUStats `json:"gpu,omitempty"`
}

// GPUStatus is the live per-device view served to the dashboard.
type GPUStatus struct {
	Index           int     `json:"index"`
	Name            string  `json:"name"`
	UtilPercent     float64 `json:"util_percent"`
	VRAMUsedMB      float64 `json:"vram_used_mb"`
	VRAMTotalMB     float64 `json:"vram_total_mb"`
	VRAMUsedPercent float64 `json:"vram_used_percent"`
	Status          string  `json:"status"`
	CurrentJobID    *string `json:"current_job_id"`
	CurrentModel    *string `json:"current_model"`
}

// NowMS returns the current wall clock as unix milliseconds.
func NowMS() int64 {
	return time.Now().UnixMilli()
}

// MSToS converts a millisecond difference to seconds.
func MSToS(ms int64) float64 {
	return float64(ms) / 1000.0
}
