// Package gpu discovers the node's accelerators and samples their
// utilization and memory while jobs run on them.
package gpu

import "context"

// Device is one accelerator discovered at startup. The scheduler creates one
// worker per device and binds at most one job to it at a time.
type Device struct {
	Index int
	Name  string
}

// Metrics is one point-in-time reading for a device.
type Metrics struct {
	UtilPercent float64
	VRAMUsedMB  float64
	VRAMTotalMB float64
}

// Source provides device discovery and live metrics. Implementations must be
// safe for concurrent use: the scheduler's samplers and the dashboard read
// path call Sample at the same time.
type Source interface {
	Devices(ctx context.Context) ([]Device, error)
	Sample(ctx context.Context, index int) (Metrics, error)
	// VerifyCompute reports an error when devices are present but lack the
	// compute capability required for inference.
	VerifyCompute(ctx context.Context) error
}
