package gpu

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"whisperd/internal/models"
)

// minComputeCap is the lowest CUDA compute capability the whisper runner
// accepts.
const minComputeCap = 3.5

// SMI reads device state through the nvidia-smi CLI, the only NVML surface
// guaranteed to be present alongside the driver.
type SMI struct {
	bin string
}

func NewSMI() *SMI {
	return &SMI{bin: "nvidia-smi"}
}

func (s *SMI) query(ctx context.Context, args ...string) ([]string, error) {
	cmd := exec.CommandContext(ctx, s.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("nvidia-smi: %s", msg)
	}
	var lines []string
	for _, ln := range strings.Split(stdout.String(), "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines, nil
}

func (s *SMI) Devices(ctx context.Context) ([]Device, error) {
	if _, err := exec.LookPath(s.bin); err != nil {
		// No driver tooling means no devices, not a hard failure here; the
		// scheduler turns an empty list into its startup error.
		return nil, nil
	}
	lines, err := s.query(ctx, "--query-gpu=index,name", "--format=csv,noheader")
	if err != nil {
		return nil, err
	}
	return parseDeviceList(lines)
}

func (s *SMI) Sample(ctx context.Context, index int) (Metrics, error) {
	lines, err := s.query(ctx,
		"--query-gpu=utilization.gpu,memory.used,memory.total",
		"--format=csv,noheader,nounits",
		"-i", strconv.Itoa(index))
	if err != nil {
		return Metrics{}, err
	}
	if len(lines) == 0 {
		return Metrics{}, fmt.Errorf("nvidia-smi: no output for device %d", index)
	}
	return parseSample(lines[0])
}

func (s *SMI) VerifyCompute(ctx context.Context) error {
	lines, err := s.query(ctx, "--query-gpu=compute_cap", "--format=csv,noheader")
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrNoCUDA, err)
	}
	caps, err := parseComputeCaps(lines)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrNoCUDA, err)
	}
	for i, c := range caps {
		if c < minComputeCap {
			return fmt.Errorf("%w: device %d reports compute capability %.1f, need >= %.1f",
				models.ErrNoCUDA, i, c, minComputeCap)
		}
	}
	return nil
}

// MaxAccountedMB reports the peak process memory NVML accounting recorded
// for a device, in MB. Best effort: returns 0 when accounting mode is off.
func (s *SMI) MaxAccountedMB(ctx context.Context, index int) float64 {
	lines, err := s.query(ctx,
		"--query-accounted-apps=max_memory_usage",
		"--format=csv,noheader,nounits",
		"-i", strconv.Itoa(index))
	if err != nil {
		return 0
	}
	var peak float64
	for _, ln := range lines {
		if v, err := strconv.ParseFloat(strings.TrimSpace(ln), 64); err == nil && v > peak {
			peak = v
		}
	}
	return peak
}

func parseDeviceList(lines []string) ([]Device, error) {
	var devices []Device
	for _, ln := range lines {
		parts := strings.SplitN(ln, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("nvidia-smi: malformed device line %q", ln)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("nvidia-smi: bad device index in %q", ln)
		}
		devices = append(devices, Device{Index: idx, Name: strings.TrimSpace(parts[1])})
	}
	return devices, nil
}

func parseSample(line string) (Metrics, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return Metrics{}, fmt.Errorf("nvidia-smi: malformed metrics line %q", line)
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Metrics{}, fmt.Errorf("nvidia-smi: bad metric in %q", line)
		}
		vals[i] = v
	}
	return Metrics{UtilPercent: vals[0], VRAMUsedMB: vals[1], VRAMTotalMB: vals[2]}, nil
}

func parseComputeCaps(lines []string) ([]float64, error) {
	caps := make([]float64, 0, len(lines))
	for _, ln := range lines {
		v, err := strconv.ParseFloat(strings.TrimSpace(ln), 64)
		if err != nil {
			return nil, fmt.Errorf("unparseable compute capability %q", ln)
		}
		caps = append(caps, v)
	}
	return caps, nil
}
