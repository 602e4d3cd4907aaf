// Package preprocess normalizes submitted audio into the canonical waveform
// the transcriber expects: mono, 16 kHz, leading silence trimmed.
package preprocess

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Preprocessor is the normalization collaborator. Failure is fatal to the
// job that submitted the audio; it is never retried.
type Preprocessor interface {
	Normalize(ctx context.Context, inputPath, outputPath string) error
}

// FFmpeg shells out to ffmpeg, the same way every deployment of this
// pipeline has done.
type FFmpeg struct {
	bin string
}

func NewFFmpeg(bin string) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin}
}

// Check verifies the binary is reachable; called once per readiness cycle.
func (f *FFmpeg) Check() error {
	if _, err := exec.LookPath(f.bin); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return nil
}

func (f *FFmpeg) Normalize(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, f.bin, normalizeArgs(inputPath, outputPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg preprocessing failed: %s", tail(stderr.String(), 512))
	}
	return nil
}

func normalizeArgs(inputPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-ac", "1",
		"-ar", "16000",
		"-af", "silenceremove=start_periods=1:start_silence=0.5:start_threshold=-40dB",
		outputPath,
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
