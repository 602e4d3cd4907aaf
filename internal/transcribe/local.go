package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"whisperd/internal/models"
)

// PeakReader reports the peak allocated VRAM (MB) the accelerator recorded
// for the most recent execution on a device. May return 0 when unavailable.
type PeakReader func(ctx context.Context, index int) float64

// LocalWhisper runs the whisper CLI on the node's own GPUs. The process is
// pinned to its slot via CUDA_VISIBLE_DEVICES so one invocation can never
// touch another worker's device.
type LocalWhisper struct {
	bin              string
	modelCacheDir    string
	temperature      float64
	logprobThreshold float64
	peak             PeakReader
}

func NewLocalWhisper(bin, modelCacheDir string, temperature, logprobThreshold float64, peak PeakReader) *LocalWhisper {
	if bin == "" {
		bin = "whisper-cli"
	}
	return &LocalWhisper{
		bin:              bin,
		modelCacheDir:    modelCacheDir,
		temperature:      temperature,
		logprobThreshold: logprobThreshold,
		peak:             peak,
	}
}

func (w *LocalWhisper) Check(ctx context.Context) error {
	if _, err := exec.LookPath(w.bin); err != nil {
		return fmt.Errorf("whisper binary %q not found in PATH: %w", w.bin, err)
	}
	return nil
}

// ModelPath returns where the cached checkpoint for a model name lives.
func (w *LocalWhisper) ModelPath(model string) string {
	return filepath.Join(w.modelCacheDir, "ggml-"+model+".bin")
}

func (w *LocalWhisper) Transcribe(ctx context.Context, gpuIndex int, wavPath, model, language string) (*Output, error) {
	outPrefix := strings.TrimSuffix(wavPath, filepath.Ext(wavPath))
	args := []string{
		"-m", w.ModelPath(model),
		"-f", wavPath,
		"-l", strings.ToLower(language),
		"-ojf",
		"-of", outPrefix,
		"--temperature", strconv.FormatFloat(w.temperature, 'f', -1, 64),
		"--logprob-thold", strconv.FormatFloat(w.logprobThreshold, 'f', -1, 64),
	}

	cmd := exec.CommandContext(ctx, w.bin, args...)
	// The runner binds to the slot it was handed; inside the process the
	// only visible device is cuda:0.
	cmd.Env = append(os.Environ(), "CUDA_VISIBLE_DEVICES="+strconv.Itoa(gpuIndex))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return nil, fmt.Errorf("whisper inference failed: %s", msg)
	}

	jsonPath := outPrefix + ".json"
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	defer os.Remove(jsonPath)

	out, err := parseWhisperJSON(data)
	if err != nil {
		return nil, err
	}
	if w.peak != nil {
		out.VRAMPeakAllocatedMB = w.peak(ctx, gpuIndex)
	}
	return out, nil
}

// --- whisper CLI JSON output ---

type whisperJSON struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text   string `json:"text"`
		Tokens []struct {
			ID int `json:"id"`
		} `json:"tokens"`
	} `json:"transcription"`
}

func parseWhisperJSON(data []byte) (*Output, error) {
	var doc whisperJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode whisper output: %w", err)
	}

	var sb strings.Builder
	segments := make([]models.Segment, 0, len(doc.Transcription))
	tokenTotal := 0
	for i, seg := range doc.Transcription {
		text := strings.TrimSpace(seg.Text)
		sb.WriteString(text)
		sb.WriteString("\n")
		ids := make([]int, 0, len(seg.Tokens))
		for _, t := range seg.Tokens {
			ids = append(ids, t.ID)
		}
		tokenTotal += len(ids)
		segments = append(segments, models.Segment{
			ID:     i,
			Start:  float64(seg.Offsets.From) / 1000.0,
			End:    float64(seg.Offsets.To) / 1000.0,
			Text:   text,
			Tokens: ids,
		})
	}

	text := PostprocessText(sb.String())
	if text == "" {
		tokenTotal = 0
	}
	return &Output{Text: text, Segments: segments, TokenCount: tokenTotal}, nil
}
