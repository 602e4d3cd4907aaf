package preprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeArgs(t *testing.T) {
	args := normalizeArgs("/tmp/job/input", "/tmp/job/audio.wav")

	assert.Equal(t, []string{
		"-y",
		"-i", "/tmp/job/input",
		"-ac", "1",
		"-ar", "16000",
		"-af", "silenceremove=start_periods=1:start_silence=0.5:start_threshold=-40dB",
		"/tmp/job/audio.wav",
	}, args)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("  short  ", 512))

	long := strings.Repeat("x", 600) + "END"
	got := tail(long, 512)
	assert.Len(t, got, 512)
	assert.True(t, strings.HasSuffix(got, "END"))
}

func TestNewFFmpegDefaultBinary(t *testing.T) {
	assert.Equal(t, "ffmpeg", NewFFmpeg("").bin)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", NewFFmpeg("/opt/ffmpeg/bin/ffmpeg").bin)
}
