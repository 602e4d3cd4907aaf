package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HTTPDownloader fetches model checkpoints into the local cache directory.
// A fetch is idempotent: an already-cached checkpoint is a no-op, so retry
// cycles after partial failures only touch the missing models.
type HTTPDownloader struct {
	cacheDir string
	baseURL  string
	client   *http.Client
}

func NewHTTPDownloader(cacheDir, baseURL string, timeout time.Duration) *HTTPDownloader {
	return &HTTPDownloader{
		cacheDir: cacheDir,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDownloader) checkpointPath(modelName string) string {
	return filepath.Join(d.cacheDir, "ggml-"+modelName+".bin")
}

func (d *HTTPDownloader) Fetch(ctx context.Context, modelName string) error {
	dst := d.checkpointPath(modelName)
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	if err := os.MkdirAll(d.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create model cache dir: %w", err)
	}

	url := fmt.Sprintf("%s/ggml-%s.bin", d.baseURL, modelName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build model download request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download model %s: %w", modelName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download model %s: unexpected status %s", modelName, resp.Status)
	}

	// Write to a temp name and rename so a torn download never looks cached.
	tmp, err := os.CreateTemp(d.cacheDir, "."+modelName+"-*.part")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint for %s: %w", modelName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint for %s: %w", modelName, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("install checkpoint for %s: %w", modelName, err)
	}
	return nil
}
