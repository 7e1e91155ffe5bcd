package cdse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/postfire-sar-etl/internal/observability"
)

// Downloader fetches product archives into a local directory, skipping
// any archive that is already on disk.
type Downloader struct {
	tokens     *tokenSource
	httpClient *http.Client
	outputDir  string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewDownloader creates a Downloader that authenticates against tokenURL
// and writes archives into outputDir.
func NewDownloader(username, password, tokenURL, outputDir string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Downloader {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	return &Downloader{
		tokens:     newTokenSource(username, password, tokenURL, httpClient),
		httpClient: httpClient,
		outputDir:  outputDir,
		logger:     logger,
		metrics:    metrics,
	}
}

// Download fetches every product archive that is not already present,
// returning the local paths of the archives it wrote. The first failed
// download aborts the batch; archives already written stay on disk and
// are skipped on the next attempt.
func (d *Downloader) Download(ctx context.Context, products []Product) ([]string, error) {
	if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	var fetched []string
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return fetched, err
		}
		path, err := d.downloadOne(ctx, p)
		if err != nil {
			return fetched, fmt.Errorf("download %s: %w", p.Title, err)
		}
		if path != "" {
			fetched = append(fetched, path)
		}
	}
	return fetched, nil
}

// downloadOne fetches one archive, returning "" when it already exists.
func (d *Downloader) downloadOne(ctx context.Context, p Product) (string, error) {
	name := p.Title
	if !strings.HasSuffix(strings.ToLower(name), ".zip") {
		name += ".zip"
	}
	path := filepath.Join(d.outputDir, name)

	if _, err := os.Stat(path); err == nil {
		d.logger.Debug("archive already downloaded", "path", path)
		return "", nil
	}

	token, err := d.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.DownloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("CDSE API error: status %d: %s", resp.StatusCode, body)
	}

	// Stream to a temp name and rename so a partial download never looks
	// like a complete archive to the directory scan.
	part := path + ".part"
	written, err := writeStream(part, resp.Body)
	if err != nil {
		os.Remove(part)
		return "", err
	}
	if err := os.Rename(part, path); err != nil {
		os.Remove(part)
		return "", fmt.Errorf("finalize archive: %w", err)
	}

	elapsed := time.Since(start)
	if d.metrics != nil {
		d.metrics.DownloadsTotal.Inc()
		d.metrics.DownloadBytes.Add(float64(written))
		d.metrics.DownloadDuration.Observe(elapsed.Seconds())
	}
	d.logger.Info("downloaded archive",
		"path", path, "bytes", written, "duration", elapsed.Round(time.Millisecond).String())
	return path, nil
}

func writeStream(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create archive file: %w", err)
	}
	written, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return written, fmt.Errorf("write archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return written, fmt.Errorf("sync archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close archive: %w", err)
	}
	return written, nil
}
