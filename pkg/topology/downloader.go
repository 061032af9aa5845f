package topology

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Downloader reads a raw topology document from a local path or an
// http(s) URL. HTTP fetches are retried with exponential backoff.
type Downloader struct {
	source     string
	client     *http.Client
	maxRetries uint64
	logger     *slog.Logger
}

func NewDownloader(source string, maxRetries int, logger *slog.Logger) *Downloader {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Downloader{
		source: source,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: uint64(maxRetries),
		logger:     logger.With("component", "topology_downloader"),
	}
}

func (d *Downloader) Source() string { return d.source }

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func (d *Downloader) Download(ctx context.Context) ([]byte, error) {
	if d.source == "" {
		return nil, fmt.Errorf("no topology source configured")
	}
	if !isRemote(d.source) {
		data, err := os.ReadFile(d.source)
		if err != nil {
			return nil, fmt.Errorf("read topology file: %w", err)
		}
		d.logger.Debug("read topology file", "path", d.source, "size_bytes", len(data))
		return data, nil
	}

	start := time.Now()
	var data []byte
	attempt := 0

	op := func() error {
		attempt++
		body, err := d.fetch(ctx)
		if err != nil {
			d.logger.Warn("topology download attempt failed", "attempt", attempt, "error", err)
			return err
		}
		data = body
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("download topology: %w", err)
	}

	d.logger.Info("topology download completed",
		"url", d.source,
		"attempts", attempt,
		"size_bytes", len(data),
		"total_duration_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

func (d *Downloader) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.source, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", "metroplan/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}
