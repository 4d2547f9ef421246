package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Downloader fetches remote files to local paths, retrying transient
// failures (network errors, 429 and 5xx responses) with exponential backoff.
type Downloader struct {
	client     *http.Client
	maxRetries uint64
	initial    time.Duration
	logger     *slog.Logger
}

func NewDownloader(logger *slog.Logger) *Downloader {
	return &Downloader{
		client:     &http.Client{Timeout: 30 * time.Second},
		maxRetries: 2,
		initial:    500 * time.Millisecond,
		logger:     logger.With("component", "download"),
	}
}

// WithRetries overrides the retry budget and the first backoff interval.
func (d *Downloader) WithRetries(maxRetries uint64, initial time.Duration) *Downloader {
	d.maxRetries = maxRetries
	d.initial = initial
	return d
}

// StatusError reports a non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d", e.URL, e.Code)
}

// Download writes the body of url to target. The file only appears once the
// whole body has been received; a failed download leaves nothing behind.
func (d *Downloader) Download(ctx context.Context, url, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create poster dir: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.initial
	policy := backoff.WithContext(backoff.WithMaxRetries(b, d.maxRetries), ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := d.fetch(ctx, url, target)
		if err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && se.Code != http.StatusTooManyRequests && se.Code < 500 {
			return backoff.Permanent(err)
		}
		d.logger.Debug("download attempt failed", "url", url, "attempt", attempt, "error", err)
		return err
	}
	return backoff.Retry(op, policy)
}

func (d *Downloader) fetch(ctx context.Context, url, target string) error {
	d.logger.Debug("downloading poster", "url", url, "target", target)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, Code: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("read poster body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
