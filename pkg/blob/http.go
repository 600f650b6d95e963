package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTP reads a published ledger, e.g. the data.js of a GitHub Pages site.
// It cannot be written.
type HTTP struct {
	URL        string
	Client     *http.Client
	MaxRetries int
	Backoff    time.Duration // multiplied by the attempt number
}

// NewHTTP returns a read-only blob for url
func NewHTTP(url string) *HTTP {
	return &HTTP{
		URL:        url,
		Client:     &http.Client{Timeout: 30 * time.Second},
		MaxRetries: 5,
		Backoff:    time.Second,
	}
}

// Read fetches the object, retrying transport errors and 5xx responses
func (h *HTTP) Read(ctx context.Context) ([]byte, error) {
	attempts := h.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(h.Backoff * time.Duration(attempt-1)):
			}
		}

		data, retry, err := h.fetch(ctx)
		if err == nil {
			return data, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func (h *HTTP) fetch(ctx context.Context) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build request: %w", err)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrNotFound
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}
	return data, false, nil
}

// Write always fails with ErrReadOnly
func (h *HTTP) Write(ctx context.Context, data []byte) error {
	return ErrReadOnly
}
