package imaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrFetch is returned when a remote reference image cannot be retrieved.
// Fetches are single-attempt; a failure aborts the whole call.
var ErrFetch = errors.New("imaging: fetch failed")

// defaultFetchTimeout bounds a single reference download.
const defaultFetchTimeout = 30 * time.Second

// Fetcher retrieves remote images for use as generation references. Requests
// carry browser-like headers because some hosts reject default tooling
// user-agents.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with the given timeout, or the 30s default
// when non-positive.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads the resource at url and returns its raw bytes. Non-2xx
// responses and transport failures wrap ErrFetch.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrFetch, url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return data, nil
}
