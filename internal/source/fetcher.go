package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/feed-collector/pkg/ratelimit"
)

// DefaultUserAgent identifies the collector to remote servers
const DefaultUserAgent = "feed-collector/1.0 (+https://github.com/feed-collector)"

// maxPayloadBytes caps a single downloaded document
const maxPayloadBytes = 20 << 20

// ErrHTTPStatus is returned for non-2xx responses
var ErrHTTPStatus = errors.New("unexpected HTTP status")

// HTTPFetcher performs GET requests with a fixed timeout
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	limiter   *ratelimit.HostLimiter
}

// NewHTTPFetcher creates a fetcher. limiter may be nil.
func NewHTTPFetcher(timeout time.Duration, userAgent string, limiter *ratelimit.HostLimiter) *HTTPFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		limiter:   limiter,
	}
}

// Fetch downloads url and returns the body
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return nil, fmt.Errorf("rate limit wait for %s: %w", url, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrHTTPStatus, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return body, nil
}
