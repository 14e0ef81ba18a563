package httputil

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"time"
)

// RetryOnLimit runs do and retries once when the server answered 429 or 503
// and announced when to come back. Responses asking for a wait longer than
// maxWait are returned as is.
func RetryOnLimit(ctx context.Context, do func() (*http.Response, error), maxWait time.Duration) (*http.Response, error) {
	resp, err := do()
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return resp, nil
	}

	wait, ok := retryDelay(resp.Header, time.Now())
	if !ok || wait > maxWait {
		return resp, nil
	}

	// the limited response is replaced by the retry
	resp.Body.Close()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return do()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// retryDelay reads Ratelimit-Reset (unix seconds) or Retry-After
// (delta seconds or HTTP date).
func retryDelay(header http.Header, now time.Time) (time.Duration, bool) {
	if reset := header.Get("Ratelimit-Reset"); reset != "" {
		unix, err := strconv.ParseInt(reset, 10, 64)
		if err != nil {
			return 0, false
		}

		return max(time.Unix(unix, 0).Sub(now), 0) + time.Second, true
	}

	after := header.Get("Retry-After")
	if after == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(after); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	at, err := http.ParseTime(after)
	if err != nil {
		return 0, false
	}

	return max(at.Sub(now), 0), true
}

// ShouldSkipRetry checks if the endpoint is in the skip list
func ShouldSkipRetry(endpoint string, skipList []string) bool {
	return slices.Contains(skipList, endpoint)
}

// RetryRoundTrip retries idempotent requests that were rate limited.
type RetryRoundTrip struct {
	rt        http.RoundTripper
	maxWait   time.Duration
	skipPaths []string
}

func NewRetryRoundTrip(rt http.RoundTripper, maxWait time.Duration, skipPaths ...string) *RetryRoundTrip {
	return &RetryRoundTrip{
		rt:        rt,
		maxWait:   maxWait,
		skipPaths: skipPaths,
	}
}

func (t *RetryRoundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := t.rt

	if rt == nil {
		rt = http.DefaultTransport
	}

	if (req.Method != http.MethodGet && req.Method != http.MethodHead) || ShouldSkipRetry(req.URL.Path, t.skipPaths) {
		return rt.RoundTrip(req)
	}

	// GET and HEAD carry no body, each attempt sends a fresh copy
	return RetryOnLimit(req.Context(), func() (*http.Response, error) {
		return rt.RoundTrip(req.Clone(req.Context()))
	}, t.maxWait)
}
