package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func limitedResponse(status int, header http.Header) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader("limited")),
	}
}

func TestRetryOnLimit(t *testing.T) {
	t.Parallel()

	t.Run("returns immediately on success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		resp, err := RetryOnLimit(context.Background(), func() (*http.Response, error) {
			calls++
			return limitedResponse(http.StatusOK, nil), nil
		}, time.Minute)

		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, 1, calls)
	})

	t.Run("no retry without hint", func(t *testing.T) {
		t.Parallel()

		calls := 0
		resp, err := RetryOnLimit(context.Background(), func() (*http.Response, error) {
			calls++
			return limitedResponse(http.StatusTooManyRequests, http.Header{}), nil
		}, time.Minute)

		require.NoError(t, err)
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		require.Equal(t, 1, calls)
	})

	t.Run("retries after Retry-After on 503", func(t *testing.T) {
		t.Parallel()

		calls := 0
		resp, err := RetryOnLimit(context.Background(), func() (*http.Response, error) {
			calls++
			if calls == 1 {
				return limitedResponse(http.StatusServiceUnavailable, http.Header{"Retry-After": []string{"0"}}), nil
			}
			return limitedResponse(http.StatusOK, nil), nil
		}, time.Minute)

		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, 2, calls)
	})

	t.Run("wait above max is not retried", func(t *testing.T) {
		t.Parallel()

		calls := 0
		resp, err := RetryOnLimit(context.Background(), func() (*http.Response, error) {
			calls++
			return limitedResponse(http.StatusTooManyRequests, http.Header{"Retry-After": []string{"120"}}), nil
		}, time.Minute)

		require.NoError(t, err)
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		require.Equal(t, 1, calls)
	})

	t.Run("respects context cancellation during wait", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		resp, err := RetryOnLimit(ctx, func() (*http.Response, error) {
			return limitedResponse(http.StatusTooManyRequests, http.Header{"Retry-After": []string{"10"}}), nil
		}, time.Minute)

		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Nil(t, resp)
	})
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		header http.Header
		want   time.Duration
		wantOK bool
	}{
		{name: "empty", header: http.Header{}},
		{name: "ratelimit-reset", header: http.Header{"Ratelimit-Reset": []string{strconv.FormatInt(now.Add(5*time.Second).Unix(), 10)}}, want: 6 * time.Second, wantOK: true},
		{name: "ratelimit-reset-past", header: http.Header{"Ratelimit-Reset": []string{strconv.FormatInt(now.Add(-time.Hour).Unix(), 10)}}, want: time.Second, wantOK: true},
		{name: "ratelimit-reset-invalid", header: http.Header{"Ratelimit-Reset": []string{"soon"}}},
		{name: "retry-after-seconds", header: http.Header{"Retry-After": []string{"3"}}, want: 3 * time.Second, wantOK: true},
		{name: "retry-after-negative", header: http.Header{"Retry-After": []string{"-3"}}},
		{name: "retry-after-date", header: http.Header{"Retry-After": []string{now.Add(time.Minute).Format(http.TimeFormat)}}, want: time.Minute, wantOK: true},
		{name: "retry-after-garbage", header: http.Header{"Retry-After": []string{"later"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := retryDelay(tt.header, now)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestShouldSkipRetry(t *testing.T) {
	t.Parallel()

	require.True(t, ShouldSkipRetry("/api/hlsredirect.php", []string{"/api/hlsredirect.php"}))
	require.False(t, ShouldSkipRetry("/api/channelsv2.php", []string{"/api/hlsredirect.php"}))
	require.False(t, ShouldSkipRetry("/api/channelsv2.php", nil))
}

func TestRetryRoundTrip(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: NewRetryRoundTrip(nil, time.Second)}

	resp, err := client.Get(srv.URL + "/api/channelsv2.php")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, hits.Load())

	t.Run("post is not retried", func(t *testing.T) {
		hits.Store(0)

		resp, err := client.Post(srv.URL, "text/plain", strings.NewReader("x"))
		require.NoError(t, err)
		resp.Body.Close()

		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		require.EqualValues(t, 1, hits.Load())
	})
}

func TestRetryRoundTrip_KeepsHeaders(t *testing.T) {
	t.Parallel()

	agents := make(chan string, 2)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: NewRetryRoundTrip(nil, time.Second)}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/statusv2.php", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "diamondclub/appletv")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "diamondclub/appletv", <-agents)
	require.Equal(t, "diamondclub/appletv", <-agents)
}

func TestRetryRoundTrip_SkipPaths(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: NewRetryRoundTrip(nil, time.Second, "/api/hlsredirect.php")}

	resp, err := client.Get(srv.URL + "/api/hlsredirect.php?c=1&i=1")
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.EqualValues(t, 1, hits.Load())

	resp, err = client.Get(srv.URL + "/api/statusv2.php")
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.EqualValues(t, 3, hits.Load())
}
