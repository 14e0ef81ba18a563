package httputil

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type RoundTripperFunc func(req *http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// LoggingRoundTrip logs every request and sets a default User-Agent
// when the caller did not set one.
type LoggingRoundTrip struct {
	rt        http.RoundTripper
	logger    zerolog.Logger
	userAgent string
}

func NewLoggingRoundTrip(rt http.RoundTripper, logger zerolog.Logger, userAgent string) *LoggingRoundTrip {
	return &LoggingRoundTrip{
		rt:        rt,
		logger:    logger.With().Str("component", "http").Logger(),
		userAgent: userAgent,
	}
}

func (t *LoggingRoundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := t.rt

	if rt == nil {
		rt = http.DefaultTransport
	}

	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	now := time.Now()
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.logger.Error().Err(err).Str("url", req.URL.String()).Msg("error while making request")
		return nil, err
	}

	dur := time.Since(now)
	t.logger.Info().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Dur("took", dur).
		Int("status", resp.StatusCode).Msg("request made")

	return resp, nil
}
