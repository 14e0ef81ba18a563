package diamondclub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const (
	DefaultHost = "http://diamondclub.tv"
	UserAgent   = "diamondclub/appletv"

	// TwentyFourSevenStreamURL is the HLS playlist of the 24/7 channel.
	TwentyFourSevenStreamURL = "https://ingest.diamondclub.tv/high/dctv.m3u8"

	liveChannelsPath = "/api/channelsv2.php"
	allChannelsPath  = "/api/statusv2.php"

	liveChannelsKey = "assignedchannels"
	allChannelsKey  = "livestreams"

	maxIconSize = 2 * 1024 * 1024
)

// HLSRedirectPath serves channel icons and stream playlists.
const HLSRedirectPath = "/api/hlsredirect.php"

var (
	ErrMissingKey = errors.New("diamondclub: response is missing channel list")
	ErrNoIcon     = errors.New("diamondclub: channel has no remote icon")
)

type API struct {
	client *http.Client
	host   string
	logger zerolog.Logger
}

type Option func(*API)

func WithHTTPClient(client *http.Client) Option {
	return func(a *API) {
		a.client = client
	}
}

func WithHost(host string) Option {
	return func(a *API) {
		a.host = strings.TrimRight(host, "/")
	}
}

func NewAPI(logger zerolog.Logger, opts ...Option) *API {
	api := &API{
		client: http.DefaultClient,
		host:   DefaultHost,
		logger: logger.With().Str("component", "diamondclub").Logger(),
	}

	for _, opt := range opts {
		opt(api)
	}

	return api
}

// LiveChannels returns the 24/7 channel followed by all channels currently assigned a slot.
func (a *API) LiveChannels(ctx context.Context) ([]Channel, error) {
	return a.channels(ctx, liveChannelsPath, liveChannelsKey)
}

// AllChannels returns the 24/7 channel followed by every known stream.
func (a *API) AllChannels(ctx context.Context) ([]Channel, error) {
	return a.channels(ctx, allChannelsPath, allChannelsKey)
}

func (a *API) channels(ctx context.Context, path, key string) ([]Channel, error) {
	resp, err := doRequest[map[string]json.RawMessage](ctx, a, path)
	if err != nil {
		return nil, err
	}

	list, ok := resp[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingKey, key)
	}

	channels, skipped, err := decodeChannels(list)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", key, err)
	}

	if skipped > 0 {
		a.logger.Debug().Int("skipped", skipped).Str("key", key).Msg("skipped malformed channel records")
	}

	return append([]Channel{TwentyFourSeven}, channels...), nil
}

func (a *API) IconURL(number int) string {
	return fmt.Sprintf("%s%s?c=%d&i=1", a.host, HLSRedirectPath, number)
}

func (a *API) StreamURL(number int) string {
	if number == TwentyFourSeven.Number {
		return TwentyFourSevenStreamURL
	}

	return fmt.Sprintf("%s%s?c=%d", a.host, HLSRedirectPath, number)
}

// Icon downloads the icon image of a channel.
func (a *API) Icon(ctx context.Context, number int) ([]byte, error) {
	if number <= 0 {
		return nil, ErrNoIcon
	}

	resp, err := a.get(ctx, a.IconURL(number))
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	return io.ReadAll(io.LimitReader(resp.Body, maxIconSize))
}

func (a *API) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", UserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp, nil
}

func doRequest[T any](ctx context.Context, api *API, path string) (T, error) {
	var data T

	resp, err := api.get(ctx, api.host+path)
	if err != nil {
		return data, err
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return data, err
	}

	if err := json.Unmarshal(respBody, &data); err != nil {
		return data, err
	}

	return data, nil
}
