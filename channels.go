package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/diamondclub/watcher/diamondclub"
	"github.com/diamondclub/watcher/httputil"
	"github.com/diamondclub/watcher/save"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const (
	iconTTL          = 10 * time.Minute
	iconConcurrency  = 4
	maxRateLimitWait = 30 * time.Second
)

var channelsCMD = &cli.Command{
	Name:  "channels",
	Usage: "List DiamondClub channels",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "all", Usage: "List every known stream instead of live channels"},
		&cli.StringFlag{Name: "filter", Usage: "Fuzzy filter on channel title"},
		&cli.BoolFlag{Name: "icons", Usage: "Fetch channel icons and print their size"},
		&cli.StringFlag{
			Name:    "api-host",
			Usage:   "Host of the DiamondClub API",
			Sources: cli.EnvVars("WATCHER_API_HOST"),
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		settings, err := save.SettingsFromDisk(afero.NewOsFs())
		if err != nil {
			return fmt.Errorf("error while reading settings: %w", err)
		}

		host := settings.API.Host
		if command.IsSet("api-host") {
			host = command.String("api-host")
		}

		api := diamondclub.NewAPI(log.Logger,
			diamondclub.WithHost(host),
			diamondclub.WithHTTPClient(newHTTPClient(log.Logger)),
		)

		var channels []diamondclub.Channel
		if command.Bool("all") {
			channels, err = api.AllChannels(ctx)
		} else {
			channels, err = api.LiveChannels(ctx)
		}
		if err != nil {
			return fmt.Errorf("error while fetching channels: %w", err)
		}

		if query := command.String("filter"); query != "" {
			channels = diamondclub.FilterChannels(channels, query)
		}

		var iconSizes map[int]int
		if command.Bool("icons") {
			cache := diamondclub.NewIconCache(api, iconTTL)
			defer cache.Close()

			iconSizes = fetchIconSizes(ctx, cache, channels, log.Logger)
		}

		return printChannels(os.Stdout, api, channels, iconSizes)
	},
}

func newHTTPClient(logger zerolog.Logger) *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: httputil.NewLoggingRoundTrip(
			// icon and stream redirects are not retried
			httputil.NewRetryRoundTrip(http.DefaultTransport, maxRateLimitWait, diamondclub.HLSRedirectPath),
			logger,
			userAgent(),
		),
	}
}

// fetchIconSizes fetches icons concurrently. Failures are logged and skipped.
func fetchIconSizes(ctx context.Context, icons diamondclub.IconFetcher, channels []diamondclub.Channel, logger zerolog.Logger) map[int]int {
	var (
		mu    sync.Mutex
		sizes = make(map[int]int, len(channels))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(iconConcurrency)

	for _, channel := range channels {
		if channel.Number <= 0 {
			continue
		}

		g.Go(func() error {
			data, err := icons.Icon(gctx, channel.Number)
			if err != nil {
				logger.Warn().Err(err).Int("channel", channel.Number).Msg("failed to fetch icon")
				return nil
			}

			mu.Lock()
			sizes[channel.Number] = len(data)
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	return sizes
}

func printChannels(out io.Writer, api *diamondclub.API, channels []diamondclub.Channel, iconSizes map[int]int) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	header := "#\tTITLE\tGAME\tSTREAM"
	if iconSizes != nil {
		header += "\tICON"
	}
	fmt.Fprintln(w, header)

	for _, c := range channels {
		row := fmt.Sprintf("%d\t%s\t%s\t%s", c.Number, c.Title, c.CurrentGame, api.StreamURL(c.Number))
		if iconSizes != nil {
			if size, ok := iconSizes[c.Number]; ok {
				row += "\t" + humanize.Bytes(uint64(size))
			} else {
				row += "\t-"
			}
		}
		fmt.Fprintln(w, row)
	}

	return w.Flush()
}
