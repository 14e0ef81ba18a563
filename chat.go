package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/diamondclub/watcher/irc"
	"github.com/diamondclub/watcher/save"
	"github.com/diamondclub/watcher/save/messagelog"
	"github.com/diamondclub/watcher/ui/chatview"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

var errNotJoined = errors.New("not in channel yet, message not sent")

const (
	dialTimeout       = 15 * time.Second
	transcriptBacklog = 256
)

func chatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Usage: "IRC server host"},
		&cli.IntFlag{Name: "port", Usage: "IRC server port"},
		&cli.StringFlag{Name: "channel", Usage: "Channel to join, without #"},
		&cli.StringFlag{Name: "nick", Usage: "Nickname, a guest name is generated when empty"},
		&cli.BoolFlag{Name: "tls", Usage: "Connect using TLS"},
		&cli.StringFlag{Name: "websocket-url", Usage: "Connect through a WebSocket gateway instead of TCP"},
		&cli.DurationFlag{Name: "keep-alive", Usage: "Close the connection after this long without server traffic"},
		&cli.BoolFlag{Name: "no-transcript", Usage: "Do not store chat messages"},
	}
}

var chatCMD = &cli.Command{
	Name:   "chat",
	Usage:  "Join the live chat",
	Flags:  chatFlags(),
	Action: runChat,
}

func applyChatFlags(command *cli.Command, settings *save.Settings) {
	if command.IsSet("host") {
		settings.IRC.Host = command.String("host")
	}

	if command.IsSet("port") {
		settings.IRC.Port = command.Int("port")
	}

	if command.IsSet("channel") {
		settings.IRC.Channel = strings.TrimPrefix(command.String("channel"), "#")
	}

	if command.IsSet("nick") {
		settings.IRC.Nickname = command.String("nick")
	}

	if command.IsSet("tls") {
		settings.IRC.TLS = command.Bool("tls")
	}

	if command.IsSet("websocket-url") {
		settings.IRC.WebSocketURL = command.String("websocket-url")
	}

	if command.IsSet("keep-alive") {
		settings.IRC.KeepAlive = command.Duration("keep-alive")
	}

	if command.Bool("no-transcript") {
		settings.Transcript.Enabled = false
	}
}

func newTransport(settings save.IRCSettings) irc.Transport {
	if settings.WebSocketURL != "" {
		return &irc.WebSocketTransport{URL: settings.WebSocketURL}
	}

	t := &irc.TCPTransport{DialTimeout: dialTimeout}
	if settings.TLS {
		t.TLSConfig = &tls.Config{ServerName: settings.Host, MinVersion: tls.VersionTLS12}
	}

	return t
}

// streamWatcher signals when the session stream ended.
type streamWatcher struct {
	*chatview.View
	once  sync.Once
	ended chan struct{}
}

func (w *streamWatcher) OnStreamEnd() {
	w.View.OnStreamEnd()
	w.once.Do(func() { close(w.ended) })
}

func runChat(ctx context.Context, command *cli.Command) error {
	logger := log.Logger

	fs := afero.NewOsFs()
	settings, err := save.SettingsFromDisk(fs)
	if err != nil {
		return fmt.Errorf("error while reading settings: %w", err)
	}

	applyChatFlags(command, &settings)
	if err := settings.Validate(); err != nil {
		return err
	}

	configDir, err := save.ConfigDir()
	if err != nil {
		return err
	}

	stateManager := save.NewAppStateManager(fs, configDir)
	nickname, err := stateManager.Nickname()
	if err != nil {
		return fmt.Errorf("error while loading nickname: %w", err)
	}

	cfg := settings.IRC.SessionConfig(nickname)

	var records chan *messagelog.Record
	viewOpts := []chatview.Option{}
	if columns, err := getTermColumns(); err == nil {
		viewOpts = append(viewOpts, chatview.WithWidth(columns))
	}

	g, gctx := errgroup.WithContext(ctx)

	if settings.Transcript.Enabled {
		db, err := openDB(false)
		if err != nil {
			return fmt.Errorf("error while opening transcript database: %w", err)
		}

		defer db.Close()

		msgLogger := messagelog.NewBatchedMessageLogger(logger, db, db, settings.Transcript.ChannelInclude, settings.Transcript.ChannelExclude)
		if err := msgLogger.PrepareDatabase(); err != nil {
			return fmt.Errorf("error while preparing transcript database: %w", err)
		}

		records = make(chan *messagelog.Record, transcriptBacklog)
		viewOpts = append(viewOpts, chatview.WithTranscript(records, cfg.Addr()))

		g.Go(func() error {
			return msgLogger.LogMessages(records)
		})
	}

	watcher := &streamWatcher{
		View:  chatview.New(os.Stdout, logger, viewOpts...),
		ended: make(chan struct{}),
	}

	dispatcher := irc.NewSerialDispatcher()
	session := irc.NewSession(cfg, newTransport(settings.IRC), watcher,
		irc.WithLogger(logger),
		irc.WithDispatcher(dispatcher),
	)

	g.Go(func() error {
		defer func() {
			// no callback may publish after records is closed
			dispatcher.Close()
			<-dispatcher.Done()

			if records != nil {
				close(records)
			}
		}()

		if err := session.Start(gctx); err != nil {
			return err
		}

		go sendInput(os.Stdin, session, watcher, dispatcher, cfg, logger)

		select {
		case <-gctx.Done():
		case <-watcher.ended:
		case <-session.Done():
			logger.Warn().Msg("connection to chat lost")
		}

		if err := session.Stop(); err != nil {
			logger.Warn().Err(err).Msg("error while leaving chat")
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	state, err := stateManager.LoadAppState()
	if err != nil {
		return err
	}

	state.LastChannel = cfg.Channel
	state.LastSeen = time.Now()

	return stateManager.SaveAppState(state)
}

// sendInput posts every line typed on r to the channel. Local echoes go
// through dispatcher so they are ordered with server events.
func sendInput(r io.Reader, session *irc.Session, view irc.Handler, dispatcher irc.Dispatcher, cfg irc.Config, logger zerolog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		if session.State() != irc.StateJoined {
			dispatcher.Dispatch(func() { view.OnError(errNotJoined) })
			continue
		}

		if err := session.Privmsg(text); err != nil {
			logger.Error().Err(err).Msg("failed to send message")
			continue
		}

		// servers do not echo our own messages
		msg := irc.ChatMessage{Username: cfg.Nickname, Target: "#" + cfg.Channel, Message: text}
		dispatcher.Dispatch(func() { view.OnChatMessage(msg) })
	}
}
