package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/diamondclub/watcher/save"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func main() {
	f, err := setupLogFile()
	if err != nil {
		fmt.Printf("error while opening log file: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		_ = f.Close()
	}()

	logger := zerolog.New(f).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	log.Logger = logger

	app := &cli.Command{
		Name:        "watcher",
		Description: "Terminal companion for the DiamondClub Apple TV app",
		Usage:       "Watch DiamondClub channels and follow the live chat",
		Commands: []*cli.Command{
			chatCMD,
			channelsCMD,
			transcriptCMD,
			cacheCMD,
			versionCMD,
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("WATCHER_DEBUG"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			if command.Bool("debug") {
				log.Logger = log.Logger.Level(zerolog.DebugLevel)
			}

			return ctx, nil
		},
		// running without a command joins the chat
		Action: func(ctx context.Context, command *cli.Command) error {
			return runChat(ctx, command)
		},
	}

	// the default action shares the chat flags
	app.Flags = append(app.Flags, chatFlags()...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Printf("error while running watcher: %v\n", err)
		os.Exit(1)
	}
}

func setupLogFile() (*os.File, error) {
	if err := os.MkdirAll(save.DataDir(), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(save.LogPath(), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}

	return f, nil
}
