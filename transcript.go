package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/diamondclub/watcher/save/messagelog"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var transcriptCMD = &cli.Command{
	Name:  "transcript",
	Usage: "Show stored chat messages",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "channel", Usage: "Channel without #", Required: true},
		&cli.StringFlag{Name: "user", Usage: "Only messages sent by this user"},
		&cli.IntFlag{Name: "recent", Usage: "Number of most recent messages", Value: 50},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		db, err := openDB(true)
		if err != nil {
			return err
		}

		defer db.Close()

		msgLogger := messagelog.NewBatchedMessageLogger(log.Logger, db, db, nil, nil)
		channel := strings.TrimPrefix(command.String("channel"), "#")

		var entries []messagelog.LogEntry
		if user := command.String("user"); user != "" {
			entries, err = msgLogger.MessagesFromUser(user, channel)
		} else {
			if command.Int("recent") <= 0 {
				return errors.New("--recent must be positive")
			}
			entries, err = msgLogger.RecentMessages(channel, command.Int("recent"))
		}
		if err != nil {
			return fmt.Errorf("error while querying transcript: %w", err)
		}

		return printTranscript(os.Stdout, entries)
	},
}

func printTranscript(out io.Writer, entries []messagelog.LogEntry) error {
	if len(entries) == 0 {
		_, err := io.WriteString(out, "no messages found\n")
		return err
	}

	for _, e := range entries {
		if _, err := fmt.Fprintf(out, "%s (%s) %s: %s\n",
			e.SentAt.Local().Format("2006-01-02 15:04:05"),
			humanize.Time(e.SentAt),
			e.Username,
			e.Record.Message,
		); err != nil {
			return err
		}
	}

	return nil
}
