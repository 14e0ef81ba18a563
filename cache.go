package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/diamondclub/watcher/save"
	"github.com/diamondclub/watcher/save/messagelog"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var cacheCMD = &cli.Command{
	Name:        "cache",
	Description: "Analyse the chat transcript stored by watcher",
	Commands: []*cli.Command{
		{
			Name:        "clear",
			Usage:       "Delete the transcript database",
			Description: "Removes the transcript database including its WAL files",
			Action: func(ctx context.Context, c *cli.Command) error {
				path := save.DatabasePath()
				for _, file := range []string{path, path + "-wal", path + "-shm"} {
					if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
						return fmt.Errorf("failed to delete transcript database: %w", err)
					}
				}

				fmt.Print("transcript database deleted\n")
				return nil
			},
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		info, err := os.Stat(save.DatabasePath())
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Print("no transcript stored yet\n")
				return nil
			}
			return err
		}

		db, err := openDB(true)
		if err != nil {
			return fmt.Errorf("failed to open transcript database: %w", err)
		}

		defer db.Close()

		stats, err := messagelog.NewBatchedMessageLogger(log.Logger, db, db, nil, nil).ChannelStats()
		if err != nil {
			return fmt.Errorf("failed to read channel stats: %w", err)
		}

		return printCacheStats(os.Stdout, info.Size(), stats)
	},
}

func printCacheStats(out io.Writer, size int64, stats []messagelog.ChannelCount) error {
	total := 0
	for _, s := range stats {
		total += s.Count
	}

	if _, err := fmt.Fprintf(out, "Transcript size: %s\nTotal messages: %s\n\n", humanize.Bytes(uint64(size)), humanize.Comma(int64(total))); err != nil {
		return err
	}

	for _, s := range stats {
		if _, err := fmt.Fprintf(out, "#%s: %s messages\n", s.Channel, humanize.Comma(int64(s.Count))); err != nil {
			return err
		}
	}

	return nil
}
