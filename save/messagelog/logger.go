package messagelog

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mailru/easyjson"
	"github.com/rs/zerolog"
)

// Record is a chat message as received from the server.
//
//easyjson:json
type Record struct {
	Server   string    `json:"server"`
	Target   string    `json:"target"`
	Username string    `json:"username"`
	Message  string    `json:"message"`
	SentAt   time.Time `json:"sent_at"`
}

// Channel returns the target without its leading #.
func (r *Record) Channel() string {
	return strings.TrimPrefix(r.Target, "#")
}

type LogEntry struct {
	ID       string
	Channel  string
	Username string
	SentAt   time.Time
	Record   *Record
}

type ChannelCount struct {
	Channel string
	Count   int
}

const sqlMigration = `BEGIN;
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	channel TEXT NOT NULL collate nocase,
	username TEXT NOT NULL collate nocase,
	sent_at TEXT NOT NULL,
	payload JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS user_in_channel_idx ON messages (channel, username);
CREATE INDEX IF NOT EXISTS channel_sent_at_idx ON messages (channel, sent_at);
COMMIT;`

// fixed width so sent_at sorts lexically
const sentAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
}

const (
	maxBatchWait  = time.Second * 5
	maxBatchItems = 20
)

type BatchedMessageLogger struct {
	logger zerolog.Logger
	db     DB
	roDB   DB

	includeChannels []string
	excludeChannels []string

	newID func() string
}

func NewBatchedMessageLogger(logger zerolog.Logger, db DB, roDB DB, includeChannels []string, excludeChannels []string) *BatchedMessageLogger {
	return &BatchedMessageLogger{
		logger:          logger.With().Str("component", "messagelog").Logger(),
		db:              db,
		roDB:            roDB,
		includeChannels: includeChannels,
		excludeChannels: excludeChannels,
		newID:           uuid.NewString,
	}
}

func (b *BatchedMessageLogger) PrepareDatabase() error {
	queries := [...]string{
		"pragma journal_mode = WAL;",
		"pragma synchronous = normal;",
		"pragma temp_store = memory;",
	}

	for _, query := range queries {
		if _, err := b.db.Exec(query); err != nil {
			return fmt.Errorf("failed running prepare query: %w", err)
		}
	}

	if _, err := b.db.Exec(sqlMigration); err != nil {
		return fmt.Errorf("failed running migration: %w", err)
	}

	return nil
}

// LogMessages stores records in batches until records is closed.
// A batch is written when it is full or maxBatchWait passed.
func (b *BatchedMessageLogger) LogMessages(records <-chan *Record) error {
	defer b.logger.Info().Msg("batched logger done")

	var batch []*Record

	timer := time.NewTimer(maxBatchWait)
	defer timer.Stop()

	for {
		select {
		case record, ok := <-records:
			if !ok {
				if len(batch) == 0 {
					return nil
				}

				b.logger.Info().Int("len-batch", len(batch)).Msg("record channel closed; writing open entries")

				if err := b.createLogEntries(batch); err != nil {
					return fmt.Errorf("failed to batch insert %d messages after channel was closed: %w", len(batch), err)
				}

				return nil
			}

			if !b.isChannelRelevant(record.Channel()) {
				continue
			}

			batch = append(batch, record)

			if len(batch) < maxBatchItems {
				continue
			}

			if err := b.createLogEntries(batch); err != nil {
				return fmt.Errorf("failed to batch insert %d messages after max entries was reached: %w", len(batch), err)
			}

			batch = nil
			timer.Reset(maxBatchWait)
		case <-timer.C:
			if len(batch) > 0 {
				if err := b.createLogEntries(batch); err != nil {
					return fmt.Errorf("failed to batch insert %d messages after max wait time was reached: %w", len(batch), err)
				}

				batch = nil
			}

			timer.Reset(maxBatchWait)
		}
	}
}

func (b *BatchedMessageLogger) MessagesFromUser(username string, channel string) ([]LogEntry, error) {
	query := `SELECT id, channel, username, sent_at, payload FROM messages WHERE username = ? AND channel = ? ORDER BY sent_at`
	rows, err := b.roDB.Query(query, username, channel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []LogEntry{}, nil
		}

		return nil, err
	}

	return b.scanRows(rows)
}

// RecentMessages returns the newest limit messages of a channel, oldest first.
func (b *BatchedMessageLogger) RecentMessages(channel string, limit int) ([]LogEntry, error) {
	query := `SELECT id, channel, username, sent_at, payload FROM messages WHERE channel = ? ORDER BY sent_at DESC LIMIT ?`
	rows, err := b.roDB.Query(query, channel, limit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []LogEntry{}, nil
		}

		return nil, err
	}

	entries, err := b.scanRows(rows)
	if err != nil {
		return nil, err
	}

	slices.Reverse(entries)
	return entries, nil
}

func (b *BatchedMessageLogger) ChannelStats() ([]ChannelCount, error) {
	rows, err := b.roDB.Query("SELECT channel, COUNT(*) as count FROM messages GROUP BY channel ORDER BY count DESC")
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var stats []ChannelCount
	for rows.Next() {
		var c ChannelCount
		if err := rows.Scan(&c.Channel, &c.Count); err != nil {
			return stats, err
		}
		stats = append(stats, c)
	}

	return stats, rows.Err()
}

func (b *BatchedMessageLogger) scanRows(rows *sql.Rows) ([]LogEntry, error) {
	defer rows.Close()

	var logEntries []LogEntry

	for rows.Next() {
		var entry LogEntry
		var rawPayload []byte
		var rawSentAt string
		if err := rows.Scan(
			&entry.ID,
			&entry.Channel,
			&entry.Username,
			&rawSentAt,
			&rawPayload,
		); err != nil {
			return logEntries, err
		}

		var err error
		entry.SentAt, err = time.Parse(sentAtLayout, rawSentAt)
		if err != nil {
			return logEntries, err
		}

		entry.Record = &Record{}
		if err := easyjson.Unmarshal(rawPayload, entry.Record); err != nil {
			return logEntries, err
		}

		logEntries = append(logEntries, entry)
	}

	if err := rows.Err(); err != nil {
		return logEntries, err
	}

	return logEntries, nil
}

func (b *BatchedMessageLogger) createLogEntries(records []*Record) error {
	if len(records) == 0 {
		return fmt.Errorf("expected at least 1 element, got %d", len(records))
	}

	query := `INSERT INTO messages (id, channel, username, sent_at, payload) VALUES %s`

	valueStrings := make([]string, 0, len(records))
	valueArgs := make([]any, 0, len(records)*5) // 5 args per row
	for _, record := range records {
		id := b.newID()

		payloadJSON, err := easyjson.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal JSON payload for message %s: %w", id, err)
		}

		valueStrings = append(valueStrings, "(?, ?, ?, ?, ?)")
		valueArgs = append(valueArgs,
			id,
			record.Channel(),
			record.Username,
			record.SentAt.UTC().Format(sentAtLayout),
			payloadJSON,
		)
	}

	query = fmt.Sprintf(query, strings.Join(valueStrings, ","))

	if _, err := b.db.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("failed inserting data: %w", err)
	}

	return nil
}

func (b *BatchedMessageLogger) isChannelRelevant(channel string) bool {
	if len(b.includeChannels) == 0 && len(b.excludeChannels) == 0 {
		return true
	}

	// When include channels set, only save messages when channel is in list
	if len(b.includeChannels) > 0 {
		return slices.ContainsFunc(b.includeChannels, func(s string) bool { return strings.EqualFold(s, channel) })
	}

	// When exclude channels set, don't save messages, when channel in list
	return !slices.ContainsFunc(b.excludeChannels, func(s string) bool { return strings.EqualFold(s, channel) })
}
