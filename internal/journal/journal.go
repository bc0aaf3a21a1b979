// Package journal appends dispatch audit rows to sqlite. It is an
// observability record only; nothing is replayed at startup and losing the
// file loses no runtime state.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/AOE-khkhan/moe-serifu-agent/internal/event"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/log"
)

const (
	// StatusDispatched marks an event that was handed to a handler.
	StatusDispatched = "dispatched"
	// StatusDiscarded marks an event dropped for lack of a subscriber.
	StatusDiscarded = "discarded"

	writeTimeout = 2 * time.Second
)

// Journal records dispatch activity. It implements event.Recorder.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a journal over an opened database.
func New(db *sql.DB) *Journal {
	return &Journal{db: db, logger: log.WithComponent("journal")}
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordDispatched appends a handled-event row.
func (j *Journal) RecordDispatched(e *event.Event) {
	j.appendEvent(e, StatusDispatched)
}

// RecordDiscarded appends a no-subscriber row.
func (j *Journal) RecordDiscarded(e *event.Event) {
	j.appendEvent(e, StatusDiscarded)
}

func (j *Journal) appendEvent(e *event.Event, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_, err := j.db.ExecContext(ctx, `
INSERT INTO event_log(id, topic, priority, args, status, at)
VALUES(?, ?, ?, ?, ?, ?);
`, e.ID.String(), e.Topic.String(), e.Priority, e.Args.String(), status,
		e.At.Format(time.RFC3339Nano))
	if err != nil {
		// Journal failures never disturb dispatch.
		j.logger.Error("failed to append event row", "event_id", e.ID.String(), "error", err)
	}
}

// RecordTimerFired appends a timer-firing row.
func (j *Journal) RecordTimerFired(id int16, t event.Topic, recurring bool) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_, err := j.db.ExecContext(ctx, `
INSERT INTO timer_log(timer_id, topic, recurring, fired_at)
VALUES(?, ?, ?, ?);
`, id, t.String(), recurring, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		j.logger.Error("failed to append timer row", "timer_id", id, "error", err)
	}
}

// EventRecord is one journaled event row.
type EventRecord struct {
	ID       string    `json:"id"`
	Topic    string    `json:"topic"`
	Priority uint8     `json:"priority"`
	Args     string    `json:"args,omitempty"`
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
}

// RecentEvents returns the newest journaled events, newest-first.
func (j *Journal) RecentEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, topic, priority, args, status, at
FROM event_log
ORDER BY at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query event_log: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var (
			rec  EventRecord
			args sql.NullString
			atS  string
		)
		if err := rows.Scan(&rec.ID, &rec.Topic, &rec.Priority, &args, &rec.Status, &atS); err != nil {
			return nil, fmt.Errorf("scan event_log row: %w", err)
		}
		if args.Valid {
			rec.Args = args.String
		}
		if at, err := time.Parse(time.RFC3339Nano, atS); err == nil {
			rec.At = at
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
