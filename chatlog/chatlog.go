// Package chatlog archives session lifecycle events to Postgres. It is a
// plain bus listener: the connection core never knows it exists, and insert
// failures are logged without ever reaching the session.
package chatlog

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/onnwee/relaybot/signals"
)

const insertTimeout = 5 * time.Second

// Recorder writes lifecycle events to the archive table.
type Recorder struct {
	db *sql.DB
}

// NewRecorder returns a recorder over an open database.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Attach subscribes the recorder to every event kind on the bus.
func (r *Recorder) Attach(bus *signals.Bus) {
	bus.SubscribeAll(r.record)
}

func (r *Recorder) record(e signals.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	var sessionID, sessionNick string
	if e.Session != nil {
		sessionID = e.Session.ID()
		sessionNick = e.Session.Nick()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO lifecycle_events (session_id, session_nick, kind, nick, channel) VALUES ($1, $2, $3, $4, $5)`,
		sessionID, sessionNick, e.Kind.String(), e.Nick, e.Channel)
	if err != nil {
		slog.Error("failed to insert lifecycle event",
			slog.String("kind", e.Kind.String()),
			slog.Any("err", err),
		)
	}
}
