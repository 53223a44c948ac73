// Package logger is a standardized event logging framework for the
// execution engine. Events are written as newline delimited JSON objects
// so hosts can tail or post-process them without a schema compiler.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"time"
)

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger captures interaction events for the engine and its hosts.
type Logger struct {
	Record LogRecorder
}

// NewJsonLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	return &Logger{
		Record: func(le *LogEntry) error {
			entry, err := json.Marshal(le)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

// NewNopLogRecorder creates a Logger that discards all events.
func NewNopLogRecorder() *Logger {
	return &Logger{
		Record: func(le *LogEntry) error { return nil },
	}
}

func (l *Logger) recordEvent(sessionID string, event Event) error {
	le := &LogEntry{
		TimestampMicros: time.Now().UnixNano() / int64(time.Microsecond),
		SessionID:       sessionID,
	}
	event.attach(le)

	return l.Record(le)
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{logger: l, sessionID: fmt.Sprintf("%d", rand.Uint64())}
}

// Sessionless creates a logger with no session ID.
func (l *Logger) Sessionless() *SessionLogger {
	return &SessionLogger{logger: l, sessionID: ""}
}

// SessionLogger logs events with a shared session ID.
type SessionLogger struct {
	logger    *Logger
	sessionID string
}

// SessionID returns the identifier attached to this logger's events.
func (l *SessionLogger) SessionID() string {
	return l.sessionID
}

// Record writes a single event.
func (l *SessionLogger) Record(event Event) error {
	return l.logger.recordEvent(l.sessionID, event)
}
