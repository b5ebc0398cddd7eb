// Package audit records one append-only entry per executed operation.
// Entries are never updated or deleted.
package audit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Entry is one audit record.
type Entry struct {
	ID           string         `json:"log_id"`
	Timestamp    time.Time      `json:"timestamp"`
	UserID       string         `json:"user_id"`
	SessionID    string         `json:"session_id"`
	UserCommand  string         `json:"user_command"`
	ParsedIntent map[string]any `json:"parsed_intent"`
	Operation    string         `json:"openshift_operation"`
	Result       map[string]any `json:"operation_result"`
	Error        string         `json:"operation_error,omitempty"`
	Duration     time.Duration  `json:"duration_ns"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
}

// Failed reports whether the entry recorded an error.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// Sink accepts new entries. Implementations fill ID and Timestamp when they
// are empty.
type Sink interface {
	Record(ctx context.Context, e *Entry) error
}

// Reader answers the audit queries. Zero since/until mean unbounded.
type Reader interface {
	// UserActivity returns a user's entries, newest first.
	UserActivity(ctx context.Context, userID string, since, until time.Time, limit int) ([]Entry, error)
	// SessionTrail returns a session's entries, oldest first.
	SessionTrail(ctx context.Context, sessionID string) ([]Entry, error)
	// FailedOperations returns entries with an error, newest first.
	FailedOperations(ctx context.Context, since, until time.Time, limit int) ([]Entry, error)
}

// Store is a Sink that can also be queried.
type Store interface {
	Sink
	Reader
}

// LogSink writes entries to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

func (s *LogSink) Record(_ context.Context, e *Entry) error {
	fill(e)
	fields := []zap.Field{
		zap.String("log_id", e.ID),
		zap.String("user_id", e.UserID),
		zap.String("session_id", e.SessionID),
		zap.String("operation", e.Operation),
		zap.String("command", e.UserCommand),
		zap.Duration("duration", e.Duration),
	}
	if e.Failed() {
		s.logger.Warn("operation failed", append(fields, zap.String("error", e.Error))...)
		return nil
	}
	s.logger.Info("operation recorded", fields...)
	return nil
}

type fanout []Sink

// Fanout records every entry to all sinks and joins their errors.
func Fanout(sinks ...Sink) Sink {
	return fanout(sinks)
}

func (f fanout) Record(ctx context.Context, e *Entry) error {
	fill(e)
	var errs []error
	for _, s := range f {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
