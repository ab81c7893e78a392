// Package audit records executed natural-language queries: who asked
// what, the SQL that ran, and how it went.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one recorded query execution.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	DurationMS   int64     `json:"duration_ms"`
	UserID       string    `json:"user_id"`
	FileID       string    `json:"file_id,omitempty"`
	Question     string    `json:"question"`
	SQLQuery     string    `json:"sql_query"`
	RowCount     int64     `json:"row_count"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// NewEvent creates an event for a question, stamped now.
func NewEvent(userID, question string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Question:  question,
	}
}

// WithResult records the outcome. The SQL text is always kept, success
// or failure.
func (e *Event) WithResult(sqlQuery string, rowCount int64, err error, duration time.Duration) *Event {
	e.SQLQuery = sqlQuery
	e.RowCount = rowCount
	e.DurationMS = duration.Milliseconds()
	e.Success = err == nil
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}

// QueryFilter defines criteria for querying recorded events.
type QueryFilter struct {
	StartTime *time.Time
	EndTime   *time.Time
	UserID    string
	FileID    string
	Success   *bool
	Limit     int
	Offset    int
}

// Logger records and retrieves query events.
type Logger interface {
	// Log records an event.
	Log(ctx context.Context, event Event) error

	// Query retrieves events matching the filter, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
}

// NopLogger discards everything. Used when auditing is disabled.
type NopLogger struct{}

// Log discards the event.
func (NopLogger) Log(context.Context, Event) error { return nil }

// Query returns nothing.
func (NopLogger) Query(context.Context, QueryFilter) ([]Event, error) { return nil, nil }

// Verify interface compliance.
var _ Logger = NopLogger{}
