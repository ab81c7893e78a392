// Package postgres provides PostgreSQL storage for the query audit log.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/tabletalk/tabletalk/pkg/audit"
)

const defaultQueryLimit = 100

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// auditColumns lists columns returned by audit SELECT queries.
var auditColumns = []string{
	"id", "timestamp", "duration_ms", "user_id", "file_id",
	"question", "sql_query", "row_count", "success", "error_message",
}

// Store implements audit.Logger using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Log records a query event.
func (s *Store) Log(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO query_log
		(id, timestamp, duration_ms, user_id, file_id, question, sql_query, row_count, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		event.DurationMS,
		event.UserID,
		event.FileID,
		event.Question,
		event.SQLQuery,
		event.RowCount,
		event.Success,
		event.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("inserting query log: %w", err)
	}
	return nil
}

// applyFilter adds filter conditions to a SELECT builder.
func applyFilter(qb sq.SelectBuilder, filter audit.QueryFilter) sq.SelectBuilder {
	if filter.StartTime != nil {
		qb = qb.Where(sq.GtOrEq{"timestamp": *filter.StartTime})
	}
	if filter.EndTime != nil {
		qb = qb.Where(sq.LtOrEq{"timestamp": *filter.EndTime})
	}
	if filter.UserID != "" {
		qb = qb.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.FileID != "" {
		qb = qb.Where(sq.Eq{"file_id": filter.FileID})
	}
	if filter.Success != nil {
		qb = qb.Where(sq.Eq{"success": *filter.Success})
	}
	return qb
}

// Query retrieves events matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	qb := applyFilter(psq.Select(auditColumns...).From("query_log"), filter)
	qb = qb.OrderBy("timestamp DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	qb = qb.Limit(uint64(limit))
	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query log query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying query log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]audit.Event, 0, limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query log rows: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (audit.Event, error) {
	var event audit.Event
	err := rows.Scan(
		&event.ID,
		&event.Timestamp,
		&event.DurationMS,
		&event.UserID,
		&event.FileID,
		&event.Question,
		&event.SQLQuery,
		&event.RowCount,
		&event.Success,
		&event.ErrorMessage,
	)
	if err != nil {
		return event, fmt.Errorf("scanning query log row: %w", err)
	}
	return event, nil
}

// Verify interface compliance.
var _ audit.Logger = (*Store)(nil)
