// Package postgres provides PostgreSQL storage for column merge definitions.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/tabletalk/tabletalk/pkg/merge"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// mergeColumns lists columns returned by merge SELECT queries.
var mergeColumns = []string{
	"id", "user_id", "file_id", "merge_name", "source_columns", "delimiter", "created_at",
}

// Store implements merge.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL merge store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create persists a merge definition.
func (s *Store) Create(ctx context.Context, m *merge.ColumnMerge) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO column_merges (id, user_id, file_id, merge_name, source_columns, delimiter, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.UserID, m.FileID, m.Name, pq.Array(m.Columns), m.Delimiter, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting column merge: %w", err)
	}
	return nil
}

// ListByFile returns all merges for a file, oldest first.
func (s *Store) ListByFile(ctx context.Context, fileID string) ([]*merge.ColumnMerge, error) {
	query, args, err := psq.Select(mergeColumns...).
		From("column_merges").
		Where(sq.Eq{"file_id": fileID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building merge list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing column merges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var merges []*merge.ColumnMerge
	for rows.Next() {
		m, err := scanMerge(rows)
		if err != nil {
			return nil, err
		}
		merges = append(merges, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating column merges: %w", err)
	}
	return merges, nil
}

// Get returns a merge by id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*merge.ColumnMerge, error) {
	query, args, err := psq.Select(mergeColumns...).
		From("column_merges").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building merge query: %w", err)
	}

	m, err := scanMerge(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// Delete removes a merge by id. Absent ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM column_merges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting column merge: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMerge(row rowScanner) (*merge.ColumnMerge, error) {
	var m merge.ColumnMerge
	var columns pq.StringArray

	err := row.Scan(&m.ID, &m.UserID, &m.FileID, &m.Name, &columns, &m.Delimiter, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning column merge row: %w", err)
	}
	m.Columns = columns
	return &m, nil
}

// Verify interface compliance.
var _ merge.Store = (*Store)(nil)
