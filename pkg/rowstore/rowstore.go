// Package rowstore maps uploaded files to their row-store tables and
// provides the column allow-list used when user-supplied names end up
// in executable SQL.
package rowstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// TablePrefix namespaces per-file tables in the row store.
const TablePrefix = "file_"

// TableName derives the row-store table name for a file id. Anything
// outside [a-z0-9_] is folded to underscore so the result is always a
// plain identifier regardless of the id's origin.
func TableName(fileID string) string {
	var b strings.Builder
	b.Grow(len(TablePrefix) + len(fileID))
	b.WriteString(TablePrefix)
	for _, r := range strings.ToLower(fileID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// QuoteIdentifier quotes an identifier for safe inclusion in SQL text.
func QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

// Reader reads file tables from the row store.
type Reader struct {
	db *sql.DB
}

// NewReader creates a reader over the row-store database.
func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// ColumnNames returns the ordered column names of a file's table. This
// is the allow-list validated against before any user-supplied column
// name is composed into SQL.
func (r *Reader) ColumnNames(ctx context.Context, fileID string) ([]string, error) {
	query, args, err := psq.Select("column_name").
		From("information_schema.columns").
		Where(sq.Eq{"table_name": TableName(fileID)}).
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building column query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying columns for file %s: %w", fileID, err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning column name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}
	return names, nil
}

// RowCount returns the number of rows in a file's table.
func (r *Reader) RowCount(ctx context.Context, fileID string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", QuoteIdentifier(TableName(fileID)))
	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting rows for file %s: %w", fileID, err)
	}
	return count, nil
}

// SampleRows returns up to limit rows from a file's table as column
// name to value maps.
func (r *Reader) SampleRows(ctx context.Context, fileID string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", QuoteIdentifier(TableName(fileID)), limit)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sampling rows for file %s: %w", fileID, err)
	}
	defer func() { _ = rows.Close() }()

	return ScanRows(rows)
}

// ScanRows drains a result set into column name to value maps. Byte
// slices are converted to strings so results serialize cleanly.
func ScanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}
	return out, nil
}
