package nlquery

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tabletalk/tabletalk/pkg/rowstore"
)

const (
	// DefaultPageSize applies when the request leaves PageSize unset.
	DefaultPageSize = 25
	// DefaultMaxRows caps the rows any single page can return.
	DefaultMaxRows = 1000
	// DefaultStatementTimeout bounds a single execution.
	DefaultStatementTimeout = 30 * time.Second
)

// Executor runs validated SQL against the row store with pagination and
// timing. A statement timeout and a maximum-row cap bound the worst
// case cost of any accepted query text.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	maxRows int
}

// ExecutorConfig configures the executor.
type ExecutorConfig struct {
	// StatementTimeout bounds each execution (default: 30s).
	StatementTimeout time.Duration
	// MaxRows caps the page size (default: 1000).
	MaxRows int
}

// NewExecutor creates an executor over the row-store database.
func NewExecutor(db *sql.DB, cfg ExecutorConfig) *Executor {
	timeout := cfg.StatementTimeout
	if timeout == 0 {
		timeout = DefaultStatementTimeout
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Executor{db: db, timeout: timeout, maxRows: maxRows}
}

// ExecResult is one executed page plus totals.
type ExecResult struct {
	Columns       []string
	Rows          []map[string]any
	TotalRows     int64
	TotalPages    int
	CurrentPage   int
	ExecutionTime time.Duration
}

// Execute runs the SQL and returns the requested page. Failures return
// an ExecutionError carrying the SQL text, never a bare error.
func (e *Executor) Execute(ctx context.Context, sqlText string, page, pageSize int) (*ExecResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > e.maxRows {
		pageSize = e.maxRows
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()

	totalRows, err := e.countRows(ctx, sqlText)
	if err != nil {
		return nil, &ExecutionError{SQL: sqlText, Err: err}
	}

	offset := (page - 1) * pageSize
	pageQuery := fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d OFFSET %d", sqlText, pageSize, offset)

	rows, err := e.db.QueryContext(ctx, pageQuery)
	if err != nil {
		return nil, &ExecutionError{SQL: sqlText, Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &ExecutionError{SQL: sqlText, Err: err}
	}
	data, err := rowstore.ScanRows(rows)
	if err != nil {
		return nil, &ExecutionError{SQL: sqlText, Err: err}
	}

	return &ExecResult{
		Columns:       columns,
		Rows:          data,
		TotalRows:     totalRows,
		TotalPages:    totalPages(totalRows, pageSize),
		CurrentPage:   page,
		ExecutionTime: time.Since(start),
	}, nil
}

// countRows wraps the query in a COUNT so totals reflect the full
// result set, not just the requested page.
func (e *Executor) countRows(ctx context.Context, sqlText string) (int64, error) {
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS q", sqlText)
	var count int64
	if err := e.db.QueryRowContext(ctx, countQuery).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting result rows: %w", err)
	}
	return count, nil
}

// totalPages computes ceil(totalRows / pageSize).
func totalPages(totalRows int64, pageSize int) int {
	if totalRows == 0 {
		return 0
	}
	return int((totalRows + int64(pageSize) - 1) / int64(pageSize))
}
