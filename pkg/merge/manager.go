package merge

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tabletalk/tabletalk/pkg/rowstore"
)

// DefaultPreviewLimit is the number of rows a preview reads.
const DefaultPreviewLimit = 10

// ColumnSource resolves a file's actual columns and sample rows.
// rowstore.Reader implements this.
type ColumnSource interface {
	ColumnNames(ctx context.Context, fileID string) ([]string, error)
	SampleRows(ctx context.Context, fileID string, limit int) ([]map[string]any, error)
}

// Manager creates, lists, deletes and previews column merges. Merge and
// column names originate from user input, so every identifier composed
// into SQL is first validated against the file's actual column set and
// then strictly quoted; raw concatenation of user text never happens.
type Manager struct {
	store  Store
	source ColumnSource
	db     *sql.DB
}

// NewManager creates a merge manager. db carries the row store
// connection used for view DDL; nil disables view materialization
// (definitions are still persisted and previewable).
func NewManager(store Store, source ColumnSource, db *sql.DB) *Manager {
	return &Manager{store: store, source: source, db: db}
}

// CreateRequest describes a merge to create.
type CreateRequest struct {
	UserID    string   `json:"-"`
	FileID    string   `json:"fileId"`
	Name      string   `json:"mergeName"`
	Columns   []string `json:"columnList"`
	Delimiter string   `json:"delimiter"`
}

// Create validates the request against the file's real columns,
// persists the definition, and materializes the merged-column view.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*ColumnMerge, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrNameRequired
	}
	if len(req.Columns) < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrTooFewColumns, len(req.Columns))
	}

	if err := m.checkColumns(ctx, req.FileID, req.Columns); err != nil {
		return nil, err
	}

	cm := &ColumnMerge{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		FileID:    req.FileID,
		Name:      req.Name,
		Columns:   req.Columns,
		Delimiter: req.Delimiter,
	}
	if err := m.store.Create(ctx, cm); err != nil {
		return nil, fmt.Errorf("persisting merge: %w", err)
	}

	if err := m.createView(ctx, cm); err != nil {
		// Definition without a view is recoverable; the reverse is not.
		if delErr := m.store.Delete(ctx, cm.ID); delErr != nil {
			slog.Error("orphaned merge definition after view failure",
				"merge_id", cm.ID, "error", delErr)
		}
		return nil, err
	}

	slog.Info("column merge created",
		"merge_id", cm.ID, "file_id", cm.FileID, "columns", len(cm.Columns))
	return cm, nil
}

// List returns all merges for a file.
func (m *Manager) List(ctx context.Context, fileID string) ([]*ColumnMerge, error) {
	return m.store.ListByFile(ctx, fileID)
}

// Delete drops a merge's view and removes its definition. Deleting an
// id that does not exist succeeds without effect.
func (m *Manager) Delete(ctx context.Context, id string) error {
	cm, err := m.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading merge %s: %w", id, err)
	}
	if cm == nil {
		return nil
	}

	if err := m.dropView(ctx, cm); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting merge %s: %w", id, err)
	}
	slog.Info("column merge deleted", "merge_id", id)
	return nil
}

// PreviewRequest describes a preview: same shape as a create, computed
// without persisting anything.
type PreviewRequest struct {
	FileID    string   `json:"fileId"`
	Columns   []string `json:"columnList"`
	Delimiter string   `json:"delimiter"`
	Limit     int      `json:"limit"`
}

// Preview returns sample rows with the merged value attached under the
// "merged" key. Nothing is persisted.
func (m *Manager) Preview(ctx context.Context, req PreviewRequest) ([]map[string]any, error) {
	if len(req.Columns) < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrTooFewColumns, len(req.Columns))
	}
	if err := m.checkColumns(ctx, req.FileID, req.Columns); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}

	rows, err := m.source.SampleRows(ctx, req.FileID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading preview rows: %w", err)
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		values := make([]string, 0, len(req.Columns))
		preview := make(map[string]any, len(req.Columns)+1)
		for _, col := range req.Columns {
			v := row[col]
			preview[col] = v
			values = append(values, stringValue(v))
		}
		preview["merged"] = JoinValues(values, req.Delimiter)
		out = append(out, preview)
	}
	return out, nil
}

// checkColumns verifies every requested column exists in the file's
// actual column set. This allow-list is what makes the later quoting
// safe to compose into view DDL.
func (m *Manager) checkColumns(ctx context.Context, fileID string, requested []string) error {
	actual, err := m.source.ColumnNames(ctx, fileID)
	if err != nil {
		return fmt.Errorf("resolving columns for file %s: %w", fileID, err)
	}

	allowed := make(map[string]struct{}, len(actual))
	for _, c := range actual {
		allowed[c] = struct{}{}
	}
	for _, c := range requested {
		if _, ok := allowed[c]; !ok {
			return fmt.Errorf("%w: %q in file %s", ErrUnknownColumn, c, fileID)
		}
	}
	return nil
}

// createView materializes the merged-column projection. All identifiers
// are allow-listed column names or derived view names, quoted with
// pq.QuoteIdentifier; the delimiter is a quoted literal.
func (m *Manager) createView(ctx context.Context, cm *ColumnMerge) error {
	if m.db == nil {
		return nil
	}

	table := rowstore.TableName(cm.FileID)
	args := make([]string, 0, len(cm.Columns)+1)
	args = append(args, pq.QuoteLiteral(cm.Delimiter))
	for _, col := range cm.Columns {
		// Blank values fold to NULL so CONCAT_WS skips them without
		// leaving doubled delimiters; kept values stay untrimmed to
		// match what Preview produces.
		q := pq.QuoteIdentifier(col)
		args = append(args, fmt.Sprintf("CASE WHEN BTRIM(%s::text) = '' THEN NULL ELSE %s::text END", q, q))
	}

	ddl := fmt.Sprintf(
		"CREATE OR REPLACE VIEW %s AS SELECT *, CONCAT_WS(%s) AS %s FROM %s",
		pq.QuoteIdentifier(viewName(cm)),
		strings.Join(args, ", "),
		pq.QuoteIdentifier(mergedColumnName(cm.Name)),
		pq.QuoteIdentifier(table),
	)

	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating merge view: %w", err)
	}
	return nil
}

// dropView removes the merged-column projection.
func (m *Manager) dropView(ctx context.Context, cm *ColumnMerge) error {
	if m.db == nil {
		return nil
	}
	ddl := fmt.Sprintf("DROP VIEW IF EXISTS %s", pq.QuoteIdentifier(viewName(cm)))
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("dropping merge view: %w", err)
	}
	return nil
}

// viewName derives a deterministic view name from the file table and
// the merge id, keeping hostile merge names out of the identifier.
func viewName(cm *ColumnMerge) string {
	return rowstore.TableName(cm.FileID) + "_merge_" + strings.ReplaceAll(cm.ID, "-", "")
}

// mergedColumnName folds a user-supplied merge name to a plain
// identifier for the derived column.
func mergedColumnName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "merged"
	}
	return b.String()
}

// JoinValues joins values with the delimiter, dropping values that are
// empty or whitespace-only so no leading, trailing or doubled
// delimiters appear.
func JoinValues(values []string, delimiter string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		kept = append(kept, v)
	}
	return strings.Join(kept, delimiter)
}

// stringValue renders a cell for merging; nil becomes empty.
func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
