package nlquery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tabletalk/tabletalk/pkg/rowstore"
	"github.com/tabletalk/tabletalk/pkg/schema"
)

// DefaultSampleRows is the number of representative rows rendered per table.
const DefaultSampleRows = 3

// ContextBuilder renders schema facts into the grounding block placed
// ahead of the question in the generation prompt. Read-only; it never
// mutates anything.
type ContextBuilder struct {
	reader     *rowstore.Reader
	sampleRows int
}

// ContextBuilderConfig configures the context builder.
type ContextBuilderConfig struct {
	// SampleRows is the number of sample rows per table (default: 3).
	SampleRows int
}

// NewContextBuilder creates a context builder over the row store.
func NewContextBuilder(reader *rowstore.Reader, cfg ContextBuilderConfig) *ContextBuilder {
	sampleRows := cfg.SampleRows
	if sampleRows <= 0 {
		sampleRows = DefaultSampleRows
	}
	return &ContextBuilder{reader: reader, sampleRows: sampleRows}
}

// Build renders the tables in scope: columns with types, a few sample
// rows, and the row count per table. Types come from the global schema
// where a column name matches; unmatched columns render as "text".
func (b *ContextBuilder) Build(ctx context.Context, gs *schema.GlobalSchema, fileIDs []string) (string, error) {
	var sb strings.Builder

	for _, fileID := range fileIDs {
		if err := b.writeTable(ctx, &sb, gs, fileID); err != nil {
			return "", err
		}
	}

	if sb.Len() == 0 {
		writeSchemaColumns(&sb, gs)
	}
	return sb.String(), nil
}

func (b *ContextBuilder) writeTable(ctx context.Context, sb *strings.Builder, gs *schema.GlobalSchema, fileID string) error {
	table := rowstore.TableName(fileID)

	columns, err := b.reader.ColumnNames(ctx, fileID)
	if err != nil {
		return fmt.Errorf("describing table %s: %w", table, err)
	}
	count, err := b.reader.RowCount(ctx, fileID)
	if err != nil {
		return fmt.Errorf("counting table %s: %w", table, err)
	}
	samples, err := b.reader.SampleRows(ctx, fileID, b.sampleRows)
	if err != nil {
		return fmt.Errorf("sampling table %s: %w", table, err)
	}

	fmt.Fprintf(sb, "Table %s (%d rows):\n", table, count)
	for _, col := range columns {
		fmt.Fprintf(sb, "  %s %s\n", col, columnType(gs, col))
	}
	if len(samples) > 0 {
		sb.WriteString("Sample rows:\n")
		for _, row := range samples {
			sb.WriteString("  " + formatRow(columns, row) + "\n")
		}
	}
	sb.WriteString("\n")
	return nil
}

// writeSchemaColumns renders the global schema definition when no file
// scope was given.
func writeSchemaColumns(sb *strings.Builder, gs *schema.GlobalSchema) {
	fmt.Fprintf(sb, "Schema %s (version %d):\n", gs.Name, gs.Version)
	for _, c := range gs.Columns {
		fmt.Fprintf(sb, "  %s %s\n", c.Name, c.Type)
	}
}

// columnType resolves a column's type from the global schema, ignoring
// case, defaulting to text.
func columnType(gs *schema.GlobalSchema, name string) string {
	for _, c := range gs.Columns {
		if strings.EqualFold(c.Name, name) && c.Type != "" {
			return c.Type
		}
	}
	return "text"
}

// formatRow renders one sample row in declared column order, falling
// back to sorted keys when the column list is empty.
func formatRow(columns []string, row map[string]any) string {
	if len(columns) == 0 {
		columns = make([]string, 0, len(row))
		for k := range row {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}

	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, fmt.Sprintf("%s=%v", col, row[col]))
	}
	return strings.Join(parts, ", ")
}
