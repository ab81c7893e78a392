package nlquery

import (
	"context"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletalk/tabletalk/pkg/rowstore"
	"github.com/tabletalk/tabletalk/pkg/schema"
)

func testSchema() *schema.GlobalSchema {
	return &schema.GlobalSchema{
		ID:      "s1",
		Name:    "customers",
		Version: 2,
		Columns: []schema.Column{
			{Name: "id", Type: "integer"},
			{Name: "Name", Type: "text"},
			{Name: "age", Type: "integer"},
		},
	}
}

func TestBuild_RendersTableInScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT column_name").
		WithArgs("file_abc").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).
			AddRow("id").AddRow("name").AddRow("extra"))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery(`SELECT \* FROM "file_abc" LIMIT 2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "extra"}).
			AddRow(1, "ali", "x"))

	b := NewContextBuilder(rowstore.NewReader(db), ContextBuilderConfig{SampleRows: 2})
	got, err := b.Build(context.Background(), testSchema(), []string{"abc"})
	require.NoError(t, err)

	assert.Contains(t, got, "Table file_abc (42 rows):")
	assert.Contains(t, got, "id integer")
	// schema type lookup ignores case
	assert.Contains(t, got, "name text")
	// column absent from the schema defaults to text
	assert.Contains(t, got, "extra text")
	assert.Contains(t, got, "Sample rows:")
	assert.Contains(t, got, "id=1, name=ali, extra=x")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuild_NoScopeFallsBackToSchema(t *testing.T) {
	b := NewContextBuilder(rowstore.NewReader(nil), ContextBuilderConfig{})
	got, err := b.Build(context.Background(), testSchema(), nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "Schema customers (version 2):"), got)
	assert.Contains(t, got, "id integer")
	assert.Contains(t, got, "age integer")
}

func TestColumnType(t *testing.T) {
	gs := testSchema()
	if got := columnType(gs, "NAME"); got != "text" {
		t.Errorf("columnType(NAME) = %q, want text", got)
	}
	if got := columnType(gs, "unknown"); got != "text" {
		t.Errorf("columnType(unknown) = %q, want text", got)
	}
	if got := columnType(gs, "age"); got != "integer" {
		t.Errorf("columnType(age) = %q, want integer", got)
	}
}

func TestFormatRow_SortsWhenColumnsUnknown(t *testing.T) {
	got := formatRow(nil, map[string]any{"b": 2, "a": 1})
	if got != "a=1, b=2" {
		t.Errorf("formatRow = %q, want sorted keys", got)
	}
}
