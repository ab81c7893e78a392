// Package postgres provides PostgreSQL storage for versioned global schemas.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/tabletalk/tabletalk/pkg/schema"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// versionColumns lists columns returned by version SELECT queries.
var versionColumns = []string{
	"s.id", "s.name", "v.id", "v.version", "v.columns",
	"v.previous_version_id", "v.created_at", "s.updated_at",
}

// Store implements schema.Store using PostgreSQL. Version rows are
// append-only: only the row referenced by schemas.current_version_id is
// ever updated, so superseded versions stay immutable.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL schema store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the current state of a schema.
func (s *Store) Get(ctx context.Context, id string) (*schema.GlobalSchema, error) {
	query, args, err := currentVersionQuery().Where(sq.Eq{"s.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building schema query: %w", err)
	}
	return s.scanOne(s.db.QueryRowContext(ctx, query, args...))
}

// Create persists a new schema as version 1.
func (s *Store) Create(ctx context.Context, gs *schema.GlobalSchema) error {
	columnsJSON, err := json.Marshal(gs.Columns)
	if err != nil {
		return fmt.Errorf("encoding schema columns: %w", err)
	}

	if gs.ID == "" {
		gs.ID = uuid.NewString()
	}
	gs.Version = 1
	gs.VersionID = uuid.NewString()
	now := time.Now().UTC()
	gs.CreatedAt = now
	gs.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO schemas (id, name, current_version_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		gs.ID, gs.Name, gs.VersionID, now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting schema: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO schema_versions (id, schema_id, version, columns, previous_version_id, created_at)
		 VALUES ($1, $2, 1, $3, NULL, $4)`,
		gs.VersionID, gs.ID, columnsJSON, now,
	)
	if err != nil {
		return fmt.Errorf("inserting schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema create: %w", err)
	}
	return nil
}

// Update mutates the current version in place, guarded by the version
// number the caller read. Only the current version row can match, so
// superseded versions cannot be touched through this path.
func (s *Store) Update(ctx context.Context, id string, expectedVersion int, columns []schema.Column) (*schema.GlobalSchema, error) {
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return nil, fmt.Errorf("encoding schema columns: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE schema_versions v
		 SET columns = $3
		 FROM schemas s
		 WHERE s.id = $1 AND v.id = s.current_version_id AND v.version = $2`,
		id, expectedVersion, columnsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("updating schema version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return nil, s.conflictOrNotFound(ctx, id)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE schemas SET updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("touching schema: %w", err)
	}

	return s.Get(ctx, id)
}

// CreateVersion appends a new immutable version node and advances the
// current-version pointer. The superseded row is left unchanged.
func (s *Store) CreateVersion(ctx context.Context, id string, expectedVersion int, columns []schema.Column) (*schema.GlobalSchema, error) {
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return nil, fmt.Errorf("encoding schema columns: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentVersionID string
	var currentVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT v.id, v.version
		 FROM schemas s JOIN schema_versions v ON v.id = s.current_version_id
		 WHERE s.id = $1
		 FOR UPDATE OF s`,
		id,
	).Scan(&currentVersionID, &currentVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schema.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading current schema version: %w", err)
	}
	if currentVersion != expectedVersion {
		return nil, fmt.Errorf("expected version %d, found %d: %w",
			expectedVersion, currentVersion, schema.ErrConflict)
	}

	newVersionID := uuid.NewString()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO schema_versions (id, schema_id, version, columns, previous_version_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		newVersionID, id, currentVersion+1, columnsJSON, currentVersionID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting schema version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE schemas SET current_version_id = $2, updated_at = $3 WHERE id = $1`,
		id, newVersionID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("advancing current version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing schema version: %w", err)
	}

	return s.Get(ctx, id)
}

// GetVersion returns a specific version node by its version id.
func (s *Store) GetVersion(ctx context.Context, versionID string) (*schema.GlobalSchema, error) {
	query, args, err := psq.Select(versionColumns...).
		From("schema_versions v").
		Join("schemas s ON s.id = v.schema_id").
		Where(sq.Eq{"v.id": versionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building version query: %w", err)
	}
	return s.scanOne(s.db.QueryRowContext(ctx, query, args...))
}

// History returns all version nodes of a schema, newest first.
func (s *Store) History(ctx context.Context, id string) ([]*schema.GlobalSchema, error) {
	query, args, err := psq.Select(versionColumns...).
		From("schema_versions v").
		Join("schemas s ON s.id = v.schema_id").
		Where(sq.Eq{"v.schema_id": id}).
		OrderBy("v.version DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building history query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying schema history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []*schema.GlobalSchema
	for rows.Next() {
		gs, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, gs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schema history: %w", err)
	}
	return history, nil
}

// conflictOrNotFound distinguishes a lost version race from a missing
// schema after a zero-row update.
func (s *Store) conflictOrNotFound(ctx context.Context, id string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM schemas WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking schema existence: %w", err)
	}
	if !exists {
		return schema.ErrNotFound
	}
	return schema.ErrConflict
}

func currentVersionQuery() sq.SelectBuilder {
	return psq.Select(versionColumns...).
		From("schemas s").
		Join("schema_versions v ON v.id = s.current_version_id")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanOne(row rowScanner) (*schema.GlobalSchema, error) {
	gs, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schema.ErrNotFound
	}
	return gs, err
}

func scanVersion(row rowScanner) (*schema.GlobalSchema, error) {
	var gs schema.GlobalSchema
	var columnsJSON []byte
	var previousVersionID sql.NullString

	err := row.Scan(
		&gs.ID,
		&gs.Name,
		&gs.VersionID,
		&gs.Version,
		&columnsJSON,
		&previousVersionID,
		&gs.CreatedAt,
		&gs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning schema version row: %w", err)
	}

	if err := json.Unmarshal(columnsJSON, &gs.Columns); err != nil {
		return nil, fmt.Errorf("decoding schema columns: %w", err)
	}
	if previousVersionID.Valid {
		gs.PreviousVersionID = previousVersionID.String
	}
	return &gs, nil
}

// Verify interface compliance.
var _ schema.Store = (*Store)(nil)
