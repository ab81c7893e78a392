package schema

import "context"

// Store persists global schemas and their version history. Postgres
// implements this; tests use a fake.
type Store interface {
	// Get returns the current state of a schema.
	Get(ctx context.Context, id string) (*GlobalSchema, error)

	// Create persists a new schema as version 1.
	Create(ctx context.Context, s *GlobalSchema) error

	// Update mutates the current version in place. ExpectedVersion is
	// the version number the caller read; a mismatch returns
	// ErrConflict and applies nothing.
	Update(ctx context.Context, id string, expectedVersion int, columns []Column) (*GlobalSchema, error)

	// CreateVersion appends a new immutable version node linked to the
	// current one via PreviousVersionID. ExpectedVersion guards against
	// concurrent evolutions; a mismatch returns ErrConflict. The
	// superseded version is preserved unchanged.
	CreateVersion(ctx context.Context, id string, expectedVersion int, columns []Column) (*GlobalSchema, error)

	// GetVersion returns a specific version node by its version id.
	GetVersion(ctx context.Context, versionID string) (*GlobalSchema, error)

	// History returns all version nodes of a schema, newest first.
	History(ctx context.Context, id string) ([]*GlobalSchema, error)
}
