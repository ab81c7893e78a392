// Package merge manages user-defined merged-column views: named
// projections that concatenate existing file columns with a delimiter.
package merge

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownColumn indicates a requested source column is absent from
// the file's actual column set.
var ErrUnknownColumn = errors.New("column does not exist for file")

// ErrTooFewColumns indicates fewer than two source columns were given.
var ErrTooFewColumns = errors.New("a merge needs at least 2 source columns")

// ErrNameRequired indicates a blank merge name.
var ErrNameRequired = errors.New("merge name is required")

// ColumnMerge is a user-defined derived column over a file's table.
type ColumnMerge struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	FileID    string    `json:"fileId"`
	Name      string    `json:"mergeName"`
	Columns   []string  `json:"columnList"`
	Delimiter string    `json:"delimiter"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists column merge definitions.
type Store interface {
	// Create persists a merge definition.
	Create(ctx context.Context, m *ColumnMerge) error

	// ListByFile returns all merges for a file, oldest first.
	ListByFile(ctx context.Context, fileID string) ([]*ColumnMerge, error)

	// Get returns a merge by id, or nil when absent.
	Get(ctx context.Context, id string) (*ColumnMerge, error)

	// Delete removes a merge by id. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error
}
