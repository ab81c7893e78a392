// Package schema provides the versioned global schema model and the
// evolution matcher that reconciles uploaded file columns against it.
//
//nolint:revive // package contains related DTO types
package schema

import "time"

// MatchType classifies how a file column corresponds to a schema column.
type MatchType string

const (
	// MatchExact means the names are equal ignoring case.
	MatchExact MatchType = "exact"
	// MatchFuzzy means the names are similar above the configured threshold.
	MatchFuzzy MatchType = "fuzzy"
	// MatchNone means no schema column is close enough; the column is new.
	MatchNone MatchType = "none"
)

// Column defines a single column of the global schema.
type Column struct {
	Name       string   `json:"name" yaml:"name"`
	Type       string   `json:"type" yaml:"type"`
	Required   bool     `json:"required,omitempty" yaml:"required,omitempty"`
	PrimaryKey bool     `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Rules      []string `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// GlobalSchema is the current state of a project-wide schema. Version
// records form an immutable backward-linked chain: PreviousVersionID
// points at the version this one superseded, or is empty for version 1.
type GlobalSchema struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Columns           []Column  `json:"columns"`
	Version           int       `json:"version"`
	VersionID         string    `json:"version_id"`
	PreviousVersionID string    `json:"previous_version_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Column returns the schema column with the given name (exact match) and
// whether it exists.
func (s *GlobalSchema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// FileColumn is a typed column descriptor delivered by upstream file
// parsing: the inferred name and type plus a few representative values.
type FileColumn struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	SampleValues []string `json:"sampleValues,omitempty"`
}

// ColumnMapping links a file column to a schema column. Confidence is
// only meaningful for fuzzy matches and lies in [0,1].
type ColumnMapping struct {
	FileColumn   string    `json:"fileColumn"`
	SchemaColumn string    `json:"schemaColumn,omitempty"`
	MatchType    MatchType `json:"matchType"`
	Confidence   float64   `json:"confidence,omitempty"`
}

// IdentifyResult is the outcome of matching a file's columns against a
// global schema. NewColumns are the columns with no acceptable match;
// they are surfaced for explicit selection before any schema mutation.
type IdentifyResult struct {
	Mappings   []ColumnMapping `json:"mappings"`
	NewColumns []FileColumn    `json:"newColumns"`
}

// EvolveOptions controls how accepted new columns are applied.
type EvolveOptions struct {
	// AddNewColumns appends the accepted columns to the schema.
	AddNewColumns bool `json:"addNewColumns"`
	// MigrateData requests row-store backfill for the new columns.
	// Backfill is owned by the ingestion pipeline; the flag is recorded
	// in the result message.
	MigrateData bool `json:"migrateData"`
	// UpdateExistingRecords requests defaulting of existing rows.
	UpdateExistingRecords bool `json:"updateExistingRecords"`
	// CreateNewVersion creates a new immutable version node instead of
	// mutating the current version in place.
	CreateNewVersion bool `json:"createNewVersion"`
}

// EvolveResult reports the outcome of a schema evolution.
type EvolveResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Schema  *GlobalSchema
}
