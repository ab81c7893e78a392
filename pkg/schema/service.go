package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Service coordinates schema identification and evolution. Evolution
// mutates shared per-schema state, so it is serialized per schema id in
// addition to the store's compare-and-swap on the version number.
type Service struct {
	store   Store
	cache   *Cache
	matcher *Matcher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a schema service. The cache is optional; when
// present it is invalidated synchronously on every mutation.
func NewService(store Store, cache *Cache, matcher *Matcher) *Service {
	return &Service{
		store:   store,
		cache:   cache,
		matcher: matcher,
		locks:   make(map[string]*sync.Mutex),
	}
}

// schemaLock returns the mutex serializing mutations of one schema.
func (s *Service) schemaLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// Get returns the schema, through the cache when one is configured.
func (s *Service) Get(ctx context.Context, id string, bypassCache bool) (*GlobalSchema, error) {
	if s.cache != nil {
		return s.cache.Get(ctx, id, bypassCache)
	}
	return s.store.Get(ctx, id)
}

// History returns all version nodes of a schema, newest first.
func (s *Service) History(ctx context.Context, id string) ([]*GlobalSchema, error) {
	return s.store.History(ctx, id)
}

// Identify classifies the file columns against the schema's current
// version. Read-only; always safe against a cached snapshot.
func (s *Service) Identify(ctx context.Context, schemaID string, fileColumns []FileColumn) (*IdentifyResult, error) {
	current, err := s.Get(ctx, schemaID, false)
	if err != nil {
		return nil, fmt.Errorf("loading schema %s: %w", schemaID, err)
	}
	return s.matcher.Identify(fileColumns, current), nil
}

// Evolve applies accepted new columns to the schema. The apply is
// idempotent: columns whose names already exist (ignoring case) are
// skipped, so resubmitting the same accepted set changes nothing.
func (s *Service) Evolve(ctx context.Context, schemaID string, newColumns []FileColumn, opts EvolveOptions) (*EvolveResult, error) {
	lock := s.schemaLock(schemaID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Get(ctx, schemaID, true)
	if err != nil {
		return nil, fmt.Errorf("loading schema %s: %w", schemaID, err)
	}

	if !opts.AddNewColumns {
		return &EvolveResult{Success: true, Message: "no columns added", Schema: current}, nil
	}

	columns, added := appendNewColumns(current.Columns, newColumns)
	if added == 0 {
		return &EvolveResult{
			Success: true,
			Message: "all columns already present",
			Schema:  current,
		}, nil
	}

	var updated *GlobalSchema
	if opts.CreateNewVersion {
		updated, err = s.store.CreateVersion(ctx, schemaID, current.Version, columns)
	} else {
		updated, err = s.store.Update(ctx, schemaID, current.Version, columns)
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(schemaID)
	}

	slog.Info("schema evolved",
		"schema_id", schemaID,
		"columns_added", added,
		"version", updated.Version,
		"new_version", opts.CreateNewVersion,
	)

	msg := fmt.Sprintf("added %d column(s)", added)
	if opts.CreateNewVersion {
		msg += fmt.Sprintf("; created version %d", updated.Version)
	}
	if opts.MigrateData || opts.UpdateExistingRecords {
		// Backfill of already-ingested rows is owned by the ingestion
		// pipeline; the request is acknowledged, not performed here.
		msg += "; data migration deferred to ingestion"
	}

	return &EvolveResult{Success: true, Message: msg, Schema: updated}, nil
}

// appendNewColumns returns the column list with genuinely new columns
// appended and the number added. Name comparison ignores case.
func appendNewColumns(existing []Column, candidates []FileColumn) ([]Column, int) {
	columns := make([]Column, len(existing))
	copy(columns, existing)

	added := 0
	for _, fc := range candidates {
		if containsName(columns, fc.Name) {
			continue
		}
		columns = append(columns, Column{Name: fc.Name, Type: fc.Type})
		added++
	}
	return columns, added
}

func containsName(columns []Column, name string) bool {
	for _, c := range columns {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}
