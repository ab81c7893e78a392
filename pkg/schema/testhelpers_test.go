package schema

import (
	"context"
	"fmt"
)

// fakeStore is an in-memory Store for tests.
type fakeStore struct {
	schemas  map[string]*GlobalSchema
	history  map[string][]*GlobalSchema
	updates  int
	versions int
}

func newFakeStore(schemas ...*GlobalSchema) *fakeStore {
	s := &fakeStore{
		schemas: make(map[string]*GlobalSchema),
		history: make(map[string][]*GlobalSchema),
	}
	for _, gs := range schemas {
		s.schemas[gs.ID] = gs
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id string) (*GlobalSchema, error) {
	gs, ok := s.schemas[id]
	if !ok {
		return nil, ErrNotFound
	}
	return gs, nil
}

func (s *fakeStore) Create(_ context.Context, gs *GlobalSchema) error {
	if s.schemas == nil {
		s.schemas = make(map[string]*GlobalSchema)
	}
	gs.Version = 1
	s.schemas[gs.ID] = gs
	return nil
}

func (s *fakeStore) Update(_ context.Context, id string, expectedVersion int, columns []Column) (*GlobalSchema, error) {
	gs, ok := s.schemas[id]
	if !ok {
		return nil, ErrNotFound
	}
	if gs.Version != expectedVersion {
		return nil, ErrConflict
	}
	s.updates++
	gs.Columns = columns
	return gs, nil
}

func (s *fakeStore) CreateVersion(_ context.Context, id string, expectedVersion int, columns []Column) (*GlobalSchema, error) {
	gs, ok := s.schemas[id]
	if !ok {
		return nil, ErrNotFound
	}
	if gs.Version != expectedVersion {
		return nil, ErrConflict
	}
	s.versions++
	prev := *gs
	if s.history == nil {
		s.history = make(map[string][]*GlobalSchema)
	}
	s.history[id] = append([]*GlobalSchema{&prev}, s.history[id]...)

	next := &GlobalSchema{
		ID:                gs.ID,
		Name:              gs.Name,
		Columns:           columns,
		Version:           gs.Version + 1,
		VersionID:         fmt.Sprintf("v%d", gs.Version+1),
		PreviousVersionID: gs.VersionID,
	}
	s.schemas[id] = next
	return next, nil
}

func (s *fakeStore) GetVersion(_ context.Context, versionID string) (*GlobalSchema, error) {
	for _, versions := range s.history {
		for _, gs := range versions {
			if gs.VersionID == versionID {
				return gs, nil
			}
		}
	}
	for _, gs := range s.schemas {
		if gs.VersionID == versionID {
			return gs, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) History(_ context.Context, id string) ([]*GlobalSchema, error) {
	gs, ok := s.schemas[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]*GlobalSchema{gs}, s.history[id]...), nil
}

var _ Store = (*fakeStore)(nil)
