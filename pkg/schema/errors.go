package schema

import "errors"

// ErrNotFound indicates the requested schema or version does not exist.
var ErrNotFound = errors.New("schema not found")

// ErrConflict indicates a concurrent mutation won the version race. The
// caller should re-fetch the schema and resubmit; the losing update is
// never applied silently.
var ErrConflict = errors.New("schema version conflict")

// ErrVersionImmutable indicates an attempt to mutate a superseded
// version. Superseded versions are append-only history and never change.
var ErrVersionImmutable = errors.New("superseded schema version is immutable")
