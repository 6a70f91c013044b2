package lightning

import "errors"

// Driver-level errors. Component-specific taxonomy (invalid query, unsupported
// schema, missing updated_at, transient database, cancelled) lives next to the
// component that raises it: see analyzer.ErrInvalidQuery, schema.ErrUnsupportedSchema,
// backfill.ErrTransientDatabase and backfill.ErrCancelled.
var (
	ErrNilArtifacts = errors.New("artifacts is nil")
	ErrNilDB        = errors.New("database handle is nil")
)
