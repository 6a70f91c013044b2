package backfill

import "errors"

var (
	// ErrMissingUpdatedAt is returned during pre-flight when the base table
	// has no updated_at column.
	ErrMissingUpdatedAt = errors.New("base table has no updated_at column")

	// ErrUnsupportedSchema is returned when the base table's primary key is
	// missing, compound, or not numeric.
	ErrUnsupportedSchema = errors.New("unsupported schema")

	// ErrTransientDatabase wraps a lock-acquisition failure (never retried),
	// or a deadlock or other chunk execution failure that exhausted its
	// retries.
	ErrTransientDatabase = errors.New("transient database error")

	// ErrCancelled is returned when the caller's context was cancelled
	// between chunk dispatches. Deltas already applied remain valid; a
	// re-run converges.
	ErrCancelled = errors.New("backfill cancelled")

	// ErrLockWindowFailed wraps any failure that occurs while the lock is
	// held. The locks are released and the summary is not truncated;
	// triggers created before the failing step stay installed.
	ErrLockWindowFailed = errors.New("lock window failed")
)
