package lightning

import "time"

// Backfill defaults. Per-chunk retry tuning lives in the backfill package
// itself, next to the retry loop it governs.
const (
	DefaultChunkSize   = 5000
	DefaultThreadCount = 4
)

// Connection pool defaults, mirrored by cmd/lightningctl when it opens its own *sql.DB.
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
	DBPingTimeout     = 5 * time.Second
)
