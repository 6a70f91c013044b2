// Package backfill drives the lock → install-triggers → snapshot → unlock →
// chunked-backfill protocol that brings a summary table to an exact
// materialization of its analyzed query while the base table keeps taking
// writes. The worker pool is an errgroup.Group, the same bounded-concurrency
// primitive the rest of the retrieved pack already depends on directly.
package backfill

import (
	"time"

	"github.com/lightningsum/lightning/analyzer"
)

// Context carries everything the coordinator needs about the analyzed query;
// it is the ddl package's output, consumed here without any dependency back
// on ddl (Context has no knowledge of physical column types or DDL text).
type Context struct {
	BaseTable   string
	SummaryName string
	GroupByCols []string
	Aggregates  []analyzer.Aggregate
	WhereText   string
}

// Snapshot is captured once, inside the lock window, and consumed by every
// chunk of the backfill loop that follows.
type Snapshot struct {
	DBNow time.Time
	MinPK int64
	MaxPK int64
	Empty bool // true iff the base table had no rows with updated_at <= DBNow
}

// Config controls chunk size and worker concurrency. The zero value is
// invalid; callers go through lightning.Config.normalize() or supply
// positive values directly.
type Config struct {
	ChunkSize   int
	ThreadCount int
}

// Triggers holds the three CREATE TRIGGER statements to install inside the
// lock window, in the order they should execute. A nil/zero Triggers skips
// installation — useful when triggers were already installed by a prior run
// and only a re-backfill is needed.
type Triggers struct {
	Insert string
	Update string
	Delete string
}

func (t Triggers) statements() []string {
	var out []string
	for _, s := range []string{t.Insert, t.Update, t.Delete} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
