// Package lightning turns a single SUM/COUNT(*) group-by query into an
// incrementally-maintained summary table on a MariaDB/MySQL database:
// Generate analyzes the query and synthesizes DDL/triggers, Apply installs
// them and backfills historical rows under a short write lock.
package lightning

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lightningsum/lightning/analyzer"
	"github.com/lightningsum/lightning/backfill"
	"github.com/lightningsum/lightning/ddl"
	"github.com/lightningsum/lightning/internal/mysqlmeta"
	"github.com/lightningsum/lightning/schema"
)

// Generate parses and validates query, resolves its columns against the live
// schema reachable through db, and synthesizes the summary DDL and trigger
// bodies. It performs read-only INFORMATION_SCHEMA queries; it never writes.
func Generate(ctx context.Context, db *sql.DB, query string, opts ...Option) (*ddl.Artifacts, error) {
	if db == nil {
		return nil, ErrNilDB
	}

	var o generateOptions
	for _, opt := range opts {
		opt(&o)
	}

	q, err := analyzer.Analyze(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	schemaName, err := currentSchemaName(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	needed := make([]string, 0, len(q.GroupByCols)+len(q.Aggregates))
	needed = append(needed, q.GroupByCols...)
	for _, agg := range q.Aggregates {
		if agg.Func == analyzer.AggSum {
			needed = append(needed, agg.Col)
		}
	}

	var cols map[string]schema.ColumnInfo
	if len(needed) > 0 {
		cols, err = schema.Probe(ctx, db, schemaName, q.BaseTable, needed)
		if err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
	}

	artifacts, err := ddl.Synthesize(q, cols, o.summaryName)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return artifacts, nil
}

// Apply installs artifacts' triggers and backfills the summary table,
// reporting progress via onProgress as each backfill chunk completes.
func Apply(ctx context.Context, db *sql.DB, artifacts *ddl.Artifacts, cfg Config, onProgress func(done, total int)) error {
	if artifacts == nil {
		return ErrNilArtifacts
	}
	if db == nil {
		return ErrNilDB
	}
	cfg = cfg.normalize()

	coordinator := &backfill.Coordinator{}
	trig := backfill.Triggers{
		Insert: artifacts.Triggers.Insert,
		Update: artifacts.Triggers.Update,
		Delete: artifacts.Triggers.Delete,
	}
	bCfg := backfill.Config{ChunkSize: cfg.ChunkSize, ThreadCount: cfg.ThreadCount}

	if _, err := db.ExecContext(ctx, artifacts.SummaryDDL); err != nil {
		return fmt.Errorf("backfill: creating summary table: %w", err)
	}

	return coordinator.Backfill(ctx, db, artifacts.BackfillContext, trig, bCfg, onProgress)
}

func currentSchemaName(ctx context.Context, db *sql.DB) (string, error) {
	var name string
	if err := db.QueryRowContext(ctx, mysqlmeta.CurrentDatabase).Scan(&name); err != nil {
		return "", err
	}
	return name, nil
}
