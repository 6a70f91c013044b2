package backfill

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lightningsum/lightning/analyzer"
	"github.com/lightningsum/lightning/internal/mysqlmeta"
	"golang.org/x/sync/errgroup"
)

const (
	maxChunkRetries   = 3
	chunkRetryBackoff = 200 * time.Millisecond
)

const syntheticKeyColumn = "summary_id"

type pkRange struct {
	lo, hi int64
}

func splitChunks(minPK, maxPK int64, chunkSize int) []pkRange {
	var chunks []pkRange
	for lo := minPK; lo <= maxPK; lo += int64(chunkSize) {
		hi := lo + int64(chunkSize) - 1
		if hi > maxPK {
			hi = maxPK
		}
		chunks = append(chunks, pkRange{lo: lo, hi: hi})
	}
	return chunks
}

// runChunkedBackfill executes one INSERT ... SELECT ... ON DUPLICATE KEY
// UPDATE per PK chunk, up to cfg.ThreadCount concurrently, retrying a
// transiently-failing chunk up to maxChunkRetries times before surfacing
// ErrTransientDatabase. Cancellation is checked between dispatches; an
// in-flight chunk always runs to completion.
func (c *Coordinator) runChunkedBackfill(ctx context.Context, db *sql.DB, bctx Context, pkCol string, snap Snapshot, cfg Config, onProgress func(done, total int)) error {
	chunks := splitChunks(snap.MinPK, snap.MaxPK, cfg.ChunkSize)
	total := len(chunks)
	if total == 0 {
		return nil
	}

	stmt := buildBackfillInsert(bctx, pkCol)

	var completed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.ThreadCount)

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			break
		}
		chunk, idx := chunk, i+1
		g.Go(func() error {
			if err := runChunkWithRetry(gctx, db, stmt, chunk, snap.DBNow); err != nil {
				return fmt.Errorf("backfill chunk #%d: %w", idx, err)
			}
			done := completed.Add(1)
			if onProgress != nil {
				onProgress(int(done), total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}

func runChunkWithRetry(ctx context.Context, db *sql.DB, stmt string, chunk pkRange, dbNow time.Time) error {
	var lastErr error
	for attempt := 0; attempt <= maxChunkRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
			case <-time.After(chunkRetryBackoff):
			}
		}
		// Detached from cancellation so an attempt already started completes.
		_, err := db.ExecContext(context.WithoutCancel(ctx), stmt, chunk.lo, chunk.hi, dbNow)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("%w: chunk [%d,%d] after %d attempts: %v", ErrTransientDatabase, chunk.lo, chunk.hi, maxChunkRetries+1, lastErr)
}

// buildBackfillInsert renders the chunk statement with two placeholders for
// the PK range and a third for the dbNow high-water mark. Column order is
// key columns (or the synthetic literal key) followed by aggregate columns,
// matching ddl.Synthesize's physical layout.
func buildBackfillInsert(bctx Context, pkCol string) string {
	base := mysqlmeta.QuoteIdentifier(bctx.BaseTable)
	summary := mysqlmeta.QuoteIdentifier(bctx.SummaryName)
	pk := mysqlmeta.QuoteIdentifier(pkCol)

	var insertCols, selectCols, groupBy []string
	if len(bctx.GroupByCols) == 0 {
		insertCols = append(insertCols, mysqlmeta.QuoteIdentifier(syntheticKeyColumn))
		selectCols = append(selectCols, "1")
	} else {
		for _, col := range bctx.GroupByCols {
			q := mysqlmeta.QuoteIdentifier(col)
			insertCols = append(insertCols, q)
			selectCols = append(selectCols, q)
			groupBy = append(groupBy, q)
		}
	}

	var onDup []string
	for _, agg := range bctx.Aggregates {
		col := mysqlmeta.QuoteIdentifier(agg.Alias)
		insertCols = append(insertCols, col)
		selectCols = append(selectCols, aggregateExpr(agg))
		onDup = append(onDup, fmt.Sprintf("%s = %s + VALUES(%s)", col, col, col))
	}

	where := fmt.Sprintf("%s BETWEEN ? AND ? AND updated_at <= ?", pk)
	if bctx.WhereText != "" {
		where = fmt.Sprintf("(%s) AND %s", bctx.WhereText, where)
	}

	var groupByClause string
	if len(groupBy) > 0 {
		groupByClause = " GROUP BY " + strings.Join(groupBy, ", ")
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s WHERE %s%s ON DUPLICATE KEY UPDATE %s",
		summary,
		strings.Join(insertCols, ", "),
		strings.Join(selectCols, ", "),
		base,
		where,
		groupByClause,
		strings.Join(onDup, ", "),
	)
}

func aggregateExpr(agg analyzer.Aggregate) string {
	if agg.Func == analyzer.AggCount {
		return "COUNT(*)"
	}
	return fmt.Sprintf("SUM(%s)", mysqlmeta.QuoteIdentifier(agg.Col))
}
