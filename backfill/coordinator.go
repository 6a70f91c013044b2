package backfill

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lightningsum/lightning/internal/mysqlmeta"
	"github.com/lightningsum/lightning/schema"
)

// Coordinator drives one backfill run. It holds no state between calls; a
// single zero-value Coordinator can run any number of backfills.
type Coordinator struct {
	// Logger receives one line per lifecycle event (snapshot captured, empty
	// base table, failed UNLOCK TABLES). Defaults to log.Default() when nil, matching
	// the teacher's stdlib-log-everywhere convention.
	Logger *log.Logger
}

func (c *Coordinator) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// Backfill installs trig (if any statement is non-empty) and brings bctx's
// summary table to an exact materialization of the base table, per chunk,
// under cfg's concurrency limits. onProgress, if non-nil, is invoked once
// per completed chunk with the running and total chunk counts.
func (c *Coordinator) Backfill(ctx context.Context, db *sql.DB, bctx Context, trig Triggers, cfg Config, onProgress func(done, total int)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic during backfill: %v", ErrLockWindowFailed, r)
		}
	}()

	pkCol, err := preflight(ctx, db, bctx.BaseTable)
	if err != nil {
		return err
	}

	snap, err := c.runLockWindow(ctx, db, bctx, trig, pkCol)
	if err != nil {
		return err
	}

	if snap.Empty {
		c.logger().Printf("backfill: %s has no rows to backfill, summary left empty", bctx.BaseTable)
		return nil
	}

	return c.runChunkedBackfill(ctx, db, bctx, pkCol, snap, cfg, onProgress)
}

// preflight resolves the base table's single numeric PK column and confirms
// updated_at exists, outside any lock, per the coordinator's contract that
// lock-window failures are never partial.
func preflight(ctx context.Context, db *sql.DB, baseTable string) (string, error) {
	schemaName, err := currentSchema(ctx, db)
	if err != nil {
		return "", fmt.Errorf("%w: resolving current schema: %v", ErrTransientDatabase, err)
	}

	hasUpdatedAt, err := schema.HasColumn(ctx, db, schemaName, baseTable, "updated_at")
	if err != nil {
		return "", fmt.Errorf("%w: checking updated_at: %v", ErrTransientDatabase, err)
	}
	if !hasUpdatedAt {
		return "", fmt.Errorf("%w: %s", ErrMissingUpdatedAt, baseTable)
	}

	pk, err := schema.PrimaryKey(ctx, db, schemaName, baseTable)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedSchema, err)
	}
	return pk, nil
}

func currentSchema(ctx context.Context, db *sql.DB) (string, error) {
	var name string
	if err := db.QueryRowContext(ctx, mysqlmeta.CurrentDatabase).Scan(&name); err != nil {
		return "", err
	}
	return name, nil
}

// runLockWindow acquires WRITE locks on both tables, installs triggers,
// captures dbNow and the PK range of pre-trigger rows, truncates the
// summary, and releases the locks — all on one dedicated connection. Any
// failure here is surfaced as ErrLockWindowFailed with the locks released
// and the summary not truncated. Trigger statements that ran before the
// failing step are not undone: those triggers stay installed.
func (c *Coordinator) runLockWindow(ctx context.Context, db *sql.DB, bctx Context, trig Triggers, pkCol string) (Snapshot, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: acquiring connection: %v", ErrLockWindowFailed, err)
	}
	defer conn.Close()

	base := mysqlmeta.QuoteIdentifier(bctx.BaseTable)
	summary := mysqlmeta.QuoteIdentifier(bctx.SummaryName)

	lockSQL := fmt.Sprintf("LOCK TABLES %s WRITE, %s WRITE", base, summary)
	if _, err := conn.ExecContext(ctx, lockSQL); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w: acquiring locks: %v", ErrLockWindowFailed, ErrTransientDatabase, err)
	}
	defer func() {
		if _, uerr := conn.ExecContext(context.Background(), "UNLOCK TABLES"); uerr != nil {
			c.logger().Printf("backfill: unlock tables failed: %v", uerr)
		}
	}()

	for _, stmt := range trig.statements() {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return Snapshot{}, fmt.Errorf("%w: installing trigger: %v", ErrLockWindowFailed, err)
		}
	}

	var dbNow time.Time
	if err := conn.QueryRowContext(ctx, "SELECT NOW()").Scan(&dbNow); err != nil {
		return Snapshot{}, fmt.Errorf("%w: capturing dbNow: %v", ErrLockWindowFailed, err)
	}

	rangeSQL := fmt.Sprintf(
		"SELECT MIN(%s), MAX(%s) FROM %s WHERE updated_at <= ?",
		mysqlmeta.QuoteIdentifier(pkCol), mysqlmeta.QuoteIdentifier(pkCol), base,
	)
	var minPK, maxPK sql.NullInt64
	if err := conn.QueryRowContext(ctx, rangeSQL, dbNow).Scan(&minPK, &maxPK); err != nil {
		return Snapshot{}, fmt.Errorf("%w: capturing PK range: %v", ErrLockWindowFailed, err)
	}

	if _, err := conn.ExecContext(ctx, "TRUNCATE "+summary); err != nil {
		return Snapshot{}, fmt.Errorf("%w: truncating summary: %v", ErrLockWindowFailed, err)
	}

	if !minPK.Valid {
		return Snapshot{DBNow: dbNow, Empty: true}, nil
	}
	c.logger().Printf("backfill: snapshot captured for %s: dbNow=%s pk=[%d,%d]", bctx.BaseTable, dbNow, minPK.Int64, maxPK.Int64)
	return Snapshot{DBNow: dbNow, MinPK: minPK.Int64, MaxPK: maxPK.Int64}, nil
}
