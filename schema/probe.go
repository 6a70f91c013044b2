// Package schema reads INFORMATION_SCHEMA to resolve the concrete column
// types, nullability, and primary key the DDL synthesizer needs to turn an
// analyzed query into a summary table definition. The query shapes are
// grounded on MySQLDialect.TableMetadata() (internal/mysqlmeta), the same
// queries joaosoft-db-mcp's describe-table tool runs.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lightningsum/lightning/internal/mysqlmeta"
)

// ColumnInfo is one base-table column as reported by INFORMATION_SCHEMA.
type ColumnInfo struct {
	SQLType  string // INFORMATION_SCHEMA.COLUMNS.COLUMN_TYPE, e.g. "decimal(10,2)", "int(11)"
	Nullable bool
}

// numericPKTypes is the INFORMATION_SCHEMA.COLUMNS.DATA_TYPE family the
// backfill coordinator can range-chunk: it scans MIN/MAX of the PK into an
// int64, so the PK must be one of MySQL's integer types.
var numericPKTypes = map[string]bool{
	"tinyint":   true,
	"smallint":  true,
	"mediumint": true,
	"int":       true,
	"integer":   true,
	"bigint":    true,
}

// Probe returns, for each requested column, its SQL type and nullability.
// It fails with ErrMissingColumn if any requested column is absent from the
// base table.
func Probe(ctx context.Context, db *sql.DB, schemaName, table string, columns []string) (map[string]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, mysqlmeta.GetColumns, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("probing columns of %s.%s: %w", schemaName, table, err)
	}
	defer rows.Close()

	found := make(map[string]ColumnInfo)
	for rows.Next() {
		var (
			name       string
			columnType string
			maxLen     sql.NullInt64
			isNullable string
			colDefault sql.NullString
		)
		if err := rows.Scan(&name, &columnType, &maxLen, &isNullable, &colDefault); err != nil {
			return nil, fmt.Errorf("scanning column metadata for %s.%s: %w", schemaName, table, err)
		}
		found[name] = ColumnInfo{
			SQLType:  columnType,
			Nullable: isNullable == "YES",
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading column metadata for %s.%s: %w", schemaName, table, err)
	}

	result := make(map[string]ColumnInfo, len(columns))
	for _, c := range columns {
		info, ok := found[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s.%s", ErrMissingColumn, schemaName, table, c)
		}
		result[c] = info
	}
	return result, nil
}

// PrimaryKey returns the base table's single numeric primary-key column. It
// fails with ErrUnsupportedSchema if the table has no primary key, a
// compound one, or a non-numeric one — the backfill protocol range-chunks
// the PK as an integer, so anything else (VARCHAR, DATE, UUID) can't work.
func PrimaryKey(ctx context.Context, db *sql.DB, schemaName, table string) (string, error) {
	rows, err := db.QueryContext(ctx, mysqlmeta.GetPrimaryKey, schemaName, table)
	if err != nil {
		return "", fmt.Errorf("resolving primary key of %s.%s: %w", schemaName, table, err)
	}
	defer rows.Close()

	var cols []string
	var dataTypes []string
	for rows.Next() {
		var col, dataType string
		if err := rows.Scan(&col, &dataType); err != nil {
			return "", fmt.Errorf("scanning primary key of %s.%s: %w", schemaName, table, err)
		}
		cols = append(cols, col)
		dataTypes = append(dataTypes, dataType)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading primary key of %s.%s: %w", schemaName, table, err)
	}

	if len(cols) != 1 {
		return "", fmt.Errorf("%w: %s.%s has %d primary key columns, want 1", ErrUnsupportedSchema, schemaName, table, len(cols))
	}
	if !numericPKTypes[strings.ToLower(dataTypes[0])] {
		return "", fmt.Errorf("%w: %s.%s primary key %q has non-numeric type %q", ErrUnsupportedSchema, schemaName, table, cols[0], dataTypes[0])
	}
	return cols[0], nil
}

// HasColumn reports whether table has a column named name. The backfill
// coordinator uses this during its pre-flight check for updated_at.
func HasColumn(ctx context.Context, db *sql.DB, schemaName, table, name string) (bool, error) {
	_, err := Probe(ctx, db, schemaName, table, []string{name})
	if errors.Is(err, ErrMissingColumn) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
