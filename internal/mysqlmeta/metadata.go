// Package mysqlmeta holds the raw INFORMATION_SCHEMA query text schema.Probe
// runs against a live connection. The query shapes are carried over from
// MySQLDialect.TableMetadata() in the dialect package this module started
// from; everything specific to the other four dialects that package served
// (SQL Server, Postgres, Oracle, SQLite) is gone; this module only ever
// talks to MySQL/MariaDB.
package mysqlmeta

// GetColumns returns COLUMN_NAME, COLUMN_TYPE, CHARACTER_MAXIMUM_LENGTH,
// IS_NULLABLE, COLUMN_DEFAULT for every column of one table, ordinal order.
// COLUMN_TYPE, not DATA_TYPE, carries precision/scale/length/unsigned-ness
// (DATA_TYPE for a DECIMAL(10,2) column is the bare string "decimal" —
// copying that into a CREATE TABLE silently truncates to DECIMAL(10,0)).
const GetColumns = `
	SELECT
		COLUMN_NAME,
		COLUMN_TYPE,
		CHARACTER_MAXIMUM_LENGTH,
		IS_NULLABLE,
		COLUMN_DEFAULT
	FROM INFORMATION_SCHEMA.COLUMNS
	WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	ORDER BY ORDINAL_POSITION`

// GetPrimaryKey returns the primary key column(s) of one table, in key
// order, alongside each column's DATA_TYPE so callers can reject a
// non-numeric PK before the backfill lock window is entered. Zero rows
// means no primary key; more than one row means a compound key — both are
// rejected by schema.PrimaryKey.
const GetPrimaryKey = `
	SELECT ku.COLUMN_NAME, c.DATA_TYPE
	FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
	JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE ku
		ON tc.CONSTRAINT_NAME = ku.CONSTRAINT_NAME
		AND tc.TABLE_SCHEMA = ku.TABLE_SCHEMA
		AND tc.TABLE_NAME = ku.TABLE_NAME
	JOIN INFORMATION_SCHEMA.COLUMNS c
		ON c.TABLE_SCHEMA = ku.TABLE_SCHEMA
		AND c.TABLE_NAME = ku.TABLE_NAME
		AND c.COLUMN_NAME = ku.COLUMN_NAME
	WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		AND tc.TABLE_SCHEMA = ?
		AND tc.TABLE_NAME = ?
	ORDER BY ku.ORDINAL_POSITION`

// TableExists reports whether the named table exists in the schema.
const TableExists = `
	SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
	WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?`

// CurrentDatabase mirrors MySQLDialect.CurrentDatabase(); used when the
// caller opens a connection without naming a schema explicitly.
const CurrentDatabase = "SELECT DATABASE()"

// QuoteIdentifier backtick-quotes a MySQL identifier, matching
// MySQLDialect.QuoteIdentifier. It does not escape embedded backticks; the
// name is quoted exactly as given.
func QuoteIdentifier(name string) string {
	return "`" + name + "`"
}
