package schema

import "errors"

var (
	// ErrMissingColumn is returned when a column the analyzer needs is not
	// present on the base table.
	ErrMissingColumn = errors.New("column not found on base table")

	// ErrUnsupportedSchema is returned when the base table's primary key is
	// missing, spans more than one column, or is not numeric.
	ErrUnsupportedSchema = errors.New("unsupported schema")
)
