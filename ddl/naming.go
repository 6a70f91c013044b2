package ddl

import "strings"

// deriveSummaryName builds the default summary table name:
// snakeCase(baseTable + "_" + join(groupByCols, "_") + "_summary"), dropping
// the group segment entirely when there is no grouping.
func deriveSummaryName(baseTable string, groupByCols []string) string {
	parts := []string{baseTable}
	parts = append(parts, groupByCols...)
	parts = append(parts, "summary")
	return snakeCase(strings.Join(parts, "_"))
}

// snakeCase lowercases s and replaces any run of characters outside
// [a-z0-9_] with a single underscore.
func snakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
		if ok {
			b.WriteRune(r)
			lastUnderscore = r == '_'
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// sanitizeIdent strips anything that isn't a legal bare SQL identifier
// character, matching the teacher's isValidIdentifier allowlist but applied
// as a filter rather than a validator: identifiers reaching this package
// come from parsed column/table names, not user-typed free text.
func sanitizeIdent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
