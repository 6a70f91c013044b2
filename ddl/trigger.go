package ddl

import (
	"fmt"
	"strings"

	"github.com/lightningsum/lightning/analyzer"
)

// reserved tokens are never prefixed with NEW./OLD. when rewriting a WHERE
// predicate. The set is defined once in the analyzer package and shared
// through analyzer.ReservedWords.
var reserved = analyzer.ReservedWords()

func buildTriggers(q *analyzer.AnalyzedQuery, sch SummarySchema) TriggerSet {
	base := sanitizeIdent(q.BaseTable)
	insertName := base + "_after_insert_lightning"
	updateName := base + "_after_update_lightning"
	deleteName := base + "_after_delete_lightning"

	newPredicate := "1"
	oldPredicate := "1"
	if q.WhereText != "" {
		newPredicate = prefixIdentifiers(q.WhereText, "NEW")
		oldPredicate = prefixIdentifiers(q.WhereText, "OLD")
	}

	insertUpsert := buildUpsert(sch, "NEW", 1)
	deleteUpsert := buildUpsert(sch, "OLD", -1)

	insert := fmt.Sprintf(
		"CREATE TRIGGER `%s` AFTER INSERT ON `%s` FOR EACH ROW\nBEGIN\n  IF %s THEN\n    %s\n  END IF;\nEND",
		insertName, q.BaseTable, newPredicate, insertUpsert,
	)

	deleteTrig := fmt.Sprintf(
		"CREATE TRIGGER `%s` AFTER DELETE ON `%s` FOR EACH ROW\nBEGIN\n  IF %s THEN\n    %s\n  END IF;\nEND",
		deleteName, q.BaseTable, oldPredicate, deleteUpsert,
	)

	// UPDATE applies the OLD-image negative delta first, then the NEW-image
	// positive delta: a row whose group-by key changed zeroes the vacated
	// group before adding to the destination group.
	update := fmt.Sprintf(
		"CREATE TRIGGER `%s` AFTER UPDATE ON `%s` FOR EACH ROW\nBEGIN\n  IF %s THEN\n    %s\n  END IF;\n  IF %s THEN\n    %s\n  END IF;\nEND",
		updateName, q.BaseTable, oldPredicate, deleteUpsert, newPredicate, insertUpsert,
	)

	return TriggerSet{Insert: insert, Update: update, Delete: deleteTrig}
}

// buildUpsert renders the INSERT ... ON DUPLICATE KEY UPDATE statement for
// one row image (NEW or OLD) with sign +1 (additive) or -1 (subtractive).
func buildUpsert(sch SummarySchema, image string, sign int) string {
	keyCols := make([]string, len(sch.KeyColumns))
	keyVals := make([]string, len(sch.KeyColumns))
	for i, kc := range sch.KeyColumns {
		keyCols[i] = "`" + kc.Name + "`"
		if kc.Name == syntheticKeyColumn {
			keyVals[i] = "1"
			continue
		}
		keyVals[i] = image + "." + kc.Name
	}

	aggCols := make([]string, len(sch.AggColumns))
	aggVals := make([]string, len(sch.AggColumns))
	for i, ac := range sch.AggColumns {
		aggCols[i] = "`" + ac.Name + "`"
		aggVals[i] = aggDelta(ac, image, sign)
	}

	allCols := append(append([]string{}, keyCols...), aggCols...)
	allVals := append(append([]string{}, keyVals...), aggVals...)

	var onDup []string
	for _, ac := range sch.AggColumns {
		onDup = append(onDup, fmt.Sprintf("`%s` = `%s` + VALUES(`%s`)", ac.Name, ac.Name, ac.Name))
	}

	return fmt.Sprintf(
		"INSERT INTO `%s` (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s;",
		sch.SummaryName,
		strings.Join(allCols, ", "),
		strings.Join(allVals, ", "),
		strings.Join(onDup, ", "),
	)
}

func aggDelta(ac AggColumn, image string, sign int) string {
	switch ac.Func {
	case analyzer.AggSum:
		if sign < 0 {
			return fmt.Sprintf("-(%s.%s)", image, ac.SourceCol)
		}
		return image + "." + ac.SourceCol
	case analyzer.AggCount:
		if sign < 0 {
			return "-1"
		}
		return "1"
	default:
		return "0"
	}
}

// prefixIdentifiers rewrites bare column references in predicate with
// image-prefixed references (NEW.col / OLD.col), leaving string literals,
// numeric literals, and reserved keywords untouched. Table qualifiers
// (t.col) are stripped: the qualifier is dropped and only the column name is
// prefixed. Grounded on query_validation.go's removeStringLiterals-then-scan
// approach, adapted to rewrite rather than merely detect.
func prefixIdentifiers(predicate, image string) string {
	var out strings.Builder
	var quote byte
	i := 0
	for i < len(predicate) {
		c := predicate[i]

		if quote != 0 {
			out.WriteByte(c)
			if c == quote && (i == 0 || predicate[i-1] != '\\') {
				quote = 0
			}
			i++
			continue
		}

		if c == '\'' || c == '"' {
			quote = c
			out.WriteByte(c)
			i++
			continue
		}

		if isIdentStart(c) {
			start := i
			for i < len(predicate) && isIdentChar(predicate[i]) {
				i++
			}
			ident := predicate[start:i]

			if i < len(predicate) && predicate[i] == '.' {
				// Qualified reference: drop the qualifier, keep the column.
				i++
				colStart := i
				for i < len(predicate) && isIdentChar(predicate[i]) {
					i++
				}
				col := predicate[colStart:i]
				out.WriteString(image + "." + col)
				continue
			}

			upper := strings.ToUpper(ident)
			switch {
			case reserved[upper]:
				out.WriteString(ident)
			case nextNonSpaceIs(predicate, i, '('):
				// Function call name, not a column reference.
				out.WriteString(ident)
			default:
				out.WriteString(image + "." + ident)
			}
			continue
		}

		out.WriteByte(c)
		i++
	}
	return out.String()
}

func nextNonSpaceIs(s string, from int, want byte) bool {
	i := from
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return i < len(s) && s[i] == want
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
