// Package ddl turns an analyzed query plus live column metadata into a
// summary table definition and the three delta triggers that keep it
// current. Grounded on the teacher's MySQLDialect (InnoDB + utf8mb4_unicode_ci
// is the storage/charset pair joaosoft-db-mcp's dialect layer assumes
// throughout its MySQL query templates) and on query_validation.go's
// literal-masking approach to scanning SQL text for identifiers.
package ddl

import (
	"fmt"
	"strings"

	"github.com/lightningsum/lightning/analyzer"
	"github.com/lightningsum/lightning/backfill"
	"github.com/lightningsum/lightning/schema"
)

// KeyColumn is one column of the summary table's primary key, copied from
// the base table's type for a grouped query.
type KeyColumn struct {
	Name     string
	SQLType  string
	Nullable bool
}

// AggColumn is one physical aggregate column on the summary table.
type AggColumn struct {
	Name      string
	SQLType   string
	Func      analyzer.AggFunc
	SourceCol string // "*" for COUNT
}

// SummarySchema is the physical shape of the summary table.
type SummarySchema struct {
	SummaryName string
	KeyColumns  []KeyColumn
	AggColumns  []AggColumn
	PrimaryKey  []string
}

// TriggerSet holds the three CREATE TRIGGER statements keyed by the base
// table event they fire on.
type TriggerSet struct {
	Insert string
	Update string
	Delete string
}

// Artifacts is everything Synthesize produces for one analyzed query.
type Artifacts struct {
	SummaryDDL      string
	Triggers        TriggerSet
	BackfillContext backfill.Context
	SummaryName     string
	Preview         string
}

const syntheticKeyColumn = "summary_id"

// Synthesize builds the summary DDL and trigger bodies for q. cols must
// contain an entry for every column q.GroupByCols and every SUM source
// column reference, keyed by column name (schema.Probe's return shape).
// nameOverride, if non-empty, replaces the derived summary table name.
func Synthesize(q *analyzer.AnalyzedQuery, cols map[string]schema.ColumnInfo, nameOverride string) (*Artifacts, error) {
	summaryName := nameOverride
	if summaryName == "" {
		summaryName = deriveSummaryName(q.BaseTable, q.GroupByCols)
	}

	sch := SummarySchema{SummaryName: summaryName}

	if len(q.GroupByCols) == 0 {
		sch.KeyColumns = []KeyColumn{{Name: syntheticKeyColumn, SQLType: "TINYINT UNSIGNED", Nullable: false}}
	} else {
		for _, c := range q.GroupByCols {
			info, ok := cols[c]
			if !ok {
				return nil, fmt.Errorf("%w: group-by column %q has no schema metadata", schema.ErrMissingColumn, c)
			}
			sch.KeyColumns = append(sch.KeyColumns, KeyColumn{Name: sanitizeIdent(c), SQLType: info.SQLType, Nullable: info.Nullable})
		}
	}
	for _, kc := range sch.KeyColumns {
		sch.PrimaryKey = append(sch.PrimaryKey, kc.Name)
	}

	for _, agg := range q.Aggregates {
		switch agg.Func {
		case analyzer.AggSum:
			info, ok := cols[agg.Col]
			if !ok {
				return nil, fmt.Errorf("%w: aggregate source column %q has no schema metadata", schema.ErrMissingColumn, agg.Col)
			}
			sch.AggColumns = append(sch.AggColumns, AggColumn{
				Name:      sanitizeIdent(agg.Alias),
				SQLType:   info.SQLType,
				Func:      analyzer.AggSum,
				SourceCol: agg.Col,
			})
		case analyzer.AggCount:
			sch.AggColumns = append(sch.AggColumns, AggColumn{
				Name:      sanitizeIdent(agg.Alias),
				SQLType:   "BIGINT UNSIGNED",
				Func:      analyzer.AggCount,
				SourceCol: "*",
			})
		}
	}

	ddlText := buildSummaryDDL(sch)
	triggers := buildTriggers(q, sch)

	return &Artifacts{
		SummaryDDL: ddlText,
		Triggers:   triggers,
		BackfillContext: backfill.Context{
			BaseTable:   q.BaseTable,
			SummaryName: summaryName,
			GroupByCols: q.GroupByCols,
			Aggregates:  q.Aggregates,
			WhereText:   q.WhereText,
		},
		SummaryName: summaryName,
		Preview:     buildPreview(ddlText, triggers),
	}, nil
}

func buildSummaryDDL(sch SummarySchema) string {
	var cols []string
	for _, kc := range sch.KeyColumns {
		// Key columns double as the primary key, so every one is NOT NULL
		// regardless of the source column's own nullability.
		def := ""
		if kc.Name == syntheticKeyColumn {
			def = " DEFAULT 1"
		}
		cols = append(cols, fmt.Sprintf("  `%s` %s NOT NULL%s", kc.Name, kc.SQLType, def))
	}
	for _, ac := range sch.AggColumns {
		cols = append(cols, fmt.Sprintf("  `%s` %s NOT NULL DEFAULT 0", ac.Name, ac.SQLType))
	}

	quotedPK := make([]string, len(sch.PrimaryKey))
	for i, k := range sch.PrimaryKey {
		quotedPK[i] = "`" + k + "`"
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS `%s` (\n%s,\n  PRIMARY KEY (%s)\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci",
		sch.SummaryName,
		strings.Join(cols, ",\n"),
		strings.Join(quotedPK, ", "),
	)
}

func buildPreview(ddlText string, triggers TriggerSet) string {
	return strings.Join([]string{ddlText, triggers.Insert, triggers.Update, triggers.Delete}, "\n\n")
}
