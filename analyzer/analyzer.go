// Package analyzer parses and validates the narrow SELECT shape this module
// turns into a materialized summary: a single base table, a pure group-by
// over bare columns, SUM/COUNT(*) aggregates, and an optional WHERE.
//
// Parsing is grounded on github.com/pingcap/tidb/parser, the same
// MySQL-grammar parser omniql-engine-omniql's engine/reverse/mysql.go walks
// to convert a *ast.SelectStmt into its own query model. This package walks
// the same AST shapes but validates instead of translating: anything outside
// the accepted subset fails closed with ErrInvalidQuery.
package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	_ "github.com/pingcap/tidb/parser/test_driver" // registers literal value AST nodes
)

// Acceptance-rule errors (spec §4.1). All are non-retryable: the caller fixed
// the query text, not the database.
var (
	ErrInvalidQuery         = errors.New("invalid query")
	ErrMultipleStatements   = errors.New("exactly one statement is required")
	ErrNotASelect           = errors.New("statement is not a SELECT")
	ErrNoFromTable          = errors.New("query must reference exactly one base table")
	ErrUnsupportedAggregate = errors.New("unsupported aggregate function or argument")
	ErrUngroupedColumn      = errors.New("select column is neither grouped nor aggregated")
	ErrNoAggregates         = errors.New("query has no aggregates")
	ErrUnsupportedGroupBy   = errors.New("GROUP BY items must be bare columns")
	ErrUnsupportedClause    = errors.New("clause not supported")
)

// AggFunc is the tagged variant of supported aggregate kinds.
type AggFunc string

const (
	AggSum   AggFunc = "SUM"
	AggCount AggFunc = "COUNT"
)

// Aggregate is one SELECT-list aggregate. Col is "*" iff Func is AggCount.
type Aggregate struct {
	Func  AggFunc
	Col   string
	Alias string
}

// AnalyzedQuery is the immutable result of Analyze.
type AnalyzedQuery struct {
	BaseTable   string
	WhereText   string
	GroupByCols []string
	Aggregates  []Aggregate
}

// Analyze parses sql and validates it against the accepted subset. Any rule
// violation returns an error wrapping ErrInvalidQuery.
func Analyze(sql string) (*AnalyzedQuery, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(sql), "; \t\n")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	normalized := trimmed + ";"

	p := parser.New()
	stmts, _, err := p.Parse(normalized, "", "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if len(stmts) != 1 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, ErrMultipleStatements)
	}

	stmt, ok := stmts[0].(*ast.SelectStmt)
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, ErrNotASelect)
	}

	baseTable, err := extractBaseTable(stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	if err := rejectUnsupportedClauses(stmt); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	groupByCols, err := extractGroupBy(stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	aggregates, bareCols, err := extractSelectList(stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if len(aggregates) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, ErrNoAggregates)
	}

	grouped := make(map[string]bool, len(groupByCols))
	for _, c := range groupByCols {
		grouped[c] = true
	}
	for _, c := range bareCols {
		if !grouped[c] {
			return nil, fmt.Errorf("%w: %w: %s", ErrInvalidQuery, ErrUngroupedColumn, c)
		}
	}

	return &AnalyzedQuery{
		BaseTable:   baseTable,
		WhereText:   extractWhereText(normalized),
		GroupByCols: groupByCols,
		Aggregates:  aggregates,
	}, nil
}

func extractBaseTable(stmt *ast.SelectStmt) (string, error) {
	if stmt.From == nil {
		return "", ErrNoFromTable
	}
	join, ok := stmt.From.TableRefs.(*ast.Join)
	if !ok || join.Right != nil {
		return "", ErrNoFromTable
	}
	src, ok := join.Left.(*ast.TableSource)
	if !ok {
		return "", ErrNoFromTable
	}
	tn, ok := src.Source.(*ast.TableName)
	if !ok {
		return "", ErrNoFromTable
	}
	return tn.Name.O, nil
}

func rejectUnsupportedClauses(stmt *ast.SelectStmt) error {
	switch {
	case stmt.Distinct:
		return fmt.Errorf("%w: DISTINCT", ErrUnsupportedClause)
	case stmt.Having != nil:
		return fmt.Errorf("%w: HAVING", ErrUnsupportedClause)
	case stmt.OrderBy != nil:
		return fmt.Errorf("%w: ORDER BY", ErrUnsupportedClause)
	case stmt.Limit != nil:
		return fmt.Errorf("%w: LIMIT", ErrUnsupportedClause)
	case stmt.With != nil:
		return fmt.Errorf("%w: WITH", ErrUnsupportedClause)
	}
	return nil
}

func extractGroupBy(stmt *ast.SelectStmt) ([]string, error) {
	if stmt.GroupBy == nil {
		return nil, nil
	}
	cols := make([]string, 0, len(stmt.GroupBy.Items))
	for _, item := range stmt.GroupBy.Items {
		colExpr, ok := item.Expr.(*ast.ColumnNameExpr)
		if !ok {
			return nil, ErrUnsupportedGroupBy
		}
		cols = append(cols, colExpr.Name.Name.O)
	}
	return cols, nil
}

func extractSelectList(stmt *ast.SelectStmt) ([]Aggregate, []string, error) {
	if stmt.Fields == nil {
		return nil, nil, ErrNoAggregates
	}

	var aggregates []Aggregate
	var bareCols []string

	for _, field := range stmt.Fields.Fields {
		if field.WildCard != nil {
			return nil, nil, fmt.Errorf("%w: SELECT *", ErrUnsupportedClause)
		}

		switch expr := field.Expr.(type) {
		case *ast.AggregateFuncExpr:
			agg, err := buildAggregate(expr, field.AsName.O)
			if err != nil {
				return nil, nil, err
			}
			aggregates = append(aggregates, agg)

		case *ast.ColumnNameExpr:
			bareCols = append(bareCols, expr.Name.Name.O)

		case *ast.WindowFuncExpr:
			return nil, nil, fmt.Errorf("%w: window function", ErrUnsupportedClause)

		default:
			return nil, nil, fmt.Errorf("%w: select expression %T", ErrUnsupportedClause, expr)
		}
	}

	return aggregates, bareCols, nil
}

func buildAggregate(expr *ast.AggregateFuncExpr, alias string) (Aggregate, error) {
	fn := strings.ToUpper(expr.F)
	switch fn {
	case "SUM":
		if len(expr.Args) != 1 {
			return Aggregate{}, fmt.Errorf("%w: SUM takes exactly one column", ErrUnsupportedAggregate)
		}
		colExpr, ok := expr.Args[0].(*ast.ColumnNameExpr)
		if !ok {
			return Aggregate{}, fmt.Errorf("%w: SUM argument must be a bare column", ErrUnsupportedAggregate)
		}
		col := colExpr.Name.Name.O
		if alias == "" {
			alias = "sum_" + col
		}
		return Aggregate{Func: AggSum, Col: col, Alias: alias}, nil

	case "COUNT":
		if !isCountStar(expr) {
			return Aggregate{}, fmt.Errorf("%w: only COUNT(*) is supported", ErrUnsupportedAggregate)
		}
		if alias == "" {
			alias = "row_count"
		}
		return Aggregate{Func: AggCount, Col: "*", Alias: alias}, nil

	default:
		return Aggregate{}, fmt.Errorf("%w: %s", ErrUnsupportedAggregate, fn)
	}
}

// isCountStar recognizes COUNT(*). The tidb grammar parses COUNT(*) as a
// single literal-1 argument, so a literal COUNT(1) is accepted as well; zero
// arguments or a single ColumnNameExpr named "*" are also accepted.
func isCountStar(expr *ast.AggregateFuncExpr) bool {
	if len(expr.Args) == 0 {
		return true
	}
	if len(expr.Args) != 1 {
		return false
	}
	if v, ok := expr.Args[0].(ast.ValueExpr); ok {
		return fmt.Sprint(v.GetValue()) == "1"
	}
	colExpr, ok := expr.Args[0].(*ast.ColumnNameExpr)
	return ok && colExpr.Name.Name.O == "*"
}

// reservedWords may not be prefixed with NEW./OLD. when rewriting a WHERE
// predicate for trigger embedding. Kept here (rather than in ddl) because it
// documents which tokens extractWhereText's caller must treat as keywords,
// not identifiers, when it later rewrites the returned text.
var reservedWords = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "IN": true, "IS": true,
	"NULL": true, "LIKE": true, "BETWEEN": true, "CASE": true,
	"WHEN": true, "THEN": true, "END": true, "TRUE": true, "FALSE": true,
}

// ReservedWords exposes the deny-list used by WHERE predicate rewriting so
// callers outside this package (ddl.prefixIdentifiers) share one definition.
func ReservedWords() map[string]bool {
	return reservedWords
}

// extractWhereText returns the raw predicate text between WHERE and
// GROUP BY/HAVING/ORDER BY/LIMIT/end-of-statement, verbatim. This is a
// textual scan rather than an AST round-trip deliberately: spec.md keeps the
// WHERE text unparsed so it can be re-embedded into trigger bodies exactly as
// the caller wrote it. The scan tracks quote and paren state so a WHERE/GROUP
// token inside a string literal or a parenthesized subexpression is ignored.
func extractWhereText(sql string) string {
	upper := strings.ToUpper(sql)
	wherePos := findTopLevelKeyword(upper, "WHERE", 0)
	if wherePos < 0 {
		return ""
	}
	start := wherePos + len("WHERE")

	end := len(sql) - 1 // drop the trailing synthetic ';'
	for _, kw := range []string{"GROUP BY", "HAVING", "ORDER BY", "LIMIT"} {
		if pos := findTopLevelKeyword(upper, kw, start); pos >= 0 && pos < end {
			end = pos
		}
	}

	return strings.TrimSpace(sql[start:end])
}

// findTopLevelKeyword finds kw in s at paren-depth 0 and outside quoted
// strings, starting the search at offset from. Returns -1 if not found.
func findTopLevelKeyword(s, kw string, from int) int {
	depth := 0
	var quote byte
	for i := from; i+len(kw) <= len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote && (i == 0 || s[i-1] != '\\') {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
			continue
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		if s[i:i+len(kw)] != kw {
			continue
		}
		if isWordBoundary(s, i, len(kw)) {
			return i
		}
	}
	return -1
}

func isWordBoundary(s string, start, length int) bool {
	if start > 0 && isIdentChar(s[start-1]) {
		return false
	}
	end := start + length
	if end < len(s) && isIdentChar(s[end]) {
		return false
	}
	return true
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
