package analyzer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_SumWithGroupByAndWhere(t *testing.T) {
	q, err := Analyze(`
		SELECT customer_id, SUM(amount) AS total_amount
		FROM orders
		WHERE status = 'paid'
		GROUP BY customer_id
	`)
	require.NoError(t, err)
	assert.Equal(t, "orders", q.BaseTable)
	assert.Equal(t, []string{"customer_id"}, q.GroupByCols)
	assert.Equal(t, "status = 'paid'", q.WhereText)
	require.Len(t, q.Aggregates, 1)
	assert.Equal(t, Aggregate{Func: AggSum, Col: "amount", Alias: "total_amount"}, q.Aggregates[0])
}

func TestAnalyze_CountStarDefaultAlias(t *testing.T) {
	q, err := Analyze(`SELECT customer_id, COUNT(*) FROM orders GROUP BY customer_id`)
	require.NoError(t, err)
	require.Len(t, q.Aggregates, 1)
	assert.Equal(t, Aggregate{Func: AggCount, Col: "*", Alias: "row_count"}, q.Aggregates[0])
}

func TestAnalyze_SumDefaultAlias(t *testing.T) {
	q, err := Analyze(`SELECT region, SUM(revenue) FROM sales GROUP BY region`)
	require.NoError(t, err)
	assert.Equal(t, "sum_revenue", q.Aggregates[0].Alias)
}

func TestAnalyze_MultipleAggregatesAndGroupCols(t *testing.T) {
	q, err := Analyze(`
		SELECT region, plan_tier, SUM(revenue) AS rev, COUNT(*) AS cnt
		FROM sales
		GROUP BY region, plan_tier
	`)
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "plan_tier"}, q.GroupByCols)
	assert.Len(t, q.Aggregates, 2)
}

func TestAnalyze_NoWhereClause(t *testing.T) {
	q, err := Analyze(`SELECT customer_id, COUNT(*) FROM orders GROUP BY customer_id`)
	require.NoError(t, err)
	assert.Equal(t, "", q.WhereText)
}

func TestAnalyze_RejectsMultipleStatements(t *testing.T) {
	_, err := Analyze(`SELECT a, COUNT(*) FROM t GROUP BY a; SELECT 1`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorIs(t, err, ErrMultipleStatements)
}

func TestAnalyze_RejectsNonSelect(t *testing.T) {
	_, err := Analyze(`UPDATE orders SET status = 'x'`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorIs(t, err, ErrNotASelect)
}

func TestAnalyze_RejectsJoin(t *testing.T) {
	_, err := Analyze(`
		SELECT o.customer_id, SUM(o.amount)
		FROM orders o JOIN customers c ON o.customer_id = c.id
		GROUP BY o.customer_id
	`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.True(t, errors.Is(err, ErrNoFromTable))
}

func TestAnalyze_RejectsUngroupedColumn(t *testing.T) {
	_, err := Analyze(`SELECT customer_id, region, COUNT(*) FROM orders GROUP BY customer_id`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorIs(t, err, ErrUngroupedColumn)
}

func TestAnalyze_RejectsNoAggregates(t *testing.T) {
	_, err := Analyze(`SELECT customer_id FROM orders GROUP BY customer_id`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorIs(t, err, ErrNoAggregates)
}

func TestAnalyze_RejectsUnsupportedAggregateFunction(t *testing.T) {
	_, err := Analyze(`SELECT customer_id, AVG(amount) FROM orders GROUP BY customer_id`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorIs(t, err, ErrUnsupportedAggregate)
}

func TestAnalyze_RejectsCountOfColumn(t *testing.T) {
	_, err := Analyze(`SELECT customer_id, COUNT(amount) FROM orders GROUP BY customer_id`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorIs(t, err, ErrUnsupportedAggregate)
}

func TestAnalyze_RejectsSumOfExpression(t *testing.T) {
	_, err := Analyze(`SELECT customer_id, SUM(amount * 2) FROM orders GROUP BY customer_id`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorIs(t, err, ErrUnsupportedAggregate)
}

func TestAnalyze_RejectsDistinct(t *testing.T) {
	_, err := Analyze(`SELECT DISTINCT customer_id, COUNT(*) FROM orders GROUP BY customer_id`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorIs(t, err, ErrUnsupportedClause)
}

func TestAnalyze_RejectsHaving(t *testing.T) {
	_, err := Analyze(`SELECT customer_id, COUNT(*) AS c FROM orders GROUP BY customer_id HAVING c > 1`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorIs(t, err, ErrUnsupportedClause)
}

func TestAnalyze_RejectsOrderBy(t *testing.T) {
	_, err := Analyze(`SELECT customer_id, COUNT(*) FROM orders GROUP BY customer_id ORDER BY customer_id`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorIs(t, err, ErrUnsupportedClause)
}

func TestAnalyze_RejectsLimit(t *testing.T) {
	_, err := Analyze(`SELECT customer_id, COUNT(*) FROM orders GROUP BY customer_id LIMIT 10`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorIs(t, err, ErrUnsupportedClause)
}

func TestAnalyze_RejectsStar(t *testing.T) {
	_, err := Analyze(`SELECT * FROM orders GROUP BY customer_id`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestAnalyze_RejectsSubquery(t *testing.T) {
	_, err := Analyze(`SELECT customer_id, COUNT(*) FROM (SELECT * FROM orders) t GROUP BY customer_id`)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestAnalyze_WhereTextStopsAtGroupByAcrossParensAndLiterals(t *testing.T) {
	q, err := Analyze(`
		SELECT customer_id, COUNT(*)
		FROM orders
		WHERE status IN ('paid', 'shipped') AND notes NOT LIKE '%group by%'
		GROUP BY customer_id
	`)
	require.NoError(t, err)
	assert.Contains(t, q.WhereText, "NOT LIKE '%group by%'")
	assert.NotContains(t, q.WhereText, "GROUP BY customer_id")
}

func TestAnalyze_RejectsEmptyQuery(t *testing.T) {
	_, err := Analyze("   ")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}
