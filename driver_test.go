package lightning

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_RejectsNilDB(t *testing.T) {
	_, err := Generate(context.Background(), nil, "SELECT user_id, COUNT(*) FROM orders GROUP BY user_id")
	assert.ErrorIs(t, err, ErrNilDB)
}

func TestGenerate_RejectsInvalidQueryWithoutTouchingDB(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = Generate(context.Background(), db, "SELECT user_id FROM orders")
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerate_ProducesArtifactsForValidQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT DATABASE\\(\\)").WillReturnRows(sqlmock.NewRows([]string{"db"}).AddRow("appdb"))

	rows := sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "CHARACTER_MAXIMUM_LENGTH", "IS_NULLABLE", "COLUMN_DEFAULT"}).
		AddRow("user_id", "int(11)", nil, "NO", nil).
		AddRow("cost", "decimal(10,2)", nil, "NO", nil)
	mock.ExpectQuery("SELECT(.|\n)*FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("appdb", "orders").
		WillReturnRows(rows)

	artifacts, err := Generate(context.Background(), db, "SELECT user_id, SUM(cost) AS total_cost FROM orders GROUP BY user_id")
	require.NoError(t, err)
	assert.Equal(t, "orders_user_id_summary", artifacts.SummaryName)
	assert.Contains(t, artifacts.SummaryDDL, "CREATE TABLE IF NOT EXISTS `orders_user_id_summary`")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_RejectsNilArtifacts(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = Apply(context.Background(), db, nil, Config{}, nil)
	assert.ErrorIs(t, err, ErrNilArtifacts)
}
