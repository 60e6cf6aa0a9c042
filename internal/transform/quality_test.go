package transform

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualityGateReportsDuplicatesAndRemovals(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM staging_clean.customers_clean").
		WillReturnRows(sqlmock.NewRows([]string{"key", "ids", "count"}).
			AddRow("acme corp|ops@acme.test", []byte("{CUST-001,CUST-009}"), 2))
	mock.ExpectQuery("FROM staging_clean.products_clean").
		WillReturnRows(sqlmock.NewRows([]string{"key", "ids", "count"}))
	mock.ExpectExec("DELETE FROM staging_clean.orders_clean").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	report, err := NewQualityGate().Run(context.Background(), tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.Len(t, report.CustomerDuplicates, 1)
	group := report.CustomerDuplicates[0]
	assert.Equal(t, "acme corp|ops@acme.test", group.Key)
	assert.Equal(t, []string{"CUST-001", "CUST-009"}, group.RowIDs)
	assert.Equal(t, 2, group.Count)

	assert.Empty(t, report.ProductDuplicates)
	assert.Equal(t, 3, report.InvalidOrderDatesRemoved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQualityGateCleanData(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM staging_clean.customers_clean").
		WillReturnRows(sqlmock.NewRows([]string{"key", "ids", "count"}))
	mock.ExpectQuery("FROM staging_clean.products_clean").
		WillReturnRows(sqlmock.NewRows([]string{"key", "ids", "count"}))
	mock.ExpectExec("DELETE FROM staging_clean.orders_clean").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	report, err := NewQualityGate().Run(context.Background(), tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Empty(t, report.CustomerDuplicates)
	assert.Empty(t, report.ProductDuplicates)
	assert.Zero(t, report.InvalidOrderDatesRemoved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQualityGateDecodesQuotedArrayElements(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM staging_clean.customers_clean").
		WillReturnRows(sqlmock.NewRows([]string{"key", "ids", "count"}).
			AddRow("smith, john|js@acme.test", []byte(`{"CUST-001,A",CUST-002}`), 2))
	mock.ExpectQuery("FROM staging_clean.products_clean").
		WillReturnRows(sqlmock.NewRows([]string{"key", "ids", "count"}))
	mock.ExpectExec("DELETE FROM staging_clean.orders_clean").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	report, err := NewQualityGate().Run(context.Background(), tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.Len(t, report.CustomerDuplicates, 1)
	assert.Equal(t, []string{"CUST-001,A", "CUST-002"}, report.CustomerDuplicates[0].RowIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
