package load

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensionLoader(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO dwh.dim_date").WillReturnResult(sqlmock.NewResult(0, 42))
	mock.ExpectExec("INSERT INTO dwh.dim_geography").WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	result, err := NewDimensionLoader().Load(context.Background(), tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, 42, result.DatesInserted)
	assert.Equal(t, 7, result.GeographiesInserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDimensionLoaderAppendsOnly(t *testing.T) {
	assert.Contains(t, insertDatesSQL, "ON CONFLICT (date_key) DO NOTHING")
	assert.Contains(t, insertGeographiesSQL, "ON CONFLICT (geography_hash) DO NOTHING")
	// Inventory snapshots key on the load day, so it must be in dim_date.
	assert.Contains(t, insertDatesSQL, "CURRENT_DATE")
}

func TestFactLoader(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO dwh.fact_sales_order_line").
		WithArgs("run_x").WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec("INSERT INTO dwh.fact_order_status_transition").
		WithArgs("run_x").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("INSERT INTO dwh.fact_inventory_snapshot").
		WithArgs("run_x").WillReturnResult(sqlmock.NewResult(0, 6))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	result, err := NewFactLoader().Load(context.Background(), tx, "run_x")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, 10, result.SalesOrderLines)
	assert.Equal(t, 4, result.StatusTransitions)
	assert.Equal(t, 6, result.InventorySnapshots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFactLoaderFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO dwh.fact_sales_order_line").
		WithArgs("run_x").WillReturnError(fmt.Errorf("fk violation"))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	_, err = NewFactLoader().Load(context.Background(), tx, "run_x")
	require.Error(t, err)
	require.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFactUpsertsTargetTheirGrain(t *testing.T) {
	assert.Contains(t, upsertSalesSQL, "ON CONFLICT (order_id, row_id) DO UPDATE")
	assert.Contains(t, upsertTransitionsSQL, "ON CONFLICT (order_id, status_key, status_date) DO UPDATE")
	assert.Contains(t, upsertInventorySQL, "ON CONFLICT (snapshot_date_key, product_key) DO UPDATE")

	// Unresolved dimension references must not drop facts.
	assert.Contains(t, upsertSalesSQL, "LEFT JOIN dwh.dim_customer")
	assert.Contains(t, upsertSalesSQL, "LEFT JOIN dwh.dim_product")
	assert.Contains(t, upsertTransitionsSQL, "LEFT JOIN dwh.dim_order_status")
	assert.Contains(t, upsertInventorySQL, "LEFT JOIN dwh.dim_product")
}

func TestTransitionUpsertSkipsNullGrainRows(t *testing.T) {
	// NULLs are distinct in the unique constraint, so rows without a full
	// grain key must never reach the conflict target.
	assert.Contains(t, upsertTransitionsSQL,
		"WHERE h.status IS NOT NULL AND h.status_date IS NOT NULL")
}
