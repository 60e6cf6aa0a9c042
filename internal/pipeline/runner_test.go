package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starlift/internal/checksum"
	"starlift/internal/gateway"
	"starlift/internal/observability"
	"starlift/internal/testutil"
)

type fakeExtractor struct {
	snapshot *gateway.Snapshot
	err      error
}

func (f *fakeExtractor) FetchSnapshot(ctx context.Context) (*gateway.Snapshot, error) {
	return f.snapshot, f.err
}

type fakeWarehouse struct {
	db        *sql.DB
	schemaErr error
	applied   bool
}

func (f *fakeWarehouse) EnsureSchema(ctx context.Context) error {
	f.applied = true
	return f.schemaErr
}

func (f *fakeWarehouse) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return f.db.BeginTx(ctx, nil)
}

func (f *fakeWarehouse) DB() *sql.DB {
	return f.db
}

type fakeStore struct {
	checksums map[string]string
	saved     map[string]string
	saveErr   error
}

func (f *fakeStore) Load() (map[string]string, error) {
	if f.checksums == nil {
		return map[string]string{}, nil
	}
	return f.checksums, nil
}

func (f *fakeStore) Save(checksums map[string]string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = checksums
	return nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// expectStagePhase registers the raw staging transaction for SampleSnapshot.
func expectStagePhase(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE TABLE staging_raw.customers_raw").
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserts := []struct {
		table string
		rows  int
	}{
		{"staging_raw.customers_raw", 2},
		{"staging_raw.suppliers_raw", 1},
		{"staging_raw.products_raw", 1},
		{"staging_raw.orders_raw", 1},
		{"staging_raw.order_lines_raw", 1},
		{"staging_raw.order_status_history_raw", 2},
	}
	for _, ins := range inserts {
		prep := mock.ExpectPrepare("INSERT INTO " + ins.table)
		for i := 0; i < ins.rows; i++ {
			prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
		}
	}
	mock.ExpectCommit()
}

// expectTransformPhase registers the normalize + quality + conform transaction.
func expectTransformPhase(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE TABLE\\s+staging_clean.customers_clean").
		WillReturnResult(sqlmock.NewResult(0, 0))
	for _, table := range []string{
		"staging_clean.customers_clean",
		"staging_clean.suppliers_clean",
		"staging_clean.products_clean",
		"staging_clean.orders_clean",
		"staging_clean.order_lines_clean",
		"staging_clean.order_status_history_clean",
	} {
		mock.ExpectExec("INSERT INTO " + table).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	mock.ExpectQuery("FROM staging_clean.customers_clean").
		WillReturnRows(sqlmock.NewRows([]string{"key", "ids", "count"}))
	mock.ExpectQuery("FROM staging_clean.products_clean").
		WillReturnRows(sqlmock.NewRows([]string{"key", "ids", "count"}))
	mock.ExpectExec("DELETE FROM staging_clean.orders_clean").
		WillReturnResult(sqlmock.NewResult(0, 0))

	for _, fragment := range []string{
		"INSERT INTO dwh.dim_customer",
		"UPDATE dwh.dim_customer",
		"INSERT INTO dwh.dim_supplier",
		"UPDATE dwh.dim_supplier",
		"INSERT INTO dwh.dim_product",
		"UPDATE dwh.dim_product",
		"INSERT INTO dwh.dim_order_status",
		"INSERT INTO dwh.dim_order_status",
		"INSERT INTO dwh.dim_ship_mode",
	} {
		mock.ExpectExec(fragment).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()
}

// expectLoadPhase registers the dimension + fact load transaction.
func expectLoadPhase(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO dwh.dim_date").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO dwh.dim_geography").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO dwh.fact_sales_order_line").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO dwh.fact_order_status_transition").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO dwh.fact_inventory_snapshot").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func expectRunLog(mock sqlmock.Sqlmock, status string) {
	mock.ExpectExec("INSERT INTO dwh.etl_run_log").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), status, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func TestRunFullPipeline(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectStagePhase(mock)
	expectTransformPhase(mock)
	expectLoadPhase(mock)
	expectRunLog(mock, StatusSuccess)

	store := &fakeStore{}
	runner := NewRunner(&fakeExtractor{snapshot: testutil.SampleSnapshot()},
		&fakeWarehouse{db: db}, store, testLogger())

	result, err := runner.Run(context.Background(), Options{})

	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Len(t, result.ChangedEntities, len(gateway.EntityNames))
	assert.Equal(t, 2, result.ExtractCounts[gateway.EntityCustomers])
	assert.NotNil(t, result.Quality)
	assert.NotNil(t, result.Dimensions)
	assert.NotNil(t, result.Facts)
	assert.Len(t, store.saved, len(gateway.EntityNames))
	assert.NoError(t, result.ChecksumSaveError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunNoChangeSkipsWarehouse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	snapshot := testutil.SampleSnapshot()
	store := &fakeStore{checksums: checksum.SnapshotHashes(snapshot)}

	expectRunLog(mock, StatusNoChange)

	runner := NewRunner(&fakeExtractor{snapshot: snapshot},
		&fakeWarehouse{db: db}, store, testLogger())

	result, err := runner.Run(context.Background(), Options{})

	require.NoError(t, err)
	assert.Equal(t, StatusNoChange, result.Status)
	assert.Empty(t, result.ChangedEntities)
	assert.Nil(t, result.StageCounts)
	assert.Nil(t, store.saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunForceLoadsWithoutChanges(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	snapshot := testutil.SampleSnapshot()
	store := &fakeStore{checksums: checksum.SnapshotHashes(snapshot)}

	expectStagePhase(mock)
	expectTransformPhase(mock)
	expectLoadPhase(mock)
	expectRunLog(mock, StatusSuccess)

	runner := NewRunner(&fakeExtractor{snapshot: snapshot},
		&fakeWarehouse{db: db}, store, testLogger())

	result, err := runner.Run(context.Background(), Options{Force: true})

	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Empty(t, result.ChangedEntities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunDryRunWritesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := &fakeStore{}
	runner := NewRunner(&fakeExtractor{snapshot: testutil.SampleSnapshot()},
		&fakeWarehouse{db: db}, store, testLogger())

	result, err := runner.Run(context.Background(), Options{DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.NotEmpty(t, result.ChangedEntities)
	assert.Nil(t, store.saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunFailedPhaseRollsBackAndLogs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectStagePhase(mock)

	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE TABLE\\s+staging_clean.customers_clean").
		WillReturnError(fmt.Errorf("lock timeout"))
	mock.ExpectRollback()

	expectRunLog(mock, StatusFailed)

	store := &fakeStore{}
	runner := NewRunner(&fakeExtractor{snapshot: testutil.SampleSnapshot()},
		&fakeWarehouse{db: db}, store, testLogger())

	result, err := runner.Run(context.Background(), Options{})

	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Nil(t, store.saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunExtractFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectRunLog(mock, StatusFailed)

	runner := NewRunner(&fakeExtractor{err: fmt.Errorf("gateway down")},
		&fakeWarehouse{db: db}, &fakeStore{}, testLogger())

	result, err := runner.Run(context.Background(), Options{})

	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunChecksumSaveFailureStillSucceeds(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectStagePhase(mock)
	expectTransformPhase(mock)
	expectLoadPhase(mock)
	expectRunLog(mock, StatusSuccess)

	store := &fakeStore{saveErr: fmt.Errorf("disk full")}
	runner := NewRunner(&fakeExtractor{snapshot: testutil.SampleSnapshot()},
		&fakeWarehouse{db: db}, store, testLogger())

	result, err := runner.Run(context.Background(), Options{})

	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	require.Error(t, result.ChecksumSaveError)
	assert.Contains(t, result.ChecksumSaveError.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInitSchemaApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectStagePhase(mock)
	expectTransformPhase(mock)
	expectLoadPhase(mock)
	expectRunLog(mock, StatusSuccess)

	warehouse := &fakeWarehouse{db: db}
	runner := NewRunner(&fakeExtractor{snapshot: testutil.SampleSnapshot()},
		warehouse, &fakeStore{}, testLogger())

	_, err = runner.Run(context.Background(), Options{InitSchema: true})

	require.NoError(t, err)
	assert.True(t, warehouse.applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRunIDFormat(t *testing.T) {
	moment := time.Date(2025, 6, 1, 14, 30, 5, 0, time.UTC)
	assert.Equal(t, "run_20250601_143005", NewRunID(moment))
}
