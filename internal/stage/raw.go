package stage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"starlift/internal/gateway"
	"starlift/pkg/errors"
)

// rawTable binds an entity collection to its staging_raw target and the
// column set copied from each record. Record fields outside the column set
// are ignored; missing fields insert as NULL.
type rawTable struct {
	entity  string
	name    string
	columns []string
}

var rawTables = []rawTable{
	{
		entity: gateway.EntityCustomers,
		name:   "staging_raw.customers_raw",
		columns: []string{
			"customer_id", "customer_name", "segment", "city", "state",
			"region", "email", "created_at", "updated_at",
		},
	},
	{
		entity: gateway.EntitySuppliers,
		name:   "staging_raw.suppliers_raw",
		columns: []string{
			"supplier_id", "supplier_name", "country", "contact_email",
			"contact_phone", "rating", "lead_time_days", "payment_terms",
			"active", "created_at", "updated_at",
		},
	},
	{
		entity: gateway.EntityProducts,
		name:   "staging_raw.products_raw",
		columns: []string{
			"product_id", "product_name", "category", "sub_category",
			"unit_cost", "unit_price", "supplier_id", "stock_quantity",
			"reorder_level", "reorder_quantity", "warehouse_location",
			"created_at", "updated_at",
		},
	},
	{
		entity: gateway.EntityOrders,
		name:   "staging_raw.orders_raw",
		columns: []string{
			"order_id", "customer_id", "order_date", "ship_date",
			"current_status", "ship_mode", "country", "city", "state",
			"postal_code", "region", "created_at", "updated_at",
		},
	},
	{
		entity: gateway.EntityOrderLines,
		name:   "staging_raw.order_lines_raw",
		columns: []string{
			"row_id", "order_id", "product_id", "quantity", "discount",
			"sales", "unit_price", "cost", "profit", "created_at", "updated_at",
		},
	},
	{
		entity: gateway.EntityStatusHistory,
		name:   "staging_raw.order_status_history_raw",
		columns: []string{
			"id", "order_id", "status", "status_date", "updated_by", "created_at",
		},
	},
}

// Stager performs the full-refresh load of staging_raw.
type Stager struct{}

// NewStager creates a raw stager.
func NewStager() *Stager {
	return &Stager{}
}

// Stage truncates every staging_raw table and inserts the snapshot's records,
// tagging each row with the run id. The caller owns the transaction: staging
// is destructive, so it must only become visible when the whole stage commits.
func (s *Stager) Stage(ctx context.Context, tx *sql.Tx, snapshot *gateway.Snapshot, runID string) (map[string]int, error) {
	names := make([]string, len(rawTables))
	for i, t := range rawTables {
		names[i] = t.name
	}
	truncate := "TRUNCATE TABLE " + strings.Join(names, ", ")
	if _, err := tx.ExecContext(ctx, truncate); err != nil {
		return nil, errors.SQLError("Failed to truncate raw staging tables", truncate, err).
			WithContext("phase", "stage")
	}

	collections := snapshot.Collections()
	counts := make(map[string]int, len(rawTables))

	for _, table := range rawTables {
		inserted, err := s.insertRows(ctx, tx, table, collections[table.entity], runID)
		if err != nil {
			return nil, err
		}
		counts[table.entity] = inserted
	}

	return counts, nil
}

func (s *Stager) insertRows(ctx context.Context, tx *sql.Tx, table rawTable, rows []gateway.Record, runID string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(table.columns)+1)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s, etl_run_id) VALUES (%s)",
		table.name,
		strings.Join(table.columns, ", "),
		strings.Join(placeholders, ", "),
	)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, errors.SQLError(fmt.Sprintf("Failed to prepare insert for %s", table.name), query, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]interface{}, 0, len(table.columns)+1)
		for _, column := range table.columns {
			args = append(args, normalizeValue(row[column]))
		}
		args = append(args, runID)

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeStagingFailed,
				fmt.Sprintf("Failed to insert row into %s", table.name)).
				WithContext("table", table.name)
		}
	}

	return len(rows), nil
}

// normalizeValue maps decoded JSON values onto driver-friendly types.
// Nested structures never occur in gateway payloads; anything unexpected is
// stringified.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, string, bool, float64, int, int64:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
