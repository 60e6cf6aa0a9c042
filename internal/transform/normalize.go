package transform

import (
	"context"
	"database/sql"

	"starlift/pkg/errors"
)

// Normalizer rebuilds staging_clean from staging_raw: one row per natural
// key (the most recently updated version wins), with trimmed + lowercased
// variants of the comparison text fields written alongside the originals.
// Rows with a null natural key are dropped.
type Normalizer struct{}

// NewNormalizer creates a normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

const truncateCleanSQL = `TRUNCATE TABLE
    staging_clean.customers_clean,
    staging_clean.suppliers_clean,
    staging_clean.products_clean,
    staging_clean.orders_clean,
    staging_clean.order_lines_clean,
    staging_clean.order_status_history_clean`

var normalizeStatements = []struct {
	entity string
	query  string
}{
	{
		entity: "customers",
		query: `INSERT INTO staging_clean.customers_clean (
    customer_id, customer_name, customer_name_normalized,
    segment, city, state, region,
    email, email_normalized, source_updated_at, etl_run_id
)
SELECT DISTINCT ON (customer_id)
    customer_id, customer_name, lower(trim(customer_name)),
    segment, city, state, region,
    email, lower(trim(email)), updated_at, $1
FROM staging_raw.customers_raw
WHERE customer_id IS NOT NULL
ORDER BY customer_id, updated_at DESC NULLS LAST`,
	},
	{
		entity: "suppliers",
		query: `INSERT INTO staging_clean.suppliers_clean (
    supplier_id, supplier_name, supplier_name_normalized,
    country, contact_email, contact_email_normalized,
    rating, lead_time_days, active, source_updated_at, etl_run_id
)
SELECT DISTINCT ON (supplier_id)
    supplier_id, supplier_name, lower(trim(supplier_name)),
    country, contact_email, lower(trim(contact_email)),
    rating, lead_time_days, active, updated_at, $1
FROM staging_raw.suppliers_raw
WHERE supplier_id IS NOT NULL
ORDER BY supplier_id, updated_at DESC NULLS LAST`,
	},
	{
		entity: "products",
		query: `INSERT INTO staging_clean.products_clean (
    product_id, product_name, product_name_normalized, category, sub_category,
    unit_cost, unit_price, supplier_id, stock_quantity, source_updated_at, etl_run_id
)
SELECT DISTINCT ON (product_id)
    product_id, product_name, lower(trim(product_name)),
    category, sub_category, unit_cost, unit_price,
    supplier_id, stock_quantity, updated_at, $1
FROM staging_raw.products_raw
WHERE product_id IS NOT NULL
ORDER BY product_id, updated_at DESC NULLS LAST`,
	},
	{
		entity: "orders",
		query: `INSERT INTO staging_clean.orders_clean (
    order_id, customer_id, order_date, ship_date,
    current_status, ship_mode, country, city, state,
    postal_code, region, source_updated_at, etl_run_id
)
SELECT DISTINCT ON (order_id)
    order_id, customer_id, order_date, ship_date,
    current_status, ship_mode, country, city, state,
    postal_code, region, updated_at, $1
FROM staging_raw.orders_raw
WHERE order_id IS NOT NULL
ORDER BY order_id, updated_at DESC NULLS LAST`,
	},
	{
		entity: "order_lines",
		query: `INSERT INTO staging_clean.order_lines_clean (
    row_id, order_id, product_id, quantity, discount, sales,
    unit_price, cost, profit, source_updated_at, etl_run_id
)
SELECT DISTINCT ON (row_id)
    row_id, order_id, product_id, quantity, discount, sales,
    unit_price, cost, profit, updated_at, $1
FROM staging_raw.order_lines_raw
WHERE row_id IS NOT NULL
ORDER BY row_id, updated_at DESC NULLS LAST`,
	},
	{
		entity: "order_status_history",
		query: `INSERT INTO staging_clean.order_status_history_clean (
    id, order_id, status, status_date, updated_by, source_updated_at, etl_run_id
)
SELECT DISTINCT ON (id)
    id, order_id, status, status_date, updated_by, created_at, $1
FROM staging_raw.order_status_history_raw
WHERE id IS NOT NULL
ORDER BY id, created_at DESC NULLS LAST`,
	},
}

// Normalize fully replaces staging_clean within the caller's transaction and
// returns per-entity inserted row counts.
func (n *Normalizer) Normalize(ctx context.Context, tx *sql.Tx, runID string) (map[string]int, error) {
	if _, err := tx.ExecContext(ctx, truncateCleanSQL); err != nil {
		return nil, errors.SQLError("Failed to truncate clean staging tables", truncateCleanSQL, err).
			WithContext("phase", "normalize")
	}

	counts := make(map[string]int, len(normalizeStatements))
	for _, stmt := range normalizeStatements {
		result, err := tx.ExecContext(ctx, stmt.query, runID)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTransformFailed,
				"Failed to normalize "+stmt.entity).
				WithContext("entity", stmt.entity)
		}
		affected, _ := result.RowsAffected()
		counts[stmt.entity] = int(affected)
	}

	return counts, nil
}
