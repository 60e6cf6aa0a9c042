package transform

import (
	"context"
	"database/sql"

	"starlift/pkg/errors"
)

// ConformResult reports per-dimension insert/update activity.
type ConformResult struct {
	CustomersInserted int
	CustomersUpdated  int
	SuppliersInserted int
	SuppliersUpdated  int
	ProductsInserted  int
	ProductsUpdated   int
	StatusesInserted  int
	ShipModesInserted int
}

// Conformer maintains the customer/supplier/product dimensions as Type-1:
// a new current row is inserted for unseen natural keys, and an existing
// current row is overwritten in place when its hashed business attributes
// differ from clean staging. At most one current row exists per natural key
// and no history is kept. Reference dimensions (status, ship mode) are
// distinct-value insert-if-absent on the natural code.
type Conformer struct{}

// NewConformer creates a dimension conformer.
func NewConformer() *Conformer {
	return &Conformer{}
}

const insertCustomersSQL = `INSERT INTO dwh.dim_customer (
    customer_id, customer_name, segment, city, state, region, email,
    valid_from, valid_to, is_current, customer_hash
)
SELECT
    c.customer_id, c.customer_name, c.segment, c.city, c.state, c.region, c.email,
    NOW(), NULL, TRUE,
    md5(concat_ws('|', c.customer_name, c.segment, c.city, c.state, c.region, c.email))
FROM staging_clean.customers_clean c
LEFT JOIN dwh.dim_customer d ON d.customer_id = c.customer_id AND d.is_current = TRUE
WHERE d.customer_id IS NULL`

const updateCustomersSQL = `UPDATE dwh.dim_customer d SET
    customer_name = c.customer_name,
    segment = c.segment,
    city = c.city,
    state = c.state,
    region = c.region,
    email = c.email,
    customer_hash = md5(concat_ws('|', c.customer_name, c.segment, c.city, c.state, c.region, c.email))
FROM staging_clean.customers_clean c
WHERE d.customer_id = c.customer_id AND d.is_current = TRUE
  AND d.customer_hash IS DISTINCT FROM
      md5(concat_ws('|', c.customer_name, c.segment, c.city, c.state, c.region, c.email))`

const insertSuppliersSQL = `INSERT INTO dwh.dim_supplier (
    supplier_id, supplier_name, country, contact_email, rating, lead_time_days,
    active, valid_from, valid_to, is_current, supplier_hash
)
SELECT
    s.supplier_id, s.supplier_name, s.country, s.contact_email, s.rating, s.lead_time_days,
    s.active, NOW(), NULL, TRUE,
    md5(concat_ws('|', s.supplier_name, s.country, s.contact_email, s.rating, s.lead_time_days, s.active))
FROM staging_clean.suppliers_clean s
LEFT JOIN dwh.dim_supplier d ON d.supplier_id = s.supplier_id AND d.is_current = TRUE
WHERE d.supplier_id IS NULL`

const updateSuppliersSQL = `UPDATE dwh.dim_supplier d SET
    supplier_name = s.supplier_name,
    country = s.country,
    contact_email = s.contact_email,
    rating = s.rating,
    lead_time_days = s.lead_time_days,
    active = s.active,
    supplier_hash = md5(concat_ws('|', s.supplier_name, s.country, s.contact_email, s.rating, s.lead_time_days, s.active))
FROM staging_clean.suppliers_clean s
WHERE d.supplier_id = s.supplier_id AND d.is_current = TRUE
  AND d.supplier_hash IS DISTINCT FROM
      md5(concat_ws('|', s.supplier_name, s.country, s.contact_email, s.rating, s.lead_time_days, s.active))`

const insertProductsSQL = `INSERT INTO dwh.dim_product (
    product_id, product_name, category, sub_category, unit_cost, unit_price,
    supplier_id, valid_from, valid_to, is_current, product_hash
)
SELECT
    p.product_id, p.product_name, p.category, p.sub_category, p.unit_cost, p.unit_price,
    p.supplier_id, NOW(), NULL, TRUE,
    md5(concat_ws('|', p.product_name, p.category, p.sub_category, p.unit_cost, p.unit_price, p.supplier_id))
FROM staging_clean.products_clean p
LEFT JOIN dwh.dim_product d ON d.product_id = p.product_id AND d.is_current = TRUE
WHERE d.product_id IS NULL`

const updateProductsSQL = `UPDATE dwh.dim_product d SET
    product_name = p.product_name,
    category = p.category,
    sub_category = p.sub_category,
    unit_cost = p.unit_cost,
    unit_price = p.unit_price,
    supplier_id = p.supplier_id,
    product_hash = md5(concat_ws('|', p.product_name, p.category, p.sub_category, p.unit_cost, p.unit_price, p.supplier_id))
FROM staging_clean.products_clean p
WHERE d.product_id = p.product_id AND d.is_current = TRUE
  AND d.product_hash IS DISTINCT FROM
      md5(concat_ws('|', p.product_name, p.category, p.sub_category, p.unit_cost, p.unit_price, p.supplier_id))`

const insertOrderStatusSQL = `INSERT INTO dwh.dim_order_status (status_code)
SELECT DISTINCT current_status
FROM staging_clean.orders_clean
WHERE current_status IS NOT NULL
ON CONFLICT (status_code) DO NOTHING`

const insertHistoryStatusSQL = `INSERT INTO dwh.dim_order_status (status_code)
SELECT DISTINCT status
FROM staging_clean.order_status_history_clean
WHERE status IS NOT NULL
ON CONFLICT (status_code) DO NOTHING`

const insertShipModeSQL = `INSERT INTO dwh.dim_ship_mode (ship_mode_code)
SELECT DISTINCT ship_mode
FROM staging_clean.orders_clean
WHERE ship_mode IS NOT NULL
ON CONFLICT (ship_mode_code) DO NOTHING`

// Conform upserts the business and reference dimensions within the caller's
// transaction.
func (c *Conformer) Conform(ctx context.Context, tx *sql.Tx) (*ConformResult, error) {
	result := &ConformResult{}

	steps := []struct {
		name  string
		query string
		out   *int
	}{
		{"insert customers", insertCustomersSQL, &result.CustomersInserted},
		{"update customers", updateCustomersSQL, &result.CustomersUpdated},
		{"insert suppliers", insertSuppliersSQL, &result.SuppliersInserted},
		{"update suppliers", updateSuppliersSQL, &result.SuppliersUpdated},
		{"insert products", insertProductsSQL, &result.ProductsInserted},
		{"update products", updateProductsSQL, &result.ProductsUpdated},
		{"insert order statuses", insertOrderStatusSQL, &result.StatusesInserted},
		{"insert history statuses", insertHistoryStatusSQL, &result.StatusesInserted},
		{"insert ship modes", insertShipModeSQL, &result.ShipModesInserted},
	}

	for _, step := range steps {
		res, err := tx.ExecContext(ctx, step.query)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTransformFailed,
				"Dimension conformance failed: "+step.name).
				WithContext("step", step.name)
		}
		affected, _ := res.RowsAffected()
		*step.out += int(affected)
	}

	return result, nil
}
