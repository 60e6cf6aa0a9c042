package transform

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"starlift/pkg/errors"
)

// DuplicateGroup identifies one set of clean rows sharing a duplicate key.
type DuplicateGroup struct {
	Key    string
	RowIDs []string
	Count  int
}

// QualityReport summarizes what the quality gate found and removed.
// Duplicate groups are an observability signal only; nothing is merged or
// deleted. Invalid order dates are removed and counted.
type QualityReport struct {
	CustomerDuplicates       []DuplicateGroup
	ProductDuplicates        []DuplicateGroup
	InvalidOrderDatesRemoved int
}

// QualityGate runs duplicate detection and structural validity checks over
// staging_clean.
type QualityGate struct{}

// NewQualityGate creates a quality gate.
func NewQualityGate() *QualityGate {
	return &QualityGate{}
}

const customerDuplicatesSQL = `SELECT
    customer_name_normalized || '|' || COALESCE(email_normalized, ''),
    array_agg(customer_id ORDER BY customer_id),
    COUNT(*)
FROM staging_clean.customers_clean
GROUP BY customer_name_normalized, COALESCE(email_normalized, '')
HAVING COUNT(*) > 1`

const productDuplicatesSQL = `SELECT
    product_name_normalized || '|' || COALESCE(supplier_id, ''),
    array_agg(product_id ORDER BY product_id),
    COUNT(*)
FROM staging_clean.products_clean
GROUP BY product_name_normalized, COALESCE(supplier_id, '')
HAVING COUNT(*) > 1`

const removeInvalidOrderDatesSQL = `DELETE FROM staging_clean.orders_clean
WHERE order_date IS NOT NULL AND ship_date IS NOT NULL AND ship_date < order_date`

// Run executes both quality checks within the caller's transaction.
func (q *QualityGate) Run(ctx context.Context, tx *sql.Tx) (*QualityReport, error) {
	report := &QualityReport{}

	customerGroups, err := q.duplicateGroups(ctx, tx, customerDuplicatesSQL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTransformFailed, "Failed to detect customer duplicates")
	}
	report.CustomerDuplicates = customerGroups

	productGroups, err := q.duplicateGroups(ctx, tx, productDuplicatesSQL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTransformFailed, "Failed to detect product duplicates")
	}
	report.ProductDuplicates = productGroups

	result, err := tx.ExecContext(ctx, removeInvalidOrderDatesSQL)
	if err != nil {
		return nil, errors.SQLError("Failed to remove orders with invalid dates", removeInvalidOrderDatesSQL, err)
	}
	removed, _ := result.RowsAffected()
	report.InvalidOrderDatesRemoved = int(removed)

	return report, nil
}

// duplicateGroups enumerates each duplicate-key group with the natural keys
// of its members, so downstream governance can act on the rows rather than a
// bare count.
func (q *QualityGate) duplicateGroups(ctx context.Context, tx *sql.Tx, query string) ([]DuplicateGroup, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []DuplicateGroup
	for rows.Next() {
		var group DuplicateGroup
		var rowIDs pq.StringArray
		if err := rows.Scan(&group.Key, &rowIDs, &group.Count); err != nil {
			return nil, err
		}
		group.RowIDs = []string(rowIDs)
		groups = append(groups, group)
	}
	return groups, rows.Err()
}
