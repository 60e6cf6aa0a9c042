package load

import (
	"context"
	"database/sql"

	"starlift/pkg/errors"
)

// DimensionResult reports rows added to the generated dimensions.
type DimensionResult struct {
	DatesInserted       int
	GeographiesInserted int
}

// DimensionLoader populates dim_date and dim_geography ahead of the fact
// loads. Both are append-only: dates come from every date column seen in
// clean staging plus the current day (inventory snapshots key on it), and
// geographies are hashed from the order shipping address fields.
type DimensionLoader struct{}

// NewDimensionLoader creates a dimension loader.
func NewDimensionLoader() *DimensionLoader {
	return &DimensionLoader{}
}

const insertDatesSQL = `INSERT INTO dwh.dim_date (
    date_key, full_date, day_of_month, month_number,
    month_name, quarter_number, year_number, is_weekend
)
SELECT DISTINCT
    CAST(to_char(d, 'YYYYMMDD') AS INTEGER),
    d,
    EXTRACT(DAY FROM d)::INT,
    EXTRACT(MONTH FROM d)::INT,
    to_char(d, 'Mon'),
    EXTRACT(QUARTER FROM d)::INT,
    EXTRACT(YEAR FROM d)::INT,
    EXTRACT(ISODOW FROM d) IN (6, 7)
FROM (
    SELECT CURRENT_DATE::date AS d
    UNION
    SELECT order_date::date FROM staging_clean.orders_clean WHERE order_date IS NOT NULL
    UNION
    SELECT ship_date::date FROM staging_clean.orders_clean WHERE ship_date IS NOT NULL
    UNION
    SELECT status_date::date FROM staging_clean.order_status_history_clean WHERE status_date IS NOT NULL
) src
ON CONFLICT (date_key) DO NOTHING`

const insertGeographiesSQL = `INSERT INTO dwh.dim_geography (
    country, region, state, city, postal_code, geography_hash
)
SELECT DISTINCT
    country, region, state, city, postal_code,
    md5(concat_ws('|', country, region, state, city, postal_code))
FROM staging_clean.orders_clean
ON CONFLICT (geography_hash) DO NOTHING`

// Load inserts any dates and geographies not yet present, within the
// caller's transaction.
func (l *DimensionLoader) Load(ctx context.Context, tx *sql.Tx) (*DimensionResult, error) {
	result := &DimensionResult{}

	res, err := tx.ExecContext(ctx, insertDatesSQL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLoadFailed, "Failed to load date dimension")
	}
	dates, _ := res.RowsAffected()
	result.DatesInserted = int(dates)

	res, err = tx.ExecContext(ctx, insertGeographiesSQL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLoadFailed, "Failed to load geography dimension")
	}
	geos, _ := res.RowsAffected()
	result.GeographiesInserted = int(geos)

	return result, nil
}
