package report

import (
	"context"
	"database/sql"

	"starlift/pkg/errors"
)

// KPIs are the headline figures over all loaded sales facts.
type KPIs struct {
	Revenue         float64
	Profit          float64
	MarginPercent   float64
	Orders          int
	UniqueCustomers int
	AvgOrderValue   float64
}

// MonthRow is one month of the sales trend.
type MonthRow struct {
	Year    int
	Month   int
	Name    string
	Revenue float64
	Orders  int
	Profit  float64
}

// SegmentRow aggregates sales per customer segment.
type SegmentRow struct {
	Segment   string
	Customers int
	Revenue   float64
	Profit    float64
	Orders    int
}

// ProductRow is one entry of the top-products ranking.
type ProductRow struct {
	Name     string
	Category string
	Revenue  float64
	Quantity int
	Profit   float64
}

// CustomerRow is one entry of the top-customers ranking.
type CustomerRow struct {
	Name    string
	Segment string
	Revenue float64
	Orders  int
}

// StockRow is one product below the low-stock threshold in the latest
// inventory snapshot.
type StockRow struct {
	ProductName    string
	Category       string
	SupplierName   string
	QuantityOnHand int
	StockValue     float64
}

// VolumeRow is a warehouse table row count.
type VolumeRow struct {
	Table string
	Rows  int
}

// Summary bundles everything the report command renders.
type Summary struct {
	KPIs         KPIs
	MonthlyTrend []MonthRow
	Segments     []SegmentRow
	TopProducts  []ProductRow
	TopCustomers []CustomerRow
	LowStock     []StockRow
	Volumes      []VolumeRow
}

// Service runs read-only analytics queries over the star schema.
type Service struct {
	db       *sql.DB
	lowStock int
}

// NewService creates a report service. lowStock is the on-hand quantity
// below which a product appears in the low-stock alert list.
func NewService(db *sql.DB, lowStock int) *Service {
	if lowStock <= 0 {
		lowStock = 10
	}
	return &Service{db: db, lowStock: lowStock}
}

const kpisSQL = `SELECT
    COALESCE(SUM(sales_amount), 0),
    COALESCE(SUM(profit_amount), 0),
    COUNT(DISTINCT order_id),
    COUNT(DISTINCT customer_key)
FROM dwh.fact_sales_order_line`

const monthlyTrendSQL = `SELECT
    dd.year_number, dd.month_number, dd.month_name,
    SUM(f.sales_amount), COUNT(DISTINCT f.order_id), SUM(f.profit_amount)
FROM dwh.fact_sales_order_line f
JOIN dwh.dim_date dd ON dd.date_key = f.order_date_key
GROUP BY dd.year_number, dd.month_number, dd.month_name
ORDER BY dd.year_number, dd.month_number`

const segmentsSQL = `SELECT
    COALESCE(dc.segment, 'Unknown'),
    COUNT(DISTINCT dc.customer_key),
    SUM(f.sales_amount), SUM(f.profit_amount), COUNT(DISTINCT f.order_id)
FROM dwh.fact_sales_order_line f
JOIN dwh.dim_customer dc ON dc.customer_key = f.customer_key
GROUP BY dc.segment
ORDER BY SUM(f.sales_amount) DESC`

const topProductsSQL = `SELECT
    dp.product_name, COALESCE(dp.category, ''),
    SUM(f.sales_amount), COALESCE(SUM(f.quantity), 0), SUM(f.profit_amount)
FROM dwh.fact_sales_order_line f
JOIN dwh.dim_product dp ON dp.product_key = f.product_key
GROUP BY dp.product_name, dp.category
ORDER BY SUM(f.sales_amount) DESC
LIMIT 5`

const topCustomersSQL = `SELECT
    dc.customer_name, COALESCE(dc.segment, ''),
    SUM(f.sales_amount), COUNT(DISTINCT f.order_id)
FROM dwh.fact_sales_order_line f
JOIN dwh.dim_customer dc ON dc.customer_key = f.customer_key
GROUP BY dc.customer_name, dc.segment
ORDER BY SUM(f.sales_amount) DESC
LIMIT 5`

const lowStockSQL = `SELECT
    dp.product_name, COALESCE(dp.category, ''), COALESCE(ds.supplier_name, ''),
    COALESCE(fi.quantity_on_hand, 0), COALESCE(fi.stock_value, 0)
FROM dwh.fact_inventory_snapshot fi
JOIN dwh.dim_product dp ON dp.product_key = fi.product_key
LEFT JOIN dwh.dim_supplier ds ON ds.supplier_key = fi.supplier_key
WHERE fi.snapshot_date_key = (
    SELECT MAX(snapshot_date_key) FROM dwh.fact_inventory_snapshot
)
AND COALESCE(fi.quantity_on_hand, 0) < $1
ORDER BY fi.quantity_on_hand ASC`

const volumesSQL = `SELECT 'fact_sales_order_line', COUNT(*) FROM dwh.fact_sales_order_line
UNION ALL SELECT 'fact_order_status_transition', COUNT(*) FROM dwh.fact_order_status_transition
UNION ALL SELECT 'fact_inventory_snapshot', COUNT(*) FROM dwh.fact_inventory_snapshot
UNION ALL SELECT 'dim_customer', COUNT(*) FROM dwh.dim_customer
UNION ALL SELECT 'dim_supplier', COUNT(*) FROM dwh.dim_supplier
UNION ALL SELECT 'dim_product', COUNT(*) FROM dwh.dim_product
UNION ALL SELECT 'dim_date', COUNT(*) FROM dwh.dim_date
UNION ALL SELECT 'dim_geography', COUNT(*) FROM dwh.dim_geography
UNION ALL SELECT 'etl_run_log', COUNT(*) FROM dwh.etl_run_log`

// Summarize runs every analytics query and assembles the summary.
func (s *Service) Summarize(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	if err := s.db.QueryRowContext(ctx, kpisSQL).Scan(
		&summary.KPIs.Revenue, &summary.KPIs.Profit,
		&summary.KPIs.Orders, &summary.KPIs.UniqueCustomers,
	); err != nil {
		return nil, errors.SQLError("Failed to compute KPIs", kpisSQL, err)
	}
	if summary.KPIs.Revenue != 0 {
		summary.KPIs.MarginPercent = summary.KPIs.Profit / summary.KPIs.Revenue * 100
	}
	if summary.KPIs.Orders > 0 {
		summary.KPIs.AvgOrderValue = summary.KPIs.Revenue / float64(summary.KPIs.Orders)
	}

	if err := s.queryRows(ctx, monthlyTrendSQL, nil, func(rows *sql.Rows) error {
		var r MonthRow
		if err := rows.Scan(&r.Year, &r.Month, &r.Name, &r.Revenue, &r.Orders, &r.Profit); err != nil {
			return err
		}
		summary.MonthlyTrend = append(summary.MonthlyTrend, r)
		return nil
	}); err != nil {
		return nil, errors.SQLError("Failed to compute monthly trend", monthlyTrendSQL, err)
	}

	if err := s.queryRows(ctx, segmentsSQL, nil, func(rows *sql.Rows) error {
		var r SegmentRow
		if err := rows.Scan(&r.Segment, &r.Customers, &r.Revenue, &r.Profit, &r.Orders); err != nil {
			return err
		}
		summary.Segments = append(summary.Segments, r)
		return nil
	}); err != nil {
		return nil, errors.SQLError("Failed to compute segment breakdown", segmentsSQL, err)
	}

	if err := s.queryRows(ctx, topProductsSQL, nil, func(rows *sql.Rows) error {
		var r ProductRow
		if err := rows.Scan(&r.Name, &r.Category, &r.Revenue, &r.Quantity, &r.Profit); err != nil {
			return err
		}
		summary.TopProducts = append(summary.TopProducts, r)
		return nil
	}); err != nil {
		return nil, errors.SQLError("Failed to compute top products", topProductsSQL, err)
	}

	if err := s.queryRows(ctx, topCustomersSQL, nil, func(rows *sql.Rows) error {
		var r CustomerRow
		if err := rows.Scan(&r.Name, &r.Segment, &r.Revenue, &r.Orders); err != nil {
			return err
		}
		summary.TopCustomers = append(summary.TopCustomers, r)
		return nil
	}); err != nil {
		return nil, errors.SQLError("Failed to compute top customers", topCustomersSQL, err)
	}

	if err := s.queryRows(ctx, lowStockSQL, []interface{}{s.lowStock}, func(rows *sql.Rows) error {
		var r StockRow
		if err := rows.Scan(&r.ProductName, &r.Category, &r.SupplierName, &r.QuantityOnHand, &r.StockValue); err != nil {
			return err
		}
		summary.LowStock = append(summary.LowStock, r)
		return nil
	}); err != nil {
		return nil, errors.SQLError("Failed to compute low stock alerts", lowStockSQL, err)
	}

	if err := s.queryRows(ctx, volumesSQL, nil, func(rows *sql.Rows) error {
		var r VolumeRow
		if err := rows.Scan(&r.Table, &r.Rows); err != nil {
			return err
		}
		summary.Volumes = append(summary.Volumes, r)
		return nil
	}); err != nil {
		return nil, errors.SQLError("Failed to compute warehouse volumes", volumesSQL, err)
	}

	return summary, nil
}

func (s *Service) queryRows(ctx context.Context, query string, args []interface{}, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
