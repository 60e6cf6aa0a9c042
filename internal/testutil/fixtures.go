// Package testutil provides shared fixtures for pipeline tests.
package testutil

import "starlift/internal/gateway"

// SampleSnapshot returns a small but fully populated snapshot covering all
// six entities.
func SampleSnapshot() *gateway.Snapshot {
	return &gateway.Snapshot{
		Customers: []gateway.Record{
			{"customer_id": "CUST-001", "customer_name": "Acme Corp", "segment": "Corporate",
				"city": "Lyon", "state": "Rhone", "region": "East", "email": "ops@acme.test",
				"created_at": "2025-01-01T00:00:00Z", "updated_at": "2025-06-01T00:00:00Z"},
			{"customer_id": "CUST-002", "customer_name": "Globex", "segment": "Consumer",
				"city": "Paris", "state": "IDF", "region": "North", "email": "buy@globex.test",
				"created_at": "2025-02-01T00:00:00Z", "updated_at": "2025-06-02T00:00:00Z"},
		},
		Suppliers: []gateway.Record{
			{"supplier_id": "SUP-001", "supplier_name": "Nordic Parts", "country": "SE",
				"contact_email": "sales@nordic.test", "rating": 4.5, "lead_time_days": 7,
				"active": true, "created_at": "2025-01-01T00:00:00Z", "updated_at": "2025-05-01T00:00:00Z"},
		},
		Products: []gateway.Record{
			{"product_id": "PROD-001", "product_name": "Office Chair", "category": "Furniture",
				"sub_category": "Chairs", "unit_cost": 45.0, "unit_price": 99.9,
				"supplier_id": "SUP-001", "stock_quantity": 12,
				"created_at": "2025-01-01T00:00:00Z", "updated_at": "2025-05-10T00:00:00Z"},
		},
		Orders: []gateway.Record{
			{"order_id": "ORD-001", "customer_id": "CUST-001", "order_date": "2025-06-01",
				"ship_date": "2025-06-03", "current_status": "Shipped", "ship_mode": "Standard",
				"country": "France", "city": "Lyon", "state": "Rhone", "postal_code": "69001",
				"region": "East", "created_at": "2025-06-01T00:00:00Z", "updated_at": "2025-06-03T00:00:00Z"},
		},
		OrderLines: []gateway.Record{
			{"row_id": "ORD-001-1", "order_id": "ORD-001", "product_id": "PROD-001",
				"quantity": 2, "discount": 0.1, "sales": 179.82, "unit_price": 99.9,
				"cost": 90.0, "profit": 89.82, "created_at": "2025-06-01T00:00:00Z",
				"updated_at": "2025-06-01T00:00:00Z"},
		},
		StatusHistory: []gateway.Record{
			{"id": 1, "order_id": "ORD-001", "status": "Pending", "status_date": "2025-06-01T08:00:00Z",
				"updated_by": "system", "created_at": "2025-06-01T08:00:00Z"},
			{"id": 2, "order_id": "ORD-001", "status": "Shipped", "status_date": "2025-06-03T09:00:00Z",
				"updated_by": "warehouse", "created_at": "2025-06-03T09:00:00Z"},
		},
	}
}
