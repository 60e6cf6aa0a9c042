package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starlift/pkg/errors"
)

func newTestServer(t *testing.T, customers []Record) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["username"] != "etl" || creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "test-token"})
	})

	requireAuth := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}
		return true
	}

	paginated := func(all []Record) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !requireAuth(w, r) {
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			end := offset + limit
			if offset > len(all) {
				offset = len(all)
			}
			if end > len(all) {
				end = len(all)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"items": all[offset:end]})
		}
	}

	mux.HandleFunc("/api/v1/customers", paginated(customers))
	mux.HandleFunc("/api/v1/catalog/products", paginated([]Record{
		{"product_id": "PROD-001", "product_name": "Office Chair"},
	}))
	mux.HandleFunc("/api/v1/suppliers", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"items": []Record{
			{"supplier_id": "SUP-001", "supplier_name": "Nordic Parts"},
		}})
	})
	mux.HandleFunc("/api/v1/sales/orders", paginated([]Record{
		{"order_id": "ORD-001"},
		{"order_id": "ORD-002"},
	}))
	mux.HandleFunc("/api/v1/sales/orders/ORD-001", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		json.NewEncoder(w).Encode(orderDetail{
			Order: Record{"order_id": "ORD-001", "customer_id": "CUST-001"},
			Lines: []Record{
				{"row_id": "ORD-001-1", "product_id": "PROD-001"},
				{"row_id": "ORD-001-2", "product_id": "PROD-001"},
			},
			StatusHistory: []Record{
				{"status": "Pending", "status_date": "2025-06-01T08:00:00Z"},
				{"status": "Shipped", "status_date": "2025-06-03T09:00:00Z"},
			},
		})
	})
	mux.HandleFunc("/api/v1/sales/orders/ORD-002", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		json.NewEncoder(w).Encode(orderDetail{
			Order: Record{"order_id": "ORD-002", "customer_id": "CUST-002"},
			StatusHistory: []Record{
				{"status": "Pending", "status_date": "2025-06-05T10:00:00Z"},
			},
		})
	})

	return httptest.NewServer(mux)
}

func testConfig(url string) Config {
	return Config{
		BaseURL:  url,
		Username: "etl",
		Password: "secret",
		PageSize: 2,
		Timeout:  5 * time.Second,
	}
}

func TestLogin(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	require.NoError(t, client.Login(context.Background()))
	assert.Equal(t, "test-token", client.token)
}

func TestLoginBadCredentials(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Password = "wrong"
	client := NewClient(cfg)

	err := client.Login(context.Background())

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAuthFailed, errors.GetErrorCode(err))
}

func TestLoginMissingCredentials(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused"})

	err := client.Login(context.Background())

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigMissing, errors.GetErrorCode(err))
}

func TestFetchSnapshot(t *testing.T) {
	customers := []Record{
		{"customer_id": "CUST-001"},
		{"customer_id": "CUST-002"},
		{"customer_id": "CUST-003"},
	}
	server := newTestServer(t, customers)
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	snapshot, err := client.FetchSnapshot(context.Background())

	require.NoError(t, err)

	// Page size 2 forces a pagination walk over the three customers.
	assert.Len(t, snapshot.Customers, 3)
	assert.Len(t, snapshot.Suppliers, 1)
	assert.Len(t, snapshot.Products, 1)
	assert.Len(t, snapshot.Orders, 2)
	assert.Len(t, snapshot.OrderLines, 2)
	assert.Len(t, snapshot.StatusHistory, 3)

	for _, line := range snapshot.OrderLines {
		assert.Equal(t, "ORD-001", line["order_id"])
	}

	// Synthetic status ids ascend across orders.
	for i, status := range snapshot.StatusHistory {
		assert.Equal(t, i+1, status["id"])
		assert.NotEmpty(t, status["order_id"])
	}

	counts := snapshot.Counts()
	assert.Equal(t, 3, counts[EntityCustomers])
	assert.Equal(t, 3, counts[EntityStatusHistory])
}

func TestFetchSnapshotLogsInFirst(t *testing.T) {
	server := newTestServer(t, []Record{{"customer_id": "CUST-001"}})
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	require.Empty(t, client.token)

	_, err := client.FetchSnapshot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "test-token", client.token)
}

func TestFetchSnapshotSkipsSummariesWithoutID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "test-token"})
	})
	empty := func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"items": []Record{}})
	}
	mux.HandleFunc("/api/v1/customers", empty)
	mux.HandleFunc("/api/v1/suppliers", empty)
	mux.HandleFunc("/api/v1/catalog/products", empty)
	var detailCalls int
	mux.HandleFunc("/api/v1/sales/orders", func(w http.ResponseWriter, r *http.Request) {
		all := []Record{
			{"order_id": nil},
			{"status": "no id at all"},
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		end := offset + limit
		if offset > len(all) {
			offset = len(all)
		}
		if end > len(all) {
			end = len(all)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"items": all[offset:end]})
	})
	mux.HandleFunc("/api/v1/sales/orders/", func(w http.ResponseWriter, r *http.Request) {
		detailCalls++
		fmt.Fprint(w, "{}")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	snapshot, err := client.FetchSnapshot(context.Background())

	require.NoError(t, err)
	assert.Empty(t, snapshot.Orders)
	assert.Zero(t, detailCalls)
}
