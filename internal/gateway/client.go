package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"starlift/pkg/errors"
)

// Record is one entity row as returned by the gateway, keyed by field name.
type Record map[string]interface{}

// Snapshot holds the six entity collections produced by one extraction run.
type Snapshot struct {
	Customers     []Record
	Suppliers     []Record
	Products      []Record
	Orders        []Record
	OrderLines    []Record
	StatusHistory []Record
}

// Entity names, used as checksum keys and staging labels.
const (
	EntityCustomers     = "customers"
	EntitySuppliers     = "suppliers"
	EntityProducts      = "products"
	EntityOrders        = "orders"
	EntityOrderLines    = "order_lines"
	EntityStatusHistory = "order_status_history"
)

// EntityNames lists all entity names in a stable order.
var EntityNames = []string{
	EntityCustomers,
	EntitySuppliers,
	EntityProducts,
	EntityOrders,
	EntityOrderLines,
	EntityStatusHistory,
}

// Config holds gateway connection configuration
type Config struct {
	BaseURL  string
	Username string
	Password string
	PageSize int
	Timeout  time.Duration
}

// Client is a token-authenticated client for the ERP REST gateway.
type Client struct {
	config Config
	client *http.Client
	token  string
}

// NewClient creates a new gateway client
func NewClient(config Config) *Client {
	if config.PageSize <= 0 {
		config.PageSize = 200
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Login authenticates against the gateway and stores the bearer token.
func (c *Client) Login(ctx context.Context) error {
	if c.config.Username == "" || c.config.Password == "" {
		return errors.New(errors.ErrCodeConfigMissing, "gateway username and password are required").
			WithSuggestions("Run 'starlift setup' to configure gateway credentials")
	}

	payload := map[string]string{
		"username": c.config.Username,
		"password": c.config.Password,
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.request(ctx, http.MethodPost, "/api/v1/auth/login", payload, &resp); err != nil {
		return errors.Wrap(err, errors.ErrCodeAuthFailed, "Gateway login failed").
			WithContext("user", c.config.Username).
			WithSuggestions(
				"Verify the gateway username and password",
				"Check that the gateway auth service is running",
			)
	}
	if resp.Token == "" {
		return errors.New(errors.ErrCodeAuthFailed, "Login succeeded without token in response")
	}

	c.token = resp.Token
	return nil
}

// FetchSnapshot pulls all six entity collections from the gateway.
// Order lines and status history rows are flattened from the per-order
// detail endpoint and stamped with their order_id; status history rows get a
// synthetic ascending id since the gateway exposes none.
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	if c.token == "" {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	customers, err := c.fetchPaginated(ctx, "/api/v1/customers")
	if err != nil {
		return nil, err
	}

	suppliers, err := c.fetchItems(ctx, "/api/v1/suppliers")
	if err != nil {
		return nil, err
	}

	products, err := c.fetchPaginated(ctx, "/api/v1/catalog/products")
	if err != nil {
		return nil, err
	}

	summaries, err := c.fetchPaginated(ctx, "/api/v1/sales/orders")
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Customers: customers,
		Suppliers: suppliers,
		Products:  products,
	}

	syntheticID := 1
	for _, summary := range summaries {
		orderID, ok := summary["order_id"]
		if !ok || orderID == nil || orderID == "" {
			continue
		}

		detail, err := c.fetchOrderDetail(ctx, fmt.Sprintf("%v", orderID))
		if err != nil {
			return nil, err
		}

		order := detail.Order
		if order == nil {
			order = Record{}
		}
		snapshot.Orders = append(snapshot.Orders, order)

		for _, line := range detail.Lines {
			copied := cloneRecord(line)
			copied["order_id"] = orderID
			snapshot.OrderLines = append(snapshot.OrderLines, copied)
		}

		for _, status := range detail.StatusHistory {
			copied := cloneRecord(status)
			copied["order_id"] = orderID
			copied["id"] = syntheticID
			syntheticID++
			snapshot.StatusHistory = append(snapshot.StatusHistory, copied)
		}
	}

	return snapshot, nil
}

// Collections returns the snapshot's entity collections keyed by entity name.
func (s *Snapshot) Collections() map[string][]Record {
	return map[string][]Record{
		EntityCustomers:     s.Customers,
		EntitySuppliers:     s.Suppliers,
		EntityProducts:      s.Products,
		EntityOrders:        s.Orders,
		EntityOrderLines:    s.OrderLines,
		EntityStatusHistory: s.StatusHistory,
	}
}

// Counts returns per-entity row counts.
func (s *Snapshot) Counts() map[string]int {
	counts := make(map[string]int, len(EntityNames))
	for name, records := range s.Collections() {
		counts[name] = len(records)
	}
	return counts
}

type orderDetail struct {
	Order         Record   `json:"order"`
	Lines         []Record `json:"lines"`
	StatusHistory []Record `json:"status_history"`
}

func (c *Client) fetchOrderDetail(ctx context.Context, orderID string) (*orderDetail, error) {
	var detail orderDetail
	path := "/api/v1/sales/orders/" + url.PathEscape(orderID)
	if err := c.request(ctx, http.MethodGet, path, nil, &detail); err != nil {
		return nil, errors.GatewayError(fmt.Sprintf("Failed to fetch order detail %s", orderID), err)
	}
	return &detail, nil
}

// fetchPaginated walks an offset/limit paginated collection endpoint until a
// short or empty page is returned.
func (c *Client) fetchPaginated(ctx context.Context, path string) ([]Record, error) {
	offset := 0
	var items []Record

	for {
		query := url.Values{}
		query.Set("limit", fmt.Sprintf("%d", c.config.PageSize))
		query.Set("offset", fmt.Sprintf("%d", offset))

		var resp struct {
			Items []Record `json:"items"`
		}
		if err := c.request(ctx, http.MethodGet, path+"?"+query.Encode(), nil, &resp); err != nil {
			return nil, errors.GatewayError(fmt.Sprintf("Failed to fetch %s", path), err)
		}

		if len(resp.Items) == 0 {
			break
		}
		items = append(items, resp.Items...)

		if len(resp.Items) < c.config.PageSize {
			break
		}
		offset += c.config.PageSize
	}

	return items, nil
}

// fetchItems fetches a non-paginated collection endpoint.
func (c *Client) fetchItems(ctx context.Context, path string) ([]Record, error) {
	var resp struct {
		Items []Record `json:"items"`
	}
	if err := c.request(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, errors.GatewayError(fmt.Sprintf("Failed to fetch %s", path), err)
	}
	return resp.Items, nil
}

// request performs one HTTP round-trip with retry on transient failures.
func (c *Client) request(ctx context.Context, method, path string, payload, out interface{}) error {
	return errors.RetryWithBackoff(ctx, func(ctx context.Context) error {
		return c.doRequest(ctx, method, path, payload, out)
	})
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "Failed to encode request payload")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.GatewayError("Gateway request failed", err).
			WithContext("path", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		gErr := errors.New(errors.ErrCodeGatewayResponse,
			fmt.Sprintf("Gateway returned HTTP %d on %s", resp.StatusCode, path)).
			WithContext("body", string(respBody))
		if resp.StatusCode >= 500 {
			return gErr.AsRecoverable()
		}
		return gErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodeGatewayResponse, "Failed to decode gateway response").
			WithContext("path", path)
	}
	return nil
}

func cloneRecord(r Record) Record {
	copied := make(Record, len(r)+2)
	for k, v := range r {
		copied[k] = v
	}
	return copied
}
