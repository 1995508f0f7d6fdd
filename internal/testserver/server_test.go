package testserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type apiClient struct {
	t    *testing.T
	base string
}

func newAPI(t *testing.T, srv *Server) *apiClient {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &apiClient{t: t, base: ts.URL + Prefix}
}

func (c *apiClient) call(method, path, token string, body interface{}) (int, gjson.Result) {
	c.t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rdr)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, gjson.ParseBytes(raw)
}

func (c *apiClient) login(kind string) string {
	c.t.Helper()
	status, body := c.call(http.MethodPost, "/auth/"+kind+"/login", "",
		map[string]string{"email": kind + "@example.com", "password": "secret"})
	require.Equal(c.t, http.StatusOK, status)
	return body.Get("token").String()
}

func TestHealth(t *testing.T) {
	api := newAPI(t, New(Options{}))
	status, body := api.call(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Get("status").String())
}

func TestLoginAndRoles(t *testing.T) {
	srv := New(Options{})
	api := newAPI(t, srv)

	status, _ := api.call(http.MethodPost, "/auth/customer/login", "", map[string]string{"email": "a@b.c"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.call(http.MethodPost, "/auth/chef/login", "", map[string]string{"email": "a@b.c", "password": "x"})
	assert.Equal(t, http.StatusNotFound, status)

	customer := api.login("customer")
	status, body := api.call(http.MethodPost, "/auth/customer/login", "",
		map[string]string{"email": "customer@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body.Get("user.id").String())

	status, _ = api.call(http.MethodGet, "/restaurants/get-restaurants", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.call(http.MethodGet, "/vendor/orders", customer, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = api.call(http.MethodPost, "/auth/refresh", customer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body.Get("token").String())

	st := srv.Stats()
	assert.Equal(t, int64(2), st.Logins)
	assert.Equal(t, int64(1), st.Refreshes)
}

func TestRefreshAcceptsExpiredToken(t *testing.T) {
	srv := New(Options{TokenTTL: time.Millisecond})
	api := newAPI(t, srv)

	token := api.login("rider")
	time.Sleep(1100 * time.Millisecond)

	status, _ := api.call(http.MethodGet, "/rider/assignments", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "expired token is rejected by protected routes")

	status, body := api.call(http.MethodPost, "/auth/refresh", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, token, body.Get("token").String())
}

func TestOrderLifecycle(t *testing.T) {
	srv := New(Options{Vendors: 2})
	api := newAPI(t, srv)

	customer := api.login("customer")
	vendor := api.login("vendor")
	rider := api.login("rider")

	status, body := api.call(http.MethodGet, "/restaurants/get-restaurants?page=1&limit=10", customer, nil)
	require.Equal(t, http.StatusOK, status)
	vendors := body.Get("vendors").Array()
	require.Len(t, vendors, 2)
	vendorID := vendors[0].Get("id").String()

	status, body = api.call(http.MethodGet, "/restaurants/details/"+vendorID, customer, nil)
	require.Equal(t, http.StatusOK, status)
	item := body.Get("menu.0")
	require.True(t, item.Exists())

	status, body = api.call(http.MethodPost, "/customer/cart/add", customer, map[string]interface{}{
		"menuItemId": item.Get("id").String(),
		"vendorId":   vendorID,
		"name":       item.Get("name").String(),
		"price":      item.Get("price").Float(),
		"quantity":   2,
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, int64(2), body.Get("cartItem.quantity").Int())

	status, body = api.call(http.MethodGet, "/customer/cart/list", customer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body.Get("cart.items").Array(), 1)

	status, body = api.call(http.MethodPost, "/customer/order/place", customer, map[string]interface{}{
		"vendorId": vendorID,
		"items": []map[string]interface{}{
			{"menuItemId": item.Get("id").String(), "name": "x", "price": 10.0, "quantity": 2},
		},
	})
	require.Equal(t, http.StatusCreated, status)
	orderID := body.Get("order.id").String()
	assert.Equal(t, "pending", body.Get("order.status").String())
	assert.InDelta(t, 25.59, body.Get("order.total").Float(), 0.001)

	status, body = api.call(http.MethodGet, "/vendor/orders?status=pending", vendor, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, orderID, body.Get("orders.0.id").String())

	status, _ = api.call(http.MethodPost, "/vendor/orders/"+orderID+"/accept", vendor, nil)
	require.Equal(t, http.StatusOK, status)
	for _, next := range []string{"preparing", "ready_for_pickup"} {
		status, _ = api.call(http.MethodPatch, "/vendor/orders/"+orderID+"/status", vendor, map[string]string{"status": next})
		require.Equal(t, http.StatusOK, status, next)
	}
	status, _ = api.call(http.MethodPatch, "/vendor/orders/"+orderID+"/status", vendor, map[string]string{"status": "preparing"})
	assert.Equal(t, http.StatusConflict, status, "status never moves backwards")

	status, body = api.call(http.MethodGet, "/rider/assignments?status=available", rider, nil)
	require.Equal(t, http.StatusOK, status)
	assignmentID := body.Get("assignments.0.id").String()
	require.NotEmpty(t, assignmentID)

	status, body = api.call(http.MethodPost, "/rider/assignments/"+assignmentID+"/accept", rider, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "active", body.Get("assignment.status").String())

	for _, next := range []string{"picked_up", "in_transit", "delivered"} {
		status, _ = api.call(http.MethodPatch, "/rider/orders/"+orderID+"/status", rider, map[string]string{"status": next})
		require.Equal(t, http.StatusOK, status, next)
	}

	status, body = api.call(http.MethodGet, "/customer/order/track?order_id="+orderID, customer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "delivered", body.Get("tracking.status").String())

	status, body = api.call(http.MethodGet, "/orders/"+orderID+"/status-history", customer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body.Get("statusHistory").Array(), 7)

	st := srv.Stats()
	assert.Equal(t, int64(1), st.OrdersPlaced)
	assert.Equal(t, int64(1), st.OrdersAccepted)
	assert.Equal(t, int64(1), st.Deliveries)
}

func TestFailInjection(t *testing.T) {
	srv := New(Options{})
	api := newAPI(t, srv)

	srv.Fail("/auth/vendor", http.StatusServiceUnavailable)
	status, _ := api.call(http.MethodPost, "/auth/vendor/login", "", map[string]string{"email": "v@x", "password": "p"})
	assert.Equal(t, http.StatusServiceUnavailable, status)

	srv.Fail("/auth/vendor", 0)
	status, _ = api.call(http.MethodPost, "/auth/vendor/login", "", map[string]string{"email": "v@x", "password": "p"})
	assert.Equal(t, http.StatusOK, status)
}
