package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-jewelry-shop/internal/auth"
	"github.com/ariefcatur/go-jewelry-shop/internal/catalog"
	kafkax "github.com/ariefcatur/go-jewelry-shop/internal/kafka"
	"github.com/ariefcatur/go-jewelry-shop/internal/logx"
	"github.com/ariefcatur/go-jewelry-shop/internal/memstore"
	"github.com/ariefcatur/go-jewelry-shop/internal/orders"
	"github.com/ariefcatur/go-jewelry-shop/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	ringID = "11111111-1111-4111-8111-111111111111"
	pinID  = "22222222-2222-4222-8222-222222222222"
)

type recorder struct {
	mu     sync.Mutex
	values [][]byte
}

func (r *recorder) Publish(_, value []byte, _ ...kafkax.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, value)
}

func (r *recorder) last(t *testing.T) orders.StockChangedPayload {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.values)
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(r.values[len(r.values)-1], &env))
	var p orders.StockChangedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	return p
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

type testAPI struct {
	srv   *httptest.Server
	store *memstore.Store
	stock *recorder
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := logx.Discard()
	st := memstore.New()
	require.NoError(t, st.Seed(
		catalog.Product{ID: ringID, Name: "Silver Ring", Price: decimal.RequireFromString("25.50"), Stock: 15, Category: "ring", Featured: true},
		catalog.Product{ID: pinID, Name: "Enamel Pin", Price: decimal.RequireFromString("9.99"), Stock: 1, Category: "other"},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	am, err := auth.NewManager("admin", string(hash), "0123456789abcdef0123456789abcdef", time.Hour, &auth.RedisRevocations{Redis: rdb})
	require.NoError(t, err)

	products := catalog.NewCachedStore(st.Catalog(), redisx.NewCache(rdb, redisx.PrefixCatalog, time.Minute), log)
	stock := &recorder{}
	events := orders.Publishers{OrderPlaced: &recorder{}, StatusChanged: &recorder{}, StockChanged: stock}
	svc := &orders.Service{
		Store:       st.Orders(),
		Events:      events,
		Statuses:    &orders.RedisStatusCache{Redis: rdb},
		Idempotency: &orders.RedisIdempotency{Redis: rdb},
		Stock:       products,
		Producer:    "test",
		Log:         log,
	}

	router := NewRouter(log)
	Handlers{
		Products: &ProductsHandler{
			Store:    products,
			Source:   st.Catalog(),
			Events:   events,
			Producer: "test",
			Log:      log,
		},
		Cart:     &CartHandler{Store: st.Carts(), CookieTTL: time.Hour, Log: log},
		Orders:   &OrdersHandler{Service: svc, Log: log},
		Admin:    &AdminHandler{Auth: am, Log: log},
	}.Register(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, store: st, stock: stock}
}

type apiResp struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (a *testAPI) do(t *testing.T, method, path string, body any, mods ...func(*http.Request)) (*http.Response, apiResp) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mods {
		m(req)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var out apiResp
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res, out
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func (a *testAPI) login(t *testing.T) string {
	t.Helper()
	res, body := a.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": "admin", "password": "letmein"})
	require.Equal(t, http.StatusOK, res.StatusCode, body.Error)
	var s auth.Session
	require.NoError(t, json.Unmarshal(body.Data, &s))
	return s.Token
}

func orderBody(productID string, qty int) map[string]any {
	return map[string]any{
		"customerInfo": map[string]string{"firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com"},
		"items":        []map[string]any{{"productId": productID, "quantity": qty, "price": 0.01}},
	}
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)
	res, err := http.Get(a.srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestProducts(t *testing.T) {
	a := newTestAPI(t)

	res, body := a.do(t, http.MethodGet, "/api/products?featured=true", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var ps []catalog.Product
	require.NoError(t, json.Unmarshal(body.Data, &ps))
	require.Len(t, ps, 1)
	assert.Equal(t, ringID, ps[0].ID)

	res, body = a.do(t, http.MethodGet, "/api/products?category=other", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.Unmarshal(body.Data, &ps))
	require.Len(t, ps, 1)
	assert.Equal(t, pinID, ps[0].ID)

	res, body = a.do(t, http.MethodGet, "/api/products/nope", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.False(t, body.Success)
}

func TestCartFlow(t *testing.T) {
	a := newTestAPI(t)

	res, body := a.do(t, http.MethodPost, "/api/cart", map[string]any{
		"items": []map[string]any{{"productId": ringID, "quantity": 2}, {"productId": "ghost", "quantity": 1}},
	})
	require.Equal(t, http.StatusOK, res.StatusCode, body.Error)
	var c struct {
		Token string `json:"token"`
		Items []struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &c))
	require.NotEmpty(t, c.Token)
	require.Len(t, c.Items, 1)

	var cookie *http.Cookie
	for _, ck := range res.Cookies() {
		if ck.Name == cartCookie {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, c.Token, cookie.Value)

	withCookie := func(r *http.Request) { r.AddCookie(&http.Cookie{Name: cartCookie, Value: c.Token}) }
	res, body = a.do(t, http.MethodGet, "/api/cart", nil, withCookie)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.Unmarshal(body.Data, &c))
	assert.Len(t, c.Items, 1)

	// placing an order clears the cart named by the cookie
	res, body = a.do(t, http.MethodPost, "/api/orders", orderBody(ringID, 2), withCookie)
	require.Equal(t, http.StatusCreated, res.StatusCode, body.Error)

	res, body = a.do(t, http.MethodGet, "/api/cart?token="+c.Token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.Unmarshal(body.Data, &c))
	assert.Empty(t, c.Items)

	res, _ = a.do(t, http.MethodDelete, "/api/cart", nil, withCookie)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestPlaceOrder(t *testing.T) {
	a := newTestAPI(t)

	res, body := a.do(t, http.MethodPost, "/api/orders", orderBody(ringID, 2))
	require.Equal(t, http.StatusCreated, res.StatusCode, body.Error)
	var placed placeOrderResp
	require.NoError(t, json.Unmarshal(body.Data, &placed))
	assert.Equal(t, orders.StatusConfirmed, placed.Status)
	assert.Equal(t, "51.00", placed.Total)

	res, body = a.do(t, http.MethodGet, "/api/orders/"+placed.OrderID, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var st orderStatusResp
	require.NoError(t, json.Unmarshal(body.Data, &st))
	assert.Equal(t, orders.StatusConfirmed, st.Status)

	res, _ = a.do(t, http.MethodGet, "/api/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestPlaceOrderErrors(t *testing.T) {
	a := newTestAPI(t)

	res, body := a.do(t, http.MethodPost, "/api/orders", orderBody(pinID, 2))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, body.Error, "Enamel Pin")

	res, _ = a.do(t, http.MethodPost, "/api/orders", orderBody("ghost", 1))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	noCustomer := orderBody(ringID, 1)
	delete(noCustomer, "customerInfo")
	res, _ = a.do(t, http.MethodPost, "/api/orders", noCustomer)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/api/orders", bytes.NewBufferString("{"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	p, err := a.store.Catalog().Get(req.Context(), pinID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)
}

func TestPlaceOrderIdempotencyKey(t *testing.T) {
	a := newTestAPI(t)
	key := func(r *http.Request) { r.Header.Set("Idempotency-Key", "abc-123") }

	res, body := a.do(t, http.MethodPost, "/api/orders", orderBody(ringID, 1), key)
	require.Equal(t, http.StatusCreated, res.StatusCode, body.Error)
	var first placeOrderResp
	require.NoError(t, json.Unmarshal(body.Data, &first))

	res, body = a.do(t, http.MethodPost, "/api/orders", orderBody(ringID, 1), key)
	require.Equal(t, http.StatusOK, res.StatusCode, body.Error)
	var second placeOrderResp
	require.NoError(t, json.Unmarshal(body.Data, &second))
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.True(t, second.Idempotent)

	p, err := a.store.Catalog().Get(context.Background(), ringID)
	require.NoError(t, err)
	assert.Equal(t, 14, p.Stock)
}

func TestAdminRoutesRequireSession(t *testing.T) {
	a := newTestAPI(t)

	checks := []struct{ method, path string }{
		{http.MethodPost, "/api/orders/x/status"},
		{http.MethodGet, "/api/admin/orders"},
		{http.MethodPost, "/api/admin/products"},
		{http.MethodPut, "/api/admin/products/" + ringID},
		{http.MethodDelete, "/api/admin/products/" + ringID},
		{http.MethodPut, "/api/admin/products/" + ringID + "/stock"},
	}
	for _, c := range checks {
		res, body := a.do(t, c.method, c.path, map[string]any{"stock": 0, "status": "shipped"})
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode, c.path)
		assert.Equal(t, "AuthenticationRequired", body.Error)

		res, _ = a.do(t, c.method, c.path, map[string]any{}, bearer("forged"))
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode, c.path)
	}

	p, err := a.store.Catalog().Get(context.Background(), ringID)
	require.NoError(t, err)
	assert.Equal(t, 15, p.Stock)
}

func TestAdminLogin(t *testing.T) {
	a := newTestAPI(t)

	res, body := a.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.False(t, body.Success)

	res, _ = a.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": "admin", "password": "letmein"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	var session *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == sessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	withCookie := func(r *http.Request) { r.AddCookie(&http.Cookie{Name: sessionCookie, Value: session.Value}) }
	res, _ = a.do(t, http.MethodGet, "/api/admin/orders", nil, withCookie)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = a.do(t, http.MethodPost, "/api/admin/logout", nil, withCookie)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = a.do(t, http.MethodGet, "/api/admin/orders", nil, withCookie)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestAdminSetStatus(t *testing.T) {
	a := newTestAPI(t)
	token := a.login(t)

	res, body := a.do(t, http.MethodPost, "/api/orders", orderBody(ringID, 1))
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var placed placeOrderResp
	require.NoError(t, json.Unmarshal(body.Data, &placed))

	res, body = a.do(t, http.MethodPost, "/api/orders/"+placed.OrderID+"/status", map[string]string{"status": "ready"}, bearer(token))
	require.Equal(t, http.StatusOK, res.StatusCode, body.Error)
	var o orders.Order
	require.NoError(t, json.Unmarshal(body.Data, &o))
	assert.Equal(t, orders.StatusShipped, o.Status)

	res, body = a.do(t, http.MethodGet, "/api/orders/"+placed.OrderID, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var st orderStatusResp
	require.NoError(t, json.Unmarshal(body.Data, &st))
	assert.Equal(t, orders.StatusShipped, st.Status)

	res, _ = a.do(t, http.MethodPost, "/api/orders/"+placed.OrderID+"/status", map[string]string{"status": "bogus"}, bearer(token))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res, _ = a.do(t, http.MethodPost, "/api/orders/missing/status", map[string]string{"status": "shipped"}, bearer(token))
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, body = a.do(t, http.MethodGet, "/api/admin/orders?status=preparing", nil, bearer(token))
	require.Equal(t, http.StatusOK, res.StatusCode)
	var list []orders.Order
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, placed.OrderID, list[0].ID)
}

func TestAdminProducts(t *testing.T) {
	a := newTestAPI(t)
	token := a.login(t)

	res, body := a.do(t, http.MethodPost, "/api/admin/products", map[string]any{
		"name": "Jade Pendant", "price": "45.00", "stock": 3, "category": "necklace",
	}, bearer(token))
	require.Equal(t, http.StatusCreated, res.StatusCode, body.Error)
	var p catalog.Product
	require.NoError(t, json.Unmarshal(body.Data, &p))
	assert.NotEmpty(t, p.ID)

	res, _ = a.do(t, http.MethodPost, "/api/admin/products", map[string]any{"price": "1"}, bearer(token))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body = a.do(t, http.MethodPut, "/api/admin/products/"+p.ID+"/stock", map[string]int{"stock": 7}, bearer(token))
	require.Equal(t, http.StatusOK, res.StatusCode, body.Error)
	require.NoError(t, json.Unmarshal(body.Data, &p))
	assert.Equal(t, 7, p.Stock)
	assert.Equal(t, 1, a.stock.count())

	res, _ = a.do(t, http.MethodPut, "/api/admin/products/"+p.ID+"/stock", map[string]int{"stock": -1}, bearer(token))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res, _ = a.do(t, http.MethodPut, "/api/admin/products/"+p.ID+"/stock", map[string]any{}, bearer(token))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	p.Name = "Jade Pendant (large)"
	res, body = a.do(t, http.MethodPut, "/api/admin/products/"+p.ID, p, bearer(token))
	require.Equal(t, http.StatusOK, res.StatusCode, body.Error)

	// ordered products cannot be deleted
	res, _ = a.do(t, http.MethodPost, "/api/orders", orderBody(ringID, 1))
	require.Equal(t, http.StatusCreated, res.StatusCode)
	res, _ = a.do(t, http.MethodDelete, "/api/admin/products/"+ringID, nil, bearer(token))
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res, _ = a.do(t, http.MethodDelete, "/api/admin/products/"+p.ID, nil, bearer(token))
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = a.do(t, http.MethodGet, "/api/products/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestAdminStockDeltaIgnoresStaleCache(t *testing.T) {
	a := newTestAPI(t)
	token := a.login(t)
	ctx := context.Background()

	// warm the product cache at stock 15, then move stock behind its back
	res, _ := a.do(t, http.MethodGet, "/api/products/"+ringID, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	_, err := a.store.Catalog().SetStock(ctx, ringID, 10)
	require.NoError(t, err)

	res, body := a.do(t, http.MethodPut, "/api/admin/products/"+ringID+"/stock", map[string]int{"stock": 12}, bearer(token))
	require.Equal(t, http.StatusOK, res.StatusCode, body.Error)
	ev := a.stock.last(t)
	assert.Equal(t, 2, ev.Delta)
	assert.Equal(t, 12, ev.Stock)

	_, err = a.store.Catalog().SetStock(ctx, ringID, 20)
	require.NoError(t, err)
	var p catalog.Product
	require.NoError(t, json.Unmarshal(body.Data, &p))
	p.Stock = 18
	res, body = a.do(t, http.MethodPut, "/api/admin/products/"+ringID, p, bearer(token))
	require.Equal(t, http.StatusOK, res.StatusCode, body.Error)
	ev = a.stock.last(t)
	assert.Equal(t, -2, ev.Delta)
	assert.Equal(t, 18, ev.Stock)
}
