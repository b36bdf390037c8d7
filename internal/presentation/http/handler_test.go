package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/storefront/internal/application/cartops"
	"github.com/harborline/storefront/internal/application/pricing"
	"github.com/harborline/storefront/internal/application/settlement"
	"github.com/harborline/storefront/internal/domain/currency"
	domproduct "github.com/harborline/storefront/internal/domain/product"
	domuser "github.com/harborline/storefront/internal/domain/user"
	"github.com/harborline/storefront/internal/infrastructure/gateway"
	"github.com/harborline/storefront/internal/infrastructure/memory"
)

const testSecret = "whsec_test"

type fixture struct {
	router http.Handler
	users  *memory.UserRepository
	orders *memory.OrderRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	currencies := memory.NewCurrencyStore()
	products := memory.NewProductRepository()
	users := memory.NewUserRepository()
	orders := memory.NewOrderRepository()

	synced := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, currencies.Upsert(context.Background(),
		currency.Currency{Code: "USD", Symbol: "$", Rate: 100, UpdatedAt: synced}))
	require.NoError(t, currencies.Upsert(context.Background(),
		currency.Currency{Code: "EUR", Symbol: "€", Rate: 92, UpdatedAt: synced}))

	require.NoError(t, products.Save(context.Background(),
		&domproduct.Product{ID: "prod-a", Name: "Alpha", BasePrice: 500, BaseFullPrice: 700}))
	require.NoError(t, products.Save(context.Background(),
		&domproduct.Product{ID: "prod-b", Name: "Beta", BasePrice: 300, BaseFullPrice: 300}))

	require.NoError(t, users.Save(context.Background(),
		&domuser.User{ID: "user-1", Email: "buyer@example.com"}))

	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "payment_events_total"}, []string{"outcome"})
	metrics := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total"}, []string{"method", "route", "status"}),
		Durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "http_request_duration_seconds"}, []string{"method", "route"}),
	}

	processor := settlement.NewProcessor(
		gateway.NewHMACGateway(testSecret), users, products, orders, currencies, events)
	handler := NewHandler(
		pricing.NewService(products, users, currencies),
		cartops.NewService(users, products),
		processor, currencies, orders, metrics)

	return &fixture{router: handler.Router(), users: users, orders: orders}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestListCurrencies(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/currencies", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeBody[[]currencyResponse](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "EUR", list[0].Code)
	assert.Equal(t, float64(92), list[0].Rate)
	assert.Equal(t, "USD", list[1].Code)
}

func TestProductPrice(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/products/prod-a/price", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[productPriceResponse](t, rec)
	assert.Equal(t, "prod-a", resp.ProductID)
	assert.Equal(t, map[string]int64{"USD": 500, "EUR": 460}, resp.Prices)
	assert.Equal(t, map[string]int64{"USD": 700, "EUR": 644}, resp.FullPrices)
	assert.Empty(t, resp.Unresolved)
}

func TestProductPriceNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/products/prod-missing/price", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/users/user-1/cart/items",
		[]byte(`{"product_id":"prod-a"}`), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodPost, "/users/user-1/cart/items",
		[]byte(`{"product_id":"prod-b"}`), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/users/user-1/cart", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[cartViewResponse](t, rec)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, map[string]int64{"USD": 800, "EUR": 736}, view.Totals)
	assert.Empty(t, view.Incomplete)
	assert.Equal(t, int64(2), view.Version)

	rec = f.do(t, http.MethodDelete, "/users/user-1/cart/items/prod-a", nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/users/user-1/cart", nil, nil)
	view = decodeBody[cartViewResponse](t, rec)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "prod-b", view.Lines[0].ProductID)
}

func TestAddCartItemValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/users/user-1/cart/items", []byte(`{`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/users/user-1/cart/items", []byte(`{}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/users/user-1/cart/items",
		[]byte(`{"product_id":"prod-missing"}`), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/users/user-missing/cart/items",
		[]byte(`{"product_id":"prod-a"}`), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveCartItemNotInCart(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodDelete, "/users/user-1/cart/items/prod-a", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func signedWebhook(t *testing.T, f *fixture, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/webhooks/payment", body,
		map[string]string{signatureHeader: gateway.Sign(testSecret, body)})
}

func chargeEvent(id string, amount int64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":"charge.succeeded","amount":%d,"currency":"USD","payer_email":"buyer@example.com"}`,
		id, amount))
}

func TestWebhookFinalizesOrder(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/users/user-1/cart/items",
		[]byte(`{"product_id":"prod-a"}`), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = signedWebhook(t, f, chargeEvent("evt_1", 500))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[webhookResponse](t, rec)
	assert.Equal(t, "finalized", string(resp.Outcome))

	rec = f.do(t, http.MethodGet, "/users/user-1/orders", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decodeBody[[]orderResponse](t, rec)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(500), orders[0].Amount)
	assert.Equal(t, "USD", orders[0].Currency)
	assert.Equal(t, "evt_1", orders[0].SourceEventID)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, "prod-a", orders[0].Items[0].ProductID)

	rec = f.do(t, http.MethodGet, "/users/user-1/cart", nil, nil)
	view := decodeBody[cartViewResponse](t, rec)
	assert.Empty(t, view.Lines)
}

func TestWebhookReplayReturnsAlreadyProcessed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/users/user-1/cart/items",
		[]byte(`{"product_id":"prod-a"}`), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	body := chargeEvent("evt_1", 500)
	rec = signedWebhook(t, f, body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = signedWebhook(t, f, body)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[webhookResponse](t, rec)
	assert.Equal(t, "already_processed", string(resp.Outcome))

	rec = f.do(t, http.MethodGet, "/users/user-1/orders", nil, nil)
	orders := decodeBody[[]orderResponse](t, rec)
	assert.Len(t, orders, 1)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)

	body := chargeEvent("evt_1", 500)
	rec := f.do(t, http.MethodPost, "/webhooks/payment", body,
		map[string]string{signatureHeader: gateway.Sign("wrong-secret", body)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/users/user-1/orders", nil, nil)
	orders := decodeBody[[]orderResponse](t, rec)
	assert.Empty(t, orders)
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"id":"evt_1","type":"charge.refunded","amount":500,"currency":"USD","payer_email":"buyer@example.com"}`)
	rec := signedWebhook(t, f, body)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[webhookResponse](t, rec)
	assert.Equal(t, "ignored", string(resp.Outcome))
}
