package httppresentation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborline/storefront/internal/application/cartops"
	"github.com/harborline/storefront/internal/application/pricing"
	"github.com/harborline/storefront/internal/application/settlement"
	"github.com/harborline/storefront/internal/domain/currency"
	domorder "github.com/harborline/storefront/internal/domain/order"
	"github.com/harborline/storefront/internal/domain/payment"
	domproduct "github.com/harborline/storefront/internal/domain/product"
	domuser "github.com/harborline/storefront/internal/domain/user"
)

const (
	signatureHeader = "X-Gateway-Signature"
	maxWebhookBody  = 1 << 20
)

type Handler struct {
	pricing    *pricing.Service
	cart       *cartops.Service
	processor  *settlement.Processor
	currencies currency.Store
	orders     domorder.Repository

	metrics *Metrics
}

func NewHandler(
	pricingSvc *pricing.Service,
	cartSvc *cartops.Service,
	processor *settlement.Processor,
	currencies currency.Store,
	orders domorder.Repository,
	metrics *Metrics,
) *Handler {
	return &Handler{
		pricing:    pricingSvc,
		cart:       cartSvc,
		processor:  processor,
		currencies: currencies,
		orders:     orders,
		metrics:    metrics,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(withTrace)
	r.Use(h.withAccessLog)
	r.Use(h.withHTTPMetrics)

	r.Post("/webhooks/payment", h.handlePaymentWebhook)
	r.Get("/currencies", h.handleListCurrencies)
	r.Get("/products/{productID}/price", h.handleProductPrice)
	r.Get("/users/{userID}/cart", h.handleCartView)
	r.Post("/users/{userID}/cart/items", h.handleAddCartItem)
	r.Delete("/users/{userID}/cart/items/{productID}", h.handleRemoveCartItem)
	r.Get("/users/{userID}/orders", h.handleListOrders)
	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type webhookResponse struct {
	Outcome payment.Outcome `json:"outcome"`
}

func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	outcome, err := h.processor.Process(r.Context(), body, r.Header.Get(signatureHeader))
	switch {
	case errors.Is(err, payment.ErrBadSignature), errors.Is(err, payment.ErrMalformedEvent):
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		// Not settled; the gateway redelivers and the idempotency key
		// absorbs the replay.
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, webhookResponse{Outcome: outcome})
	}
}

type currencyResponse struct {
	Code      string    `json:"code"`
	Symbol    string    `json:"symbol"`
	Rate      float64   `json:"rate"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *Handler) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.currencies.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]currencyResponse, 0, len(list))
	for _, c := range list {
		out = append(out, currencyResponse{
			Code:      c.Code,
			Symbol:    c.Symbol,
			Rate:      c.Rate,
			UpdatedAt: c.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type productPriceResponse struct {
	ProductID  string           `json:"product_id"`
	Prices     map[string]int64 `json:"prices"`
	FullPrices map[string]int64 `json:"full_prices"`
	Unresolved []string         `json:"unresolved,omitempty"`
}

func (h *Handler) handleProductPrice(w http.ResponseWriter, r *http.Request) {
	result, err := h.pricing.ProductPrice(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productPriceResponse{
		ProductID:  result.ProductID,
		Prices:     result.Prices,
		FullPrices: result.FullPrices,
		Unresolved: result.Unresolved,
	})
}

type cartLineResponse struct {
	ProductID string           `json:"product_id"`
	AddedAt   time.Time        `json:"added_at"`
	Prices    map[string]int64 `json:"prices"`
}

type cartViewResponse struct {
	Lines      []cartLineResponse `json:"lines"`
	Totals     map[string]int64   `json:"totals"`
	Incomplete []string           `json:"incomplete,omitempty"`
	Version    int64              `json:"version"`
}

func (h *Handler) handleCartView(w http.ResponseWriter, r *http.Request) {
	view, err := h.pricing.CartView(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	lines := make([]cartLineResponse, 0, len(view.Lines))
	for _, l := range view.Lines {
		lines = append(lines, cartLineResponse{
			ProductID: l.Item.ProductID,
			AddedAt:   l.Item.AddedAt,
			Prices:    l.Prices,
		})
	}
	writeJSON(w, http.StatusOK, cartViewResponse{
		Lines:      lines,
		Totals:     view.Totals,
		Incomplete: view.Incomplete,
		Version:    view.Version,
	})
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, errors.New("product_id is required"))
		return
	}

	if err := h.cart.AddItem(r.Context(), chi.URLParam(r, "userID"), req.ProductID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	err := h.cart.RemoveItem(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "productID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type orderItemResponse struct {
	ProductID       string `json:"product_id"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	Items         []orderItemResponse `json:"items"`
	Amount        int64               `json:"amount"`
	Currency      string              `json:"currency"`
	SourceEventID string              `json:"source_event_id"`
	CreatedAt     time.Time           `json:"created_at"`
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByOwner(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		items := make([]orderItemResponse, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, orderItemResponse{
				ProductID:       it.ProductID,
				PriceAtPurchase: it.PriceAtPurchase,
			})
		}
		out = append(out, orderResponse{
			ID:            o.ID,
			Items:         items,
			Amount:        o.Amount,
			Currency:      o.Currency,
			SourceEventID: o.SourceEventID,
			CreatedAt:     o.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domuser.ErrNotFound),
		errors.Is(err, domproduct.ErrNotFound),
		errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domuser.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domuser.ErrVersionConflict),
		errors.Is(err, cartops.ErrTooMuchContention):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
