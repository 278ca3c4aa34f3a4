package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-jewelry-shop/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type OrdersHandler struct {
	Service *orders.Service
	Log     *slog.Logger
}

type placeOrderReq struct {
	CustomerInfo    orders.Customer `json:"customerInfo"`
	Items           []orderLineReq  `json:"items"`
	ShippingAddress *orders.Address `json:"shippingAddress"`
	Notes           string          `json:"notes"`
	CartToken       string          `json:"cartToken"`
}

// orderLineReq accepts a client price for compatibility; it is never used.
type orderLineReq struct {
	ProductID string           `json:"productId"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

type placeOrderResp struct {
	OrderID    string        `json:"orderId"`
	Status     orders.Status `json:"status"`
	Total      string        `json:"total"`
	Idempotent bool          `json:"idempotent,omitempty"`
}

type orderStatusResp struct {
	OrderID string        `json:"orderId"`
	Status  orders.Status `json:"status"`
}

type setStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
}

func (h *OrdersHandler) RegisterAdmin(r chi.Router) {
	r.Post("/orders/{id}/status", h.setStatus)
	r.Get("/admin/orders", h.listOrders)
	r.Get("/admin/orders/{id}", h.getOrderDetail)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderReq
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CartToken == "" {
		if c, err := r.Cookie(cartCookie); err == nil {
			req.CartToken = c.Value
		}
	}
	lines := make([]orders.LineInput, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, orders.LineInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, replayed, err := h.Service.PlaceOrder(ctx, orders.PlaceOrderInput{
		Customer:        req.CustomerInfo,
		Items:           lines,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		CartToken:       req.CartToken,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		TraceID:         traceID(r),
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	code := http.StatusCreated
	if replayed {
		code = http.StatusOK
	}
	ok(w, code, placeOrderResp{OrderID: o.ID, Status: o.Status, Total: o.Total.StringFixed(2), Idempotent: replayed})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	st, err := h.Service.Status(ctx, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, orderStatusResp{OrderID: id, Status: st})
}

func (h *OrdersHandler) getOrderDetail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, o)
}

func (h *OrdersHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusReq
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.SetStatus(ctx, chi.URLParam(r, "id"), req.Status, traceID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f orders.ListFilter
	if s := q.Get("status"); s != "" {
		st, err := orders.ParseStatus(s)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		f.Status = st
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.List(ctx, f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, list)
}
