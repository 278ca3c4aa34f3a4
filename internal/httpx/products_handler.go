package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-jewelry-shop/internal/catalog"
	"github.com/ariefcatur/go-jewelry-shop/internal/orders"
	"github.com/go-chi/chi/v5"
)

type ProductsHandler struct {
	Store catalog.Store
	// Source is read for the stock before an admin write, so event deltas
	// never come from a cached copy. Falls back to Store when nil.
	Source   catalog.Store
	Events   orders.Publishers
	Producer string
	Log      *slog.Logger
}

type setStockReq struct {
	Stock *int `json:"stock"`
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
}

func (h *ProductsHandler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/products", h.createProduct)
	r.Put("/admin/products/{id}", h.updateProduct)
	r.Delete("/admin/products/{id}", h.deleteProduct)
	r.Put("/admin/products/{id}/stock", h.setStock)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q := r.URL.Query()
	featured, _ := strconv.ParseBool(q.Get("featured"))
	ps, err := h.Store.List(ctx, catalog.Filter{Category: q.Get("category"), FeaturedOnly: featured})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, ps)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, p)
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := decodeJSON(w, r, &p); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	p.ID = ""

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Store.Create(ctx, p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Log.Info("product created", "product_id", out.ID, "stock", out.Stock)
	ok(w, http.StatusCreated, out)
}

func (h *ProductsHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := decodeJSON(w, r, &p); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	p.ID = chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	before, err := h.stored(ctx, p.ID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out, err := h.Store.Update(ctx, p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.stockChanged(r, out, before.Stock)
	ok(w, http.StatusOK, out)
}

func (h *ProductsHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.Store.Delete(ctx, id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Log.Info("product deleted", "product_id", id)
	ok(w, http.StatusOK, map[string]string{"id": id})
}

func (h *ProductsHandler) setStock(w http.ResponseWriter, r *http.Request) {
	var req setStockReq
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Stock == nil {
		fail(w, http.StatusBadRequest, "stock is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	before, err := h.stored(ctx, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out, err := h.Store.SetStock(ctx, id, *req.Stock)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.stockChanged(r, out, before.Stock)
	ok(w, http.StatusOK, out)
}

func (h *ProductsHandler) stored(ctx context.Context, id string) (catalog.Product, error) {
	if h.Source != nil {
		return h.Source.Get(ctx, id)
	}
	return h.Store.Get(ctx, id)
}

func (h *ProductsHandler) stockChanged(r *http.Request, p catalog.Product, before int) {
	if p.Stock == before {
		return
	}
	h.Log.Info("stock set", "product_id", p.ID, "from", before, "to", p.Stock)
	h.Events.PublishStockChanged(h.Producer, traceID(r), p.ID, p.Stock-before, p.Stock, "ADMIN_SET")
}
