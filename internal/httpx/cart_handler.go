package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-jewelry-shop/internal/cart"
	"github.com/go-chi/chi/v5"
)

const cartCookie = "cart_token"

type CartHandler struct {
	Store        cart.Store
	CookieTTL    time.Duration
	CookieSecure bool
	Log          *slog.Logger
}

type saveCartReq struct {
	Token string      `json:"token"`
	Items []cart.Item `json:"items"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.getCart)
	r.Post("/cart", h.saveCart)
	r.Delete("/cart", h.clearCart)
}

// cartToken prefers the query string, then the cookie.
func cartToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	if c, err := r.Cookie(cartCookie); err == nil {
		return c.Value
	}
	return ""
}

func (h *CartHandler) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cartCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.CookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	token := cartToken(r)
	items, err := h.Store.Get(ctx, token)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, cart.Cart{Token: token, Items: items})
}

func (h *CartHandler) saveCart(w http.ResponseWriter, r *http.Request) {
	var req saveCartReq
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" {
		req.Token = cartToken(r)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	token, err := h.Store.Replace(ctx, req.Token, req.Items)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	items, err := h.Store.Get(ctx, token)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.setCookie(w, token)
	ok(w, http.StatusOK, cart.Cart{Token: token, Items: items})
}

func (h *CartHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	token := cartToken(r)
	if err := h.Store.Clear(ctx, token); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, cart.Cart{Token: token, Items: []cart.Item{}})
}
