package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Handlers groups the API surface mounted under /api.
type Handlers struct {
	Products *ProductsHandler
	Cart     *CartHandler
	Orders   *OrdersHandler
	Admin    *AdminHandler
}

func (h Handlers) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		h.Products.Register(r)
		h.Cart.Register(r)
		h.Orders.Register(r)
		h.Admin.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(h.Admin.RequireAdmin)
			h.Orders.RegisterAdmin(r)
			h.Products.RegisterAdmin(r)
		})
	})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
