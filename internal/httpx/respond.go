package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-jewelry-shop/internal/auth"
	"github.com/ariefcatur/go-jewelry-shop/internal/catalog"
	"github.com/ariefcatur/go-jewelry-shop/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBody = 1 << 20

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Data: data})
}

func fail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, envelope{Success: false, Error: msg})
}

// decodeJSON reads a single JSON object from the body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func traceID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(middleware.RequestIDHeader)
}

// writeError maps domain errors to status codes. Anything unrecognised is
// logged and reported as a generic storage error.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrAuthenticationRequired):
		fail(w, http.StatusUnauthorized, "AuthenticationRequired")
	case errors.Is(err, auth.ErrInvalidCredentials):
		fail(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, catalog.ErrNotFound):
		fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orders.ErrRequestInFlight), errors.Is(err, catalog.ErrInUse):
		fail(w, http.StatusConflict, err.Error())
	case orders.IsClientError(err), errors.Is(err, catalog.ErrInvalidProduct):
		fail(w, http.StatusBadRequest, err.Error())
	default:
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", traceID(r), "err", err)
		fail(w, http.StatusInternalServerError, "StorageError")
	}
}
