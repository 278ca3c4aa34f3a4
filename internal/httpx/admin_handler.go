package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-jewelry-shop/internal/auth"
	"github.com/go-chi/chi/v5"
)

const sessionCookie = "admin_session"

type ctxKey int

const adminKey ctxKey = iota

type AdminHandler struct {
	Auth         *auth.Manager
	CookieSecure bool
	Log          *slog.Logger
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Post("/admin/login", h.login)
	r.Post("/admin/logout", h.logout)
}

// AdminFromContext returns the admin username set by RequireAdmin.
func AdminFromContext(ctx context.Context) string {
	s, _ := ctx.Value(adminKey).(string)
	return s
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAdmin rejects requests without a valid admin session before they reach a handler.
func (h *AdminHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.Auth.Verify(r.Context(), sessionToken(r))
		if err != nil {
			if !errors.Is(err, auth.ErrAuthenticationRequired) {
				h.Log.Warn("session check failed", "err", err)
			}
			fail(w, http.StatusUnauthorized, "AuthenticationRequired")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey, claims.Subject)))
	})
}

func (h *AdminHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.Auth.Login(req.Username, req.Password)
	if err != nil {
		h.Log.Warn("admin login rejected", "username", req.Username, "request_id", traceID(r))
		writeError(w, r, h.Log, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(h.Auth.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	h.Log.Info("admin logged in", "username", s.Username)
	ok(w, http.StatusOK, s)
}

func (h *AdminHandler) logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Auth.Logout(ctx, sessionToken(r)); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	ok(w, http.StatusOK, map[string]bool{"loggedOut": true})
}
