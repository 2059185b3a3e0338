/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. session:    Bearer token -> identity in request context
  6. staffOnly:  Role guard on staff route groups

ROUTE GROUPS:
  /api/auth/*       Sign-up, sign-in, password flows (public)
  /api/products/*   Catalog (authenticated; writes are staff-only)
  /api/purchases/*  Purchase flow
  /api/preorders/*  Pre-order flow
  /api/vouchers/*   Voucher flow
  /api/reports      Staff reporting
  /api/audit        Staff audit view
  /api/users/*      Staff user management

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/campuscart/market-engine/auth"
	"github.com/campuscart/market-engine/market"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.SignUp)
			r.Post("/signin", h.SignIn)
			r.Post("/password-reset", h.SendPasswordReset)
			r.Post("/password-reset/confirm", h.ResetPassword)
		})

		// Everything else requires a session
		r.Group(func(r chi.Router) {
			r.Use(h.session)

			r.Post("/auth/change-password", h.ChangePassword)
			r.Get("/me", h.Me)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.Get("/{id}", h.GetProduct)
				r.Group(func(r chi.Router) {
					r.Use(h.staffOnly)
					r.Post("/", h.AddProduct)
					r.Put("/{id}", h.UpdateProduct)
					r.Delete("/{id}", h.RemoveProduct)
					r.Post("/{id}/restock", h.Restock)
				})
			})

			r.Route("/purchases", func(r chi.Router) {
				r.Get("/", h.ListPurchases)
				r.Post("/", h.CreatePurchase)
				r.With(h.staffOnly).Post("/{id}/complete", h.CompletePurchase)
			})

			r.Route("/preorders", func(r chi.Router) {
				r.Get("/", h.ListPreorders)
				r.Post("/", h.CreatePreorder)
				r.Post("/{id}/confirm", h.ConfirmPreorder)
				r.Post("/{id}/cancel", h.CancelPreorder)
				r.With(h.staffOnly).Post("/{id}/available", h.MarkPreorderAvailable)
				r.With(h.staffOnly).Post("/{id}/unavailable", h.MarkPreorderUnavailable)
			})

			r.Route("/vouchers", func(r chi.Router) {
				r.Get("/", h.ListVouchers)
				r.Post("/", h.CreateVoucher)
				r.With(h.staffOnly).Post("/{id}/resolve", h.ResolveVoucher)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.staffOnly)
				r.Get("/reports", h.GetReport)
				r.Get("/audit", h.GetAuditLog)
				r.Route("/users", func(r chi.Router) {
					r.Get("/", h.ListAccounts)
					// Staff-created accounts honor role and starting credits.
					r.Post("/", h.SignUp)
					r.Delete("/{id}", h.DeleteAccount)
					r.Post("/{id}/password-reset", h.AdminResetPassword)
				})
			})
		})
	})

	return r
}

// =============================================================================
// SESSION MIDDLEWARE
// =============================================================================

type contextKey string

const claimsKey contextKey = "claims"

// session verifies the bearer token and stores the claims in the context.
func (h *Handler) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", market.ErrUnauthenticated)
			return
		}

		claims, err := h.Auth.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid session", err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// staffOnly rejects non-staff sessions.
func (h *Handler) staffOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := sessionClaims(r)
		if claims == nil || claims.Role != market.RoleStaff {
			writeError(w, http.StatusForbidden, "Staff access required", market.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionClaims extracts the verified identity, or nil.
func sessionClaims(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}
