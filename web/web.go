// Package web provides the JSON HTTP API for the engine: the public payment
// and quota endpoints, the provider callback, and the token-guarded admin
// surface. Handlers are thin; every decision lives in app services.
package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/wkarimi/kodisha/app"
	"github.com/wkarimi/kodisha/ports"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Handler provides the HTTP API endpoints.
type Handler struct {
	payments  *app.PaymentService
	quota     *app.QuotaService
	consume   *app.ConsumeService
	plans     *app.PlanService
	admin     *app.AdminService
	export    *app.ExportService
	hasher    ports.Hasher
	tokenHash []byte
	logger    zerolog.Logger
}

// Deps contains dependencies for the API handler.
type Deps struct {
	Payments *app.PaymentService
	Quota    *app.QuotaService
	Consume  *app.ConsumeService
	Plans    *app.PlanService
	Admin    *app.AdminService
	Export   *app.ExportService

	// Hasher and AdminTokenHash guard the /api/admin surface. An empty hash
	// disables the admin API entirely.
	Hasher         ports.Hasher
	AdminTokenHash []byte

	Logger zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		payments:  deps.Payments,
		quota:     deps.Quota,
		consume:   deps.Consume,
		plans:     deps.Plans,
		admin:     deps.Admin,
		export:    deps.Export,
		hasher:    deps.Hasher,
		tokenHash: deps.AdminTokenHash,
		logger:    deps.Logger,
	}
}

// Router builds the full HTTP router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health and observability (no auth)
	r.Get("/healthz", h.Health)
	r.Get("/version", h.VersionInfo)
	r.Handle("/metrics", promhttp.Handler())

	// API docs
	r.Get("/.well-known/openapi.json", h.OpenAPISpec)
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/.well-known/openapi.json"),
	))

	r.Route("/api", func(r chi.Router) {
		// Public catalog
		r.Get("/plans", h.ListPlans)

		// Payments
		r.Post("/payments", h.InitiatePayment)
		r.Get("/payments/{id}", h.GetPayment)

		// Provider callback. Not authenticated: validation happens inside
		// the provider's ParseCallback.
		r.Post("/payments/callback", h.PaymentCallback)

		// Quota
		r.Get("/subscribers/{id}/quota", h.GetQuota)
		r.Post("/subscribers/{id}/consume", h.Consume)

		// Admin surface (token guarded)
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.AdminAuth)

			r.Post("/subscriptions", h.AdminGrant)
			r.Post("/subscriptions/{id}/extend", h.AdminExtend)
			r.Post("/subscriptions/{id}/reset-usage", h.AdminResetUsage)
			r.Post("/subscriptions/{id}/revoke", h.AdminRevoke)

			r.Post("/plans", h.AdminCreatePlan)
			r.Delete("/plans/{id}", h.AdminDeactivatePlan)

			r.Get("/audit", h.AdminAudit)
			r.Get("/export/payments", h.ExportPayments)
			r.Get("/export/subscriptions", h.ExportSubscriptions)
		})
	})

	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VersionInfo reports the build version.
func (h *Handler) VersionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "kodisha",
		"version": Version,
	})
}

// AdminAuth verifies the bearer token against the configured hash and
// requires an X-Actor-Id header so every mutation has an accountable actor.
func (h *Handler) AdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.tokenHash) == 0 {
			writeError(w, http.StatusForbidden, "admin_disabled", "admin API is not configured")
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || !h.hasher.Compare(h.tokenHash, token) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid admin token")
			return
		}

		if r.Header.Get("X-Actor-Id") == "" {
			writeError(w, http.StatusBadRequest, "actor_required", "X-Actor-Id header is required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func actorID(r *http.Request) string {
	return r.Header.Get("X-Actor-Id")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// NewLoggingMiddleware logs HTTP requests, skipping health and metrics noise.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
