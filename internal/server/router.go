// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/RaviShinde19/StackIt/internal/admin"
	"github.com/RaviShinde19/StackIt/internal/auth"
	"github.com/RaviShinde19/StackIt/internal/forum"
	"github.com/RaviShinde19/StackIt/internal/metrics"
	"github.com/RaviShinde19/StackIt/internal/middleware"
	"github.com/RaviShinde19/StackIt/internal/models"
	"github.com/RaviShinde19/StackIt/internal/notification"
)

const APIPrefix = "/api/v1"

// Deps are the handlers and middleware inputs the router needs.
type Deps struct {
	Users         *auth.Handler
	Forum         *forum.Handler
	Notifications *notification.Handler
	Admin         *admin.Handler

	Tokens      middleware.Verifier
	AuthLimiter *middleware.RateLimiter
	Metrics     *metrics.Metrics
	Log         *zap.Logger
	CORSOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Instrument(d.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	requireAuth := middleware.RequireAuth(d.Tokens, d.Log)
	limit := func(next http.Handler) http.Handler { return next }
	if d.AuthLimiter != nil {
		limit = d.AuthLimiter.Handler
	}

	r.Route(APIPrefix, func(r chi.Router) {
		r.Mount("/users", d.Users.Routes(requireAuth, limit))
		r.Mount("/questions", d.Forum.QuestionRoutes(requireAuth))
		r.Mount("/answers", d.Forum.AnswerRoutes(requireAuth))

		r.With(requireAuth).Mount("/notifications", d.Notifications.Routes())
		r.With(requireAuth, middleware.RequireRole(models.RoleAdmin, d.Log)).Mount("/admin", d.Admin.Routes())
	})
	return r
}
