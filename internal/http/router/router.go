package router

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/database"
	"github.com/straye-as/pipeline-api/internal/http/handler"
	"github.com/straye-as/pipeline-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/straye-as/pipeline-api/docs" // Import generated swagger docs
)

// HealthCheck checks an optional dependency for the readiness endpoint
type HealthCheck func(ctx context.Context) error

// Handlers groups the API handlers mounted under /api/v1
type Handlers struct {
	Auth        *handler.AuthHandler
	Opportunity *handler.OpportunityHandler
	LineItem    *handler.LineItemHandler
	AgingConfig *handler.AgingConfigHandler
	Product     *handler.ProductHandler
	Goal        *handler.GoalHandler
	Comment     *handler.CommentHandler
	Job         *handler.JobHandler
}

type Router struct {
	cfg             *config.Config
	logger          *zap.Logger
	db              *gorm.DB
	authMiddleware  *auth.Middleware
	tenantGuard     *middleware.TenantGuard
	rateLimiter     *middleware.RateLimiter
	auditMiddleware *middleware.AuditMiddleware
	handlers        Handlers
	checks          map[string]HealthCheck
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	authMiddleware *auth.Middleware,
	tenantGuard *middleware.TenantGuard,
	rateLimiter *middleware.RateLimiter,
	auditMiddleware *middleware.AuditMiddleware,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		authMiddleware:  authMiddleware,
		tenantGuard:     tenantGuard,
		rateLimiter:     rateLimiter,
		auditMiddleware: auditMiddleware,
		handlers:        handlers,
		checks:          make(map[string]HealthCheck),
	}
}

// AddHealthCheck adds a named dependency to /health/ready
func (rt *Router) AddHealthCheck(name string, check HealthCheck) {
	rt.checks[name] = check
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.Recoverer(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Liveness
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/health/db", rt.databaseHealth)
	r.Get("/health/ready", rt.readiness)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(rt.tenantGuard.Require)
		r.Use(rt.rateLimiter.Limit)
		r.Use(rt.auditMiddleware.Audit)

		h := rt.handlers

		r.Get("/auth/me", h.Auth.Me)
		r.Get("/profiles", h.Auth.ListProfiles)

		r.Route("/opportunities", func(r chi.Router) {
			r.Get("/", h.Opportunity.List)
			r.Post("/", h.Opportunity.Create)
			r.Get("/pipeline", h.Opportunity.Pipeline)

			// Stage aging thresholds
			r.Get("/aging-config", h.AgingConfig.Get)
			r.Put("/aging-config", h.AgingConfig.BulkUpsert)
			r.Delete("/aging-config/{stage}", h.AgingConfig.Delete)

			r.Get("/{id}", h.Opportunity.GetByID)
			r.Put("/{id}", h.Opportunity.Replace)
			r.Patch("/{id}", h.Opportunity.Patch)
			r.Delete("/{id}", h.Opportunity.Delete)
			r.Get("/{id}/stage-history", h.Opportunity.StageHistory)
			r.Get("/{id}/aging", h.Opportunity.Aging)

			// Line items
			r.Get("/{id}/line-items", h.LineItem.List)
			r.Post("/{id}/line-items", h.LineItem.Create)
			r.Put("/{id}/line-items/{itemId}", h.LineItem.Update)
			r.Delete("/{id}/line-items/{itemId}", h.LineItem.Delete)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Product.List)
			r.Post("/", h.Product.Create)
			r.Delete("/{id}", h.Product.Delete)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", h.Goal.List)
			r.Post("/", h.Goal.Create)
			r.Get("/leaderboard", h.Goal.Leaderboard)
			r.Get("/leaderboard/export", h.Goal.ExportLeaderboard)
			r.Get("/{id}", h.Goal.GetByID)
			r.Put("/{id}", h.Goal.Update)
			r.Delete("/{id}", h.Goal.Delete)
			r.Get("/{id}/progress", h.Goal.Progress)
		})

		r.Get("/comments", h.Comment.ListComments)
		r.Post("/comments", h.Comment.CreateComment)
		r.Get("/attachments", h.Comment.ListAttachments)
		r.Post("/attachments", h.Comment.CreateAttachment)

		r.Route("/jobs", func(r chi.Router) {
			r.Use(rt.authMiddleware.RequireAdmin)
			r.Get("/", h.Job.List)
			r.Post("/{name}/run", h.Job.Run)
		})
	})

	return r
}

// databaseHealth reports the connection pool stats
func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := database.HealthCheckWithStats(rt.db)
	if err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		writeHealth(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}

	writeHealth(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats": map[string]interface{}{
			"max_open_connections": stats.MaxOpenConnections,
			"open_connections":     stats.OpenConnections,
			"in_use":               stats.InUse,
			"idle":                 stats.Idle,
			"wait_count":           stats.WaitCount,
			"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
			"max_idle_closed":      stats.MaxIdleClosed,
			"max_lifetime_closed":  stats.MaxLifetimeClosed,
		},
	})
}

// readiness checks the database and every registered dependency
func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]interface{})
	allHealthy := true

	record := func(name string, err error) {
		if err != nil {
			rt.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
			return
		}
		checks[name] = map[string]interface{}{"status": "healthy"}
	}

	record("database", database.HealthCheck(rt.db))
	for name, check := range rt.checks {
		record(name, check(r.Context()))
	}

	status, code := "healthy", http.StatusOK
	if !allHealthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeHealth(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

func writeHealth(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
