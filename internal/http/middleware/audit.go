package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/pipeline-api/internal/auth"
	"go.uber.org/zap"
)

// AuditConfig holds configuration for audit middleware
type AuditConfig struct {
	// SkipPaths contains path prefixes that should not be audited
	SkipPaths []string
	// AuditReads enables auditing of GET requests (defaults to false)
	AuditReads bool
}

// DefaultAuditConfig returns default audit configuration
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		SkipPaths: []string{
			"/health",
			"/swagger",
		},
	}
}

// AuditMiddleware writes one structured "audit" log line per successful mutation,
// naming the tenant, the actor and the affected entity.
type AuditMiddleware struct {
	config *AuditConfig
	logger *zap.Logger
}

// NewAuditMiddleware creates a new audit middleware
func NewAuditMiddleware(config *AuditConfig, logger *zap.Logger) *AuditMiddleware {
	if config == nil {
		config = DefaultAuditConfig()
	}
	return &AuditMiddleware{
		config: config,
		logger: logger.Named("audit"),
	}
}

func (m *AuditMiddleware) Audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.shouldAudit(r) {
			next.ServeHTTP(w, r)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if rw.statusCode < 200 || rw.statusCode >= 300 {
			return
		}
		userCtx, ok := auth.FromContext(r.Context())
		if !ok {
			return
		}

		entityType, entityID := extractEntityInfo(r)
		m.logger.Info("audit",
			zap.String("action", methodToAction(r.Method)),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.String("org_id", userCtx.OrgID.String()),
			zap.String("profile_id", userCtx.ProfileID.String()),
			zap.String("auth_type", string(userCtx.AuthType)),
			zap.String("path", r.URL.Path),
			zap.Int("status_code", rw.statusCode),
			zap.String("request_id", r.Header.Get(RequestIDHeader)))
	})
}

func (m *AuditMiddleware) shouldAudit(r *http.Request) bool {
	switch r.Method {
	case http.MethodOptions, http.MethodHead:
		return false
	case http.MethodGet:
		if !m.config.AuditReads {
			return false
		}
	}

	for _, skipPath := range m.config.SkipPaths {
		if strings.HasPrefix(r.URL.Path, skipPath) {
			return false
		}
	}
	return true
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractEntityInfo derives the entity from the matched route, e.g.
// /api/v1/opportunities/{id}/line-items/{itemId} -> ("line-items", itemId)
func extractEntityInfo(r *http.Request) (string, string) {
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	routeCtx := chi.RouteContext(r.Context())
	if routeCtx != nil && routeCtx.RoutePattern() != "" {
		segments = strings.Split(strings.Trim(routeCtx.RoutePattern(), "/"), "/")
	}

	entityType, entityID := "", ""
	for _, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if routeCtx != nil {
				entityID = routeCtx.URLParam(strings.Trim(seg, "{}"))
			}
			continue
		}
		if seg == "api" || seg == "v1" {
			continue
		}
		entityType = seg
		entityID = ""
	}
	return entityType, entityID
}
