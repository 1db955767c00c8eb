package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/domain"
	"go.uber.org/zap"
)

const (
	HeaderAPIKey    = "x-api-key"
	HeaderOrgID     = "X-Org-ID"
	HeaderProfileID = "X-Profile-ID"
)

// Middleware handles authentication for HTTP requests
type Middleware struct {
	jwtValidator *JWTValidator
	apiKey       string
	logger       *zap.Logger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(cfg *config.AuthConfig, logger *zap.Logger) *Middleware {
	return &Middleware{
		jwtValidator: NewJWTValidator(cfg),
		apiKey:       cfg.APIKey,
		logger:       logger,
	}
}

// Validator exposes the token validator, mainly to issue tokens in tests
func (m *Middleware) Validator() *JWTValidator {
	return m.jwtValidator
}

// Authenticate accepts either a bearer token or the service API key.
// API key callers act as an admin of the org named in X-Org-ID, on behalf of X-Profile-ID.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if apiKey := r.Header.Get(HeaderAPIKey); apiKey != "" {
			if !m.validateAPIKey(apiKey) {
				m.logger.Warn("invalid API key attempt",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			orgID, errOrg := uuid.Parse(r.Header.Get(HeaderOrgID))
			profileID, errProfile := uuid.Parse(r.Header.Get(HeaderProfileID))
			if errOrg != nil || errProfile != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized: API key requests must set X-Org-ID and X-Profile-ID")
				return
			}

			userCtx := &UserContext{
				ProfileID:   profileID,
				OrgID:       orgID,
				DisplayName: "System",
				Role:        domain.ProfileRoleAdmin,
				AuthType:    AuthTypeAPIKey,
			}
			m.logAuthenticated(r, userCtx, start)
			next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized: missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "Unauthorized: invalid authorization header format")
			return
		}

		userCtx, err := m.jwtValidator.ValidateToken(parts[1])
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			writeError(w, http.StatusUnauthorized, "Unauthorized: "+err.Error())
			return
		}

		m.logAuthenticated(r, userCtx, start)
		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
	})
}

// RequireAdmin middleware ensures the caller is an org admin
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx, ok := FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusForbidden, "Forbidden: no user context")
			return
		}

		if !userCtx.IsAdmin() {
			writeError(w, http.StatusForbidden, "Forbidden: admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) logAuthenticated(r *http.Request, u *UserContext, start time.Time) {
	m.logger.Info("request authenticated",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("auth_type", string(u.AuthType)),
		zap.String("org_id", u.OrgID.String()),
		zap.String("profile_id", u.ProfileID.String()),
		zap.String("role", string(u.Role)),
		zap.Duration("auth_duration", time.Since(start)),
	)
}

func (m *Middleware) validateAPIKey(key string) bool {
	if m.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) == 1
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.ErrorResponse{Error: true, Message: message})
}
