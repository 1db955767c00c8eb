package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/domain"
	"go.uber.org/zap"
)

// OrganizationChecker reports whether an organization may use the API
type OrganizationChecker interface {
	IsActive(ctx context.Context, orgID uuid.UUID) (bool, error)
}

// TenantGuard rejects callers whose organization is unknown or deactivated
type TenantGuard struct {
	orgs   OrganizationChecker
	logger *zap.Logger
}

func NewTenantGuard(orgs OrganizationChecker, logger *zap.Logger) *TenantGuard {
	return &TenantGuard{orgs: orgs, logger: logger}
}

func (m *TenantGuard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized: no user context")
			return
		}

		active, err := m.orgs.IsActive(r.Context(), userCtx.OrgID)
		if err != nil {
			m.logger.Error("failed to check organization", zap.String("org_id", userCtx.OrgID.String()), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !active {
			m.logger.Warn("request for inactive organization",
				zap.String("org_id", userCtx.OrgID.String()),
				zap.String("profile_id", userCtx.ProfileID.String()))
			writeError(w, http.StatusForbidden, "Access denied: organization is not active")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.ErrorResponse{Error: true, Message: message})
}
