package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
)

// AuthType records how a request was authenticated
type AuthType string

const (
	AuthTypeJWT    AuthType = "jwt"
	AuthTypeAPIKey AuthType = "api_key"
)

// UserContext holds the authenticated caller
type UserContext struct {
	ProfileID   uuid.UUID
	OrgID       uuid.UUID
	DisplayName string
	Email       string
	Role        domain.ProfileRole
	AuthType    AuthType
}

type contextKey string

const (
	userContextKey contextKey = "userContext"
	userSlotKey    contextKey = "userSlot"
)

// UserSlot lets middleware running outside authentication see the caller
// once the inner handlers returned.
type UserSlot struct {
	user *UserContext
}

// User returns the caller recorded by WithUserContext further down the chain
func (s *UserSlot) User() (*UserContext, bool) {
	return s.user, s.user != nil
}

// WithUserSlot attaches an empty slot that WithUserContext fills
func WithUserSlot(ctx context.Context) (context.Context, *UserSlot) {
	slot := &UserSlot{}
	return context.WithValue(ctx, userSlotKey, slot), slot
}

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	if slot, ok := ctx.Value(userSlotKey).(*UserSlot); ok {
		slot.user = user
	}
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// TenantFromContext returns the TenantContext of the authenticated caller
func TenantFromContext(ctx context.Context) (domain.TenantContext, bool) {
	user, ok := FromContext(ctx)
	if !ok {
		return domain.TenantContext{}, false
	}
	return user.Tenant(), true
}

// Tenant converts the caller into the explicit tenant scope services take
func (u *UserContext) Tenant() domain.TenantContext {
	return domain.TenantContext{
		OrgID:     u.OrgID,
		ProfileID: u.ProfileID,
		Email:     u.Email,
		Role:      u.Role,
	}
}

func (u *UserContext) IsAdmin() bool {
	return u.Role == domain.ProfileRoleAdmin
}
