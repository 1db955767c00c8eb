package domain

import "github.com/google/uuid"

// TenantContext identifies the organization and acting profile of a call.
// It is passed explicitly into every service and repository operation.
type TenantContext struct {
	OrgID     uuid.UUID
	ProfileID uuid.UUID
	Email     string
	Role      ProfileRole
}

func (t TenantContext) IsAdmin() bool {
	return t.Role == ProfileRoleAdmin
}

// Valid reports whether both the org and the acting profile are set
func (t TenantContext) Valid() bool {
	return t.OrgID != uuid.Nil && t.ProfileID != uuid.Nil
}

// ActorID returns a pointer to the acting profile id for audit columns
func (t TenantContext) ActorID() *uuid.UUID {
	if t.ProfileID == uuid.Nil {
		return nil
	}
	id := t.ProfileID
	return &id
}
