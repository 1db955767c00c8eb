package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProfileReader loads the profiles of the caller's organization
type ProfileReader interface {
	GetWithTeams(ctx context.Context, orgID, id uuid.UUID) (*domain.Profile, error)
	ListActive(ctx context.Context, orgID uuid.UUID) ([]domain.Profile, error)
}

type AuthHandler struct {
	profiles ProfileReader
	logger   *zap.Logger
}

func NewAuthHandler(profiles ProfileReader, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		profiles: profiles,
		logger:   logger,
	}
}

// Me godoc
// @Summary Get current authenticated profile
// @Description Returns the caller's profile, organization, role and teams
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.MeDTO
// @Failure 401 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	profile, err := h.profiles.GetWithTeams(r.Context(), userCtx.OrgID, userCtx.ProfileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondWithError(w, http.StatusNotFound, "Profile not found")
			return
		}
		h.logger.Error("failed to load profile",
			zap.String("profile_id", userCtx.ProfileID.String()),
			zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	teams := make([]uuid.UUID, 0, len(profile.Teams))
	for _, t := range profile.Teams {
		teams = append(teams, t.ID)
	}

	respondJSON(w, http.StatusOK, domain.MeDTO{
		ProfileDTO: mapper.ToProfileDTO(profile),
		OrgID:      userCtx.OrgID,
		IsAdmin:    userCtx.IsAdmin(),
		AuthType:   string(userCtx.AuthType),
		Teams:      teams,
	})
}

// ListProfiles godoc
// @Summary List profiles
// @Description Active profiles of the caller's organization, for assignment pickers
// @Tags Auth
// @Produce json
// @Success 200 {array} domain.ProfileDTO
// @Security BearerAuth
// @Router /profiles [get]
func (h *AuthHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	profiles, err := h.profiles.ListActive(r.Context(), tc.OrgID)
	if err != nil {
		respondServiceError(w, h.logger, err, "list profiles")
		return
	}

	dtos := make([]domain.ProfileDTO, len(profiles))
	for i := range profiles {
		dtos[i] = mapper.ToProfileDTO(&profiles[i])
	}
	respondJSON(w, http.StatusOK, dtos)
}
