package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// ProfileRepository is the profile and team directory of a tenant
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Profile, error) {
	var profile domain.Profile
	err := ForOrg(r.db.WithContext(ctx), orgID).Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetWithTeams loads a profile with the teams it belongs to
func (r *ProfileRepository) GetWithTeams(ctx context.Context, orgID, id uuid.UUID) (*domain.Profile, error) {
	var profile domain.Profile
	err := ForOrg(r.db.WithContext(ctx), orgID).Preload("Teams").Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListActive returns the active profiles of an org ordered by name
func (r *ProfileRepository) ListActive(ctx context.Context, orgID uuid.UUID) ([]domain.Profile, error) {
	var profiles []domain.Profile
	err := ForOrg(r.db.WithContext(ctx), orgID).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&profiles).Error
	return profiles, err
}

// ListByIDs returns the active profiles among ids
func (r *ProfileRepository) ListByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]domain.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var profiles []domain.Profile
	err := ForOrg(r.db.WithContext(ctx), orgID).
		Where("id IN ?", ids).
		Where("is_active = ?", true).
		Find(&profiles).Error
	return profiles, err
}

// ListAdmins returns the active admins of an org
func (r *ProfileRepository) ListAdmins(ctx context.Context, orgID uuid.UUID) ([]domain.Profile, error) {
	var profiles []domain.Profile
	err := ForOrg(r.db.WithContext(ctx), orgID).
		Where("role = ?", domain.ProfileRoleAdmin).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&profiles).Error
	return profiles, err
}

func (r *ProfileRepository) GetTeam(ctx context.Context, orgID, id uuid.UUID) (*domain.Team, error) {
	var team domain.Team
	err := ForOrg(r.db.WithContext(ctx), orgID).Where("id = ?", id).First(&team).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// TeamMemberIDs returns every member of a team, active or not
func (r *ProfileRepository) TeamMemberIDs(ctx context.Context, orgID, teamID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := ForOrgWithAlias(r.db.WithContext(ctx).Table("team_members tm"), orgID, "p").
		Joins("JOIN profiles p ON p.id = tm.profile_id").
		Where("tm.team_id = ?", teamID).
		Pluck("tm.profile_id", &ids).Error
	return ids, err
}

// ListTeamMembers returns the active members of a team
func (r *ProfileRepository) ListTeamMembers(ctx context.Context, orgID, teamID uuid.UUID) ([]domain.Profile, error) {
	var profiles []domain.Profile
	err := ForOrg(r.db.WithContext(ctx), orgID).
		Where("id IN (?)", r.db.Table("team_members").Select("profile_id").Where("team_id = ?", teamID)).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&profiles).Error
	return profiles, err
}

// MissingIDs returns which of ids are not rows of model in the org
func (r *ProfileRepository) MissingIDs(ctx context.Context, orgID uuid.UUID, model interface{}, ids []uuid.UUID) ([]uuid.UUID, error) {
	return MissingInOrg(ctx, r.db, orgID, model, ids)
}
