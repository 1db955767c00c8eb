package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GoalFilters contains the filter options for listing goals
type GoalFilters struct {
	PeriodType *domain.PeriodType
	GoalType   *domain.GoalType
	AssignedTo *uuid.UUID
	TeamID     *uuid.UUID
	IsActive   *bool
}

type GoalRepository struct {
	db *gorm.DB
}

func NewGoalRepository(db *gorm.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

func (r *GoalRepository) WithTx(tx *gorm.DB) *GoalRepository {
	return &GoalRepository{db: tx}
}

func (r *GoalRepository) Create(ctx context.Context, goal *domain.SalesGoal) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(goal).Error
}

func (r *GoalRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.SalesGoal, error) {
	var goal domain.SalesGoal
	err := ForOrg(r.db.WithContext(ctx), orgID).
		Preload("AssignedTo").
		Preload("Team").
		Where("id = ?", id).
		First(&goal).Error
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// Update saves the editable columns. Milestone flags are never written here.
func (r *GoalRepository) Update(ctx context.Context, goal *domain.SalesGoal) error {
	return r.db.WithContext(ctx).Model(goal).
		Select("Name", "GoalType", "TargetValue", "PeriodType", "PeriodStart", "PeriodEnd", "AssignedToID", "TeamID", "IsActive", "UpdatedAt").
		Omit(clause.Associations).
		Updates(goal).Error
}

func (r *GoalRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	result := ForOrg(r.db.WithContext(ctx), orgID).Where("id = ?", id).Delete(&domain.SalesGoal{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GoalRepository) List(ctx context.Context, orgID uuid.UUID, filters *GoalFilters) ([]domain.SalesGoal, error) {
	var goals []domain.SalesGoal
	query := ForOrg(r.db.WithContext(ctx), orgID).Preload("AssignedTo").Preload("Team")
	if filters != nil {
		if filters.PeriodType != nil {
			query = query.Where("period_type = ?", *filters.PeriodType)
		}
		if filters.GoalType != nil {
			query = query.Where("goal_type = ?", *filters.GoalType)
		}
		if filters.AssignedTo != nil {
			query = query.Where("assigned_to_id = ?", *filters.AssignedTo)
		}
		if filters.TeamID != nil {
			query = query.Where("team_id = ?", *filters.TeamID)
		}
		if filters.IsActive != nil {
			query = query.Where("is_active = ?", *filters.IsActive)
		}
	}
	err := query.Order("period_start DESC, created_at ASC").Find(&goals).Error
	return goals, err
}

// ListActiveOn returns active goals whose period contains day, in creation order.
// A nil periodType matches every period type.
func (r *GoalRepository) ListActiveOn(ctx context.Context, orgID uuid.UUID, day time.Time, periodType *domain.PeriodType) ([]domain.SalesGoal, error) {
	var goals []domain.SalesGoal
	d := domain.DateOnly(day)
	query := ForOrg(r.db.WithContext(ctx), orgID).
		Preload("AssignedTo").
		Where("is_active = ?", true).
		Where("period_start <= ? AND period_end >= ?", d, d)
	if periodType != nil {
		query = query.Where("period_type = ?", *periodType)
	}
	err := query.Order("created_at ASC, id ASC").Find(&goals).Error
	return goals, err
}

// ClaimMilestone sets the flag of m and every lower milestone, but only if m was not yet set.
// It reports whether this call made the change, so at most one caller ever sends m.
func (r *GoalRepository) ClaimMilestone(ctx context.Context, orgID, goalID uuid.UUID, m domain.Milestone) (bool, error) {
	updates := map[string]interface{}{}
	for _, col := range domain.MilestoneColumns(m) {
		updates[col] = true
	}

	result := ForOrg(r.db.WithContext(ctx).Model(&domain.SalesGoal{}), orgID).
		Where("id = ?", goalID).
		Where(domain.MilestoneColumn(m)+" = ?", false).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
