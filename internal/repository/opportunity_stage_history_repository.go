package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

type OpportunityStageHistoryRepository struct {
	db *gorm.DB
}

func NewOpportunityStageHistoryRepository(db *gorm.DB) *OpportunityStageHistoryRepository {
	return &OpportunityStageHistoryRepository{db: db}
}

func (r *OpportunityStageHistoryRepository) WithTx(tx *gorm.DB) *OpportunityStageHistoryRepository {
	return &OpportunityStageHistoryRepository{db: tx}
}

// Create records a new stage transition
func (r *OpportunityStageHistoryRepository) Create(ctx context.Context, history *domain.OpportunityStageHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

// ListByOpportunity returns the transitions of one opportunity, newest first
func (r *OpportunityStageHistoryRepository) ListByOpportunity(ctx context.Context, orgID, opportunityID uuid.UUID) ([]domain.OpportunityStageHistory, error) {
	var history []domain.OpportunityStageHistory
	err := ForOrg(r.db.WithContext(ctx), orgID).
		Where("opportunity_id = ?", opportunityID).
		Order("changed_at DESC").
		Find(&history).Error
	return history, err
}
