package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LineItemRepository struct {
	db *gorm.DB
}

func NewLineItemRepository(db *gorm.DB) *LineItemRepository {
	return &LineItemRepository{db: db}
}

func (r *LineItemRepository) WithTx(tx *gorm.DB) *LineItemRepository {
	return &LineItemRepository{db: tx}
}

func (r *LineItemRepository) Create(ctx context.Context, item *domain.OpportunityLineItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

func (r *LineItemRepository) GetByID(ctx context.Context, orgID, opportunityID, id uuid.UUID) (*domain.OpportunityLineItem, error) {
	var item domain.OpportunityLineItem
	err := ForOrg(r.db.WithContext(ctx), orgID).
		Where("opportunity_id = ? AND id = ?", opportunityID, id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *LineItemRepository) Update(ctx context.Context, item *domain.OpportunityLineItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(item).Error
}

func (r *LineItemRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	result := ForOrg(r.db.WithContext(ctx), orgID).Where("id = ?", id).Delete(&domain.OpportunityLineItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByOpportunity returns the line items of an opportunity in display order
func (r *LineItemRepository) ListByOpportunity(ctx context.Context, orgID, opportunityID uuid.UUID) ([]domain.OpportunityLineItem, error) {
	var items []domain.OpportunityLineItem
	err := ForOrg(r.db.WithContext(ctx), orgID).
		Where("opportunity_id = ?", opportunityID).
		Order("sort_order ASC, created_at ASC").
		Find(&items).Error
	return items, err
}

// NextSortOrder returns one past the highest sort order on the opportunity
func (r *LineItemRepository) NextSortOrder(ctx context.Context, orgID, opportunityID uuid.UUID) (int, error) {
	var max *int
	err := ForOrg(r.db.WithContext(ctx).Model(&domain.OpportunityLineItem{}), orgID).
		Where("opportunity_id = ?", opportunityID).
		Select("MAX(sort_order)").
		Scan(&max).Error
	if err != nil || max == nil {
		return 0, err
	}
	return *max + 1, nil
}
