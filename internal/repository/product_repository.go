package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *ProductRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Product, error) {
	var product domain.Product
	err := ForOrg(r.db.WithContext(ctx), orgID).Where("id = ?", id).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepository) List(ctx context.Context, orgID uuid.UUID, activeOnly bool) ([]domain.Product, error) {
	var products []domain.Product
	query := ForOrg(r.db.WithContext(ctx), orgID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("name ASC").Find(&products).Error
	return products, err
}

// Delete removes the product and clears it from any line item that referenced it
func (r *ProductRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := ForOrg(tx, orgID).Where("id = ?", id).Delete(&domain.Product{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return ForOrg(tx.Model(&domain.OpportunityLineItem{}), orgID).
			Where("product_id = ?", id).
			UpdateColumn("product_id", nil).Error
	})
}
