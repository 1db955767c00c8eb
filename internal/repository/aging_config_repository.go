package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AgingConfigRepository struct {
	db *gorm.DB
}

func NewAgingConfigRepository(db *gorm.DB) *AgingConfigRepository {
	return &AgingConfigRepository{db: db}
}

// ListByOrg returns the stored overrides of an org
func (r *AgingConfigRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]domain.StageAgingConfig, error) {
	var configs []domain.StageAgingConfig
	err := ForOrg(r.db.WithContext(ctx), orgID).Find(&configs).Error
	return configs, err
}

// GetByStage returns the override for one stage
func (r *AgingConfigRepository) GetByStage(ctx context.Context, orgID uuid.UUID, stage domain.Stage) (*domain.StageAgingConfig, error) {
	var cfg domain.StageAgingConfig
	err := ForOrg(r.db.WithContext(ctx), orgID).Where("stage = ?", stage).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Upsert inserts or replaces the overrides keyed by (org, stage) in one transaction
func (r *AgingConfigRepository) Upsert(ctx context.Context, configs []domain.StageAgingConfig) error {
	if len(configs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "stage"}},
			DoUpdates: clause.AssignmentColumns([]string{"expected_days", "warning_days", "updated_at"}),
		}).Create(&configs).Error
	})
}

// DeleteByStage removes one override and reports whether it existed
func (r *AgingConfigRepository) DeleteByStage(ctx context.Context, orgID uuid.UUID, stage domain.Stage) (bool, error) {
	result := ForOrg(r.db.WithContext(ctx), orgID).Where("stage = ?", stage).Delete(&domain.StageAgingConfig{})
	return result.RowsAffected > 0, result.Error
}
