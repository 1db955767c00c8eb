package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/logger"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
)

// AgingService manages per-org stage aging overrides
type AgingService struct {
	agingRepo *repository.AgingConfigRepository
	logger    *zap.Logger
}

func NewAgingService(agingRepo *repository.AgingConfigRepository, logger *zap.Logger) *AgingService {
	return &AgingService{agingRepo: agingRepo, logger: logger}
}

// ConfigSet loads the overrides of an org for classification
func (s *AgingService) ConfigSet(ctx context.Context, orgID uuid.UUID) (domain.AgingConfigSet, error) {
	configs, err := s.agingRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load aging configuration: %w", err)
	}
	return domain.NewAgingConfigSet(configs), nil
}

// Effective returns the thresholds in force for every open stage, in pipeline order
func (s *AgingService) Effective(ctx context.Context, tc domain.TenantContext) ([]domain.AgingConfigDTO, error) {
	set, err := s.ConfigSet(ctx, tc.OrgID)
	if err != nil {
		return nil, err
	}

	stages := domain.OpenStages()
	dtos := make([]domain.AgingConfigDTO, len(stages))
	for i, stage := range stages {
		dtos[i] = mapper.ToAgingConfigDTO(set.Thresholds(stage))
	}
	return dtos, nil
}

// BulkUpsert stores the given overrides in one transaction. Admin only.
// Stages not named keep their current configuration.
func (s *AgingService) BulkUpsert(ctx context.Context, tc domain.TenantContext, entries []domain.AgingConfigEntry) ([]domain.AgingConfigDTO, error) {
	if !tc.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if len(entries) == 0 {
		return nil, domain.ValidationErrors{"entries": "At least one stage configuration is required"}
	}

	errs := domain.ValidationErrors{}
	seen := make(map[domain.Stage]struct{}, len(entries))
	configs := make([]domain.StageAgingConfig, 0, len(entries))
	for _, e := range entries {
		cfg := domain.StageAgingConfig{
			OrgID:        tc.OrgID,
			Stage:        e.Stage,
			ExpectedDays: e.ExpectedDays,
			WarningDays:  e.WarningDays,
		}
		var verrs domain.ValidationErrors
		if err := cfg.Clean(); errors.As(err, &verrs) {
			for field, msg := range verrs {
				errs.Add(fmt.Sprintf("%s.%s", e.Stage, field), msg)
			}
			continue
		}
		if _, dup := seen[e.Stage]; dup {
			errs.Add(string(e.Stage), "Stage is listed more than once")
			continue
		}
		seen[e.Stage] = struct{}{}
		configs = append(configs, cfg)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if err := s.agingRepo.Upsert(ctx, configs); err != nil {
		return nil, fmt.Errorf("failed to save aging configuration: %w", err)
	}

	logger.WithTenant(s.logger, tc).Info("aging configuration updated", zap.Int("stages", len(configs)))
	return s.Effective(ctx, tc)
}

// Delete reverts one stage to its built-in default. Admin only.
func (s *AgingService) Delete(ctx context.Context, tc domain.TenantContext, stage domain.Stage) error {
	if !tc.IsAdmin() {
		return ErrPermissionDenied
	}
	if !stage.IsValid() || stage.IsClosed() {
		return domain.ValidationErrors{"stage": fmt.Sprintf("%q is not an open stage", stage)}
	}

	deleted, err := s.agingRepo.DeleteByStage(ctx, tc.OrgID, stage)
	if err != nil {
		return fmt.Errorf("failed to delete aging configuration: %w", err)
	}
	if !deleted {
		return ErrAgingConfigNotFound
	}

	logger.WithTenant(s.logger, tc).Info("aging configuration reset", zap.String("stage", string(stage)))
	return nil
}
