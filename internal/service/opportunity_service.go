package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/logger"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpportunityListParams holds the query options of the opportunity list
type OpportunityListParams struct {
	Page        int
	PageSize    int
	Filters     repository.OpportunityFilters
	Sort        repository.SortConfig
	AgingStatus *domain.AgingStatus
}

type OpportunityService struct {
	db          *gorm.DB
	oppRepo     *repository.OpportunityRepository
	historyRepo *repository.OpportunityStageHistoryRepository
	profileRepo *repository.ProfileRepository
	agingRepo   *repository.AgingConfigRepository
	logger      *zap.Logger
	now         func() time.Time
}

func NewOpportunityService(
	db *gorm.DB,
	oppRepo *repository.OpportunityRepository,
	historyRepo *repository.OpportunityStageHistoryRepository,
	profileRepo *repository.ProfileRepository,
	agingRepo *repository.AgingConfigRepository,
	logger *zap.Logger,
) *OpportunityService {
	return &OpportunityService{
		db:          db,
		oppRepo:     oppRepo,
		historyRepo: historyRepo,
		profileRepo: profileRepo,
		agingRepo:   agingRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock replaces the time source
func (s *OpportunityService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *OpportunityService) Create(ctx context.Context, tc domain.TenantContext, req *domain.CreateOpportunityRequest) (*domain.OpportunityDTO, error) {
	if !tc.Valid() {
		return nil, ErrUnauthorized
	}

	opp := &domain.Opportunity{
		OrgID:        tc.OrgID,
		Name:         strings.TrimSpace(req.Name),
		Stage:        req.Stage,
		AmountSource: domain.AmountSourceManual,
		Currency:     strings.ToUpper(req.Currency),
		LeadSource:   req.LeadSource,
		Description:  req.Description,
		ClosedOn:     req.ClosedOn.Ptr(),
		CreatedByID:  tc.ActorID(),
		IsActive:     true,
		Version:      1,
	}
	if opp.Stage == "" {
		opp.Stage = domain.StageProspecting
	}
	if req.Amount != nil {
		opp.Amount = decimal.NewNullDecimal(*req.Amount)
	}
	if req.Probability != nil {
		opp.Probability = *req.Probability
	}
	if req.Account != nil && req.Account.ID != uuid.Nil {
		id := req.Account.ID
		opp.AccountID = &id
	}
	if opp.EntersClosedStage(nil) {
		opp.ClosedByID = tc.ActorID()
	}

	now := s.now()
	opp.PrepareSave(nil, now)
	if err := opp.Clean(); err != nil {
		return nil, err
	}

	links := repository.OpportunityLinks{
		AssignedTo: domain.RefIDs(req.AssignedTo),
		Teams:      domain.RefIDs(req.Teams),
		Contacts:   domain.RefIDs(req.Contacts),
		Tags:       domain.RefIDs(req.Tags),
	}
	if err := s.checkReferences(ctx, tc.OrgID, opp.AccountID, links); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		oppRepo := s.oppRepo.WithTx(tx)
		taken, err := oppRepo.NameTaken(ctx, tc.OrgID, opp.NameKey, nil)
		if err != nil {
			return err
		}
		if taken {
			return duplicateNameError()
		}
		if err := oppRepo.Create(ctx, opp, links); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return duplicateNameError()
			}
			return err
		}
		return s.historyRepo.WithTx(tx).Create(ctx, &domain.OpportunityStageHistory{
			OrgID:         tc.OrgID,
			OpportunityID: opp.ID,
			ToStage:       opp.Stage,
			ChangedByID:   tc.ActorID(),
			ChangedAt:     now.UTC(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opportunity: %w", err)
	}

	logger.WithTenant(s.logger, tc).Info("opportunity created",
		zap.String("opportunity_id", opp.ID.String()),
		zap.String("stage", string(opp.Stage)))

	return s.load(ctx, tc.OrgID, opp.ID)
}

func (s *OpportunityService) GetByID(ctx context.Context, tc domain.TenantContext, id uuid.UUID) (*domain.OpportunityDTO, error) {
	return s.load(ctx, tc.OrgID, id)
}

// List returns a page of opportunities. Filtering by aging status is done after
// classification, so it loads the full filtered set before paging.
func (s *OpportunityService) List(ctx context.Context, tc domain.TenantContext, params OpportunityListParams) (*domain.PaginatedResponse, error) {
	configs, err := s.configSet(ctx, tc.OrgID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	page, pageSize := repository.NormalizePage(params.Page, params.PageSize)

	if params.AgingStatus == nil {
		opps, total, err := s.oppRepo.List(ctx, tc.OrgID, page, pageSize, &params.Filters, params.Sort)
		if err != nil {
			return nil, fmt.Errorf("failed to list opportunities: %w", err)
		}
		dtos := make([]domain.OpportunityDTO, len(opps))
		for i := range opps {
			dtos[i] = mapper.ToOpportunityDTO(&opps[i], configs, now)
		}
		resp := domain.NewPaginatedResponse(dtos, total, page, pageSize)
		return &resp, nil
	}

	opps, err := s.oppRepo.ListAll(ctx, tc.OrgID, &params.Filters, params.Sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list opportunities: %w", err)
	}
	matched := make([]domain.OpportunityDTO, 0, len(opps))
	for i := range opps {
		if domain.ClassifyAging(&opps[i], configs, now) == *params.AgingStatus {
			matched = append(matched, mapper.ToOpportunityDTO(&opps[i], configs, now))
		}
	}

	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	resp := domain.NewPaginatedResponse(matched[start:end], int64(len(matched)), page, pageSize)
	return &resp, nil
}

// Update applies req to the opportunity. With replace set (PUT) omitted link lists
// are cleared; otherwise (PATCH) they are left as they are.
func (s *OpportunityService) Update(ctx context.Context, tc domain.TenantContext, id uuid.UUID, req *domain.UpdateOpportunityRequest, replace bool) (*domain.OpportunityDTO, error) {
	opp, err := s.oppRepo.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return nil, notFound(err, ErrOpportunityNotFound)
	}
	if !canEditOpportunity(tc, opp) {
		return nil, ErrPermissionDenied
	}

	persisted := opp.Stage
	oldName := opp.NameKey
	applyOpportunityUpdate(opp, req)
	if opp.EntersClosedStage(&persisted) {
		opp.ClosedByID = tc.ActorID()
	}

	now := s.now()
	stageChanged := opp.PrepareSave(&persisted, now)
	if err := opp.Clean(); err != nil {
		return nil, err
	}

	links := updateLinks(req, replace)
	if err := s.checkReferences(ctx, tc.OrgID, opp.AccountID, links); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		oppRepo := s.oppRepo.WithTx(tx)
		if opp.NameKey != oldName {
			taken, err := oppRepo.NameTaken(ctx, tc.OrgID, opp.NameKey, &opp.ID)
			if err != nil {
				return err
			}
			if taken {
				return duplicateNameError()
			}
		}
		if err := oppRepo.Update(ctx, opp, links); err != nil {
			switch {
			case errors.Is(err, repository.ErrStaleVersion):
				return ErrConcurrentUpdate
			case errors.Is(err, gorm.ErrDuplicatedKey):
				return duplicateNameError()
			}
			return err
		}
		if !stageChanged {
			return nil
		}
		from := persisted
		return s.historyRepo.WithTx(tx).Create(ctx, &domain.OpportunityStageHistory{
			OrgID:         tc.OrgID,
			OpportunityID: opp.ID,
			FromStage:     &from,
			ToStage:       opp.Stage,
			ChangedByID:   tc.ActorID(),
			ChangedAt:     now.UTC(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update opportunity: %w", err)
	}

	if stageChanged {
		logger.WithTenant(s.logger, tc).Info("opportunity stage changed",
			zap.String("opportunity_id", opp.ID.String()),
			zap.String("from", string(persisted)),
			zap.String("to", string(opp.Stage)))
	}

	return s.load(ctx, tc.OrgID, opp.ID)
}

// Delete removes an opportunity. Only admins and the creator may delete.
func (s *OpportunityService) Delete(ctx context.Context, tc domain.TenantContext, id uuid.UUID) error {
	opp, err := s.oppRepo.Find(ctx, tc.OrgID, id)
	if err != nil {
		return notFound(err, ErrOpportunityNotFound)
	}
	if !tc.IsAdmin() && !isCreator(tc, opp) {
		return ErrPermissionDenied
	}

	if err := s.oppRepo.Delete(ctx, tc.OrgID, id); err != nil {
		return fmt.Errorf("failed to delete opportunity: %w", notFound(err, ErrOpportunityNotFound))
	}

	logger.WithTenant(s.logger, tc).Info("opportunity deleted", zap.String("opportunity_id", id.String()))
	return nil
}

// StageHistory returns the stage transitions of an opportunity, newest first
func (s *OpportunityService) StageHistory(ctx context.Context, tc domain.TenantContext, id uuid.UUID) ([]domain.StageHistoryDTO, error) {
	if _, err := s.oppRepo.Find(ctx, tc.OrgID, id); err != nil {
		return nil, notFound(err, ErrOpportunityNotFound)
	}

	history, err := s.historyRepo.ListByOpportunity(ctx, tc.OrgID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage history: %w", err)
	}

	dtos := make([]domain.StageHistoryDTO, len(history))
	for i := range history {
		dtos[i] = mapper.ToStageHistoryDTO(&history[i])
	}
	return dtos, nil
}

// Aging reports the aging classification of one opportunity
func (s *OpportunityService) Aging(ctx context.Context, tc domain.TenantContext, id uuid.UUID) (*domain.OpportunityAgingDTO, error) {
	opp, err := s.oppRepo.Find(ctx, tc.OrgID, id)
	if err != nil {
		return nil, notFound(err, ErrOpportunityNotFound)
	}
	configs, err := s.configSet(ctx, tc.OrgID)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToOpportunityAgingDTO(opp, configs, s.now())
	return &dto, nil
}

// Pipeline summarizes active open opportunities per stage. Every open stage is
// present, including empty ones.
func (s *OpportunityService) Pipeline(ctx context.Context, tc domain.TenantContext) ([]domain.PipelineStageDTO, error) {
	opps, err := s.oppRepo.ListOpen(ctx, tc.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}

	stages := domain.OpenStages()
	byStage := make(map[domain.Stage]*domain.PipelineStageDTO, len(stages))
	summary := make([]domain.PipelineStageDTO, len(stages))
	for i, stage := range stages {
		summary[i] = domain.PipelineStageDTO{Stage: stage, TotalAmount: decimal.Zero, WeightedAmount: decimal.Zero}
		byStage[stage] = &summary[i]
	}

	for i := range opps {
		row, ok := byStage[opps[i].Stage]
		if !ok {
			continue
		}
		row.Count++
		if opps[i].Amount.Valid {
			row.TotalAmount = row.TotalAmount.Add(opps[i].Amount.Decimal)
		}
		row.WeightedAmount = row.WeightedAmount.Add(opps[i].WeightedAmount())
	}
	return summary, nil
}

func (s *OpportunityService) load(ctx context.Context, orgID, id uuid.UUID) (*domain.OpportunityDTO, error) {
	opp, err := s.oppRepo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, notFound(err, ErrOpportunityNotFound)
	}
	configs, err := s.configSet(ctx, orgID)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToOpportunityDTO(opp, configs, s.now())
	return &dto, nil
}

func (s *OpportunityService) configSet(ctx context.Context, orgID uuid.UUID) (domain.AgingConfigSet, error) {
	configs, err := s.agingRepo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load aging configuration: %w", err)
	}
	return domain.NewAgingConfigSet(configs), nil
}

// checkReferences rejects links to rows outside the org
func (s *OpportunityService) checkReferences(ctx context.Context, orgID uuid.UUID, accountID *uuid.UUID, links repository.OpportunityLinks) error {
	checks := []struct {
		field string
		model interface{}
		ids   []uuid.UUID
	}{
		{"assigned_to", &domain.Profile{}, links.AssignedTo},
		{"teams", &domain.Team{}, links.Teams},
		{"contacts", &domain.Contact{}, links.Contacts},
		{"tags", &domain.Tag{}, links.Tags},
	}
	if accountID != nil {
		checks = append(checks, struct {
			field string
			model interface{}
			ids   []uuid.UUID
		}{"account", &domain.Account{}, []uuid.UUID{*accountID}})
	}

	errs := domain.ValidationErrors{}
	for _, c := range checks {
		missing, err := s.profileRepo.MissingIDs(ctx, orgID, c.model, c.ids)
		if err != nil {
			return fmt.Errorf("failed to check references: %w", err)
		}
		if len(missing) > 0 {
			errs.Add(c.field, fmt.Sprintf("Unknown id %s", missing[0]))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrCrossTenant, errs)
	}
	return nil
}

func applyOpportunityUpdate(opp *domain.Opportunity, req *domain.UpdateOpportunityRequest) {
	if req.Name != nil {
		opp.Name = strings.TrimSpace(*req.Name)
	}
	if req.Account != nil {
		if req.Account.ID == uuid.Nil {
			opp.AccountID = nil
		} else {
			id := req.Account.ID
			opp.AccountID = &id
		}
	}
	if req.Stage != nil {
		opp.Stage = *req.Stage
	}
	if req.Amount != nil {
		opp.Amount = decimal.NewNullDecimal(*req.Amount)
		opp.AmountSource = domain.AmountSourceManual
	}
	if req.Probability != nil {
		opp.Probability = *req.Probability
	}
	if req.Currency != nil {
		opp.Currency = strings.ToUpper(*req.Currency)
	}
	if req.LeadSource != nil {
		opp.LeadSource = *req.LeadSource
	}
	if req.Description != nil {
		opp.Description = *req.Description
	}
	if req.ClosedOn != nil {
		opp.ClosedOn = req.ClosedOn.Ptr()
	}
	if req.IsActive != nil {
		opp.IsActive = *req.IsActive
	}
}

func updateLinks(req *domain.UpdateOpportunityRequest, replace bool) repository.OpportunityLinks {
	pick := func(refs []domain.Ref) []uuid.UUID {
		if refs == nil && !replace {
			return nil
		}
		return domain.RefIDs(refs)
	}
	return repository.OpportunityLinks{
		AssignedTo: pick(req.AssignedTo),
		Teams:      pick(req.Teams),
		Contacts:   pick(req.Contacts),
		Tags:       pick(req.Tags),
	}
}

func canEditOpportunity(tc domain.TenantContext, opp *domain.Opportunity) bool {
	return tc.IsAdmin() || isCreator(tc, opp) || opp.IsAssignedTo(tc.ProfileID)
}

func isCreator(tc domain.TenantContext, opp *domain.Opportunity) bool {
	return opp.CreatedByID != nil && *opp.CreatedByID == tc.ProfileID
}

func duplicateNameError() error {
	return fmt.Errorf("%w: %w", ErrDuplicateOpportunityName,
		domain.ValidationErrors{"name": "An opportunity with this name already exists"})
}

// notFound maps gorm's missing-row error to sentinel
func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
