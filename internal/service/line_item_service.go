package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/lock"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LineItemService mutates line items and keeps the owning opportunity's amount in step.
// Every mutation runs under the opportunity lock and inside one transaction that
// re-reads the opportunity, applies the change, recalculates and writes back with
// the version guard.
type LineItemService struct {
	db          *gorm.DB
	oppRepo     *repository.OpportunityRepository
	itemRepo    *repository.LineItemRepository
	productRepo *repository.ProductRepository
	locker      lock.Locker
	logger      *zap.Logger
}

func NewLineItemService(
	db *gorm.DB,
	oppRepo *repository.OpportunityRepository,
	itemRepo *repository.LineItemRepository,
	productRepo *repository.ProductRepository,
	locker lock.Locker,
	logger *zap.Logger,
) *LineItemService {
	return &LineItemService{
		db:          db,
		oppRepo:     oppRepo,
		itemRepo:    itemRepo,
		productRepo: productRepo,
		locker:      locker,
		logger:      logger,
	}
}

func (s *LineItemService) List(ctx context.Context, tc domain.TenantContext, oppID uuid.UUID) ([]domain.LineItemDTO, error) {
	opp, err := s.oppRepo.Find(ctx, tc.OrgID, oppID)
	if err != nil {
		return nil, notFound(err, ErrOpportunityNotFound)
	}

	items, err := s.itemRepo.ListByOpportunity(ctx, tc.OrgID, oppID)
	if err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}

	dtos := make([]domain.LineItemDTO, len(items))
	for i := range items {
		dtos[i] = mapper.ToLineItemDTO(&items[i], opp.Currency)
	}
	return dtos, nil
}

func (s *LineItemService) Create(ctx context.Context, tc domain.TenantContext, oppID uuid.UUID, req *domain.CreateLineItemRequest) (*domain.LineItemDTO, error) {
	if err := s.authorize(ctx, tc, oppID); err != nil {
		return nil, err
	}

	item := &domain.OpportunityLineItem{
		OrgID:         tc.OrgID,
		OpportunityID: oppID,
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Quantity:      decimal.NewFromInt(1),
		UnitPrice:     decimal.Zero,
		DiscountType:  req.DiscountType,
		DiscountValue: decimal.Zero,
	}
	if req.Product != nil && req.Product.ID != uuid.Nil {
		product, err := s.productRepo.GetByID(ctx, tc.OrgID, req.Product.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %w", ErrProductNotFound, domain.ValidationErrors{"product": "Unknown product"})
			}
			return nil, fmt.Errorf("failed to get product: %w", err)
		}
		item.ProductID = &product.ID
		item.UnitPrice = product.UnitPrice
		if item.Name == "" {
			item.Name = product.Name
		}
		if item.Description == "" {
			item.Description = product.Description
		}
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}
	if req.UnitPrice != nil {
		item.UnitPrice = *req.UnitPrice
	}
	if item.DiscountType == "" {
		item.DiscountType = domain.DiscountTypeNone
	}
	if req.DiscountValue != nil {
		item.DiscountValue = *req.DiscountValue
	}
	if err := item.Clean(); err != nil {
		return nil, err
	}

	var currency string
	err := s.mutate(ctx, tc, oppID, func(tx *gorm.DB, opp *domain.Opportunity) error {
		if err := item.CheckTenant(opp); err != nil {
			return fmt.Errorf("%w: %w", ErrCrossTenant, err)
		}
		itemRepo := s.itemRepo.WithTx(tx)
		if req.Order != nil {
			item.SortOrder = *req.Order
		} else {
			next, err := itemRepo.NextSortOrder(ctx, tc.OrgID, oppID)
			if err != nil {
				return err
			}
			item.SortOrder = next
		}
		item.ApplyTotals()
		currency = opp.Currency
		return itemRepo.Create(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	dto := mapper.ToLineItemDTO(item, currency)
	return &dto, nil
}

func (s *LineItemService) Update(ctx context.Context, tc domain.TenantContext, oppID, itemID uuid.UUID, req *domain.UpdateLineItemRequest) (*domain.LineItemDTO, error) {
	if err := s.authorize(ctx, tc, oppID); err != nil {
		return nil, err
	}

	var (
		item     *domain.OpportunityLineItem
		currency string
	)
	err := s.mutate(ctx, tc, oppID, func(tx *gorm.DB, opp *domain.Opportunity) error {
		itemRepo := s.itemRepo.WithTx(tx)
		found, err := itemRepo.GetByID(ctx, tc.OrgID, oppID, itemID)
		if err != nil {
			return notFound(err, ErrLineItemNotFound)
		}
		item = found
		applyLineItemUpdate(item, req)
		if err := item.Clean(); err != nil {
			return err
		}
		if err := item.CheckTenant(opp); err != nil {
			return fmt.Errorf("%w: %w", ErrCrossTenant, err)
		}
		item.ApplyTotals()
		currency = opp.Currency
		return itemRepo.Update(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	dto := mapper.ToLineItemDTO(item, currency)
	return &dto, nil
}

func (s *LineItemService) Delete(ctx context.Context, tc domain.TenantContext, oppID, itemID uuid.UUID) error {
	if err := s.authorize(ctx, tc, oppID); err != nil {
		return err
	}

	return s.mutate(ctx, tc, oppID, func(tx *gorm.DB, _ *domain.Opportunity) error {
		itemRepo := s.itemRepo.WithTx(tx)
		if _, err := itemRepo.GetByID(ctx, tc.OrgID, oppID, itemID); err != nil {
			return notFound(err, ErrLineItemNotFound)
		}
		return notFound(itemRepo.Delete(ctx, tc.OrgID, itemID), ErrLineItemNotFound)
	})
}

// Recalculate rolls the current line items into the opportunity amount
func (s *LineItemService) Recalculate(ctx context.Context, tc domain.TenantContext, oppID uuid.UUID) error {
	if err := s.authorize(ctx, tc, oppID); err != nil {
		return err
	}
	return s.mutate(ctx, tc, oppID, func(*gorm.DB, *domain.Opportunity) error { return nil })
}

func (s *LineItemService) authorize(ctx context.Context, tc domain.TenantContext, oppID uuid.UUID) error {
	opp, err := s.oppRepo.GetByID(ctx, tc.OrgID, oppID)
	if err != nil {
		return notFound(err, ErrOpportunityNotFound)
	}
	if !canEditOpportunity(tc, opp) {
		return ErrPermissionDenied
	}
	return nil
}

// mutate runs fn and the amount recalculation as one unit of work on the opportunity
func (s *LineItemService) mutate(ctx context.Context, tc domain.TenantContext, oppID uuid.UUID, fn func(tx *gorm.DB, opp *domain.Opportunity) error) error {
	key := lock.OpportunityKey(tc.OrgID, oppID)
	lk, err := s.locker.Obtain(ctx, key)
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return ErrOpportunityLocked
		}
		return fmt.Errorf("failed to lock opportunity: %w", err)
	}
	defer func() {
		if err := lk.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release opportunity lock", zap.String("key", key), zap.Error(err))
		}
	}()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		oppRepo := s.oppRepo.WithTx(tx)
		opp, err := oppRepo.GetForUpdate(ctx, tc.OrgID, oppID)
		if err != nil {
			return notFound(err, ErrOpportunityNotFound)
		}

		if err := fn(tx, opp); err != nil {
			return err
		}

		items, err := s.itemRepo.WithTx(tx).ListByOpportunity(ctx, tc.OrgID, oppID)
		if err != nil {
			return fmt.Errorf("failed to load line items: %w", err)
		}
		if !domain.RecalculateAmount(opp, items) {
			return nil
		}
		if err := oppRepo.Update(ctx, opp, repository.OpportunityLinks{}); err != nil {
			if errors.Is(err, repository.ErrStaleVersion) {
				return ErrConcurrentUpdate
			}
			return fmt.Errorf("failed to update opportunity amount: %w", err)
		}

		s.logger.Debug("opportunity amount recalculated",
			zap.String("opportunity_id", oppID.String()),
			zap.String("amount", opp.Amount.Decimal.String()),
			zap.Int("line_items", len(items)))
		return nil
	})
}

func applyLineItemUpdate(item *domain.OpportunityLineItem, req *domain.UpdateLineItemRequest) {
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}
	if req.UnitPrice != nil {
		item.UnitPrice = *req.UnitPrice
	}
	if req.DiscountType != nil {
		item.DiscountType = *req.DiscountType
	}
	if req.DiscountValue != nil {
		item.DiscountValue = *req.DiscountValue
	}
	if req.Order != nil {
		item.SortOrder = *req.Order
	}
}
