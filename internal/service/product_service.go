package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/mapper"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
)

type ProductService struct {
	productRepo *repository.ProductRepository
	logger      *zap.Logger
}

func NewProductService(productRepo *repository.ProductRepository, logger *zap.Logger) *ProductService {
	return &ProductService{productRepo: productRepo, logger: logger}
}

func (s *ProductService) Create(ctx context.Context, tc domain.TenantContext, req *domain.CreateProductRequest) (*domain.ProductDTO, error) {
	product := &domain.Product{
		OrgID:       tc.OrgID,
		Name:        strings.TrimSpace(req.Name),
		SKU:         req.SKU,
		Description: req.Description,
		UnitPrice:   decimal.Zero,
		Currency:    strings.ToUpper(req.Currency),
		IsActive:    true,
	}
	if req.UnitPrice != nil {
		product.UnitPrice = *req.UnitPrice
	}

	errs := domain.ValidationErrors{}
	if product.Name == "" {
		errs.Add("name", "This field is required")
	}
	if product.UnitPrice.IsNegative() {
		errs.Add("unit_price", "Unit price cannot be negative")
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	dto := mapper.ToProductDTO(product)
	return &dto, nil
}

func (s *ProductService) List(ctx context.Context, tc domain.TenantContext, activeOnly bool) ([]domain.ProductDTO, error) {
	products, err := s.productRepo.List(ctx, tc.OrgID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	dtos := make([]domain.ProductDTO, len(products))
	for i := range products {
		dtos[i] = mapper.ToProductDTO(&products[i])
	}
	return dtos, nil
}

// Delete removes a product. Line items that used it keep their values and lose the reference.
func (s *ProductService) Delete(ctx context.Context, tc domain.TenantContext, id uuid.UUID) error {
	if !tc.IsAdmin() {
		return ErrPermissionDenied
	}
	if err := s.productRepo.Delete(ctx, tc.OrgID, id); err != nil {
		return notFound(err, ErrProductNotFound)
	}
	s.logger.Info("product deleted", zap.String("product_id", id.String()))
	return nil
}
