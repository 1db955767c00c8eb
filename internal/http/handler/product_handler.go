package handler

import (
	"net/http"

	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type ProductHandler struct {
	productService *service.ProductService
	logger         *zap.Logger
}

func NewProductHandler(productService *service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// @Summary List products
// @Tags Products
// @Produce json
// @Param active query bool false "Only active products"
// @Success 200 {array} domain.ProductDTO
// @Security BearerAuth
// @Router /products [get]
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	activeOnly := false
	if a := boolQuery(r, "active"); a != nil {
		activeOnly = *a
	}

	products, err := h.productService.List(r.Context(), tc, activeOnly)
	if err != nil {
		respondServiceError(w, h.logger, err, "list products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// @Summary Create product
// @Tags Products
// @Accept json
// @Produce json
// @Param request body domain.CreateProductRequest true "Product data"
// @Success 201 {object} domain.ProductDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 403 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /products [post]
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	var req domain.CreateProductRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	product, err := h.productService.Create(r.Context(), tc, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create product")
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

// @Summary Delete product
// @Description Line items keep their copied name and price; their product link is cleared
// @Tags Products
// @Param id path string true "Product ID"
// @Success 204
// @Failure 403 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /products/{id} [delete]
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "product")
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), tc, id); err != nil {
		respondServiceError(w, h.logger, err, "delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
