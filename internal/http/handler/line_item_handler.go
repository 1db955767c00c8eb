package handler

import (
	"net/http"

	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

// LineItemHandler serves the priced lines of an opportunity. Every write
// recomputes the opportunity amount.
type LineItemHandler struct {
	lineItemService *service.LineItemService
	logger          *zap.Logger
}

func NewLineItemHandler(lineItemService *service.LineItemService, logger *zap.Logger) *LineItemHandler {
	return &LineItemHandler{
		lineItemService: lineItemService,
		logger:          logger,
	}
}

// @Summary List line items
// @Tags Line Items
// @Produce json
// @Param id path string true "Opportunity ID"
// @Success 200 {array} domain.LineItemDTO
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities/{id}/line-items [get]
func (h *LineItemHandler) List(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	oppID, ok := uuidParam(w, r, "id", "opportunity")
	if !ok {
		return
	}

	items, err := h.lineItemService.List(r.Context(), tc, oppID)
	if err != nil {
		respondServiceError(w, h.logger, err, "list line items")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// @Summary Add line item
// @Description Add a line. Name and unit price default from the product when one is given.
// @Tags Line Items
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID"
// @Param request body domain.CreateLineItemRequest true "Line item data"
// @Success 201 {object} domain.LineItemDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 403 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities/{id}/line-items [post]
func (h *LineItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	oppID, ok := uuidParam(w, r, "id", "opportunity")
	if !ok {
		return
	}
	var req domain.CreateLineItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	item, err := h.lineItemService.Create(r.Context(), tc, oppID, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create line item")
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// @Summary Update line item
// @Tags Line Items
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID"
// @Param itemId path string true "Line item ID"
// @Param request body domain.UpdateLineItemRequest true "Fields to change"
// @Success 200 {object} domain.LineItemDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities/{id}/line-items/{itemId} [put]
func (h *LineItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	oppID, ok := uuidParam(w, r, "id", "opportunity")
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "itemId", "line item")
	if !ok {
		return
	}
	var req domain.UpdateLineItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	item, err := h.lineItemService.Update(r.Context(), tc, oppID, itemID, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update line item")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// @Summary Delete line item
// @Tags Line Items
// @Param id path string true "Opportunity ID"
// @Param itemId path string true "Line item ID"
// @Success 204
// @Failure 404 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities/{id}/line-items/{itemId} [delete]
func (h *LineItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	oppID, ok := uuidParam(w, r, "id", "opportunity")
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "itemId", "line item")
	if !ok {
		return
	}

	if err := h.lineItemService.Delete(r.Context(), tc, oppID, itemID); err != nil {
		respondServiceError(w, h.logger, err, "delete line item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
