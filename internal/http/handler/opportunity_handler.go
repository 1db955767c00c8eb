package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type OpportunityHandler struct {
	opportunityService *service.OpportunityService
	logger             *zap.Logger
}

func NewOpportunityHandler(opportunityService *service.OpportunityService, logger *zap.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		opportunityService: opportunityService,
		logger:             logger,
	}
}

// @Summary List opportunities
// @Description List the organization's opportunities with optional filters
// @Tags Opportunities
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size (max 200)" default(20)
// @Param stage query string false "Filter by stage (PROSPECTING, QUALIFICATION, PROPOSAL, NEGOTIATION, CLOSED_WON, CLOSED_LOST)"
// @Param assignedTo query string false "Filter by assigned profile ID"
// @Param account query string false "Filter by account ID"
// @Param isActive query bool false "Filter by active flag"
// @Param open query bool false "Only open stages"
// @Param aging_status query string false "Filter by aging status (green, yellow, red)"
// @Param q query string false "Search in name"
// @Param sortBy query string false "Sort field (name, stage, amount, probability, closedOn, stageChangedAt, createdAt, updatedAt)"
// @Param sortOrder query string false "Sort order (asc, desc)" default(desc)
// @Success 200 {object} domain.PaginatedResponse
// @Failure 400 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities [get]
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	page, pageSize := pagination(r)
	q := r.URL.Query()

	params := service.OpportunityListParams{
		Page:     page,
		PageSize: pageSize,
		Sort: repository.SortConfig{
			Field: q.Get("sortBy"),
			Order: repository.ParseSortOrder(q.Get("sortOrder")),
		},
	}

	if s := q.Get("stage"); s != "" {
		stage := domain.Stage(strings.ToUpper(s))
		if !stage.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid stage: "+s)
			return
		}
		params.Filters.Stage = &stage
	}
	if a := q.Get("assignedTo"); a != "" {
		id, err := uuid.Parse(a)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid assignedTo: must be a valid UUID")
			return
		}
		params.Filters.AssignedTo = &id
	}
	if a := q.Get("account"); a != "" {
		id, err := uuid.Parse(a)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid account: must be a valid UUID")
			return
		}
		params.Filters.AccountID = &id
	}
	params.Filters.IsActive = boolQuery(r, "isActive")
	if open := boolQuery(r, "open"); open != nil {
		params.Filters.OpenOnly = *open
	}
	params.Filters.Search = strings.TrimSpace(q.Get("q"))

	if a := q.Get("aging_status"); a != "" {
		status := domain.AgingStatus(strings.ToLower(a))
		if !status.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid aging_status: must be green, yellow or red")
			return
		}
		params.AgingStatus = &status
	}

	result, err := h.opportunityService.List(r.Context(), tc, params)
	if err != nil {
		respondServiceError(w, h.logger, err, "list opportunities")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// @Summary Create opportunity
// @Description Create a new opportunity. Stage defaults to PROSPECTING and probability follows the stage.
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param request body domain.CreateOpportunityRequest true "Opportunity data"
// @Success 201 {object} domain.OpportunityDTO
// @Failure 400 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities [post]
func (h *OpportunityHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	var req domain.CreateOpportunityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	opp, err := h.opportunityService.Create(r.Context(), tc, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create opportunity")
		return
	}

	w.Header().Set("Location", "/api/v1/opportunities/"+opp.ID.String())
	respondJSON(w, http.StatusCreated, opp)
}

// @Summary Get opportunity
// @Tags Opportunities
// @Produce json
// @Param id path string true "Opportunity ID"
// @Success 200 {object} domain.OpportunityDTO
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities/{id} [get]
func (h *OpportunityHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "opportunity")
	if !ok {
		return
	}

	opp, err := h.opportunityService.GetByID(r.Context(), tc, id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get opportunity")
		return
	}
	respondJSON(w, http.StatusOK, opp)
}

// @Summary Replace opportunity
// @Description Full update. Link lists left out of the body are cleared.
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID"
// @Param request body domain.UpdateOpportunityRequest true "Opportunity data"
// @Success 200 {object} domain.OpportunityDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 403 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities/{id} [put]
func (h *OpportunityHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

// @Summary Update opportunity
// @Description Partial update. Only fields present in the body change.
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID"
// @Param request body domain.UpdateOpportunityRequest true "Fields to change"
// @Success 200 {object} domain.OpportunityDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 403 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities/{id} [patch]
func (h *OpportunityHandler) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

func (h *OpportunityHandler) update(w http.ResponseWriter, r *http.Request, replace bool) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "opportunity")
	if !ok {
		return
	}
	var req domain.UpdateOpportunityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	opp, err := h.opportunityService.Update(r.Context(), tc, id, &req, replace)
	if err != nil {
		respondServiceError(w, h.logger, err, "update opportunity")
		return
	}
	respondJSON(w, http.StatusOK, opp)
}

// @Summary Delete opportunity
// @Tags Opportunities
// @Param id path string true "Opportunity ID"
// @Success 204
// @Failure 403 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities/{id} [delete]
func (h *OpportunityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "opportunity")
	if !ok {
		return
	}

	if err := h.opportunityService.Delete(r.Context(), tc, id); err != nil {
		respondServiceError(w, h.logger, err, "delete opportunity")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Pipeline summary
// @Description Count, total and weighted amount of active opportunities per stage
// @Tags Opportunities
// @Produce json
// @Success 200 {array} domain.PipelineStageDTO
// @Security BearerAuth
// @Router /opportunities/pipeline [get]
func (h *OpportunityHandler) Pipeline(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	stages, err := h.opportunityService.Pipeline(r.Context(), tc)
	if err != nil {
		respondServiceError(w, h.logger, err, "get pipeline")
		return
	}
	respondJSON(w, http.StatusOK, stages)
}

// @Summary Stage history
// @Description Stage transitions of an opportunity, newest first
// @Tags Opportunities
// @Produce json
// @Param id path string true "Opportunity ID"
// @Success 200 {array} domain.StageHistoryDTO
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities/{id}/stage-history [get]
func (h *OpportunityHandler) StageHistory(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "opportunity")
	if !ok {
		return
	}

	history, err := h.opportunityService.StageHistory(r.Context(), tc, id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get stage history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// @Summary Opportunity aging
// @Description Days in the current stage and the green/yellow/red classification
// @Tags Opportunities
// @Produce json
// @Param id path string true "Opportunity ID"
// @Success 200 {object} domain.OpportunityAgingDTO
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities/{id}/aging [get]
func (h *OpportunityHandler) Aging(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "opportunity")
	if !ok {
		return
	}

	aging, err := h.opportunityService.Aging(r.Context(), tc, id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get opportunity aging")
		return
	}
	respondJSON(w, http.StatusOK, aging)
}
