package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

type AgingConfigHandler struct {
	agingService *service.AgingService
	logger       *zap.Logger
}

func NewAgingConfigHandler(agingService *service.AgingService, logger *zap.Logger) *AgingConfigHandler {
	return &AgingConfigHandler{
		agingService: agingService,
		logger:       logger,
	}
}

// @Summary Get stage aging thresholds
// @Description Effective thresholds of every open stage; stages without an override report the defaults
// @Tags Aging
// @Produce json
// @Success 200 {array} domain.AgingConfigDTO
// @Security BearerAuth
// @Router /opportunities/aging-config [get]
func (h *AgingConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	configs, err := h.agingService.Effective(r.Context(), tc)
	if err != nil {
		respondServiceError(w, h.logger, err, "get aging config")
		return
	}
	respondJSON(w, http.StatusOK, configs)
}

// @Summary Set stage aging thresholds
// @Description Upsert overrides for several stages at once. Admin only. The whole batch is rejected if any entry is invalid.
// @Tags Aging
// @Accept json
// @Produce json
// @Param request body []domain.AgingConfigEntry true "Overrides"
// @Success 200 {array} domain.AgingConfigDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 403 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities/aging-config [put]
func (h *AgingConfigHandler) BulkUpsert(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	var entries []domain.AgingConfigEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: expected a list of stage thresholds")
		return
	}

	configs, err := h.agingService.BulkUpsert(r.Context(), tc, entries)
	if err != nil {
		respondServiceError(w, h.logger, err, "update aging config")
		return
	}
	respondJSON(w, http.StatusOK, configs)
}

// @Summary Reset stage aging threshold
// @Description Remove the override of one stage so the default applies again. Admin only.
// @Tags Aging
// @Param stage path string true "Stage"
// @Success 204
// @Failure 400 {object} domain.ErrorResponse
// @Failure 403 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /opportunities/aging-config/{stage} [delete]
func (h *AgingConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	stage := domain.Stage(strings.ToUpper(chi.URLParam(r, "stage")))

	if err := h.agingService.Delete(r.Context(), tc, stage); err != nil {
		respondServiceError(w, h.logger, err, "reset aging config")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
