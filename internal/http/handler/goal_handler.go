package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type GoalHandler struct {
	goalService *service.GoalService
	logger      *zap.Logger
}

func NewGoalHandler(goalService *service.GoalService, logger *zap.Logger) *GoalHandler {
	return &GoalHandler{
		goalService: goalService,
		logger:      logger,
	}
}

// @Summary List sales goals
// @Tags Goals
// @Produce json
// @Param period_type query string false "MONTHLY, QUARTERLY or CUSTOM"
// @Param goal_type query string false "REVENUE or DEALS_CLOSED"
// @Param assignedTo query string false "Filter by assigned profile ID"
// @Param team query string false "Filter by team ID"
// @Param isActive query bool false "Filter by active flag"
// @Success 200 {array} domain.SalesGoalDTO
// @Failure 400 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /goals [get]
func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filters := &repository.GoalFilters{IsActive: boolQuery(r, "isActive")}

	if p := q.Get("period_type"); p != "" {
		pt := domain.PeriodType(strings.ToUpper(p))
		if !pt.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid period_type: "+p)
			return
		}
		filters.PeriodType = &pt
	}
	if g := q.Get("goal_type"); g != "" {
		gt := domain.GoalType(strings.ToUpper(g))
		if !gt.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid goal_type: "+g)
			return
		}
		filters.GoalType = &gt
	}
	if a := q.Get("assignedTo"); a != "" {
		id, err := uuid.Parse(a)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid assignedTo: must be a valid UUID")
			return
		}
		filters.AssignedTo = &id
	}
	if t := q.Get("team"); t != "" {
		id, err := uuid.Parse(t)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid team: must be a valid UUID")
			return
		}
		filters.TeamID = &id
	}

	goals, err := h.goalService.List(r.Context(), tc, filters)
	if err != nil {
		respondServiceError(w, h.logger, err, "list goals")
		return
	}
	respondJSON(w, http.StatusOK, goals)
}

// @Summary Create sales goal
// @Description Admin only. Set assigned_to for a personal goal, team for a team goal, or neither for the whole organization.
// @Tags Goals
// @Accept json
// @Produce json
// @Param request body domain.CreateGoalRequest true "Goal data"
// @Success 201 {object} domain.SalesGoalDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 403 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /goals [post]
func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	var req domain.CreateGoalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	goal, err := h.goalService.Create(r.Context(), tc, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create goal")
		return
	}
	w.Header().Set("Location", "/api/v1/goals/"+goal.ID.String())
	respondJSON(w, http.StatusCreated, goal)
}

// @Summary Get sales goal
// @Tags Goals
// @Produce json
// @Param id path string true "Goal ID"
// @Success 200 {object} domain.SalesGoalDTO
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /goals/{id} [get]
func (h *GoalHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "goal")
	if !ok {
		return
	}

	goal, err := h.goalService.GetByID(r.Context(), tc, id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get goal")
		return
	}
	respondJSON(w, http.StatusOK, goal)
}

// @Summary Update sales goal
// @Tags Goals
// @Accept json
// @Produce json
// @Param id path string true "Goal ID"
// @Param request body domain.UpdateGoalRequest true "Fields to change"
// @Success 200 {object} domain.SalesGoalDTO
// @Failure 400 {object} domain.ErrorResponse
// @Failure 403 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /goals/{id} [put]
func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "goal")
	if !ok {
		return
	}
	var req domain.UpdateGoalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	goal, err := h.goalService.Update(r.Context(), tc, id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update goal")
		return
	}
	respondJSON(w, http.StatusOK, goal)
}

// @Summary Delete sales goal
// @Tags Goals
// @Param id path string true "Goal ID"
// @Success 204
// @Failure 403 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /goals/{id} [delete]
func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "goal")
	if !ok {
		return
	}

	if err := h.goalService.Delete(r.Context(), tc, id); err != nil {
		respondServiceError(w, h.logger, err, "delete goal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Goal progress
// @Description Progress from CLOSED_WON opportunities closed within the period, with pace status
// @Tags Goals
// @Produce json
// @Param id path string true "Goal ID"
// @Success 200 {object} domain.GoalProgressDTO
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /goals/{id}/progress [get]
func (h *GoalHandler) Progress(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "goal")
	if !ok {
		return
	}

	progress, err := h.goalService.Progress(r.Context(), tc, id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get goal progress")
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

// @Summary Sales leaderboard
// @Description Personal goals of the current period ranked by percent complete
// @Tags Goals
// @Produce json
// @Param period_type query string false "MONTHLY, QUARTERLY or CUSTOM" default(MONTHLY)
// @Success 200 {array} domain.LeaderboardEntryDTO
// @Failure 400 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /goals/leaderboard [get]
func (h *GoalHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	periodType, ok := periodTypeQuery(w, r)
	if !ok {
		return
	}

	entries, err := h.goalService.Leaderboard(r.Context(), tc, periodType)
	if err != nil {
		respondServiceError(w, h.logger, err, "get leaderboard")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// @Summary Export sales leaderboard
// @Tags Goals
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param period_type query string false "MONTHLY, QUARTERLY or CUSTOM" default(MONTHLY)
// @Success 200 {file} file
// @Failure 400 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /goals/leaderboard/export [get]
func (h *GoalHandler) ExportLeaderboard(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	periodType, ok := periodTypeQuery(w, r)
	if !ok {
		return
	}

	data, err := h.goalService.LeaderboardXLSX(r.Context(), tc, periodType)
	if err != nil {
		respondServiceError(w, h.logger, err, "export leaderboard")
		return
	}

	filename := fmt.Sprintf("leaderboard-%s-%s.xlsx", strings.ToLower(string(periodType)), time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func periodTypeQuery(w http.ResponseWriter, r *http.Request) (domain.PeriodType, bool) {
	p := r.URL.Query().Get("period_type")
	if p == "" {
		return domain.PeriodTypeMonthly, true
	}
	pt := domain.PeriodType(strings.ToUpper(p))
	if !pt.IsValid() {
		respondWithError(w, http.StatusBadRequest, "Invalid period_type: "+p)
		return "", false
	}
	return pt, true
}
