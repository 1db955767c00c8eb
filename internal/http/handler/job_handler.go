package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/jobs"
	"github.com/straye-as/pipeline-api/internal/service"
	"go.uber.org/zap"
)

// JobRunner runs registered background jobs on demand
type JobRunner interface {
	GetJobNames() []string
	RunForOrg(ctx context.Context, name string, orgID uuid.UUID) (*jobs.RunResult, error)
}

type JobHandler struct {
	runner JobRunner
	logger *zap.Logger
}

func NewJobHandler(runner JobRunner, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		runner: runner,
		logger: logger,
	}
}

// @Summary List background jobs
// @Tags Jobs
// @Produce json
// @Success 200 {array} string
// @Failure 403 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /jobs [get]
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	if !tc.IsAdmin() {
		respondServiceError(w, h.logger, service.ErrPermissionDenied, "list jobs")
		return
	}
	respondJSON(w, http.StatusOK, h.runner.GetJobNames())
}

// @Summary Run background job
// @Description Runs a job now for the caller's organization only. Admin only.
// @Tags Jobs
// @Produce json
// @Param name path string true "Job name (stale-opportunities, goal-milestones)"
// @Success 200 {object} jobs.RunResult
// @Failure 403 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /jobs/{name}/run [post]
func (h *JobHandler) Run(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	if !tc.IsAdmin() {
		respondServiceError(w, h.logger, service.ErrPermissionDenied, "run job")
		return
	}
	name := chi.URLParam(r, "name")

	result, err := h.runner.RunForOrg(r.Context(), name, tc.OrgID)
	if err != nil {
		respondServiceError(w, h.logger, err, "run job "+name)
		return
	}

	h.logger.Info("job run on demand",
		zap.String("job_name", name),
		zap.String("org_id", tc.OrgID.String()),
		zap.String("profile_id", tc.ProfileID.String()),
		zap.Int("matched", result.Matched),
		zap.Int("notified", result.Notified))
	respondJSON(w, http.StatusOK, result)
}
