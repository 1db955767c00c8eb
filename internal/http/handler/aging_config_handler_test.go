package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/http/handler"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"github.com/straye-as/pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func agingRouter(db *gorm.DB, caller *domain.Profile) http.Handler {
	svc := service.NewAgingService(repository.NewAgingConfigRepository(db), zap.NewNop())
	h := handler.NewAgingConfigHandler(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Use(asUser(caller))
	r.Get("/aging-config", h.Get)
	r.Put("/aging-config", h.BulkUpsert)
	r.Delete("/aging-config/{stage}", h.Delete)
	return r
}

func agingByStage(t *testing.T, env envelope) map[domain.Stage]domain.AgingConfigDTO {
	t.Helper()
	var dtos []domain.AgingConfigDTO
	require.NoError(t, json.Unmarshal(env.Data, &dtos))
	byStage := make(map[domain.Stage]domain.AgingConfigDTO, len(dtos))
	for _, d := range dtos {
		byStage[d.Stage] = d
	}
	return byStage
}

func TestAgingConfigHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	admin := agingRouter(db, f.Admin("boss"))
	user := agingRouter(db, f.User("rep"))

	t.Run("defaults for every open stage", func(t *testing.T) {
		rr, env := do(t, user, http.MethodGet, "/aging-config", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		byStage := agingByStage(t, env)
		assert.Len(t, byStage, len(domain.OpenStages()))
		assert.True(t, byStage[domain.StageProposal].IsDefault)
		assert.Equal(t, 21, byStage[domain.StageProposal].ExpectedDays)
	})

	t.Run("bulk upsert takes a list", func(t *testing.T) {
		rr, env := do(t, admin, http.MethodPut, "/aging-config", []map[string]interface{}{
			{"stage": "NEGOTIATION", "expected_days": 30, "warning_days": 20},
			{"stage": "PROPOSAL", "expected_days": 10},
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		byStage := agingByStage(t, env)
		negotiation := byStage[domain.StageNegotiation]
		assert.False(t, negotiation.IsDefault)
		assert.Equal(t, 30, negotiation.ExpectedDays)
		assert.Equal(t, 20, negotiation.WarningDays)
		assert.Equal(t, 45.0, negotiation.RottenDays)

		proposal := byStage[domain.StageProposal]
		assert.Equal(t, 10, proposal.WarningDays, "warning defaults to expected days")
		assert.True(t, byStage[domain.StageProspecting].IsDefault)
	})

	t.Run("non admin cannot upsert", func(t *testing.T) {
		rr, env := do(t, user, http.MethodPut, "/aging-config", []map[string]interface{}{
			{"stage": "NEGOTIATION", "expected_days": 5},
		})
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.True(t, env.Error)

		_, env = do(t, user, http.MethodGet, "/aging-config", nil)
		assert.Equal(t, 30, agingByStage(t, env)[domain.StageNegotiation].ExpectedDays)
	})

	t.Run("single object is not a list", func(t *testing.T) {
		rr, env := do(t, admin, http.MethodPut, "/aging-config", map[string]interface{}{"stage": "NEGOTIATION", "expected_days": 5})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid request body: expected a list of stage thresholds", env.Message)
	})

	t.Run("one invalid entry rejects the batch", func(t *testing.T) {
		rr, env := do(t, admin, http.MethodPut, "/aging-config", []map[string]interface{}{
			{"stage": "PROSPECTING", "expected_days": 7},
			{"stage": "NEGOTIATION", "expected_days": 10, "warning_days": 12},
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, env.Errors, "NEGOTIATION.warning_days")

		_, env = do(t, admin, http.MethodGet, "/aging-config", nil)
		assert.True(t, agingByStage(t, env)[domain.StageProspecting].IsDefault)
	})

	t.Run("delete reverts to default", func(t *testing.T) {
		rr, _ := do(t, user, http.MethodDelete, "/aging-config/negotiation", nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)

		rr, _ = do(t, admin, http.MethodDelete, "/aging-config/negotiation", nil)
		require.Equal(t, http.StatusNoContent, rr.Code)

		_, env := do(t, admin, http.MethodGet, "/aging-config", nil)
		assert.True(t, agingByStage(t, env)[domain.StageNegotiation].IsDefault)

		rr, env = do(t, admin, http.MethodDelete, "/aging-config/negotiation", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Aging configuration not found", env.Message)
	})

	t.Run("closed stage cannot be reset", func(t *testing.T) {
		rr, env := do(t, admin, http.MethodDelete, "/aging-config/closed_won", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, env.Errors, "stage")
	})
}
