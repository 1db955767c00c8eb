package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/http/handler"
	"github.com/straye-as/pipeline-api/internal/lock"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"github.com/straye-as/pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type heldLocker struct{}

func (heldLocker) Obtain(context.Context, string) (lock.Lock, error) {
	return nil, lock.ErrNotObtained
}

func lineItemRouter(db *gorm.DB, locker lock.Locker, caller *domain.Profile) http.Handler {
	svc := service.NewLineItemService(
		db,
		repository.NewOpportunityRepository(db),
		repository.NewLineItemRepository(db),
		repository.NewProductRepository(db),
		locker,
		zap.NewNop(),
	)
	h := handler.NewLineItemHandler(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Use(asUser(caller))
	r.Get("/opportunities/{id}/line-items", h.List)
	r.Post("/opportunities/{id}/line-items", h.Create)
	r.Put("/opportunities/{id}/line-items/{itemId}", h.Update)
	r.Delete("/opportunities/{id}/line-items/{itemId}", h.Delete)
	return r
}

func TestLineItemHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	rep := f.User("rep")
	opp := f.Opportunity("Priced", testutil.AssignedTo(rep))
	h := lineItemRouter(db, lock.NewMemoryLocker(), rep)
	itemsPath := "/opportunities/" + opp.ID.String() + "/line-items"

	amount := func(t *testing.T) decimal.Decimal {
		t.Helper()
		var stored domain.Opportunity
		require.NoError(t, db.First(&stored, "id = ?", opp.ID).Error)
		return stored.Amount.Decimal
	}

	rr, env := do(t, h, http.MethodPost, itemsPath, map[string]interface{}{
		"name":       "Seats",
		"quantity":   "2",
		"unit_price": "50",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var item domain.LineItemDTO
	require.NoError(t, json.Unmarshal(env.Data, &item))
	itemPath := itemsPath + "/" + item.ID.String()

	t.Run("create rolls up the amount", func(t *testing.T) {
		assert.True(t, decimal.NewFromInt(100).Equal(item.Total))
		assert.True(t, decimal.NewFromInt(100).Equal(amount(t)))
	})

	t.Run("update recalculates", func(t *testing.T) {
		rr, env := do(t, h, http.MethodPut, itemPath, map[string]interface{}{
			"discount_type":  "PERCENTAGE",
			"discount_value": "10",
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var dto domain.LineItemDTO
		require.NoError(t, json.Unmarshal(env.Data, &dto))
		assert.True(t, decimal.NewFromInt(90).Equal(dto.Total))
		assert.True(t, decimal.NewFromInt(90).Equal(amount(t)))
	})

	t.Run("unknown opportunity is 404", func(t *testing.T) {
		rr, env := do(t, h, http.MethodPost, "/opportunities/"+uuid.NewString()+"/line-items", map[string]interface{}{"name": "Ghost"})
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Opportunity not found", env.Message)
	})

	t.Run("unknown item is 404", func(t *testing.T) {
		rr, env := do(t, h, http.MethodDelete, itemsPath+"/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Line item not found", env.Message)

		rr, _ = do(t, h, http.MethodPut, itemsPath+"/"+uuid.NewString(), map[string]interface{}{"name": "Ghost"})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("invalid item id is 400", func(t *testing.T) {
		rr, env := do(t, h, http.MethodDelete, itemsPath+"/42", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid line item ID: must be a valid UUID", env.Message)
	})

	t.Run("held lock is 409", func(t *testing.T) {
		rr, env := do(t, lineItemRouter(db, heldLocker{}, rep), http.MethodPost, itemsPath, map[string]interface{}{"name": "Racing"})
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "Opportunity is being modified, try again", env.Message)
	})

	t.Run("outsider of the opportunity is 403", func(t *testing.T) {
		rr, _ := do(t, lineItemRouter(db, lock.NewMemoryLocker(), f.User("peer")), http.MethodDelete, itemPath, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("other org sees 404", func(t *testing.T) {
		outsider := testutil.NewFixtures(t, db).User("outsider")
		rr, _ := do(t, lineItemRouter(db, lock.NewMemoryLocker(), outsider), http.MethodGet, itemsPath, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("deleting the last item resets the amount", func(t *testing.T) {
		rr, _ := do(t, h, http.MethodDelete, itemPath, nil)
		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.True(t, amount(t).IsZero())

		rr, env := do(t, h, http.MethodGet, itemsPath, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var items []domain.LineItemDTO
		require.NoError(t, json.Unmarshal(env.Data, &items))
		assert.Empty(t, items)
	})
}
