package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineItemRepository_TenantHook(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := repository.NewLineItemRepository(db)
	products := repository.NewProductRepository(db)

	acme := testutil.NewFixtures(t, db)
	globex := testutil.NewFixtures(t, db)
	opp := acme.Opportunity("Seats for Acme")

	newItem := func(orgID uuid.UUID) *domain.OpportunityLineItem {
		return &domain.OpportunityLineItem{
			OrgID:         orgID,
			OpportunityID: opp.ID,
			Name:          "Seats",
			Quantity:      decimal.NewFromInt(2),
			UnitPrice:     decimal.NewFromInt(10),
			DiscountType:  domain.DiscountTypeNone,
		}
	}

	t.Run("same org is stored", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newItem(acme.Org.ID)))
	})

	t.Run("org of another tenant is rejected on create", func(t *testing.T) {
		err := repo.Create(ctx, newItem(globex.Org.ID))
		var verrs domain.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "opportunity")

		left, err := repo.ListByOpportunity(ctx, globex.Org.ID, opp.ID)
		require.NoError(t, err)
		assert.Empty(t, left)
	})

	t.Run("org of another tenant is rejected on save", func(t *testing.T) {
		item := newItem(acme.Org.ID)
		require.NoError(t, repo.Create(ctx, item))

		item.OrgID = globex.Org.ID
		var verrs domain.ValidationErrors
		require.ErrorAs(t, repo.Update(ctx, item), &verrs)
	})

	t.Run("unknown opportunity", func(t *testing.T) {
		item := newItem(acme.Org.ID)
		item.OpportunityID = uuid.New()
		var verrs domain.ValidationErrors
		require.ErrorAs(t, repo.Create(ctx, item), &verrs)
	})

	t.Run("product of another tenant", func(t *testing.T) {
		foreign := &domain.Product{OrgID: globex.Org.ID, Name: "Globex widget", UnitPrice: decimal.NewFromInt(5), IsActive: true}
		require.NoError(t, products.Create(ctx, foreign))

		item := newItem(acme.Org.ID)
		item.ProductID = &foreign.ID
		err := repo.Create(ctx, item)
		var verrs domain.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "product")
	})

	t.Run("deleting a product clears it from line items", func(t *testing.T) {
		product := &domain.Product{OrgID: acme.Org.ID, Name: "Acme seat", UnitPrice: decimal.NewFromInt(10), IsActive: true}
		require.NoError(t, products.Create(ctx, product))

		item := newItem(acme.Org.ID)
		item.ProductID = &product.ID
		require.NoError(t, repo.Create(ctx, item))

		require.NoError(t, products.Delete(ctx, acme.Org.ID, product.ID))

		got, err := repo.GetByID(ctx, acme.Org.ID, opp.ID, item.ID)
		require.NoError(t, err)
		assert.Nil(t, got.ProductID)
	})
}
