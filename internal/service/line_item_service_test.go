package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/lock"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"github.com/straye-as/pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func createLineItemService(db *gorm.DB, locker lock.Locker) *service.LineItemService {
	return service.NewLineItemService(
		db,
		repository.NewOpportunityRepository(db),
		repository.NewLineItemRepository(db),
		repository.NewProductRepository(db),
		locker,
		zap.NewNop(),
	)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

type busyLocker struct{}

func (busyLocker) Obtain(_ context.Context, key string) (lock.Lock, error) {
	return nil, lock.ErrNotObtained
}

func TestLineItemService_RecalculatesAmount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := createLineItemService(db, lock.NewMemoryLocker())
	ctx := context.Background()

	rep := f.User("rep")
	opp := f.Opportunity("Priced deal", testutil.AssignedTo(rep))
	tc := f.Tenant(rep)

	_, err := svc.Create(ctx, tc, opp.ID, &domain.CreateLineItemRequest{
		Name: "Seats", Quantity: decPtr("2"), UnitPrice: decPtr("50"),
	})
	require.NoError(t, err)
	big, err := svc.Create(ctx, tc, opp.ID, &domain.CreateLineItemRequest{
		Name: "Onboarding", Quantity: decPtr("1"), UnitPrice: decPtr("200"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, big.Order)

	stored := storedOpportunity(t, db, opp.ID)
	assert.True(t, decimal.RequireFromString("300").Equal(stored.Amount.Decimal), stored.Amount.Decimal.String())
	assert.Equal(t, domain.AmountSourceCalculated, stored.AmountSource)

	require.NoError(t, svc.Delete(ctx, tc, opp.ID, big.ID))
	stored = storedOpportunity(t, db, opp.ID)
	assert.True(t, decimal.RequireFromString("100").Equal(stored.Amount.Decimal), stored.Amount.Decimal.String())

	items, err := svc.List(ctx, tc, opp.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "USD 100.00", items[0].TotalDisplay)
}

func TestLineItemService_Discounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := createLineItemService(db, lock.NewMemoryLocker())
	ctx := context.Background()
	admin := f.Admin("admin")
	opp := f.Opportunity("Discounted")

	t.Run("percentage", func(t *testing.T) {
		item, err := svc.Create(ctx, f.Tenant(admin), opp.ID, &domain.CreateLineItemRequest{
			Name:          "Licences",
			Quantity:      decPtr("10"),
			UnitPrice:     decPtr("100.00"),
			DiscountType:  domain.DiscountTypePercentage,
			DiscountValue: decPtr("10"),
		})
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("1000").Equal(item.Subtotal))
		assert.True(t, decimal.RequireFromString("100").Equal(item.DiscountAmount))
		assert.True(t, decimal.RequireFromString("900").Equal(item.Total))
	})

	t.Run("update switches to fixed", func(t *testing.T) {
		items, err := svc.List(ctx, f.Tenant(admin), opp.ID)
		require.NoError(t, err)
		require.Len(t, items, 1)

		fixed := domain.DiscountTypeFixed
		item, err := svc.Update(ctx, f.Tenant(admin), opp.ID, items[0].ID, &domain.UpdateLineItemRequest{
			DiscountType:  &fixed,
			DiscountValue: decPtr("250"),
		})
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("750").Equal(item.Total))

		stored := storedOpportunity(t, db, opp.ID)
		assert.True(t, decimal.RequireFromString("750").Equal(stored.Amount.Decimal))
	})

	t.Run("fixed discount above subtotal is rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, f.Tenant(admin), opp.ID, &domain.CreateLineItemRequest{
			Name:          "Too generous",
			UnitPrice:     decPtr("10"),
			DiscountType:  domain.DiscountTypeFixed,
			DiscountValue: decPtr("20"),
		})
		var verrs domain.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "discount_value")
	})
}

func TestLineItemService_ProductDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := createLineItemService(db, lock.NewMemoryLocker())
	ctx := context.Background()
	admin := f.Admin("admin")
	opp := f.Opportunity("From catalogue")

	product := &domain.Product{OrgID: f.Org.ID, Name: "Support plan", UnitPrice: decimal.RequireFromString("120"), IsActive: true}
	require.NoError(t, db.Create(product).Error)

	item, err := svc.Create(ctx, f.Tenant(admin), opp.ID, &domain.CreateLineItemRequest{
		Product:  &domain.Ref{ID: product.ID},
		Quantity: decPtr("3"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Support plan", item.Name)
	assert.Equal(t, &product.ID, item.ProductID)
	assert.True(t, decimal.RequireFromString("360").Equal(item.Total))

	foreign := &domain.Product{OrgID: testutil.CreateOrg(t, db, "Other").ID, Name: "Foreign", IsActive: true}
	require.NoError(t, db.Create(foreign).Error)
	_, err = svc.Create(ctx, f.Tenant(admin), opp.ID, &domain.CreateLineItemRequest{Product: &domain.Ref{ID: foreign.ID}})
	assert.ErrorIs(t, err, service.ErrProductNotFound)
}

func TestLineItemService_RecalculateWithoutItems(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := createLineItemService(db, lock.NewMemoryLocker())
	ctx := context.Background()
	admin := f.Admin("admin")

	calculated := f.Opportunity("Cleared", func(o *domain.Opportunity) {
		o.Amount = decimal.NewNullDecimal(decimal.RequireFromString("300"))
		o.AmountSource = domain.AmountSourceCalculated
	})
	manual := f.Opportunity("Typed", func(o *domain.Opportunity) {
		o.Amount = decimal.NewNullDecimal(decimal.RequireFromString("750"))
	})

	require.NoError(t, svc.Recalculate(ctx, f.Tenant(admin), calculated.ID))
	stored := storedOpportunity(t, db, calculated.ID)
	assert.True(t, stored.Amount.Decimal.IsZero())
	assert.Equal(t, domain.AmountSourceManual, stored.AmountSource)
	assert.Equal(t, 2, stored.Version)

	require.NoError(t, svc.Recalculate(ctx, f.Tenant(admin), manual.ID))
	stored = storedOpportunity(t, db, manual.ID)
	assert.True(t, decimal.RequireFromString("750").Equal(stored.Amount.Decimal))
	assert.Equal(t, 1, stored.Version)
}

func TestLineItemService_Guards(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx := context.Background()
	admin := f.Admin("admin")
	opp := f.Opportunity("Guarded")

	t.Run("held lock", func(t *testing.T) {
		svc := createLineItemService(db, busyLocker{})
		_, err := svc.Create(ctx, f.Tenant(admin), opp.ID, &domain.CreateLineItemRequest{Name: "x", UnitPrice: decPtr("1")})
		assert.ErrorIs(t, err, service.ErrOpportunityLocked)
	})

	svc := createLineItemService(db, lock.NewMemoryLocker())

	t.Run("unrelated user", func(t *testing.T) {
		outsider := f.User("outsider")
		_, err := svc.Create(ctx, f.Tenant(outsider), opp.ID, &domain.CreateLineItemRequest{Name: "x"})
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("opportunity of another org", func(t *testing.T) {
		other := testutil.NewFixtures(t, db)
		_, err := svc.Create(ctx, other.Tenant(other.Admin("a")), opp.ID, &domain.CreateLineItemRequest{Name: "x"})
		assert.ErrorIs(t, err, service.ErrOpportunityNotFound)
	})

	t.Run("unknown item", func(t *testing.T) {
		err := svc.Delete(ctx, f.Tenant(admin), opp.ID, uuid.New())
		assert.ErrorIs(t, err, service.ErrLineItemNotFound)
	})
}

func TestLineItemService_ConcurrentCreates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := createLineItemService(db, lock.NewMemoryLocker())
	ctx := context.Background()
	admin := f.Admin("admin")
	opp := f.Opportunity("Busy")

	const writers = 5
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, f.Tenant(admin), opp.ID, &domain.CreateLineItemRequest{
				Name: "Unit", UnitPrice: decPtr("10"),
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	stored := storedOpportunity(t, db, opp.ID)
	assert.True(t, decimal.RequireFromString("50").Equal(stored.Amount.Decimal), stored.Amount.Decimal.String())
	assert.Equal(t, 1+writers, stored.Version)
}
