package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"github.com/straye-as/pipeline-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func createOpportunityService(db *gorm.DB, c *clock) *service.OpportunityService {
	svc := service.NewOpportunityService(
		db,
		repository.NewOpportunityRepository(db),
		repository.NewOpportunityStageHistoryRepository(db),
		repository.NewProfileRepository(db),
		repository.NewAgingConfigRepository(db),
		zap.NewNop(),
	)
	svc.SetClock(c.Now)
	return svc
}

func storedOpportunity(t *testing.T, db *gorm.DB, id uuid.UUID) *domain.Opportunity {
	t.Helper()
	var opp domain.Opportunity
	require.NoError(t, db.First(&opp, "id = ?", id).Error)
	return &opp
}

func strPtr(s string) *string { return &s }

func stagePtr(s domain.Stage) *domain.Stage { return &s }

func TestOpportunityService_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	c := newClock()
	svc := createOpportunityService(db, c)
	ctx := context.Background()
	rep := f.User("rep")

	t.Run("applies stage defaults and records history", func(t *testing.T) {
		dto, err := svc.Create(ctx, f.Tenant(rep), &domain.CreateOpportunityRequest{
			Name:       "Acme renewal",
			Stage:      domain.StageProposal,
			AssignedTo: []domain.Ref{{ID: rep.ID}},
		})
		require.NoError(t, err)

		assert.Equal(t, 50, dto.Probability)
		assert.Equal(t, domain.AmountSourceManual, dto.AmountSource)
		assert.Equal(t, []uuid.UUID{rep.ID}, dto.AssignedTo)
		assert.Equal(t, domain.AgingGreen, dto.AgingStatus)

		opp := storedOpportunity(t, db, dto.ID)
		require.NotNil(t, opp.StageChangedAt)
		assert.WithinDuration(t, c.now, *opp.StageChangedAt, time.Second)
		assert.Equal(t, &rep.ID, opp.CreatedByID)

		history, err := svc.StageHistory(ctx, f.Tenant(rep), dto.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Nil(t, history[0].FromStage)
		assert.Equal(t, domain.StageProposal, history[0].ToStage)
	})

	t.Run("explicit probability is kept", func(t *testing.T) {
		p := 35
		dto, err := svc.Create(ctx, f.Tenant(rep), &domain.CreateOpportunityRequest{
			Name: "Explicit", Stage: domain.StageProposal, Probability: &p,
		})
		require.NoError(t, err)
		assert.Equal(t, 35, dto.Probability)
	})

	t.Run("duplicate name ignores case", func(t *testing.T) {
		_, err := svc.Create(ctx, f.Tenant(rep), &domain.CreateOpportunityRequest{Name: "  ACME Renewal "})
		require.Error(t, err)
		assert.ErrorIs(t, err, service.ErrDuplicateOpportunityName)

		var verrs domain.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "name")
	})

	t.Run("closed won requires amount and close date", func(t *testing.T) {
		_, err := svc.Create(ctx, f.Tenant(rep), &domain.CreateOpportunityRequest{
			Name: "Won without data", Stage: domain.StageClosedWon,
		})
		var verrs domain.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "amount")
		assert.Contains(t, verrs, "closed_on")
	})

	t.Run("creating closed sets closed_by", func(t *testing.T) {
		amount := decimal.NewFromInt(1000)
		closedOn := domain.NewDate(c.now)
		dto, err := svc.Create(ctx, f.Tenant(rep), &domain.CreateOpportunityRequest{
			Name: "Won on entry", Stage: domain.StageClosedWon, Amount: &amount, ClosedOn: &closedOn,
		})
		require.NoError(t, err)
		assert.Equal(t, &rep.ID, dto.ClosedBy)
		assert.Equal(t, 100, dto.Probability)
	})

	t.Run("rejects assignees from another org", func(t *testing.T) {
		other := testutil.NewFixtures(t, db).User("stranger")
		_, err := svc.Create(ctx, f.Tenant(rep), &domain.CreateOpportunityRequest{
			Name:       "Cross tenant",
			AssignedTo: []domain.Ref{{ID: other.ID}},
		})
		assert.ErrorIs(t, err, service.ErrCrossTenant)
		var verrs domain.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "assigned_to")
	})
}

func TestOpportunityService_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	c := newClock()
	svc := createOpportunityService(db, c)
	ctx := context.Background()
	rep := f.User("rep")

	created, err := svc.Create(ctx, f.Tenant(rep), &domain.CreateOpportunityRequest{
		Name:       "Stage tracking",
		AssignedTo: []domain.Ref{{ID: rep.ID}},
	})
	require.NoError(t, err)
	initial := storedOpportunity(t, db, created.ID).StageChangedAt

	t.Run("other fields leave stage_changed_at alone", func(t *testing.T) {
		c.Advance(48 * time.Hour)
		_, err := svc.Update(ctx, f.Tenant(rep), created.ID, &domain.UpdateOpportunityRequest{
			Description: strPtr("new notes"),
		}, false)
		require.NoError(t, err)

		opp := storedOpportunity(t, db, created.ID)
		assert.WithinDuration(t, *initial, *opp.StageChangedAt, time.Second)
		assert.Equal(t, 2, opp.Version)
	})

	t.Run("stage change stamps stage_changed_at and history", func(t *testing.T) {
		c.Advance(24 * time.Hour)
		dto, err := svc.Update(ctx, f.Tenant(rep), created.ID, &domain.UpdateOpportunityRequest{
			Stage: stagePtr(domain.StageQualification),
		}, false)
		require.NoError(t, err)
		assert.Equal(t, domain.StageQualification, dto.Stage)
		assert.Equal(t, 0, dto.DaysInStage)

		opp := storedOpportunity(t, db, created.ID)
		assert.WithinDuration(t, c.now, *opp.StageChangedAt, time.Second)
		// probability was set on create, so it is not re-defaulted
		assert.Equal(t, 10, opp.Probability)

		history, err := svc.StageHistory(ctx, f.Tenant(rep), created.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		require.NotNil(t, history[0].FromStage)
		assert.Equal(t, domain.StageProspecting, *history[0].FromStage)
		assert.Equal(t, domain.StageQualification, history[0].ToStage)
	})

	t.Run("patch without links keeps assignees", func(t *testing.T) {
		dto, err := svc.Update(ctx, f.Tenant(rep), created.ID, &domain.UpdateOpportunityRequest{
			LeadSource: strPtr("referral"),
		}, false)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{rep.ID}, dto.AssignedTo)
	})

	t.Run("closing sets closed_by to the actor", func(t *testing.T) {
		closedOn := domain.NewDate(c.now)
		dto, err := svc.Update(ctx, f.Tenant(rep), created.ID, &domain.UpdateOpportunityRequest{
			Stage:    stagePtr(domain.StageClosedLost),
			ClosedOn: &closedOn,
		}, false)
		require.NoError(t, err)
		assert.Equal(t, &rep.ID, dto.ClosedBy)
		assert.Equal(t, domain.AgingGreen, dto.AgingStatus)
	})

	t.Run("unrelated user is denied", func(t *testing.T) {
		outsider := f.User("outsider")
		_, err := svc.Update(ctx, f.Tenant(outsider), created.ID, &domain.UpdateOpportunityRequest{
			Description: strPtr("hijack"),
		}, false)
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("admin may edit", func(t *testing.T) {
		admin := f.Admin("boss")
		_, err := svc.Update(ctx, f.Tenant(admin), created.ID, &domain.UpdateOpportunityRequest{
			Description: strPtr("reviewed"),
		}, false)
		assert.NoError(t, err)
	})

	t.Run("put clears omitted links", func(t *testing.T) {
		admin := f.Admin("boss2")
		dto, err := svc.Update(ctx, f.Tenant(admin), created.ID, &domain.UpdateOpportunityRequest{
			Name: strPtr("Stage tracking"),
		}, true)
		require.NoError(t, err)
		assert.Empty(t, dto.AssignedTo)
	})

	t.Run("renaming onto an existing name fails", func(t *testing.T) {
		f.Opportunity("Taken")
		admin := f.Admin("boss3")
		_, err := svc.Update(ctx, f.Tenant(admin), created.ID, &domain.UpdateOpportunityRequest{
			Name: strPtr("taken"),
		}, false)
		assert.ErrorIs(t, err, service.ErrDuplicateOpportunityName)
	})
}

func TestOpportunityService_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := createOpportunityService(db, newClock())
	ctx := context.Background()

	creator := f.User("creator")
	assignee := f.User("assignee")
	dto, err := svc.Create(ctx, f.Tenant(creator), &domain.CreateOpportunityRequest{
		Name:       "To delete",
		AssignedTo: []domain.Ref{{ID: assignee.ID}},
	})
	require.NoError(t, err)

	t.Run("assignee cannot delete", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(ctx, f.Tenant(assignee), dto.ID), service.ErrPermissionDenied)
	})

	t.Run("creator deletes", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, f.Tenant(creator), dto.ID))
		_, err := svc.GetByID(ctx, f.Tenant(creator), dto.ID)
		assert.ErrorIs(t, err, service.ErrOpportunityNotFound)
	})
}

func TestOpportunityService_TenantIsolation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	other := testutil.NewFixtures(t, db)
	svc := createOpportunityService(db, newClock())
	ctx := context.Background()

	opp := f.Opportunity("Private deal")
	intruder := other.Admin("intruder")

	_, err := svc.GetByID(ctx, other.Tenant(intruder), opp.ID)
	assert.ErrorIs(t, err, service.ErrOpportunityNotFound)

	_, err = svc.Update(ctx, other.Tenant(intruder), opp.ID, &domain.UpdateOpportunityRequest{Name: strPtr("x")}, false)
	assert.ErrorIs(t, err, service.ErrOpportunityNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, other.Tenant(intruder), opp.ID), service.ErrOpportunityNotFound)

	// the same name is free in another org
	_, err = svc.Create(ctx, other.Tenant(intruder), &domain.CreateOpportunityRequest{Name: "Private deal"})
	assert.NoError(t, err)
}

func TestOpportunityService_AgingAndPipeline(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	c := newClock()
	svc := createOpportunityService(db, c)
	ctx := context.Background()
	admin := f.Admin("admin")

	fresh := f.Opportunity("Fresh", testutil.WithStage(domain.StageProspecting, c.now.AddDate(0, 0, -5)))
	warm := f.Opportunity("Warm", testutil.WithStage(domain.StageProspecting, c.now.AddDate(0, 0, -15)))
	rotten := f.Opportunity("Rotten", testutil.WithStage(domain.StageProspecting, c.now.AddDate(0, 0, -22)))
	f.Opportunity("Old win", testutil.WithStage(domain.StageClosedWon, c.now.AddDate(0, 0, -100)), testutil.ClosedWon("500", c.now))

	t.Run("aging endpoint classifies", func(t *testing.T) {
		cases := map[uuid.UUID]domain.AgingStatus{
			fresh.ID:  domain.AgingGreen,
			warm.ID:   domain.AgingYellow,
			rotten.ID: domain.AgingRed,
		}
		for id, want := range cases {
			aging, err := svc.Aging(ctx, f.Tenant(admin), id)
			require.NoError(t, err)
			assert.Equal(t, want, aging.AgingStatus)
			assert.Equal(t, 14, aging.ExpectedDays)
			assert.InDelta(t, 21.0, aging.RottenDays, 0.001)
		}
	})

	t.Run("list filters by aging status", func(t *testing.T) {
		red := domain.AgingRed
		resp, err := svc.List(ctx, f.Tenant(admin), service.OpportunityListParams{AgingStatus: &red})
		require.NoError(t, err)
		assert.Equal(t, int64(1), resp.Total)
		dtos := resp.Data.([]domain.OpportunityDTO)
		require.Len(t, dtos, 1)
		assert.Equal(t, rotten.ID, dtos[0].ID)
	})

	t.Run("pipeline lists every open stage", func(t *testing.T) {
		require.NoError(t, db.Model(&domain.Opportunity{}).Where("id = ?", warm.ID).
			Update("amount", decimal.NewFromInt(1000)).Error)

		summary, err := svc.Pipeline(ctx, f.Tenant(admin))
		require.NoError(t, err)
		require.Len(t, summary, 4)
		assert.Equal(t, domain.StageProspecting, summary[0].Stage)
		assert.Equal(t, int64(3), summary[0].Count)
		assert.True(t, decimal.NewFromInt(1000).Equal(summary[0].TotalAmount))
		assert.True(t, decimal.NewFromInt(100).Equal(summary[0].WeightedAmount))
		assert.Equal(t, int64(0), summary[3].Count)
	})
}
