package service_test

import (
	"bytes"
	"context"
	"encoding/json"
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
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	marchStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	marchEnd   = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
)

func createGoalService(db *gorm.DB, c *clock) *service.GoalService {
	svc := service.NewGoalService(
		repository.NewGoalRepository(db),
		repository.NewOpportunityRepository(db),
		repository.NewProfileRepository(db),
		zap.NewNop(),
	)
	svc.SetClock(c.Now)
	return svc
}

func march(day int) time.Time {
	return time.Date(2026, 3, day, 12, 0, 0, 0, time.UTC)
}

func TestGoalService_ComputeProgress(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := createGoalService(db, newClock())
	ctx := context.Background()

	rep := f.User("rep")
	peer := f.User("peer")
	outsider := f.User("outsider")
	team := f.Team("North", rep, peer)

	f.Opportunity("Rep win", testutil.AssignedTo(rep), testutil.ClosedWon("750", march(5)))
	f.Opportunity("Rep last day", testutil.AssignedTo(rep), testutil.ClosedWon("100", marchEnd))
	f.Opportunity("Rep february", testutil.AssignedTo(rep), testutil.ClosedWon("5000", time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)))
	f.Opportunity("Peer win", testutil.AssignedTo(peer), testutil.ClosedWon("400", march(2)))
	f.Opportunity("Outsider win", testutil.AssignedTo(outsider), testutil.ClosedWon("300", march(3)))
	f.Opportunity("Rep open", testutil.AssignedTo(rep))

	other := testutil.NewFixtures(t, db)
	other.Opportunity("Foreign win", testutil.ClosedWon("9999", march(4)))

	t.Run("individual revenue", func(t *testing.T) {
		goal := f.Goal("Rep revenue", domain.GoalTypeRevenue, "1000", marchStart, marchEnd, testutil.ForProfile(rep))
		progress, err := svc.Evaluate(ctx, goal)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("850").Equal(progress.Progress), progress.Progress.String())
		assert.Equal(t, 85, progress.Percent)
		assert.Equal(t, domain.GoalStatusOnTrack, progress.Status)
	})

	t.Run("percent is capped", func(t *testing.T) {
		goal := f.Goal("Small target", domain.GoalTypeRevenue, "500", marchStart, marchEnd, testutil.ForProfile(rep))
		progress, err := svc.Evaluate(ctx, goal)
		require.NoError(t, err)
		assert.Equal(t, 100, progress.Percent)
		assert.Equal(t, domain.GoalStatusCompleted, progress.Status)
	})

	t.Run("team", func(t *testing.T) {
		goal := f.Goal("North revenue", domain.GoalTypeRevenue, "2500", marchStart, marchEnd, testutil.ForTeam(team))
		progress, err := svc.Evaluate(ctx, goal)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("1250").Equal(progress.Progress), progress.Progress.String())
		assert.Equal(t, 50, progress.Percent)
	})

	t.Run("empty team counts nothing", func(t *testing.T) {
		empty := f.Team("Empty")
		goal := f.Goal("Empty revenue", domain.GoalTypeRevenue, "100", marchStart, marchEnd, testutil.ForTeam(empty))
		progress, err := svc.Evaluate(ctx, goal)
		require.NoError(t, err)
		assert.True(t, progress.Progress.IsZero())
	})

	t.Run("org wide", func(t *testing.T) {
		goal := f.Goal("Company revenue", domain.GoalTypeRevenue, "10000", marchStart, marchEnd, nil)
		progress, err := svc.Evaluate(ctx, goal)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("1550").Equal(progress.Progress), progress.Progress.String())
		assert.Equal(t, 15, progress.Percent)
	})

	t.Run("deals closed", func(t *testing.T) {
		goal := f.Goal("Rep deals", domain.GoalTypeDealsClosed, "4", marchStart, marchEnd, testutil.ForProfile(rep))
		progress, err := svc.Evaluate(ctx, goal)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(2).Equal(progress.Progress))
		assert.Equal(t, 50, progress.Percent)
	})

	t.Run("zero target", func(t *testing.T) {
		goal := f.Goal("Broken", domain.GoalTypeRevenue, "0", marchStart, marchEnd, testutil.ForProfile(rep))
		progress, err := svc.Evaluate(ctx, goal)
		require.NoError(t, err)
		assert.Equal(t, 0, progress.Percent)
	})
}

func TestGoalService_PaceStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	c := newClock()
	c.now = march(21)
	svc := createGoalService(db, c)
	ctx := context.Background()
	rep := f.User("rep")

	f.Opportunity("Early win", testutil.AssignedTo(rep), testutil.ClosedWon("300", march(2)))

	// two thirds of the month have passed
	behind := f.Goal("Behind", domain.GoalTypeRevenue, "1000", marchStart, marchEnd, testutil.ForProfile(rep))
	progress, err := svc.Evaluate(ctx, behind)
	require.NoError(t, err)
	assert.Equal(t, domain.GoalStatusBehind, progress.Status)

	atRisk := f.Goal("At risk", domain.GoalTypeRevenue, "600", marchStart, marchEnd, testutil.ForProfile(rep))
	progress, err = svc.Evaluate(ctx, atRisk)
	require.NoError(t, err)
	assert.Equal(t, domain.GoalStatusAtRisk, progress.Status)
}

func TestGoalService_CRUD(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := createGoalService(db, newClock())
	ctx := context.Background()
	admin := f.Admin("admin")
	rep := f.User("rep")
	team := f.Team("North", rep)

	req := &domain.CreateGoalRequest{
		Name:        "March revenue",
		GoalType:    domain.GoalTypeRevenue,
		TargetValue: decimal.RequireFromString("1000"),
		PeriodType:  domain.PeriodTypeMonthly,
		PeriodStart: domain.Date{Time: marchStart},
		PeriodEnd:   domain.Date{Time: marchEnd},
		AssignedTo:  &domain.Ref{ID: rep.ID},
	}

	t.Run("non admin", func(t *testing.T) {
		_, err := svc.Create(ctx, f.Tenant(rep), req)
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	var goalID uuid.UUID
	t.Run("create", func(t *testing.T) {
		dto, err := svc.Create(ctx, f.Tenant(admin), req)
		require.NoError(t, err)
		goalID = dto.ID
		assert.Equal(t, &rep.ID, dto.AssignedTo)
		require.NotNil(t, dto.ProgressPercent)
		assert.Equal(t, 0, *dto.ProgressPercent)
		assert.Equal(t, "2026-03-01", dto.PeriodStart.Format("2006-01-02"))
	})

	t.Run("both scopes", func(t *testing.T) {
		bad := *req
		bad.Team = &domain.Ref{ID: team.ID}
		_, err := svc.Create(ctx, f.Tenant(admin), &bad)
		var verrs domain.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "team")
	})

	t.Run("profile of another org", func(t *testing.T) {
		other := testutil.NewFixtures(t, db)
		bad := *req
		bad.AssignedTo = &domain.Ref{ID: other.User("stranger").ID}
		_, err := svc.Create(ctx, f.Tenant(admin), &bad)
		assert.ErrorIs(t, err, service.ErrCrossTenant)
	})

	t.Run("switching to a team clears the profile", func(t *testing.T) {
		dto, err := svc.Update(ctx, f.Tenant(admin), goalID, &domain.UpdateGoalRequest{Team: domain.OptionalRef{Set: true, Ref: domain.Ref{ID: team.ID}}})
		require.NoError(t, err)
		assert.Nil(t, dto.AssignedTo)
		assert.Equal(t, &team.ID, dto.Team)
	})

	t.Run("null team makes the goal org wide", func(t *testing.T) {
		var upd domain.UpdateGoalRequest
		require.NoError(t, json.Unmarshal([]byte(`{"team": null}`), &upd))
		require.True(t, upd.Team.Set)
		assert.False(t, upd.AssignedTo.Set)

		dto, err := svc.Update(ctx, f.Tenant(admin), goalID, &upd)
		require.NoError(t, err)
		assert.Nil(t, dto.AssignedTo)
		assert.Nil(t, dto.Team)
	})

	t.Run("omitted scope is left alone", func(t *testing.T) {
		name := "March revenue"
		dto, err := svc.Update(ctx, f.Tenant(admin), goalID, &domain.UpdateGoalRequest{Name: &name})
		require.NoError(t, err)
		assert.Nil(t, dto.Team)
	})

	t.Run("list", func(t *testing.T) {
		goals, err := svc.List(ctx, f.Tenant(rep), nil)
		require.NoError(t, err)
		require.Len(t, goals, 1)
		assert.Equal(t, "March revenue", goals[0].Name)
	})

	t.Run("delete", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(ctx, f.Tenant(rep), goalID), service.ErrPermissionDenied)
		require.NoError(t, svc.Delete(ctx, f.Tenant(admin), goalID))
		_, err := svc.GetByID(ctx, f.Tenant(admin), goalID)
		assert.ErrorIs(t, err, service.ErrGoalNotFound)
	})
}

func TestGoalService_Leaderboard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	svc := createGoalService(db, newClock())
	ctx := context.Background()

	ann := f.User("ann")
	bob := f.User("bob")
	team := f.Team("North", ann, bob)

	f.Opportunity("Ann win", testutil.AssignedTo(ann), testutil.ClosedWon("500", march(3)))
	f.Opportunity("Bob win", testutil.AssignedTo(bob), testutil.ClosedWon("800", march(4)))

	f.Goal("Ann March", domain.GoalTypeRevenue, "1000", marchStart, marchEnd, testutil.ForProfile(ann))
	f.Goal("Bob March", domain.GoalTypeRevenue, "1000", marchStart, marchEnd, testutil.ForProfile(bob))
	f.Goal("North March", domain.GoalTypeRevenue, "1000", marchStart, marchEnd, testutil.ForTeam(team))
	f.Goal("Ann Q1", domain.GoalTypeRevenue, "100", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), marchEnd, func(g *domain.SalesGoal) {
		g.AssignedToID = &ann.ID
		g.PeriodType = domain.PeriodTypeQuarterly
	})
	f.Goal("Bob February", domain.GoalTypeRevenue, "10", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), testutil.ForProfile(bob))

	t.Run("ranks individual goals of the current period", func(t *testing.T) {
		entries, err := svc.Leaderboard(ctx, f.Tenant(ann), domain.PeriodTypeMonthly)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		assert.Equal(t, 1, entries[0].Rank)
		assert.Equal(t, "bob", entries[0].ProfileName)
		assert.Equal(t, 80, entries[0].ProgressPercent)
		assert.Equal(t, 2, entries[1].Rank)
		assert.Equal(t, ann.ID, entries[1].ProfileID)
		assert.Equal(t, 50, entries[1].ProgressPercent)
	})

	t.Run("quarterly", func(t *testing.T) {
		entries, err := svc.Leaderboard(ctx, f.Tenant(ann), domain.PeriodTypeQuarterly)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Ann Q1", entries[0].GoalName)
		assert.Equal(t, 100, entries[0].ProgressPercent)
	})

	t.Run("spreadsheet export", func(t *testing.T) {
		data, err := svc.LeaderboardXLSX(ctx, f.Tenant(ann), domain.PeriodTypeMonthly)
		require.NoError(t, err)

		book, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer book.Close()

		rows, err := book.GetRows("Leaderboard")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "Rank", rows[0][0])
		assert.Equal(t, "Sales rep", rows[0][1])
		assert.Equal(t, "bob", rows[1][1])
		assert.Equal(t, "Ann March", rows[2][2])
	})
}

func TestRankGoals_TiesKeepInputOrder(t *testing.T) {
	ranked := []service.RankedGoal{
		{Goal: domain.SalesGoal{Name: "a"}, Progress: domain.GoalProgress{Percent: 40}},
		{Goal: domain.SalesGoal{Name: "b"}, Progress: domain.GoalProgress{Percent: 90}},
		{Goal: domain.SalesGoal{Name: "c"}, Progress: domain.GoalProgress{Percent: 40}},
	}
	service.RankGoals(ranked)

	names := []string{ranked[0].Goal.Name, ranked[1].Goal.Name, ranked[2].Goal.Name}
	assert.Equal(t, []string{"b", "a", "c"}, names)
	assert.Equal(t, []int{1, 2, 3}, []int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank})
}
