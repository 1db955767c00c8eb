package domain_test

import (
	"testing"
	"time"

	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func daysAgo(now time.Time, days int) *time.Time {
	t := now.Add(-time.Duration(days) * 24 * time.Hour)
	return &t
}

func TestClassifyAging_Defaults(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	configs := domain.NewAgingConfigSet(nil)

	tests := []struct {
		name     string
		stage    domain.Stage
		days     int
		expected domain.AgingStatus
	}{
		{"fresh prospecting deal", domain.StageProspecting, 5, domain.AgingGreen},
		{"prospecting past expected days", domain.StageProspecting, 15, domain.AgingYellow},
		{"prospecting past rotten threshold", domain.StageProspecting, 22, domain.AgingRed},
		{"exactly at rotten threshold", domain.StageProspecting, 21, domain.AgingRed},
		{"closed won is always green", domain.StageClosedWon, 100, domain.AgingGreen},
		{"closed lost is always green", domain.StageClosedLost, 400, domain.AgingGreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := &domain.Opportunity{Stage: tt.stage, StageChangedAt: daysAgo(now, tt.days)}
			assert.Equal(t, tt.expected, domain.ClassifyAging(opp, configs, now))
		})
	}
}

func TestClassifyAging_OrgOverride(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	configs := domain.NewAgingConfigSet([]domain.StageAgingConfig{
		{Stage: domain.StageProspecting, ExpectedDays: 5},
	})

	t.Run("six days is yellow", func(t *testing.T) {
		opp := &domain.Opportunity{Stage: domain.StageProspecting, StageChangedAt: daysAgo(now, 6)}
		assert.Equal(t, domain.AgingYellow, domain.ClassifyAging(opp, configs, now))
	})

	t.Run("eight days is red", func(t *testing.T) {
		opp := &domain.Opportunity{Stage: domain.StageProspecting, StageChangedAt: daysAgo(now, 8)}
		assert.Equal(t, domain.AgingRed, domain.ClassifyAging(opp, configs, now))
	})

	t.Run("other stages keep defaults", func(t *testing.T) {
		opp := &domain.Opportunity{Stage: domain.StageProposal, StageChangedAt: daysAgo(now, 8)}
		assert.Equal(t, domain.AgingGreen, domain.ClassifyAging(opp, configs, now))
	})
}

func TestClassifyAging_WarningDays(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	warning := 3
	configs := domain.NewAgingConfigSet([]domain.StageAgingConfig{
		{Stage: domain.StageNegotiation, ExpectedDays: 10, WarningDays: &warning},
	})

	opp := &domain.Opportunity{Stage: domain.StageNegotiation, StageChangedAt: daysAgo(now, 4)}
	assert.Equal(t, domain.AgingYellow, domain.ClassifyAging(opp, configs, now))

	opp.StageChangedAt = daysAgo(now, 2)
	assert.Equal(t, domain.AgingGreen, domain.ClassifyAging(opp, configs, now))
}

func TestClassifyAging_UnknownStageChange(t *testing.T) {
	opp := &domain.Opportunity{Stage: domain.StageProspecting}
	assert.Equal(t, domain.AgingGreen, domain.ClassifyAging(opp, domain.NewAgingConfigSet(nil), time.Now()))
	assert.Equal(t, 0, domain.DaysInStage(nil, time.Now()))
}

func TestDaysInStage_Floors(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	changed := now.Add(-47 * time.Hour)
	assert.Equal(t, 1, domain.DaysInStage(&changed, now))

	future := now.Add(2 * time.Hour)
	assert.Equal(t, 0, domain.DaysInStage(&future, now))
}

func TestResolveThresholds(t *testing.T) {
	t.Run("default uses built-in table", func(t *testing.T) {
		th := domain.ResolveThresholds(domain.StageProposal, nil)
		assert.Equal(t, 21, th.ExpectedDays)
		assert.Equal(t, 21, th.WarningDays)
		assert.True(t, th.IsDefault)
		assert.InDelta(t, 31.5, th.RottenDays(), 0.001)
	})

	t.Run("stage missing from table falls back", func(t *testing.T) {
		th := domain.ResolveThresholds(domain.Stage("DISCOVERY"), nil)
		assert.Equal(t, domain.FallbackExpectedDays, th.ExpectedDays)
	})

	t.Run("override without warning days", func(t *testing.T) {
		th := domain.ResolveThresholds(domain.StageProspecting, &domain.StageAgingConfig{ExpectedDays: 7})
		assert.Equal(t, 7, th.ExpectedDays)
		assert.Equal(t, 7, th.WarningDays)
		assert.False(t, th.IsDefault)
	})
}

func TestCheckStale(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	configs := domain.NewAgingConfigSet(nil)

	t.Run("yellow deal is not stale", func(t *testing.T) {
		opp := &domain.Opportunity{Stage: domain.StageProspecting, StageChangedAt: daysAgo(now, 15)}
		check := domain.CheckStale(opp, configs, now)
		assert.False(t, check.Stale)
		assert.Equal(t, 15, check.DaysInStage)
	})

	t.Run("rotten deal is stale", func(t *testing.T) {
		opp := &domain.Opportunity{Stage: domain.StageProspecting, StageChangedAt: daysAgo(now, 30)}
		check := domain.CheckStale(opp, configs, now)
		assert.True(t, check.Stale)
		assert.Equal(t, 30, check.DaysInStage)
		assert.Equal(t, 14, check.ExpectedDays)
	})

	t.Run("closed deal is never stale", func(t *testing.T) {
		opp := &domain.Opportunity{Stage: domain.StageClosedLost, StageChangedAt: daysAgo(now, 300)}
		assert.False(t, domain.CheckStale(opp, configs, now).Stale)
	})

	t.Run("unknown stage change is never stale", func(t *testing.T) {
		opp := &domain.Opportunity{Stage: domain.StageProspecting}
		assert.False(t, domain.CheckStale(opp, configs, now).Stale)
	})
}

func TestStageTables(t *testing.T) {
	for _, s := range domain.Stages {
		_, ok := domain.StageProbabilities[s]
		assert.True(t, ok, "missing probability for %s", s)
	}
	for s := range domain.DefaultStageExpectedDays {
		assert.False(t, s.IsClosed(), "closed stage %s has expected days", s)
	}
	assert.Equal(t, 50, domain.StageProposal.DefaultProbability())
	assert.Len(t, domain.OpenStages(), 4)
}
