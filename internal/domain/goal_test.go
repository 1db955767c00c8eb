package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name     string
		progress string
		target   string
		expected int
	}{
		{"three quarters", "75000", "100000", 75},
		{"capped at one hundred", "150000", "100000", 100},
		{"floors fractions", "2", "3", 66},
		{"zero target", "500", "0", 0},
		{"no progress", "0", "10", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, domain.ProgressPercent(dec(tt.progress), dec(tt.target)))
		})
	}
}

func TestPaceStatus(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	target := dec("1000")

	t.Run("completed regardless of period position", func(t *testing.T) {
		assert.Equal(t, domain.GoalStatusCompleted, domain.PaceStatus(100, dec("1000"), target, start, end, start))
		assert.Equal(t, domain.GoalStatusCompleted, domain.PaceStatus(100, dec("2500"), target, start, end, end))
	})

	t.Run("zero progress near period end is behind", func(t *testing.T) {
		now := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, domain.GoalStatusBehind, domain.PaceStatus(0, decimal.Zero, target, start, end, now))
	})

	t.Run("zero progress on day one is on track", func(t *testing.T) {
		assert.Equal(t, domain.GoalStatusOnTrack, domain.PaceStatus(0, decimal.Zero, target, start, end, start))
	})

	t.Run("slightly behind pace is at risk", func(t *testing.T) {
		mid := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, domain.GoalStatusAtRisk, domain.PaceStatus(30, dec("300"), target, start, end, mid))
	})

	t.Run("ahead of pace is on track", func(t *testing.T) {
		mid := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, domain.GoalStatusOnTrack, domain.PaceStatus(60, dec("600"), target, start, end, mid))
	})
}

func TestSalesGoal_Contains(t *testing.T) {
	goal := &domain.SalesGoal{
		PeriodStart: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, goal.Contains(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)))
	assert.True(t, goal.Contains(time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC)))
	assert.False(t, goal.Contains(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, goal.Contains(time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)))
}

func TestSalesGoal_NextMilestone(t *testing.T) {
	t.Run("fires the highest threshold reached", func(t *testing.T) {
		goal := &domain.SalesGoal{}
		m, ok := goal.NextMilestone(95)
		assert.True(t, ok)
		assert.Equal(t, domain.Milestone90, m)
	})

	t.Run("nothing below fifty", func(t *testing.T) {
		goal := &domain.SalesGoal{}
		_, ok := goal.NextMilestone(49)
		assert.False(t, ok)
	})

	t.Run("already notified does not refire", func(t *testing.T) {
		goal := &domain.SalesGoal{Milestone50Notified: true}
		_, ok := goal.NextMilestone(60)
		assert.False(t, ok)
	})

	t.Run("crossing the next threshold fires it", func(t *testing.T) {
		goal := &domain.SalesGoal{Milestone50Notified: true}
		m, ok := goal.NextMilestone(100)
		assert.True(t, ok)
		assert.Equal(t, domain.Milestone100, m)
	})

	t.Run("marking implies lower milestones", func(t *testing.T) {
		goal := &domain.SalesGoal{}
		goal.MarkNotified(domain.Milestone90)
		assert.True(t, goal.Milestone50Notified)
		assert.True(t, goal.Milestone90Notified)
		assert.False(t, goal.Milestone100Notified)
		assert.ElementsMatch(t,
			[]string{"milestone_90_notified", "milestone_50_notified"},
			domain.MilestoneColumns(domain.Milestone90))
	})
}

func TestSalesGoal_EvaluateProgress(t *testing.T) {
	goal := &domain.SalesGoal{
		TargetValue: dec("100000"),
		PeriodStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}

	p := goal.EvaluateProgress(dec("75000"), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 75, p.Percent)
	assert.Equal(t, domain.GoalStatusOnTrack, p.Status)
}
