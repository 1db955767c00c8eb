package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GoalStatus describes how a goal's progress compares to the elapsed share of its period
type GoalStatus string

const (
	GoalStatusCompleted GoalStatus = "completed"
	GoalStatusOnTrack   GoalStatus = "on_track"
	GoalStatusAtRisk    GoalStatus = "at_risk"
	GoalStatusBehind    GoalStatus = "behind"
)

// Pace tolerances, expressed as how far progress may trail the elapsed fraction
const (
	OnTrackTolerance = 0.10
	AtRiskTolerance  = 0.25
)

// Milestone is a progress percentage that triggers a one-off notification
type Milestone int

const (
	Milestone50  Milestone = 50
	Milestone90  Milestone = 90
	Milestone100 Milestone = 100
)

// Milestones in the order they are evaluated, highest first
var Milestones = []Milestone{Milestone100, Milestone90, Milestone50}

// ProgressPercent is floor(progress / target * 100) capped at 100. A zero or
// negative target yields 0.
func ProgressPercent(progress, target decimal.Decimal) int {
	if !target.IsPositive() {
		return 0
	}
	pct := progress.Mul(hundred).Div(target).Floor()
	if pct.GreaterThan(hundred) {
		return 100
	}
	if pct.IsNegative() {
		return 0
	}
	return int(pct.IntPart())
}

// ElapsedFraction is the share of [start, end] that has passed at now, clamped to [0, 1]
func ElapsedFraction(start, end, now time.Time) float64 {
	start, end, now = DateOnly(start), DateOnly(end), DateOnly(now)
	total := end.Sub(start).Hours()
	if total <= 0 {
		return 1
	}
	f := now.Sub(start).Hours() / total
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// PaceStatus derives a goal's status from its percent and period position
func PaceStatus(percent int, progress, target decimal.Decimal, start, end, now time.Time) GoalStatus {
	if percent >= 100 {
		return GoalStatusCompleted
	}

	var progressFraction float64
	if target.IsPositive() {
		progressFraction, _ = progress.Div(target).Float64()
	}
	elapsed := ElapsedFraction(start, end, now)

	switch {
	case progressFraction >= elapsed-OnTrackTolerance:
		return GoalStatusOnTrack
	case progressFraction >= elapsed-AtRiskTolerance:
		return GoalStatusAtRisk
	default:
		return GoalStatusBehind
	}
}

// GoalProgress is a computed snapshot of one goal
type GoalProgress struct {
	Progress decimal.Decimal
	Percent  int
	Status   GoalStatus
}

// EvaluateProgress turns a raw progress value into percent and status at now
func (g *SalesGoal) EvaluateProgress(progress decimal.Decimal, now time.Time) GoalProgress {
	pct := ProgressPercent(progress, g.TargetValue)
	return GoalProgress{
		Progress: progress,
		Percent:  pct,
		Status:   PaceStatus(pct, progress, g.TargetValue, g.PeriodStart, g.PeriodEnd, now),
	}
}

// IsTeamGoal reports whether the goal is scoped to a team
func (g *SalesGoal) IsTeamGoal() bool {
	return g.TeamID != nil
}

// IsNotified reports whether milestone m has already fired
func (g *SalesGoal) IsNotified(m Milestone) bool {
	switch m {
	case Milestone50:
		return g.Milestone50Notified
	case Milestone90:
		return g.Milestone90Notified
	case Milestone100:
		return g.Milestone100Notified
	}
	return false
}

// NextMilestone returns the highest threshold reached by percent, provided it has
// not fired yet. Lower thresholds never fire once a higher one is reached in the same run.
func (g *SalesGoal) NextMilestone(percent int) (Milestone, bool) {
	for _, m := range Milestones {
		if percent < int(m) {
			continue
		}
		if g.IsNotified(m) {
			return 0, false
		}
		return m, true
	}
	return 0, false
}

// MilestoneColumn is the persisted flag column of m
func MilestoneColumn(m Milestone) string {
	switch m {
	case Milestone50:
		return "milestone_50_notified"
	case Milestone90:
		return "milestone_90_notified"
	case Milestone100:
		return "milestone_100_notified"
	}
	return ""
}

// MilestoneColumns lists the flag columns set when m fires: m itself and every
// lower milestone, which is implied by reaching m.
func MilestoneColumns(m Milestone) []string {
	var cols []string
	for _, other := range Milestones {
		if other <= m {
			cols = append(cols, MilestoneColumn(other))
		}
	}
	return cols
}

// MarkNotified sets the flags of m and every lower milestone. Flags are never cleared.
func (g *SalesGoal) MarkNotified(m Milestone) {
	if m >= Milestone50 {
		g.Milestone50Notified = true
	}
	if m >= Milestone90 {
		g.Milestone90Notified = true
	}
	if m >= Milestone100 {
		g.Milestone100Notified = true
	}
}
