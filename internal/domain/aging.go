package domain

import (
	"math"
	"time"
)

// RottenMultiplier scales expected days into the threshold past which a deal is rotten
const RottenMultiplier = 1.5

// AgingStatus is the traffic-light classification of time spent in a stage
type AgingStatus string

const (
	AgingGreen  AgingStatus = "green"
	AgingYellow AgingStatus = "yellow"
	AgingRed    AgingStatus = "red"
)

func (a AgingStatus) IsValid() bool {
	return a == AgingGreen || a == AgingYellow || a == AgingRed
}

// AgingThresholds are the effective day limits for one stage in one org
type AgingThresholds struct {
	Stage        Stage
	ExpectedDays int
	WarningDays  int
	IsDefault    bool
}

// RottenDays is ExpectedDays scaled by RottenMultiplier
func (t AgingThresholds) RottenDays() float64 {
	return float64(t.ExpectedDays) * RottenMultiplier
}

// IsRotten reports whether days has reached the rotten threshold
func (t AgingThresholds) IsRotten(days int) bool {
	return float64(days) >= t.RottenDays()
}

// Classify maps a days-in-stage count to a status
func (t AgingThresholds) Classify(days int) AgingStatus {
	switch {
	case t.IsRotten(days):
		return AgingRed
	case days >= t.WarningDays:
		return AgingYellow
	default:
		return AgingGreen
	}
}

// ResolveThresholds picks the org override for stage when cfg is non-nil,
// otherwise the built-in default. Warning days fall back to expected days.
func ResolveThresholds(stage Stage, cfg *StageAgingConfig) AgingThresholds {
	if cfg == nil {
		days := stage.DefaultExpectedDays()
		return AgingThresholds{Stage: stage, ExpectedDays: days, WarningDays: days, IsDefault: true}
	}

	t := AgingThresholds{Stage: stage, ExpectedDays: cfg.ExpectedDays, WarningDays: cfg.ExpectedDays}
	if cfg.WarningDays != nil {
		t.WarningDays = *cfg.WarningDays
	}
	return t
}

// DaysInStage returns whole days elapsed since changedAt, or 0 when unknown
func DaysInStage(changedAt *time.Time, now time.Time) int {
	if changedAt == nil {
		return 0
	}
	days := math.Floor(now.Sub(*changedAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return int(days)
}

// AgingConfigSet indexes an org's overrides by stage
type AgingConfigSet map[Stage]*StageAgingConfig

func NewAgingConfigSet(configs []StageAgingConfig) AgingConfigSet {
	set := make(AgingConfigSet, len(configs))
	for i := range configs {
		set[configs[i].Stage] = &configs[i]
	}
	return set
}

// Thresholds resolves the effective thresholds for stage
func (s AgingConfigSet) Thresholds(stage Stage) AgingThresholds {
	return ResolveThresholds(stage, s[stage])
}

// ClassifyAging classifies an opportunity. Closed stages are always green.
func ClassifyAging(opp *Opportunity, configs AgingConfigSet, now time.Time) AgingStatus {
	if opp.Stage.IsClosed() {
		return AgingGreen
	}
	return configs.Thresholds(opp.Stage).Classify(DaysInStage(opp.StageChangedAt, now))
}

// StaleCheck is the result of testing an open opportunity against its rotten threshold
type StaleCheck struct {
	Stale        bool
	DaysInStage  int
	ExpectedDays int
}

// CheckStale applies the sweep predicate: open stage, known stage_changed_at and
// days in stage at or past the rotten threshold. The warning threshold plays no part.
func CheckStale(opp *Opportunity, configs AgingConfigSet, now time.Time) StaleCheck {
	if opp.Stage.IsClosed() || opp.StageChangedAt == nil {
		return StaleCheck{}
	}
	t := configs.Thresholds(opp.Stage)
	days := DaysInStage(opp.StageChangedAt, now)
	return StaleCheck{Stale: t.IsRotten(days), DaysInStage: days, ExpectedDays: t.ExpectedDays}
}
