package domain

import "strings"

// Stage is the pipeline phase of an opportunity
type Stage string

const (
	StageProspecting   Stage = "PROSPECTING"
	StageQualification Stage = "QUALIFICATION"
	StageProposal      Stage = "PROPOSAL"
	StageNegotiation   Stage = "NEGOTIATION"
	StageClosedWon     Stage = "CLOSED_WON"
	StageClosedLost    Stage = "CLOSED_LOST"
)

// FallbackExpectedDays applies to any open stage missing from DefaultStageExpectedDays
// and is also the column default of StageAgingConfig.ExpectedDays.
const FallbackExpectedDays = 14

// Stages lists every stage in pipeline order
var Stages = []Stage{
	StageProspecting,
	StageQualification,
	StageProposal,
	StageNegotiation,
	StageClosedWon,
	StageClosedLost,
}

// StageProbabilities is the win probability applied when none was supplied
var StageProbabilities = map[Stage]int{
	StageProspecting:   10,
	StageQualification: 20,
	StageProposal:      50,
	StageNegotiation:   75,
	StageClosedWon:     100,
	StageClosedLost:    0,
}

// DefaultStageExpectedDays is the single source of built-in aging thresholds.
// Closed stages are intentionally absent.
var DefaultStageExpectedDays = map[Stage]int{
	StageProspecting:   14,
	StageQualification: 14,
	StageProposal:      21,
	StageNegotiation:   14,
}

func (s Stage) IsValid() bool {
	for _, st := range Stages {
		if st == s {
			return true
		}
	}
	return false
}

func (s Stage) IsClosed() bool {
	return s == StageClosedWon || s == StageClosedLost
}

// DefaultProbability returns the stage-indexed probability default
func (s Stage) DefaultProbability() int {
	return StageProbabilities[s]
}

// DefaultExpectedDays returns the built-in expected days for an open stage
func (s Stage) DefaultExpectedDays() int {
	if days, ok := DefaultStageExpectedDays[s]; ok {
		return days
	}
	return FallbackExpectedDays
}

// OpenStages returns the non-closed stages in pipeline order
func OpenStages() []Stage {
	open := make([]Stage, 0, len(Stages))
	for _, s := range Stages {
		if !s.IsClosed() {
			open = append(open, s)
		}
	}
	return open
}

// Label is the human-readable stage name used in notifications
func (s Stage) Label() string {
	words := strings.Split(strings.ToLower(string(s)), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
