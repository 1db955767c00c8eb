package domain

import (
	"time"

	"github.com/google/uuid"
)

// PrepareSave applies the save-time rules. persisted is the stored stage, nil for a new record.
// StageChangedAt is stamped exactly when the stage differs from what is stored, and a zero
// probability takes the stage default. It reports whether the stage changed.
func (o *Opportunity) PrepareSave(persisted *Stage, now time.Time) bool {
	changed := persisted == nil || *persisted != o.Stage
	if changed {
		ts := now.UTC()
		o.StageChangedAt = &ts
	}
	if o.Probability == 0 {
		o.Probability = o.Stage.DefaultProbability()
	}
	o.NameKey = NormalizeName(o.Name)
	return changed
}

// EntersClosedStage reports whether moving from persisted to the current stage closes the deal
func (o *Opportunity) EntersClosedStage(persisted *Stage) bool {
	if !o.Stage.IsClosed() {
		return false
	}
	return persisted == nil || *persisted != o.Stage
}

// IsAssignedTo reports whether profileID is among the assignees
func (o *Opportunity) IsAssignedTo(profileID uuid.UUID) bool {
	for _, p := range o.AssignedTo {
		if p.ID == profileID {
			return true
		}
	}
	return false
}
