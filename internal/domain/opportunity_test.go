package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestOpportunity_PrepareSave(t *testing.T) {
	created := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	later := created.Add(72 * time.Hour)

	t.Run("new record stamps stage time and default probability", func(t *testing.T) {
		opp := &domain.Opportunity{Name: " Big Deal ", Stage: domain.StageProposal}
		assert.True(t, opp.PrepareSave(nil, created))
		assert.Equal(t, created, *opp.StageChangedAt)
		assert.Equal(t, 50, opp.Probability)
		assert.Equal(t, "big deal", opp.NameKey)
	})

	t.Run("other field edits leave stage time alone", func(t *testing.T) {
		opp := &domain.Opportunity{Name: "Deal", Stage: domain.StageProposal, Probability: 50, StageChangedAt: &created}
		persisted := domain.StageProposal
		opp.Description = "edited"
		assert.False(t, opp.PrepareSave(&persisted, later))
		assert.Equal(t, created, *opp.StageChangedAt)
	})

	t.Run("stage change resets stage time", func(t *testing.T) {
		opp := &domain.Opportunity{Name: "Deal", Stage: domain.StageNegotiation, Probability: 50, StageChangedAt: &created}
		persisted := domain.StageProposal
		assert.True(t, opp.PrepareSave(&persisted, later))
		assert.Equal(t, later, *opp.StageChangedAt)
		assert.Equal(t, 50, opp.Probability, "an explicit probability survives a stage change")
	})

	t.Run("zero probability counts as unset", func(t *testing.T) {
		opp := &domain.Opportunity{Name: "Deal", Stage: domain.StageNegotiation}
		persisted := domain.StageNegotiation
		opp.PrepareSave(&persisted, later)
		assert.Equal(t, 75, opp.Probability)
	})
}

func TestOpportunity_EntersClosedStage(t *testing.T) {
	proposal, won := domain.StageProposal, domain.StageClosedWon

	assert.True(t, (&domain.Opportunity{Stage: domain.StageClosedWon}).EntersClosedStage(&proposal))
	assert.True(t, (&domain.Opportunity{Stage: domain.StageClosedLost}).EntersClosedStage(nil))
	assert.False(t, (&domain.Opportunity{Stage: domain.StageClosedWon}).EntersClosedStage(&won))
	assert.False(t, (&domain.Opportunity{Stage: domain.StageNegotiation}).EntersClosedStage(&proposal))
}

func TestOpportunity_IsAssignedTo(t *testing.T) {
	p := domain.Profile{BaseModel: domain.BaseModel{ID: uuid.New()}}
	opp := &domain.Opportunity{AssignedTo: []domain.Profile{p}}
	assert.True(t, opp.IsAssignedTo(p.ID))
	assert.False(t, opp.IsAssignedTo(uuid.New()))
}
