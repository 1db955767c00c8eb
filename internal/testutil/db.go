package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/database"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB opens a private in-memory SQLite store with the full schema migrated.
// A single connection keeps every query on the same in-memory database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.Options())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Fixtures creates tenant data in one org
type Fixtures struct {
	t   *testing.T
	DB  *gorm.DB
	Org *domain.Organization
}

// NewFixtures creates an active organization and returns a fixture builder for it
func NewFixtures(t *testing.T, db *gorm.DB) *Fixtures {
	t.Helper()
	return &Fixtures{t: t, DB: db, Org: CreateOrg(t, db, "Acme")}
}

// CreateOrg creates an active organization
func CreateOrg(t *testing.T, db *gorm.DB, name string) *domain.Organization {
	t.Helper()
	org := &domain.Organization{Name: name, IsActive: true}
	require.NoError(t, db.Create(org).Error)
	return org
}

// Tenant returns a TenantContext for profile in the fixture org
func (f *Fixtures) Tenant(p *domain.Profile) domain.TenantContext {
	return domain.TenantContext{OrgID: f.Org.ID, ProfileID: p.ID, Email: p.Email, Role: p.Role}
}

// Profile creates an active profile with the given role
func (f *Fixtures) Profile(name string, role domain.ProfileRole) *domain.Profile {
	f.t.Helper()
	p := &domain.Profile{
		OrgID:    f.Org.ID,
		Name:     name,
		Email:    fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Role:     role,
		IsActive: true,
	}
	require.NoError(f.t, f.DB.Create(p).Error)
	return p
}

// Admin creates an active admin profile
func (f *Fixtures) Admin(name string) *domain.Profile {
	return f.Profile(name, domain.ProfileRoleAdmin)
}

// User creates an active non-admin profile
func (f *Fixtures) User(name string) *domain.Profile {
	return f.Profile(name, domain.ProfileRoleUser)
}

// Team creates a team with the given members
func (f *Fixtures) Team(name string, members ...*domain.Profile) *domain.Team {
	f.t.Helper()
	team := &domain.Team{OrgID: f.Org.ID, Name: name}
	for _, m := range members {
		team.Members = append(team.Members, *m)
	}
	require.NoError(f.t, f.DB.Omit("Members.*").Create(team).Error)
	return team
}

// OpportunityOption customizes a fixture opportunity before it is stored
type OpportunityOption func(*domain.Opportunity)

// WithStage sets the stage and stamps StageChangedAt
func WithStage(stage domain.Stage, changedAt time.Time) OpportunityOption {
	return func(o *domain.Opportunity) {
		o.Stage = stage
		o.StageChangedAt = &changedAt
	}
}

// ClosedWon marks the opportunity won on day with amount
func ClosedWon(amount string, day time.Time) OpportunityOption {
	return func(o *domain.Opportunity) {
		closedOn := domain.DateOnly(day)
		o.Stage = domain.StageClosedWon
		o.Amount = decimal.NewNullDecimal(decimal.RequireFromString(amount))
		o.ClosedOn = &closedOn
		o.Probability = 100
	}
}

// AssignedTo assigns the opportunity to profiles
func AssignedTo(profiles ...*domain.Profile) OpportunityOption {
	return func(o *domain.Opportunity) {
		for _, p := range profiles {
			o.AssignedTo = append(o.AssignedTo, *p)
		}
	}
}

// Opportunity stores an active PROSPECTING opportunity with a unique name
func (f *Fixtures) Opportunity(name string, opts ...OpportunityOption) *domain.Opportunity {
	f.t.Helper()
	now := time.Now().UTC()
	opp := &domain.Opportunity{
		OrgID:          f.Org.ID,
		Name:           name,
		NameKey:        domain.NormalizeName(name),
		Stage:          domain.StageProspecting,
		AmountSource:   domain.AmountSourceManual,
		Probability:    domain.StageProspecting.DefaultProbability(),
		StageChangedAt: &now,
		IsActive:       true,
		Version:        1,
	}
	for _, opt := range opts {
		opt(opp)
	}
	require.NoError(f.t, f.DB.Omit("AssignedTo.*").Create(opp).Error)
	return opp
}

// Goal stores an active goal in the fixture org
func (f *Fixtures) Goal(name string, goalType domain.GoalType, target string, start, end time.Time, scope func(*domain.SalesGoal)) *domain.SalesGoal {
	f.t.Helper()
	goal := &domain.SalesGoal{
		OrgID:       f.Org.ID,
		Name:        name,
		GoalType:    goalType,
		TargetValue: decimal.RequireFromString(target),
		PeriodType:  domain.PeriodTypeMonthly,
		PeriodStart: domain.DateOnly(start),
		PeriodEnd:   domain.DateOnly(end),
		IsActive:    true,
	}
	if scope != nil {
		scope(goal)
	}
	require.NoError(f.t, f.DB.Create(goal).Error)
	return goal
}

// ForProfile scopes a fixture goal to one profile
func ForProfile(p *domain.Profile) func(*domain.SalesGoal) {
	return func(g *domain.SalesGoal) { g.AssignedToID = &p.ID }
}

// ForTeam scopes a fixture goal to a team
func ForTeam(team *domain.Team) func(*domain.SalesGoal) {
	return func(g *domain.SalesGoal) { g.TeamID = &team.ID }
}
