package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns a fresh UUID when the caller has not set one.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Organization is a tenant. Every other entity is scoped by OrgID.
type Organization struct {
	BaseModel
	Name     string `gorm:"type:varchar(200);not null"`
	IsActive bool   `gorm:"not null"`
}

// ProfileRole is the role a profile holds inside its organization
type ProfileRole string

const (
	ProfileRoleAdmin ProfileRole = "ADMIN"
	ProfileRoleUser  ProfileRole = "USER"
)

func (r ProfileRole) IsValid() bool {
	return r == ProfileRoleAdmin || r == ProfileRoleUser
}

// Profile is a user's membership in one organization
type Profile struct {
	BaseModel
	OrgID    uuid.UUID   `gorm:"type:uuid;not null;index"`
	Name     string      `gorm:"type:varchar(200);not null"`
	Email    string      `gorm:"type:varchar(255);not null"`
	Role     ProfileRole `gorm:"type:varchar(20);not null;default:'USER'"`
	IsActive bool        `gorm:"not null"`
	Teams    []Team      `gorm:"many2many:team_members;"`
}

func (p *Profile) IsAdmin() bool {
	return p.Role == ProfileRoleAdmin
}

// Team groups profiles for team goals and opportunity assignment
type Team struct {
	BaseModel
	OrgID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Name        string    `gorm:"type:varchar(200);not null"`
	Description string    `gorm:"type:text"`
	Members     []Profile `gorm:"many2many:team_members;"`
}

type Account struct {
	BaseModel
	OrgID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"type:varchar(255);not null"`
	Industry string    `gorm:"type:varchar(100)"`
	IsActive bool      `gorm:"not null;default:true"`
}

type Contact struct {
	BaseModel
	OrgID     uuid.UUID `gorm:"type:uuid;not null;index"`
	FirstName string    `gorm:"type:varchar(100);not null"`
	LastName  string    `gorm:"type:varchar(100)"`
	Email     string    `gorm:"type:varchar(255)"`
}

type Tag struct {
	BaseModel
	OrgID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name  string    `gorm:"type:varchar(50);not null"`
}

// AmountSource records whether Opportunity.Amount was typed in or derived from line items
type AmountSource string

const (
	AmountSourceManual     AmountSource = "MANUAL"
	AmountSourceCalculated AmountSource = "CALCULATED"
)

// Opportunity is a sales deal
type Opportunity struct {
	BaseModel
	OrgID          uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_opportunities_org_name_key,priority:1;index"`
	Name           string              `gorm:"type:varchar(255);not null"`
	NameKey        string              `gorm:"type:varchar(255);not null;uniqueIndex:idx_opportunities_org_name_key,priority:2"`
	AccountID      *uuid.UUID          `gorm:"type:uuid;index"`
	Account        *Account            `gorm:"foreignKey:AccountID;constraint:OnDelete:SET NULL"`
	Stage          Stage               `gorm:"type:varchar(30);not null;default:'PROSPECTING';index"`
	Amount         decimal.NullDecimal `gorm:"type:decimal(14,2)"`
	AmountSource   AmountSource        `gorm:"type:varchar(20);not null;default:'MANUAL'"`
	Probability    int                 `gorm:"not null;default:0"`
	Currency       string              `gorm:"type:varchar(3)"`
	LeadSource     string              `gorm:"type:varchar(100)"`
	Description    string              `gorm:"type:text"`
	ClosedOn       *time.Time          `gorm:"type:date"`
	ClosedByID     *uuid.UUID          `gorm:"type:uuid"`
	ClosedBy       *Profile            `gorm:"foreignKey:ClosedByID;constraint:OnDelete:SET NULL"`
	StageChangedAt *time.Time          `gorm:"index"`
	CreatedByID    *uuid.UUID          `gorm:"type:uuid"`
	CreatedBy      *Profile            `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL"`
	IsActive       bool                `gorm:"not null"`
	Version        int                 `gorm:"not null;default:1"`

	Contacts   []Contact             `gorm:"many2many:opportunity_contacts;"`
	AssignedTo []Profile             `gorm:"many2many:opportunity_assignees;"`
	Teams      []Team                `gorm:"many2many:opportunity_teams;"`
	Tags       []Tag                 `gorm:"many2many:opportunity_tags;"`
	LineItems  []OpportunityLineItem `gorm:"foreignKey:OpportunityID;constraint:OnDelete:CASCADE"`
}

// AssigneeIDs returns the IDs of the assigned profiles in load order
func (o *Opportunity) AssigneeIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.AssignedTo))
	for _, p := range o.AssignedTo {
		ids = append(ids, p.ID)
	}
	return ids
}

// WeightedAmount is amount scaled by the win probability
func (o *Opportunity) WeightedAmount() decimal.Decimal {
	if !o.Amount.Valid {
		return decimal.Zero
	}
	return o.Amount.Decimal.Mul(decimal.NewFromInt(int64(o.Probability))).Div(decimal.NewFromInt(100)).Round(2)
}

// OpportunityStageHistory is an append-only log of stage transitions
type OpportunityStageHistory struct {
	BaseModel
	OrgID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	OpportunityID uuid.UUID  `gorm:"type:uuid;not null;index"`
	FromStage     *Stage     `gorm:"type:varchar(30)"`
	ToStage       Stage      `gorm:"type:varchar(30);not null"`
	ChangedByID   *uuid.UUID `gorm:"type:uuid"`
	ChangedAt     time.Time  `gorm:"not null"`
}

func (OpportunityStageHistory) TableName() string {
	return "opportunity_stage_history"
}

// DiscountType selects how OpportunityLineItem.DiscountValue is applied
type DiscountType string

const (
	DiscountTypeNone       DiscountType = "NONE"
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

func (d DiscountType) IsValid() bool {
	switch d {
	case DiscountTypeNone, DiscountTypePercentage, DiscountTypeFixed:
		return true
	}
	return false
}

// OpportunityLineItem is one priced component of an opportunity.
// Subtotal, DiscountAmount and Total are persisted for display only and
// always recomputed from the inputs before save.
type OpportunityLineItem struct {
	BaseModel
	OrgID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	OpportunityID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID      *uuid.UUID      `gorm:"type:uuid;index"`
	Product        *Product        `gorm:"foreignKey:ProductID;constraint:OnDelete:SET NULL"`
	Name           string          `gorm:"type:varchar(255);not null"`
	Description    string          `gorm:"type:text"`
	Quantity       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:1"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	DiscountType   DiscountType    `gorm:"type:varchar(20);not null;default:'NONE'"`
	DiscountValue  decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	Total          decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	SortOrder      int             `gorm:"not null;default:0"`
}

// BeforeSave rejects a line item whose org differs from its opportunity's
// or its product's, whichever path wrote it.
func (li *OpportunityLineItem) BeforeSave(tx *gorm.DB) error {
	db := tx.Session(&gorm.Session{NewDB: true})

	var oppOrgs []uuid.UUID
	if err := db.Model(&Opportunity{}).Where("id = ?", li.OpportunityID).Pluck("org_id", &oppOrgs).Error; err != nil {
		return err
	}
	if len(oppOrgs) == 0 || oppOrgs[0] != li.OrgID {
		return ValidationErrors{"opportunity": "Opportunity belongs to another organization"}
	}

	if li.ProductID == nil {
		return nil
	}
	var productOrgs []uuid.UUID
	if err := db.Model(&Product{}).Where("id = ?", *li.ProductID).Pluck("org_id", &productOrgs).Error; err != nil {
		return err
	}
	if len(productOrgs) == 0 || productOrgs[0] != li.OrgID {
		return ValidationErrors{"product": "Product belongs to another organization"}
	}
	return nil
}

// Product is a catalogue entry line items can be priced from
type Product struct {
	BaseModel
	OrgID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name        string          `gorm:"type:varchar(255);not null"`
	SKU         string          `gorm:"type:varchar(100)"`
	Description string          `gorm:"type:text"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	Currency    string          `gorm:"type:varchar(3)"`
	IsActive    bool            `gorm:"not null;default:true"`
}

// StageAgingConfig overrides the default aging thresholds of one stage for one org
type StageAgingConfig struct {
	BaseModel
	OrgID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stage_aging_org_stage,priority:1"`
	Stage        Stage     `gorm:"type:varchar(30);not null;uniqueIndex:idx_stage_aging_org_stage,priority:2"`
	ExpectedDays int       `gorm:"not null;default:14"`
	WarningDays  *int
}

func (StageAgingConfig) TableName() string {
	return "stage_aging_configs"
}

// GoalType selects what a sales goal measures
type GoalType string

const (
	GoalTypeRevenue     GoalType = "REVENUE"
	GoalTypeDealsClosed GoalType = "DEALS_CLOSED"
)

func (g GoalType) IsValid() bool {
	return g == GoalTypeRevenue || g == GoalTypeDealsClosed
}

// PeriodType is the cadence of a sales goal
type PeriodType string

const (
	PeriodTypeMonthly   PeriodType = "MONTHLY"
	PeriodTypeQuarterly PeriodType = "QUARTERLY"
	PeriodTypeCustom    PeriodType = "CUSTOM"
)

func (p PeriodType) IsValid() bool {
	switch p {
	case PeriodTypeMonthly, PeriodTypeQuarterly, PeriodTypeCustom:
		return true
	}
	return false
}

// SalesGoal is a quota for a profile, a team or (with neither set) the whole org.
// The milestone flags only ever go from false to true.
type SalesGoal struct {
	BaseModel
	OrgID                uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name                 string          `gorm:"type:varchar(255);not null"`
	GoalType             GoalType        `gorm:"type:varchar(20);not null;default:'REVENUE'"`
	TargetValue          decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	PeriodType           PeriodType      `gorm:"type:varchar(20);not null;default:'MONTHLY';index"`
	PeriodStart          time.Time       `gorm:"type:date;not null"`
	PeriodEnd            time.Time       `gorm:"type:date;not null"`
	AssignedToID         *uuid.UUID      `gorm:"type:uuid;index"`
	AssignedTo           *Profile        `gorm:"foreignKey:AssignedToID;constraint:OnDelete:CASCADE"`
	TeamID               *uuid.UUID      `gorm:"type:uuid;index"`
	Team                 *Team           `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
	IsActive             bool            `gorm:"not null"`
	Milestone50Notified  bool            `gorm:"column:milestone_50_notified;not null;default:false"`
	Milestone90Notified  bool            `gorm:"column:milestone_90_notified;not null;default:false"`
	Milestone100Notified bool            `gorm:"column:milestone_100_notified;not null;default:false"`
	CreatedByID          *uuid.UUID      `gorm:"type:uuid"`
}

// Contains reports whether day falls inside the goal period, both ends inclusive
func (g *SalesGoal) Contains(day time.Time) bool {
	d := DateOnly(day)
	return !d.Before(DateOnly(g.PeriodStart)) && !d.After(DateOnly(g.PeriodEnd))
}

// Comment is a note attached to any EntityRef
type Comment struct {
	BaseModel
	OrgID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	Entity   EntityRef  `gorm:"embedded;embeddedPrefix:entity_"`
	Body     string     `gorm:"type:text;not null"`
	AuthorID *uuid.UUID `gorm:"type:uuid"`
}

// Attachment holds file metadata for any EntityRef. File bytes live elsewhere, only the URL is kept.
type Attachment struct {
	BaseModel
	OrgID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	Entity       EntityRef  `gorm:"embedded;embeddedPrefix:entity_"`
	FileName     string     `gorm:"type:varchar(255);not null"`
	ContentType  string     `gorm:"type:varchar(100)"`
	Size         int64      `gorm:"not null;default:0"`
	URL          string     `gorm:"type:varchar(1000);not null"`
	UploadedByID *uuid.UUID `gorm:"type:uuid"`
}

// DateOnly truncates t to midnight UTC of its calendar day
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
