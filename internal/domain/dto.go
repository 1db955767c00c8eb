package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Response DTOs

type OpportunityDTO struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	AccountID      *uuid.UUID       `json:"account,omitempty"`
	Stage          Stage            `json:"stage"`
	Amount         *decimal.Decimal `json:"amount"`
	AmountDisplay  string           `json:"amount_display,omitempty"`
	AmountSource   AmountSource     `json:"amount_source"`
	WeightedAmount decimal.Decimal  `json:"weighted_amount"`
	Probability    int              `json:"probability"`
	Currency       string           `json:"currency,omitempty"`
	LeadSource     string           `json:"lead_source,omitempty"`
	Description    string           `json:"description,omitempty"`
	ClosedOn       *string          `json:"closed_on"`
	ClosedBy       *uuid.UUID       `json:"closed_by"`
	StageChangedAt *string          `json:"stage_changed_at"`
	DaysInStage    int              `json:"days_in_stage"`
	AgingStatus    AgingStatus      `json:"aging_status"`
	CreatedBy      *uuid.UUID       `json:"created_by"`
	IsActive       bool             `json:"is_active"`
	AssignedTo     []uuid.UUID      `json:"assigned_to"`
	Teams          []uuid.UUID      `json:"teams"`
	Contacts       []uuid.UUID      `json:"contacts"`
	Tags           []uuid.UUID      `json:"tags"`
	LineItems      []LineItemDTO    `json:"line_items,omitempty"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
}

type LineItemDTO struct {
	ID             uuid.UUID       `json:"id"`
	OpportunityID  uuid.UUID       `json:"opportunity"`
	ProductID      *uuid.UUID      `json:"product"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountType   DiscountType    `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
	TotalDisplay   string          `json:"total_display"`
	Order          int             `json:"order"`
}

type StageHistoryDTO struct {
	ID        uuid.UUID  `json:"id"`
	FromStage *Stage     `json:"from_stage"`
	ToStage   Stage      `json:"to_stage"`
	ChangedBy *uuid.UUID `json:"changed_by"`
	ChangedAt string     `json:"changed_at"`
}

type OpportunityAgingDTO struct {
	ID           uuid.UUID   `json:"id"`
	Stage        Stage       `json:"stage"`
	DaysInStage  int         `json:"days_in_stage"`
	ExpectedDays int         `json:"expected_days"`
	WarningDays  int         `json:"warning_days"`
	RottenDays   float64     `json:"rotten_days"`
	AgingStatus  AgingStatus `json:"aging_status"`
}

type AgingConfigDTO struct {
	Stage        Stage   `json:"stage"`
	ExpectedDays int     `json:"expected_days"`
	WarningDays  int     `json:"warning_days"`
	RottenDays   float64 `json:"rotten_days"`
	IsDefault    bool    `json:"is_default"`
}

type PipelineStageDTO struct {
	Stage          Stage           `json:"stage"`
	Count          int64           `json:"count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	WeightedAmount decimal.Decimal `json:"weighted_amount"`
}

type ProductDTO struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku,omitempty"`
	Description string          `json:"description,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Currency    string          `json:"currency,omitempty"`
	IsActive    bool            `json:"is_active"`
}

type SalesGoalDTO struct {
	ID                   uuid.UUID        `json:"id"`
	Name                 string           `json:"name"`
	GoalType             GoalType         `json:"goal_type"`
	TargetValue          decimal.Decimal  `json:"target_value"`
	PeriodType           PeriodType       `json:"period_type"`
	PeriodStart          Date             `json:"period_start"`
	PeriodEnd            Date             `json:"period_end"`
	AssignedTo           *uuid.UUID       `json:"assigned_to"`
	Team                 *uuid.UUID       `json:"team"`
	IsActive             bool             `json:"is_active"`
	Milestone50Notified  bool             `json:"milestone_50_notified"`
	Milestone90Notified  bool             `json:"milestone_90_notified"`
	Milestone100Notified bool             `json:"milestone_100_notified"`
	Progress             *decimal.Decimal `json:"progress,omitempty"`
	ProgressPercent      *int             `json:"progress_percent,omitempty"`
	Status               GoalStatus       `json:"status,omitempty"`
	CreatedAt            string           `json:"created_at"`
}

type GoalProgressDTO struct {
	GoalID          uuid.UUID       `json:"goal_id"`
	Progress        decimal.Decimal `json:"progress"`
	TargetValue     decimal.Decimal `json:"target_value"`
	ProgressPercent int             `json:"progress_percent"`
	Status          GoalStatus      `json:"status"`
	PeriodStart     Date            `json:"period_start"`
	PeriodEnd       Date            `json:"period_end"`
}

type LeaderboardEntryDTO struct {
	Rank            int             `json:"rank"`
	GoalID          uuid.UUID       `json:"goal_id"`
	GoalName        string          `json:"goal_name"`
	GoalType        GoalType        `json:"goal_type"`
	ProfileID       uuid.UUID       `json:"profile_id"`
	ProfileName     string          `json:"profile_name"`
	Progress        decimal.Decimal `json:"progress"`
	TargetValue     decimal.Decimal `json:"target_value"`
	ProgressPercent int             `json:"progress_percent"`
	Status          GoalStatus      `json:"status"`
}

type ProfileDTO struct {
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Role     ProfileRole `json:"role"`
	IsActive bool        `json:"is_active"`
}

// MeDTO describes the authenticated caller
type MeDTO struct {
	ProfileDTO
	OrgID    uuid.UUID   `json:"org_id"`
	IsAdmin  bool        `json:"is_admin"`
	AuthType string      `json:"auth_type"`
	Teams    []uuid.UUID `json:"teams"`
}

type CommentDTO struct {
	ID        uuid.UUID  `json:"id"`
	Entity    EntityRef  `json:"entity"`
	Body      string     `json:"comment"`
	AuthorID  *uuid.UUID `json:"commented_by"`
	CreatedAt string     `json:"created_at"`
}

type AttachmentDTO struct {
	ID          uuid.UUID  `json:"id"`
	Entity      EntityRef  `json:"entity"`
	FileName    string     `json:"file_name"`
	ContentType string     `json:"content_type,omitempty"`
	Size        int64      `json:"size"`
	URL         string     `json:"url"`
	UploadedBy  *uuid.UUID `json:"uploaded_by"`
	CreatedAt   string     `json:"created_at"`
}

// Request DTOs

type CreateOpportunityRequest struct {
	Name        string           `json:"name" validate:"required,max=255"`
	Account     *Ref             `json:"account,omitempty"`
	Stage       Stage            `json:"stage,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Probability *int             `json:"probability,omitempty" validate:"omitempty,min=0,max=100"`
	Currency    string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	LeadSource  string           `json:"lead_source,omitempty" validate:"max=100"`
	Description string           `json:"description,omitempty"`
	ClosedOn    *Date            `json:"closed_on,omitempty"`
	AssignedTo  []Ref            `json:"assigned_to,omitempty"`
	Teams       []Ref            `json:"teams,omitempty"`
	Contacts    []Ref            `json:"contacts,omitempty"`
	Tags        []Ref            `json:"tags,omitempty"`
}

// UpdateOpportunityRequest carries a partial update; nil fields are left unchanged
type UpdateOpportunityRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Account     *Ref             `json:"account,omitempty"`
	Stage       *Stage           `json:"stage,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Probability *int             `json:"probability,omitempty" validate:"omitempty,min=0,max=100"`
	Currency    *string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	LeadSource  *string          `json:"lead_source,omitempty" validate:"omitempty,max=100"`
	Description *string          `json:"description,omitempty"`
	ClosedOn    *Date            `json:"closed_on,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
	AssignedTo  []Ref            `json:"assigned_to,omitempty"`
	Teams       []Ref            `json:"teams,omitempty"`
	Contacts    []Ref            `json:"contacts,omitempty"`
	Tags        []Ref            `json:"tags,omitempty"`
}

type CreateLineItemRequest struct {
	Product       *Ref             `json:"product,omitempty"`
	Name          string           `json:"name,omitempty" validate:"max=255"`
	Description   string           `json:"description,omitempty"`
	Quantity      *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountType  DiscountType     `json:"discount_type,omitempty"`
	DiscountValue *decimal.Decimal `json:"discount_value,omitempty"`
	Order         *int             `json:"order,omitempty" validate:"omitempty,min=0"`
}

type UpdateLineItemRequest struct {
	Name          *string          `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description   *string          `json:"description,omitempty"`
	Quantity      *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountType  *DiscountType    `json:"discount_type,omitempty"`
	DiscountValue *decimal.Decimal `json:"discount_value,omitempty"`
	Order         *int             `json:"order,omitempty" validate:"omitempty,min=0"`
}

type AgingConfigEntry struct {
	Stage        Stage `json:"stage" validate:"required"`
	ExpectedDays int   `json:"expected_days" validate:"required,min=1"`
	WarningDays  *int  `json:"warning_days,omitempty" validate:"omitempty,min=1"`
}

type CreateProductRequest struct {
	Name        string           `json:"name" validate:"required,max=255"`
	SKU         string           `json:"sku,omitempty" validate:"max=100"`
	Description string           `json:"description,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	Currency    string           `json:"currency,omitempty" validate:"omitempty,len=3"`
}

type CreateGoalRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	GoalType    GoalType        `json:"goal_type" validate:"required"`
	TargetValue decimal.Decimal `json:"target_value"`
	PeriodType  PeriodType      `json:"period_type" validate:"required"`
	PeriodStart Date            `json:"period_start"`
	PeriodEnd   Date            `json:"period_end"`
	AssignedTo  *Ref            `json:"assigned_to,omitempty"`
	Team        *Ref            `json:"team,omitempty"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

type UpdateGoalRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	GoalType    *GoalType        `json:"goal_type,omitempty"`
	TargetValue *decimal.Decimal `json:"target_value,omitempty"`
	PeriodType  *PeriodType      `json:"period_type,omitempty"`
	PeriodStart *Date            `json:"period_start,omitempty"`
	PeriodEnd   *Date            `json:"period_end,omitempty"`
	AssignedTo  OptionalRef      `json:"assigned_to" swaggertype:"string"`
	Team        OptionalRef      `json:"team" swaggertype:"string"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

type CreateCommentRequest struct {
	Entity EntityRef `json:"entity" validate:"required"`
	Body   string    `json:"comment" validate:"required,max=10000"`
}

type CreateAttachmentRequest struct {
	Entity      EntityRef `json:"entity" validate:"required"`
	FileName    string    `json:"file_name" validate:"required,max=255"`
	ContentType string    `json:"content_type,omitempty" validate:"max=100"`
	Size        int64     `json:"size" validate:"gte=0"`
	URL         string    `json:"url" validate:"required,url,max=1000"`
}

// PaginatedResponse wraps one page of a list endpoint
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// NewPaginatedResponse computes the page count for total rows
func NewPaginatedResponse(data interface{}, total int64, page, pageSize int) PaginatedResponse {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return PaginatedResponse{Data: data, Total: total, Page: page, PageSize: pageSize, TotalPages: pages}
}
