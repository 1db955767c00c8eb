package mapper

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-api/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ToOpportunityDTO converts Opportunity to OpportunityDTO, classifying its aging at now
func ToOpportunityDTO(opp *domain.Opportunity, configs domain.AgingConfigSet, now time.Time) domain.OpportunityDTO {
	dto := domain.OpportunityDTO{
		ID:             opp.ID,
		Name:           opp.Name,
		AccountID:      opp.AccountID,
		Stage:          opp.Stage,
		AmountDisplay:  opp.DisplayAmount(),
		AmountSource:   opp.AmountSource,
		WeightedAmount: opp.WeightedAmount(),
		Probability:    opp.Probability,
		Currency:       opp.Currency,
		LeadSource:     opp.LeadSource,
		Description:    opp.Description,
		ClosedOn:       domain.FormatDate(opp.ClosedOn),
		ClosedBy:       opp.ClosedByID,
		DaysInStage:    domain.DaysInStage(opp.StageChangedAt, now),
		AgingStatus:    domain.ClassifyAging(opp, configs, now),
		CreatedBy:      opp.CreatedByID,
		IsActive:       opp.IsActive,
		AssignedTo:     opp.AssigneeIDs(),
		Teams:          make([]uuid.UUID, 0, len(opp.Teams)),
		Contacts:       make([]uuid.UUID, 0, len(opp.Contacts)),
		Tags:           make([]uuid.UUID, 0, len(opp.Tags)),
		CreatedAt:      formatTimestamp(opp.CreatedAt),
		UpdatedAt:      formatTimestamp(opp.UpdatedAt),
	}

	if opp.Amount.Valid {
		amount := opp.Amount.Decimal
		dto.Amount = &amount
	}
	if opp.StageChangedAt != nil {
		ts := formatTimestamp(*opp.StageChangedAt)
		dto.StageChangedAt = &ts
	}
	for _, t := range opp.Teams {
		dto.Teams = append(dto.Teams, t.ID)
	}
	for _, c := range opp.Contacts {
		dto.Contacts = append(dto.Contacts, c.ID)
	}
	for _, t := range opp.Tags {
		dto.Tags = append(dto.Tags, t.ID)
	}
	for i := range opp.LineItems {
		dto.LineItems = append(dto.LineItems, ToLineItemDTO(&opp.LineItems[i], opp.Currency))
	}

	return dto
}

// ToLineItemDTO converts a line item, formatting its total in currency
func ToLineItemDTO(item *domain.OpportunityLineItem, currency string) domain.LineItemDTO {
	return domain.LineItemDTO{
		ID:             item.ID,
		OpportunityID:  item.OpportunityID,
		ProductID:      item.ProductID,
		Name:           item.Name,
		Description:    item.Description,
		Quantity:       item.Quantity,
		UnitPrice:      item.UnitPrice,
		DiscountType:   item.DiscountType,
		DiscountValue:  item.DiscountValue,
		Subtotal:       item.Subtotal,
		DiscountAmount: item.DiscountAmount,
		Total:          item.Total,
		TotalDisplay:   domain.FormatCurrency(item.Total, currency),
		Order:          item.SortOrder,
	}
}

func ToStageHistoryDTO(h *domain.OpportunityStageHistory) domain.StageHistoryDTO {
	return domain.StageHistoryDTO{
		ID:        h.ID,
		FromStage: h.FromStage,
		ToStage:   h.ToStage,
		ChangedBy: h.ChangedByID,
		ChangedAt: formatTimestamp(h.ChangedAt),
	}
}

// ToOpportunityAgingDTO reports the aging details of one opportunity
func ToOpportunityAgingDTO(opp *domain.Opportunity, configs domain.AgingConfigSet, now time.Time) domain.OpportunityAgingDTO {
	t := configs.Thresholds(opp.Stage)
	return domain.OpportunityAgingDTO{
		ID:           opp.ID,
		Stage:        opp.Stage,
		DaysInStage:  domain.DaysInStage(opp.StageChangedAt, now),
		ExpectedDays: t.ExpectedDays,
		WarningDays:  t.WarningDays,
		RottenDays:   t.RottenDays(),
		AgingStatus:  domain.ClassifyAging(opp, configs, now),
	}
}

func ToAgingConfigDTO(t domain.AgingThresholds) domain.AgingConfigDTO {
	return domain.AgingConfigDTO{
		Stage:        t.Stage,
		ExpectedDays: t.ExpectedDays,
		WarningDays:  t.WarningDays,
		RottenDays:   t.RottenDays(),
		IsDefault:    t.IsDefault,
	}
}

func ToProductDTO(p *domain.Product) domain.ProductDTO {
	return domain.ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		SKU:         p.SKU,
		Description: p.Description,
		UnitPrice:   p.UnitPrice,
		Currency:    p.Currency,
		IsActive:    p.IsActive,
	}
}

// ToSalesGoalDTO converts a goal. progress is optional.
func ToSalesGoalDTO(g *domain.SalesGoal, progress *domain.GoalProgress) domain.SalesGoalDTO {
	dto := domain.SalesGoalDTO{
		ID:                   g.ID,
		Name:                 g.Name,
		GoalType:             g.GoalType,
		TargetValue:          g.TargetValue,
		PeriodType:           g.PeriodType,
		PeriodStart:          domain.NewDate(g.PeriodStart),
		PeriodEnd:            domain.NewDate(g.PeriodEnd),
		AssignedTo:           g.AssignedToID,
		Team:                 g.TeamID,
		IsActive:             g.IsActive,
		Milestone50Notified:  g.Milestone50Notified,
		Milestone90Notified:  g.Milestone90Notified,
		Milestone100Notified: g.Milestone100Notified,
		CreatedAt:            formatTimestamp(g.CreatedAt),
	}
	if progress != nil {
		value := progress.Progress
		pct := progress.Percent
		dto.Progress = &value
		dto.ProgressPercent = &pct
		dto.Status = progress.Status
	}
	return dto
}

func ToGoalProgressDTO(g *domain.SalesGoal, progress domain.GoalProgress) domain.GoalProgressDTO {
	return domain.GoalProgressDTO{
		GoalID:          g.ID,
		Progress:        progress.Progress,
		TargetValue:     g.TargetValue,
		ProgressPercent: progress.Percent,
		Status:          progress.Status,
		PeriodStart:     domain.NewDate(g.PeriodStart),
		PeriodEnd:       domain.NewDate(g.PeriodEnd),
	}
}

// ToLeaderboardEntryDTO converts a ranked goal of a single profile
func ToLeaderboardEntryDTO(rank int, g *domain.SalesGoal, progress domain.GoalProgress) domain.LeaderboardEntryDTO {
	entry := domain.LeaderboardEntryDTO{
		Rank:            rank,
		GoalID:          g.ID,
		GoalName:        g.Name,
		GoalType:        g.GoalType,
		Progress:        progress.Progress,
		TargetValue:     g.TargetValue,
		ProgressPercent: progress.Percent,
		Status:          progress.Status,
	}
	if g.AssignedToID != nil {
		entry.ProfileID = *g.AssignedToID
	}
	if g.AssignedTo != nil {
		entry.ProfileName = g.AssignedTo.Name
	}
	return entry
}

func ToProfileDTO(p *domain.Profile) domain.ProfileDTO {
	return domain.ProfileDTO{
		ID:       p.ID,
		Name:     p.Name,
		Email:    p.Email,
		Role:     p.Role,
		IsActive: p.IsActive,
	}
}

func ToCommentDTO(c *domain.Comment) domain.CommentDTO {
	return domain.CommentDTO{
		ID:        c.ID,
		Entity:    c.Entity,
		Body:      c.Body,
		AuthorID:  c.AuthorID,
		CreatedAt: formatTimestamp(c.CreatedAt),
	}
}

func ToAttachmentDTO(a *domain.Attachment) domain.AttachmentDTO {
	return domain.AttachmentDTO{
		ID:          a.ID,
		Entity:      a.Entity,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		Size:        a.Size,
		URL:         a.URL,
		UploadedBy:  a.UploadedByID,
		CreatedAt:   formatTimestamp(a.CreatedAt),
	}
}

// SumAmounts totals the amounts of opportunities, skipping unset ones
func SumAmounts(opps []domain.Opportunity) decimal.Decimal {
	total := decimal.Zero
	for i := range opps {
		if opps[i].Amount.Valid {
			total = total.Add(opps[i].Amount.Decimal)
		}
	}
	return total
}
