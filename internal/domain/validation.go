package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ValidationErrors is a field-keyed set of validation failures
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, v[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has a message
func (v ValidationErrors) Add(field, msg string) {
	if _, exists := v[field]; !exists {
		v[field] = msg
	}
}

// OrNil returns nil when there are no failures so callers can return it directly
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// NormalizeName is the case-insensitive uniqueness key of an opportunity name
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Clean checks the opportunity's field combination rules
func (o *Opportunity) Clean() error {
	errs := ValidationErrors{}

	if strings.TrimSpace(o.Name) == "" {
		errs.Add("name", "This field is required")
	}
	if !o.Stage.IsValid() {
		errs.Add("stage", fmt.Sprintf("%q is not a valid stage", o.Stage))
	}
	if o.Probability < 0 || o.Probability > 100 {
		errs.Add("probability", "Probability must be between 0 and 100")
	}
	if o.Amount.Valid && o.Amount.Decimal.IsNegative() {
		errs.Add("amount", "Amount cannot be negative")
	}

	switch o.Stage {
	case StageClosedWon:
		if !o.Amount.Valid {
			errs.Add("amount", "Amount is required when the opportunity is closed won")
		}
		if o.ClosedOn == nil {
			errs.Add("closed_on", "Close date is required when the opportunity is closed won")
		}
	case StageClosedLost:
		if o.ClosedOn == nil {
			errs.Add("closed_on", "Close date is required when the opportunity is closed lost")
		}
	}

	return errs.OrNil()
}

// Clean checks a line item's inputs
func (li *OpportunityLineItem) Clean() error {
	errs := ValidationErrors{}

	if strings.TrimSpace(li.Name) == "" {
		errs.Add("name", "This field is required")
	}
	if !li.Quantity.IsPositive() {
		errs.Add("quantity", "Quantity must be greater than zero")
	}
	if li.UnitPrice.IsNegative() {
		errs.Add("unit_price", "Unit price cannot be negative")
	}
	if !li.DiscountType.IsValid() {
		errs.Add("discount_type", fmt.Sprintf("%q is not a valid discount type", li.DiscountType))
	}
	if li.DiscountValue.IsNegative() {
		errs.Add("discount_value", "Discount cannot be negative")
	}
	if li.DiscountType == DiscountTypePercentage && li.DiscountValue.GreaterThan(hundred) {
		errs.Add("discount_value", "Percentage discount cannot exceed 100")
	}
	if li.DiscountType == DiscountTypeFixed {
		if subtotal := li.Quantity.Mul(li.UnitPrice).Round(2); li.DiscountValue.GreaterThan(subtotal) {
			errs.Add("discount_value", "Fixed discount cannot exceed the subtotal")
		}
	}

	return errs.OrNil()
}

// CheckTenant rejects a line item whose org differs from its opportunity's
func (li *OpportunityLineItem) CheckTenant(opp *Opportunity) error {
	if li.OrgID != opp.OrgID {
		return ValidationErrors{"org": "Line item organization must match the opportunity organization"}
	}
	return nil
}

// Clean checks a goal's target, period and scope
func (g *SalesGoal) Clean() error {
	errs := ValidationErrors{}

	if strings.TrimSpace(g.Name) == "" {
		errs.Add("name", "This field is required")
	} else if strings.ContainsAny(g.Name, "\r\n") {
		errs.Add("name", "Name cannot contain line breaks")
	}
	if !g.GoalType.IsValid() {
		errs.Add("goal_type", fmt.Sprintf("%q is not a valid goal type", g.GoalType))
	}
	if !g.PeriodType.IsValid() {
		errs.Add("period_type", fmt.Sprintf("%q is not a valid period type", g.PeriodType))
	}
	if !g.TargetValue.IsPositive() {
		errs.Add("target_value", "Target value must be greater than zero")
	}
	if g.GoalType == GoalTypeDealsClosed && !g.TargetValue.Equal(g.TargetValue.Truncate(0)) {
		errs.Add("target_value", "Deal count targets must be whole numbers")
	}
	if !DateOnly(g.PeriodEnd).After(DateOnly(g.PeriodStart)) {
		errs.Add("period_end", "Period end must be after period start")
	}
	if g.AssignedToID != nil && *g.AssignedToID != uuid.Nil && g.TeamID != nil && *g.TeamID != uuid.Nil {
		errs.Add("team", "A goal can be assigned to a user or a team, not both")
	}

	return errs.OrNil()
}

// Clean checks an aging override
func (c *StageAgingConfig) Clean() error {
	errs := ValidationErrors{}

	if !c.Stage.IsValid() {
		errs.Add("stage", fmt.Sprintf("%q is not a valid stage", c.Stage))
	} else if c.Stage.IsClosed() {
		errs.Add("stage", "Closed stages have no aging configuration")
	}
	if c.ExpectedDays < 1 {
		errs.Add("expected_days", "Expected days must be at least 1")
	}
	if c.WarningDays != nil {
		if *c.WarningDays < 1 {
			errs.Add("warning_days", "Warning days must be at least 1")
		} else if *c.WarningDays > c.ExpectedDays {
			errs.Add("warning_days", "Warning days cannot exceed expected days")
		}
	}

	return errs.OrNil()
}
