package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is used for display when an opportunity has no currency set
const DefaultCurrency = "USD"

var hundred = decimal.NewFromInt(100)

// LineTotals are the derived money values of one line item
type LineTotals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// ComputeLineTotals prices a line item. A percentage discount scales the subtotal,
// a fixed discount is taken off once regardless of quantity.
func ComputeLineTotals(quantity, unitPrice decimal.Decimal, discountType DiscountType, discountValue decimal.Decimal) LineTotals {
	subtotal := quantity.Mul(unitPrice).Round(2)

	var discount decimal.Decimal
	switch discountType {
	case DiscountTypePercentage:
		discount = subtotal.Mul(discountValue).Div(hundred).Round(2)
	case DiscountTypeFixed:
		discount = discountValue.Round(2)
	default:
		discount = decimal.Zero
	}

	return LineTotals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Total:          subtotal.Sub(discount),
	}
}

// Totals recomputes the derived values from the item's inputs
func (li *OpportunityLineItem) Totals() LineTotals {
	return ComputeLineTotals(li.Quantity, li.UnitPrice, li.DiscountType, li.DiscountValue)
}

// ApplyTotals overwrites the persisted display columns with a fresh computation
func (li *OpportunityLineItem) ApplyTotals() {
	t := li.Totals()
	li.Subtotal = t.Subtotal
	li.DiscountAmount = t.DiscountAmount
	li.Total = t.Total
}

// RecalculateAmount rolls line items up into the opportunity amount and reports
// whether the opportunity changed. With items present the amount always becomes
// CALCULATED. With none, a CALCULATED amount is reset to a MANUAL zero and a
// MANUAL amount is left alone.
func RecalculateAmount(opp *Opportunity, items []OpportunityLineItem) bool {
	if len(items) == 0 {
		if opp.AmountSource != AmountSourceCalculated {
			return false
		}
		opp.Amount = decimal.NewNullDecimal(decimal.Zero)
		opp.AmountSource = AmountSourceManual
		return true
	}

	sum := decimal.Zero
	for i := range items {
		sum = sum.Add(items[i].Totals().Total)
	}
	opp.Amount = decimal.NewNullDecimal(sum.Round(2))
	opp.AmountSource = AmountSourceCalculated
	return true
}

var displayPrinter = message.NewPrinter(language.English)

// FormatCurrency renders an amount as "<ISO code> 1,234.50". Unknown or empty
// codes fall back to DefaultCurrency.
func FormatCurrency(amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		unit = currency.USD
	}
	f, _ := amount.Round(2).Float64()
	return displayPrinter.Sprintf("%s %.2f", unit.String(), f)
}

// DisplayAmount formats the opportunity amount in its own currency
func (o *Opportunity) DisplayAmount() string {
	if !o.Amount.Valid {
		return ""
	}
	return FormatCurrency(o.Amount.Decimal, o.Currency)
}
