package services

import (
	"github.com/shopspring/decimal"

	"github.com/diewo77/go-billing/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Totals are rounded to cents; Total is derived from the rounded parts so
// Total == Subtotal + TaxTotal - DiscountTotal holds exactly.
type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	Total         decimal.Decimal `json:"total"`
}

// ComputeTotals sums line totals and applies document level tax and discount
// percentages to the subtotal.
func ComputeTotals(items []models.LineItem, taxRate, discountRate decimal.Decimal) Totals {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	subtotal := sum.Round(2)
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)
	discount := subtotal.Mul(discountRate).Div(hundred).Round(2)
	return Totals{
		Subtotal:      subtotal,
		TaxTotal:      tax,
		DiscountTotal: discount,
		Total:         subtotal.Add(tax).Sub(discount),
	}
}

func TotalsOf(rec models.Record) Totals {
	d := rec.Doc()
	return ComputeTotals(rec.LineItems(), d.TaxRate, d.DiscountRate)
}
