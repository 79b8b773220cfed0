package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/models"
)

// AmountPaid sums amount_paid over the live receipts linked to an invoice.
func AmountPaid(ctx context.Context, tx *gorm.DB, companyID, invoiceID uint) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := tx.WithContext(ctx).Model(&models.Receipt{}).
		Where("company_id = ? AND invoice_id = ?", companyID, invoiceID).
		Pluck("amount_paid", &amounts).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum receipts: %w", err)
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}

// RecomputeInvoiceStatus derives the payment status of an invoice from its
// receipts: paid once they cover the total, partially_paid while something
// has been received. An invoice whose receipts were all removed returns to sent.
// Drafts and cancelled invoices are left alone.
func RecomputeInvoiceStatus(ctx context.Context, tx *gorm.DB, companyID, invoiceID uint) error {
	var inv models.Invoice
	err := tx.WithContext(ctx).Preload("Items").Where("company_id = ?", companyID).First(&inv, invoiceID).Error
	if err != nil {
		return notFound(err)
	}
	if inv.Status == models.StatusDraft || inv.Status == models.StatusCancelled {
		return nil
	}
	paid, err := AmountPaid(ctx, tx, companyID, invoiceID)
	if err != nil {
		return err
	}
	total := TotalsOf(&inv).Total
	next := inv.Status
	switch {
	case paid.IsPositive() && paid.GreaterThanOrEqual(total):
		next = models.StatusPaid
	case paid.IsPositive():
		next = models.StatusPartiallyPaid
	case inv.Status.Settled():
		next = models.StatusSent
	}
	if next == inv.Status {
		return nil
	}
	zerolog.Ctx(ctx).Info().Str("invoice", inv.Number).Str("from", string(inv.Status)).
		Str("to", string(next)).Str("paid", paid.StringFixed(2)).Msg("invoice payment status")
	return tx.Model(&inv).Update("status", next).Error
}

// Paid returns what the receipts linked to inv cover so far.
func (s *DocumentService) Paid(ctx context.Context, inv *models.Invoice) (decimal.Decimal, error) {
	return AmountPaid(ctx, s.db, inv.CompanyID, inv.ID)
}
