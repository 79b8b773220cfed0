package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/models"
)

// RecentCount is the number of documents per kind shown on the dashboard.
const RecentCount = 5

type Stats struct {
	TotalInvoices     int64           `json:"total_invoices"`
	TotalQuotes       int64           `json:"total_quotes"`
	TotalReceipts     int64           `json:"total_receipts"`
	TotalClients      int64           `json:"total_clients"`
	PendingInvoices   int64           `json:"pending_invoices"`
	OverdueInvoices   int64           `json:"overdue_invoices"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	ReceivedAmount    decimal.Decimal `json:"received_amount"`
}

type StatsService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStatsService(db *gorm.DB, now func() time.Time) *StatsService {
	if now == nil {
		now = time.Now
	}
	return &StatsService{db: db, now: now}
}

var outstandingStatuses = []models.Status{
	models.StatusSent, models.StatusViewed, models.StatusOverdue, models.StatusPartiallyPaid,
}

// Compute aggregates the company dashboard figures. Totals are computed from
// line items, so outstanding invoices are loaded with their items.
func (s *StatsService) Compute(ctx context.Context, companyID uint) (*Stats, error) {
	db := s.db.WithContext(ctx)
	scoped := func(m any) *gorm.DB { return db.Model(m).Where("company_id = ?", companyID) }

	var st Stats
	counts := []struct {
		q   *gorm.DB
		dst *int64
	}{
		{scoped(&models.Invoice{}), &st.TotalInvoices},
		{scoped(&models.Quote{}), &st.TotalQuotes},
		{scoped(&models.Receipt{}), &st.TotalReceipts},
		{scoped(&models.Client{}), &st.TotalClients},
		{scoped(&models.Invoice{}).Where("status = ?", models.StatusDraft), &st.PendingInvoices},
		{scoped(&models.Invoice{}).Where("status = ? AND due_date < ?", models.StatusSent, today(s.now())), &st.OverdueInvoices},
	}
	for _, c := range counts {
		if err := c.q.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	var open []models.Invoice
	if err := db.Preload("Items").Where("company_id = ? AND status IN ?", companyID, outstandingStatuses).
		Find(&open).Error; err != nil {
		return nil, err
	}
	st.OutstandingAmount = decimal.Zero
	for i := range open {
		st.OutstandingAmount = st.OutstandingAmount.Add(TotalsOf(&open[i]).Total)
	}

	var received []decimal.Decimal
	if err := scoped(&models.Receipt{}).Pluck("amount_paid", &received).Error; err != nil {
		return nil, err
	}
	st.ReceivedAmount = decimal.Sum(decimal.Zero, received...).Round(2)
	return &st, nil
}
