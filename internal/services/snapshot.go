package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/models"
)

// SnapshotService freezes a document into versioned_data.
type SnapshotService struct {
	db    *gorm.DB
	audit *AuditService
	now   func() time.Time
}

func NewSnapshotService(db *gorm.DB, audit *AuditService, now func() time.Time) *SnapshotService {
	if now == nil {
		now = time.Now
	}
	return &SnapshotService{db: db, audit: audit, now: now}
}

// Build serializes the current company, client copy, header, items and totals.
func Build(company *models.Company, rec models.Record, lockedAt time.Time) models.Snapshot {
	d := rec.Doc()
	totals := TotalsOf(rec)
	snap := models.Snapshot{
		Company: models.SnapshotCompany{
			Name:           company.Name,
			Email:          company.Email,
			Phone:          company.Phone,
			Website:        company.Website,
			Address:        company.FullAddress(),
			TaxNumber:      company.TaxNumber,
			LogoURL:        company.LogoURL,
			PrimaryColor:   company.PrimaryColor,
			SecondaryColor: company.SecondaryColor,
			AccentColor:    company.AccentColor,
			FontFamily:     company.FontFamily,
		},
		Client: models.SnapshotClient{
			Name:      d.ClientName,
			Email:     d.ClientEmail,
			Phone:     d.ClientPhone,
			Company:   d.ClientCompany,
			Address:   d.ClientAddress,
			TaxNumber: d.ClientTaxNumber,
		},
		Document: models.SnapshotDocument{
			Kind:         rec.Kind(),
			Number:       d.Number,
			Status:       d.Status,
			IssueDate:    d.IssueDate,
			Currency:     d.Currency,
			TaxRate:      d.TaxRate.StringFixed(2),
			DiscountRate: d.DiscountRate.StringFixed(2),
			Notes:        d.Notes,
		},
		Totals: models.SnapshotTotals{
			Subtotal:      totals.Subtotal.StringFixed(2),
			TaxTotal:      totals.TaxTotal.StringFixed(2),
			DiscountTotal: totals.DiscountTotal.StringFixed(2),
			Total:         totals.Total.StringFixed(2),
		},
		LockedAt: lockedAt,
	}
	switch r := rec.(type) {
	case *models.Invoice:
		due := r.DueDate
		snap.Document.DueDate = &due
	case *models.Quote:
		until := r.ValidUntil
		snap.Document.ValidUntil = &until
	case *models.Receipt:
		snap.Document.PaymentMethod = r.PaymentMethod
		snap.Document.Reference = r.ReferenceNumber
		snap.Document.AmountPaid = r.AmountPaid.StringFixed(2)
	}
	for _, it := range rec.LineItems() {
		snap.Items = append(snap.Items, models.SnapshotItem{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   it.UnitPrice.StringFixed(2),
			Discount:    it.Discount.StringFixed(2),
			LineTotal:   it.LineTotal().StringFixed(2),
		})
	}
	return snap
}

// Lock persists a snapshot once. An existing snapshot is returned untouched,
// so later edits to items or branding never leak into it.
func (s *SnapshotService) Lock(ctx context.Context, actor Actor, company *models.Company, rec models.Record) (*models.Snapshot, error) {
	d := rec.Doc()
	if d.VersionedData != nil {
		return d.VersionedData, nil
	}
	now := s.now().UTC()
	snap := Build(company, rec, now)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(rec).Where("versioned_data IS NULL").
			Updates(map[string]any{"versioned_data": snap, "locked_at": now})
		if res.Error != nil {
			return fmt.Errorf("lock %s %d: %w", rec.Kind(), d.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			// someone else locked first; use theirs
			return tx.Model(rec).Select("versioned_data", "locked_at").First(rec, d.ID).Error
		}
		d.VersionedData = &snap
		d.LockedAt = &now
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Action: ActionDocumentLocked, EntityType: string(rec.Kind()), EntityID: d.ID,
			Details: fmt.Sprintf("%s %s locked", rec.Kind(), d.Number),
		})
	})
	if err != nil {
		return nil, err
	}
	return d.VersionedData, nil
}
