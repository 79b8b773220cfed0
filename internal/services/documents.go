package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/validation"
)

// CreateAttempts bounds retries after a number collision.
const CreateAttempts = 3

type LineItemInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
}

// DocumentInput covers the three kinds; fields that do not apply to a kind
// are ignored. Nil pointers take company or client defaults.
type DocumentInput struct {
	ClientID *uint        `json:"client_id"`
	Client   *ClientInput `json:"client"`

	IssueDate    *time.Time       `json:"issue_date"`
	Currency     string           `json:"currency"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
	DiscountRate *decimal.Decimal `json:"discount_rate"`
	Notes        string           `json:"notes"`
	Items        []LineItemInput  `json:"items"`

	DueDate      *time.Time `json:"due_date"`
	PaymentTerms *int       `json:"payment_terms"`

	ValidUntil *time.Time `json:"valid_until"`

	InvoiceID       *uint            `json:"invoice_id"`
	AmountPaid      *decimal.Decimal `json:"amount_paid"`
	PaymentMethod   string           `json:"payment_method"`
	ReferenceNumber string           `json:"reference_number"`
}

type DocumentFilter struct {
	Status    models.Status
	Query     string
	CreatedBy uint
	Page      int
}

type DocumentService struct {
	db       *gorm.DB
	numberer NumberSource
	clients  *ClientService
	audit    *AuditService
	now      func() time.Time
}

func NewDocumentService(db *gorm.DB, numberer NumberSource, clients *ClientService, audit *AuditService, now func() time.Time) *DocumentService {
	if now == nil {
		now = time.Now
	}
	return &DocumentService{db: db, numberer: numberer, clients: clients, audit: audit, now: now}
}

func (s *DocumentService) company(ctx context.Context, tx *gorm.DB, id uint) (*models.Company, error) {
	var c models.Company
	if err := tx.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCompany
		}
		return nil, err
	}
	return &c, nil
}

func today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func itemsFrom(in []LineItemInput, v validation.Violations) []models.LineItem {
	items := make([]models.LineItem, 0, len(in))
	for i, it := range in {
		desc := strings.TrimSpace(it.Description)
		if desc == "" && it.Quantity.IsZero() && it.UnitPrice.IsZero() {
			continue // blank form row
		}
		prefix := fmt.Sprintf("items[%d].", i)
		validation.Required(prefix+"description", desc, v)
		validation.PositiveDecimal(prefix+"quantity", it.Quantity, v)
		validation.NonNegativeDecimal(prefix+"unit_price", it.UnitPrice, v)
		validation.PercentDecimal(prefix+"discount", it.Discount, v)
		items = append(items, models.LineItem{
			Description: desc,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice.Round(2),
			Discount:    it.Discount,
			Position:    len(items),
		})
	}
	if len(items) == 0 {
		v.Add("items", "no_line_items")
	}
	return items
}

// fill applies in to rec, resolving the client and every default. It is
// shared by create and update.
func (s *DocumentService) fill(ctx context.Context, tx *gorm.DB, actor Actor, company *models.Company, rec models.Record, in DocumentInput) error {
	v := validation.Violations{}
	d := rec.Doc()

	var client *models.Client
	switch {
	case in.ClientID != nil && *in.ClientID != 0:
		var c models.Client
		err := tx.WithContext(ctx).Where("company_id = ?", company.ID).First(&c, *in.ClientID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			v.Add("client_id", "not_found")
		} else if err != nil {
			return err
		} else {
			client = &c
		}
	case in.Client != nil:
		c, err := s.clients.FindOrCreate(ctx, tx, actor, *in.Client)
		if verrs := ViolationsOf(err); verrs != nil {
			for f, code := range verrs {
				v.Add("client."+f, code)
			}
		} else if err != nil {
			return err
		}
		client = c
	case d.ClientName == "":
		v.Add("client_id", "required")
	}
	if client != nil {
		d.CopyClient(client)
	}

	switch {
	case in.IssueDate != nil:
		d.IssueDate = today(*in.IssueDate)
	case d.ID == 0 || d.IssueDate.IsZero():
		d.IssueDate = today(s.now())
	}
	d.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if d.Currency == "" && client != nil {
		d.Currency = client.Currency
	}
	if d.Currency == "" {
		d.Currency = company.Currency
	}
	if d.Currency == "" {
		d.Currency = models.DefaultCurrency
	}
	if len(d.Currency) != 3 {
		v.Add("currency", "invalid_length")
	}

	switch {
	case in.TaxRate != nil:
		d.TaxRate = *in.TaxRate
	case client != nil && client.TaxRate.Valid:
		d.TaxRate = client.TaxRate.Decimal
	default:
		d.TaxRate = company.DefaultTaxRate
	}
	d.DiscountRate = company.DefaultDiscountRate
	if in.DiscountRate != nil {
		d.DiscountRate = *in.DiscountRate
	}
	validation.PercentDecimal("tax_rate", d.TaxRate, v)
	validation.PercentDecimal("discount_rate", d.DiscountRate, v)
	d.Notes = strings.TrimSpace(in.Notes)
	if d.Status == "" {
		d.Status = models.StatusDraft
	}

	items := itemsFrom(in.Items, v)
	rec.SetLineItems(items)

	switch r := rec.(type) {
	case *models.Invoice:
		r.PaymentTerms = company.DefaultPaymentTerms
		if in.PaymentTerms != nil {
			r.PaymentTerms = *in.PaymentTerms
		}
		if r.PaymentTerms < 0 {
			v.Add("payment_terms", "must_not_be_negative")
		}
		r.DueDate = d.IssueDate.AddDate(0, 0, r.PaymentTerms)
		if in.DueDate != nil {
			r.DueDate = today(*in.DueDate)
		}
		if r.DueDate.Before(d.IssueDate) {
			v.Add("due_date", "before_issue_date")
		}
	case *models.Quote:
		r.ValidUntil = d.IssueDate.AddDate(0, 0, 30)
		if in.ValidUntil != nil {
			r.ValidUntil = today(*in.ValidUntil)
		}
		if r.ValidUntil.Before(d.IssueDate) {
			v.Add("valid_until", "before_issue_date")
		}
	case *models.Receipt:
		r.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
		if r.PaymentMethod == "" {
			r.PaymentMethod = models.PaymentCash
		}
		if !slices.Contains(models.PaymentMethods, r.PaymentMethod) {
			v.Add("payment_method", "invalid_choice")
		}
		r.ReferenceNumber = strings.TrimSpace(in.ReferenceNumber)
		r.AmountPaid = TotalsOf(r).Total
		if in.AmountPaid != nil {
			r.AmountPaid = in.AmountPaid.Round(2)
		}
		validation.NonNegativeDecimal("amount_paid", r.AmountPaid, v)
		r.InvoiceID = nil
		if in.InvoiceID != nil && *in.InvoiceID != 0 {
			if err := s.checkPayable(ctx, tx, company.ID, d.ClientID, *in.InvoiceID, r.ID, v); err != nil {
				return err
			}
			id := *in.InvoiceID
			r.InvoiceID = &id
		}
	}
	return invalid(v)
}

// checkPayable requires the invoice to belong to the company and client and
// to be awaiting payment. A receipt already linked to it may keep the link.
func (s *DocumentService) checkPayable(ctx context.Context, tx *gorm.DB, companyID uint, clientID *uint, invoiceID, receiptID uint, v validation.Violations) error {
	var inv models.Invoice
	err := tx.WithContext(ctx).Where("company_id = ?", companyID).First(&inv, invoiceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		v.Add("invoice_id", "not_found")
		return nil
	}
	if err != nil {
		return err
	}
	if clientID == nil || inv.ClientID == nil || *inv.ClientID != *clientID {
		v.Add("invoice_id", "invoice_mismatch")
		return nil
	}
	if inv.Status.Payable() {
		return nil
	}
	if receiptID != 0 {
		var linked int64
		if err := tx.Model(&models.Receipt{}).Where("id = ? AND invoice_id = ?", receiptID, invoiceID).Count(&linked).Error; err != nil {
			return err
		}
		if linked > 0 {
			return nil
		}
	}
	v.Add("invoice_id", "invoice_not_payable")
	return nil
}

// Create numbers and inserts a new document. A number collision with a
// concurrent create is retried up to CreateAttempts times.
func (s *DocumentService) Create(ctx context.Context, actor Actor, kind models.Kind, in DocumentInput) (models.Record, error) {
	log := zerolog.Ctx(ctx)
	attempt := func() (models.Record, error) {
		rec, err := s.createOnce(ctx, actor, kind, in)
		if errors.Is(err, ErrDuplicateNumber) {
			return nil, err
		}
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return rec, nil
	}
	rec, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewConstantBackOff(10*time.Millisecond)),
		backoff.WithMaxTries(CreateAttempts),
		backoff.WithNotify(func(err error, _ time.Duration) {
			log.Warn().Err(err).Str("kind", string(kind)).Msg("number collision, retrying")
		}),
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *DocumentService) createOnce(ctx context.Context, actor Actor, kind models.Kind, in DocumentInput) (models.Record, error) {
	rec, err := models.NewRecord(kind)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.company(ctx, tx, actor.CompanyID)
		if err != nil {
			return err
		}
		d := rec.Doc()
		d.CompanyID = company.ID
		d.CreatedByID = actor.UserID
		if err := s.fill(ctx, tx, actor, company, rec, in); err != nil {
			return err
		}
		number, err := s.numberer.Next(ctx, tx, company, kind)
		if err != nil {
			return err
		}
		d.Number = number
		if err := tx.Create(rec).Error; err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("%s %s: %w", kind, number, ErrDuplicateNumber)
			}
			return fmt.Errorf("create %s: %w", kind, err)
		}
		if err := s.audit.Record(ctx, tx, actor, AuditEntry{
			Action: EntityAction(string(kind), "created"), EntityType: string(kind), EntityID: d.ID,
			Details: fmt.Sprintf("%s %s created for %s", kind, number, d.ClientName),
		}); err != nil {
			return err
		}
		if r, ok := rec.(*models.Receipt); ok && r.InvoiceID != nil {
			return RecomputeInvoiceStatus(ctx, tx, company.ID, *r.InvoiceID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update rewrites header and items of a document. The number, creator,
// status and any locked snapshot are kept.
func (s *DocumentService) Update(ctx context.Context, actor Actor, rec models.Record, in DocumentInput) error {
	d := rec.Doc()
	var previousInvoice *uint
	if r, ok := rec.(*models.Receipt); ok {
		previousInvoice = r.InvoiceID
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.company(ctx, tx, d.CompanyID)
		if err != nil {
			return err
		}
		if in.ClientID == nil && in.Client == nil {
			in.ClientID = d.ClientID
		}
		if err := s.fill(ctx, tx, actor, company, rec, in); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations, "versioned_data", "locked_at").Save(rec).Error; err != nil {
			return fmt.Errorf("update %s: %w", rec.Kind(), err)
		}
		if err := tx.Where("document_type = ? AND document_id = ?", string(rec.Kind()), d.ID).
			Delete(&models.LineItem{}).Error; err != nil {
			return err
		}
		items := rec.LineItems()
		for i := range items {
			items[i].DocumentType = string(rec.Kind())
			items[i].DocumentID = d.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("update %s items: %w", rec.Kind(), err)
		}
		rec.SetLineItems(items)
		if err := s.audit.Record(ctx, tx, actor, AuditEntry{
			Action: EntityAction(string(rec.Kind()), "updated"), EntityType: string(rec.Kind()), EntityID: d.ID,
			Details: fmt.Sprintf("%s %s updated", rec.Kind(), d.Number),
		}); err != nil {
			return err
		}
		if r, ok := rec.(*models.Receipt); ok {
			return recomputeLinked(ctx, tx, d.CompanyID, previousInvoice, r.InvoiceID)
		}
		return nil
	})
}

func recomputeLinked(ctx context.Context, tx *gorm.DB, companyID uint, ids ...*uint) error {
	seen := map[uint]bool{}
	for _, id := range ids {
		if id == nil || seen[*id] {
			continue
		}
		seen[*id] = true
		if err := RecomputeInvoiceStatus(ctx, tx, companyID, *id); err != nil {
			return err
		}
	}
	return nil
}

// Get loads a document of the company with its items ordered by position.
func (s *DocumentService) Get(ctx context.Context, companyID uint, kind models.Kind, id uint) (models.Record, error) {
	rec, err := models.NewRecord(kind)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("company_id = ?", companyID).First(rec, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return rec, nil
}

func (s *DocumentService) listQuery(ctx context.Context, companyID uint, kind models.Kind, f DocumentFilter) (*gorm.DB, error) {
	rec, err := models.NewRecord(kind)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(rec).Where("company_id = ?", companyID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(number) LIKE ? OR LOWER(client_name) LIKE ? OR LOWER(client_company) LIKE ?", like, like, like)
	}
	if f.CreatedBy != 0 {
		q = q.Where("created_by_id = ?", f.CreatedBy)
	}
	return q, nil
}

// List returns a page of documents, newest first, with items preloaded.
func (s *DocumentService) List(ctx context.Context, companyID uint, kind models.Kind, f DocumentFilter) ([]models.Record, int64, error) {
	q, err := s.listQuery(ctx, companyID, kind, f)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page := max(f.Page, 1)
	q = q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("issue_date DESC").Order("id DESC").
		Offset((page - 1) * PageSize).Limit(PageSize)
	out, err := findRecords(q, kind)
	return out, total, err
}

// Recent returns the latest n documents of a kind, limited to one creator
// when createdBy is set.
func (s *DocumentService) Recent(ctx context.Context, companyID uint, kind models.Kind, createdBy uint, n int) ([]models.Record, error) {
	q, err := s.listQuery(ctx, companyID, kind, DocumentFilter{CreatedBy: createdBy})
	if err != nil {
		return nil, err
	}
	q = q.Preload("Items").Order("created_at DESC").Order("id DESC").Limit(n)
	return findRecords(q, kind)
}

func findRecords(q *gorm.DB, kind models.Kind) ([]models.Record, error) {
	switch kind {
	case models.KindInvoice:
		return findAs[models.Invoice](q)
	case models.KindQuote:
		return findAs[models.Quote](q)
	case models.KindReceipt:
		return findAs[models.Receipt](q)
	}
	return nil, fmt.Errorf("unknown document kind %q", kind)
}

func findAs[T any, PT interface {
	*T
	models.Record
}](q *gorm.DB) ([]models.Record, error) {
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Record, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}

// Delete soft-deletes the document. Its number stays reserved.
func (s *DocumentService) Delete(ctx context.Context, actor Actor, rec models.Record) error {
	d := rec.Doc()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Delete(rec).Error; err != nil {
			return fmt.Errorf("delete %s: %w", rec.Kind(), err)
		}
		if err := s.audit.Record(ctx, tx, actor, AuditEntry{
			Action: EntityAction(string(rec.Kind()), "deleted"), EntityType: string(rec.Kind()), EntityID: d.ID,
			Details: fmt.Sprintf("%s %s deleted", rec.Kind(), d.Number),
		}); err != nil {
			return err
		}
		if r, ok := rec.(*models.Receipt); ok {
			return recomputeLinked(ctx, tx, d.CompanyID, r.InvoiceID)
		}
		return nil
	})
}

// ChangeStatus moves a document along the allowed transitions.
func (s *DocumentService) ChangeStatus(ctx context.Context, actor Actor, rec models.Record, to models.Status) error {
	d := rec.Doc()
	from := d.Status
	if !rec.Kind().CanTransition(from, to) {
		return fmt.Errorf("%s %s: %s -> %s: %w", rec.Kind(), d.Number, from, to, ErrInvalidTransition)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(rec).Where("status = ?", from).Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%s %s changed concurrently: %w", rec.Kind(), d.Number, ErrInvalidTransition)
		}
		d.Status = to
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Action: ActionStatusChanged, EntityType: string(rec.Kind()), EntityID: d.ID,
			Details: fmt.Sprintf("%s %s: %s -> %s", rec.Kind(), d.Number, from, to),
		})
	})
}

// PayableInvoices lists the invoices a receipt may settle, optionally for one client.
func (s *DocumentService) PayableInvoices(ctx context.Context, companyID uint, clientID uint) ([]models.Invoice, error) {
	q := s.db.WithContext(ctx).Where("company_id = ? AND status IN ?", companyID,
		[]models.Status{models.StatusSent, models.StatusViewed, models.StatusPartiallyPaid, models.StatusOverdue})
	if clientID != 0 {
		q = q.Where("client_id = ?", clientID)
	}
	var out []models.Invoice
	err := q.Order("issue_date DESC").Find(&out).Error
	return out, err
}
