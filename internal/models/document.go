package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Kind identifies a document table: invoice, quote or receipt.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindQuote   Kind = "quote"
	KindReceipt Kind = "receipt"
)

var Kinds = []Kind{KindInvoice, KindQuote, KindReceipt}

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindInvoice, KindQuote, KindReceipt:
		return Kind(s), true
	}
	return "", false
}

func (k Kind) DefaultPrefix() string {
	switch k {
	case KindInvoice:
		return "INV"
	case KindQuote:
		return "QUO"
	case KindReceipt:
		return "REC"
	}
	return "DOC"
}

// Plural is the route segment, e.g. "invoices".
func (k Kind) Plural() string { return string(k) + "s" }

type Status string

const (
	StatusDraft         Status = "draft"
	StatusSent          Status = "sent"
	StatusViewed        Status = "viewed"
	StatusPaid          Status = "paid"
	StatusPartiallyPaid Status = "partially_paid"
	StatusOverdue       Status = "overdue"
	StatusCancelled     Status = "cancelled"
	StatusAccepted      Status = "accepted"
	StatusDeclined      Status = "declined"
)

var transitions = map[Status][]Status{
	StatusDraft:         {StatusSent, StatusCancelled},
	StatusSent:          {StatusViewed, StatusPaid, StatusPartiallyPaid, StatusOverdue, StatusCancelled},
	StatusViewed:        {StatusPaid, StatusPartiallyPaid, StatusOverdue, StatusCancelled},
	StatusPartiallyPaid: {StatusPaid, StatusOverdue},
	StatusOverdue:       {StatusPaid, StatusPartiallyPaid, StatusCancelled},
}

var quoteTransitions = map[Status][]Status{
	StatusDraft:  {StatusSent, StatusCancelled},
	StatusSent:   {StatusViewed, StatusAccepted, StatusDeclined, StatusCancelled},
	StatusViewed: {StatusAccepted, StatusDeclined, StatusCancelled},
}

// Statuses lists the statuses a kind may carry.
func (k Kind) Statuses() []Status {
	if k == KindQuote {
		return []Status{StatusDraft, StatusSent, StatusViewed, StatusAccepted, StatusDeclined, StatusCancelled}
	}
	return []Status{StatusDraft, StatusSent, StatusViewed, StatusPaid, StatusPartiallyPaid, StatusOverdue, StatusCancelled}
}

// CanTransition reports whether kind allows from -> to.
func (k Kind) CanTransition(from, to Status) bool {
	table := transitions
	if k == KindQuote {
		table = quoteTransitions
	}
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Payable statuses accept receipts.
func (s Status) Payable() bool {
	switch s {
	case StatusSent, StatusViewed, StatusPartiallyPaid, StatusOverdue:
		return true
	}
	return false
}

// Restricted statuses may only be edited by owners and admins.
func (s Status) Restricted() bool {
	return s == StatusSent || s == StatusPaid || s == StatusPartiallyPaid
}

// Settled statuses can never be deleted.
func (s Status) Settled() bool {
	return s == StatusPaid || s == StatusPartiallyPaid
}

// Document holds the columns shared by invoices, quotes and receipts.
// Client fields are copies taken when the document is written.
type Document struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	CompanyID   uint           `gorm:"not null;index:,unique,composite:company_number" json:"company_id"`
	Number      string         `gorm:"size:50;not null;index:,unique,composite:company_number" json:"number"`
	CreatedByID uint           `gorm:"index" json:"created_by_id"`

	ClientID        *uint  `gorm:"index" json:"client_id,omitempty"`
	ClientName      string `gorm:"size:255;not null" json:"client_name"`
	ClientEmail     string `gorm:"size:255" json:"client_email,omitempty"`
	ClientPhone     string `gorm:"size:50" json:"client_phone,omitempty"`
	ClientCompany   string `gorm:"size:255" json:"client_company,omitempty"`
	ClientAddress   string `gorm:"type:text" json:"client_address,omitempty"`
	ClientTaxNumber string `gorm:"size:100" json:"client_tax_number,omitempty"`

	IssueDate    time.Time       `gorm:"not null" json:"issue_date"`
	Currency     string          `gorm:"size:3;not null" json:"currency"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	DiscountRate decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount_rate"`
	Notes        string          `gorm:"type:text" json:"notes,omitempty"`
	Status       Status          `gorm:"size:20;not null;default:'draft';index" json:"status"`

	VersionedData *Snapshot  `gorm:"type:text" json:"versioned_data,omitempty"`
	LockedAt      *time.Time `json:"locked_at,omitempty"`
}

func (d *Document) IsLocked() bool { return d.VersionedData != nil }

// CopyClient takes a snapshot of client contact details.
func (d *Document) CopyClient(c *Client) {
	id := c.ID
	d.ClientID = &id
	d.ClientName = c.Name
	d.ClientEmail = c.Email
	d.ClientPhone = c.Phone
	d.ClientCompany = c.CompanyName
	d.ClientAddress = c.FullAddress()
	d.ClientTaxNumber = c.TaxNumber
}

// Record is implemented by Invoice, Quote and Receipt.
type Record interface {
	Kind() Kind
	Doc() *Document
	LineItems() []LineItem
	SetLineItems([]LineItem)
}

// NewRecord returns an empty record of kind.
func NewRecord(kind Kind) (Record, error) {
	switch kind {
	case KindInvoice:
		return &Invoice{}, nil
	case KindQuote:
		return &Quote{}, nil
	case KindReceipt:
		return &Receipt{}, nil
	}
	return nil, fmt.Errorf("unknown document kind %q", kind)
}

// LineItem belongs to one document through (document_type, document_id).
type LineItem struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DocumentType string          `gorm:"size:20;not null;index:idx_line_items_document" json:"document_type"`
	DocumentID   uint            `gorm:"not null;index:idx_line_items_document" json:"document_id"`
	Description  string          `gorm:"size:500;not null" json:"description"`
	Quantity     decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Discount     decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount"`
	Position     int             `gorm:"default:0" json:"position"`
}

var hundred = decimal.NewFromInt(100)

// LineTotal is quantity * unit_price * (1 - discount/100), unrounded.
func (li LineItem) LineTotal() decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(li.Discount.Div(hundred))
	return li.Quantity.Mul(li.UnitPrice).Mul(factor)
}

// Snapshot is the frozen state of a document used to render its PDF.
// Money values are decimal strings.
type Snapshot struct {
	Company  SnapshotCompany  `json:"company"`
	Client   SnapshotClient   `json:"client"`
	Document SnapshotDocument `json:"document"`
	Items    []SnapshotItem   `json:"items"`
	Totals   SnapshotTotals   `json:"totals"`
	LockedAt time.Time        `json:"locked_at"`
}

type SnapshotCompany struct {
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Website        string `json:"website,omitempty"`
	Address        string `json:"address,omitempty"`
	TaxNumber      string `json:"tax_number,omitempty"`
	LogoURL        string `json:"logo_url,omitempty"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
	AccentColor    string `json:"accent_color"`
	FontFamily     string `json:"font_family"`
}

type SnapshotClient struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Company   string `json:"company,omitempty"`
	Address   string `json:"address,omitempty"`
	TaxNumber string `json:"tax_number,omitempty"`
}

type SnapshotDocument struct {
	Kind          Kind       `json:"kind"`
	Number        string     `json:"number"`
	Status        Status     `json:"status"`
	IssueDate     time.Time  `json:"issue_date"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	Currency      string     `json:"currency"`
	TaxRate       string     `json:"tax_rate"`
	DiscountRate  string     `json:"discount_rate"`
	Notes         string     `json:"notes,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Reference     string     `json:"reference_number,omitempty"`
	AmountPaid    string     `json:"amount_paid,omitempty"`
}

type SnapshotItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Discount    string `json:"discount"`
	LineTotal   string `json:"line_total"`
}

type SnapshotTotals struct {
	Subtotal      string `json:"subtotal"`
	TaxTotal      string `json:"tax_total"`
	DiscountTotal string `json:"discount_total"`
	Total         string `json:"total"`
}

func (s Snapshot) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Snapshot) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return errors.New("snapshot: unsupported column type")
}
