package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Invoice struct {
	Document
	DueDate      time.Time  `gorm:"not null" json:"due_date"`
	PaymentTerms int        `gorm:"default:30" json:"payment_terms"`
	Items        []LineItem `gorm:"polymorphic:Document;polymorphicValue:invoice" json:"items,omitempty"`
}

func (*Invoice) Kind() Kind                  { return KindInvoice }
func (i *Invoice) Doc() *Document            { return &i.Document }
func (i *Invoice) LineItems() []LineItem     { return i.Items }
func (i *Invoice) SetLineItems(l []LineItem) { i.Items = l }

// IsOverdue reports an unpaid sent invoice past its due date.
func (i *Invoice) IsOverdue(now time.Time) bool {
	if i.Status != StatusSent && i.Status != StatusViewed && i.Status != StatusOverdue {
		return false
	}
	return i.DueDate.Before(truncateDay(now))
}

type Quote struct {
	Document
	ValidUntil time.Time  `gorm:"not null" json:"valid_until"`
	Items      []LineItem `gorm:"polymorphic:Document;polymorphicValue:quote" json:"items,omitempty"`
}

func (*Quote) Kind() Kind                  { return KindQuote }
func (q *Quote) Doc() *Document            { return &q.Document }
func (q *Quote) LineItems() []LineItem     { return q.Items }
func (q *Quote) SetLineItems(l []LineItem) { q.Items = l }

// Payment methods accepted on receipts.
const (
	PaymentCash         = "cash"
	PaymentBankTransfer = "bank_transfer"
	PaymentCard         = "card"
	PaymentCheck        = "check"
	PaymentOther        = "other"
)

var PaymentMethods = []string{PaymentCash, PaymentBankTransfer, PaymentCard, PaymentCheck, PaymentOther}

type Receipt struct {
	Document
	InvoiceID       *uint           `gorm:"index" json:"invoice_id,omitempty"`
	AmountPaid      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_paid"`
	PaymentMethod   string          `gorm:"size:20;not null;default:'cash'" json:"payment_method"`
	ReferenceNumber string          `gorm:"size:100" json:"reference_number,omitempty"`
	Items           []LineItem      `gorm:"polymorphic:Document;polymorphicValue:receipt" json:"items,omitempty"`
}

func (*Receipt) Kind() Kind                  { return KindReceipt }
func (r *Receipt) Doc() *Document            { return &r.Document }
func (r *Receipt) LineItems() []LineItem     { return r.Items }
func (r *Receipt) SetLineItems(l []LineItem) { r.Items = l }

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
