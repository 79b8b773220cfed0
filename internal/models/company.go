package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultPrimaryColor   = "#6B46C1"
	DefaultSecondaryColor = "#1F2937"
	DefaultAccentColor    = "#8B5CF6"
	DefaultFontFamily     = "Inter, system-ui, sans-serif"
	DefaultCurrency       = "USD"
	DefaultPaymentTerms   = 30
)

// Company is the tenant. Every client, document, PDF log and audit entry
// belongs to exactly one company.
type Company struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name               string `gorm:"size:255;not null" json:"name" validate:"required,max=255"`
	RegistrationNumber string `gorm:"size:100" json:"registration_number,omitempty"`
	TaxNumber          string `gorm:"size:100" json:"tax_number,omitempty"`
	Email              string `gorm:"size:255" json:"email,omitempty" validate:"omitempty,email"`
	Phone              string `gorm:"size:50" json:"phone,omitempty"`
	Website            string `gorm:"size:255" json:"website,omitempty" validate:"omitempty,url"`

	AddressLine1 string `gorm:"size:255" json:"address_line1,omitempty"`
	AddressLine2 string `gorm:"size:255" json:"address_line2,omitempty"`
	City         string `gorm:"size:100" json:"city,omitempty"`
	State        string `gorm:"size:100" json:"state,omitempty"`
	PostalCode   string `gorm:"size:20" json:"postal_code,omitempty"`
	Country      string `gorm:"size:100" json:"country,omitempty"`

	LogoURL        string `gorm:"size:500" json:"logo_url,omitempty" validate:"omitempty,url"`
	PrimaryColor   string `gorm:"size:7;default:'#6B46C1'" json:"primary_color" validate:"hexcolor6"`
	SecondaryColor string `gorm:"size:7;default:'#1F2937'" json:"secondary_color" validate:"hexcolor6"`
	AccentColor    string `gorm:"size:7;default:'#8B5CF6'" json:"accent_color" validate:"hexcolor6"`
	FontFamily     string `gorm:"size:100" json:"font_family"`

	InvoicePrefix string `gorm:"size:10;default:'INV'" json:"invoice_prefix" validate:"docprefix"`
	QuotePrefix   string `gorm:"size:10;default:'QUO'" json:"quote_prefix" validate:"docprefix"`
	ReceiptPrefix string `gorm:"size:10;default:'REC'" json:"receipt_prefix" validate:"docprefix"`

	Currency            string          `gorm:"size:3;default:'USD'" json:"currency" validate:"len=3,alpha"`
	DefaultTaxRate      decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"default_tax_rate"`
	DefaultDiscountRate decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"default_discount_rate"`
	DefaultPaymentTerms int             `gorm:"default:30" json:"default_payment_terms" validate:"gte=0,lte=365"`

	OwnerID *uint `gorm:"index" json:"owner_id,omitempty"`
}

// ApplyDefaults fills blank branding, numbering and money settings.
func (c *Company) ApplyDefaults() {
	if c.PrimaryColor == "" {
		c.PrimaryColor = DefaultPrimaryColor
	}
	if c.SecondaryColor == "" {
		c.SecondaryColor = DefaultSecondaryColor
	}
	if c.AccentColor == "" {
		c.AccentColor = DefaultAccentColor
	}
	if c.FontFamily == "" {
		c.FontFamily = DefaultFontFamily
	}
	if c.InvoicePrefix == "" {
		c.InvoicePrefix = KindInvoice.DefaultPrefix()
	}
	if c.QuotePrefix == "" {
		c.QuotePrefix = KindQuote.DefaultPrefix()
	}
	if c.ReceiptPrefix == "" {
		c.ReceiptPrefix = KindReceipt.DefaultPrefix()
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	c.Currency = strings.ToUpper(c.Currency)
	if c.DefaultPaymentTerms == 0 {
		c.DefaultPaymentTerms = DefaultPaymentTerms
	}
}

// BeforeSave strips the trailing "-" users tend to type into prefixes.
func (c *Company) BeforeSave(*gorm.DB) error {
	c.InvoicePrefix = strings.TrimRight(strings.TrimSpace(c.InvoicePrefix), "-")
	c.QuotePrefix = strings.TrimRight(strings.TrimSpace(c.QuotePrefix), "-")
	c.ReceiptPrefix = strings.TrimRight(strings.TrimSpace(c.ReceiptPrefix), "-")
	return nil
}

// Prefix returns the numbering prefix for kind, falling back to the default.
func (c *Company) Prefix(kind Kind) string {
	var p string
	switch kind {
	case KindInvoice:
		p = c.InvoicePrefix
	case KindQuote:
		p = c.QuotePrefix
	case KindReceipt:
		p = c.ReceiptPrefix
	}
	p = strings.TrimRight(strings.TrimSpace(p), "-")
	if p == "" {
		return kind.DefaultPrefix()
	}
	return p
}

// FullAddress joins the non-empty address lines.
func (c *Company) FullAddress() string {
	return joinAddress(c.AddressLine1, c.AddressLine2, c.City, c.State, c.PostalCode, c.Country)
}

func joinAddress(line1, line2, city, state, postal, country string) string {
	var lines []string
	for _, l := range []string{line1, line2} {
		if l != "" {
			lines = append(lines, l)
		}
	}
	locality := strings.TrimSpace(strings.Join(nonEmpty(postal, city, state), " "))
	if locality != "" {
		lines = append(lines, locality)
	}
	if country != "" {
		lines = append(lines, country)
	}
	return strings.Join(lines, "\n")
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
