package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Client is a customer of a company. Documents copy its contact details at
// creation time, so editing a client never rewrites issued documents.
type Client struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	CompanyID   uint           `gorm:"not null;index:idx_clients_company_email" json:"company_id"`
	CreatedByID uint           `gorm:"index" json:"created_by_id"`

	Name         string `gorm:"size:255;not null;index" json:"name" validate:"required,max=255"`
	Email        string `gorm:"size:255;index:idx_clients_company_email" json:"email,omitempty" validate:"omitempty,email"`
	Phone        string `gorm:"size:50;index" json:"phone,omitempty" validate:"max=50"`
	CompanyName  string `gorm:"size:255" json:"company_name,omitempty" validate:"max=255"`
	AddressLine1 string `gorm:"size:255" json:"address_line1,omitempty"`
	AddressLine2 string `gorm:"size:255" json:"address_line2,omitempty"`
	City         string `gorm:"size:100" json:"city,omitempty"`
	State        string `gorm:"size:100" json:"state,omitempty"`
	PostalCode   string `gorm:"size:20" json:"postal_code,omitempty"`
	Country      string `gorm:"size:100" json:"country,omitempty"`
	TaxNumber    string `gorm:"size:100" json:"tax_number,omitempty"`
	Notes        string `gorm:"type:text" json:"notes,omitempty"`

	// Optional per-client defaults applied to new documents.
	Currency string              `gorm:"size:3" json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	TaxRate  decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"tax_rate,omitempty"`
}

func (c *Client) FullAddress() string {
	return joinAddress(c.AddressLine1, c.AddressLine2, c.City, c.State, c.PostalCode, c.Country)
}

// DisplayName prefers "Name (Company)" when a company name is set.
func (c *Client) DisplayName() string {
	if c.CompanyName != "" && c.CompanyName != c.Name {
		return c.Name + " (" + c.CompanyName + ")"
	}
	return c.Name
}
