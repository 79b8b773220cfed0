package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/validation"
)

// CompanyInput is the editable part of a company. Blank branding and
// numbering fields fall back to the defaults.
type CompanyInput struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registration_number"`
	TaxNumber          string `json:"tax_number"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	Website            string `json:"website"`
	AddressLine1       string `json:"address_line1"`
	AddressLine2       string `json:"address_line2"`
	City               string `json:"city"`
	State              string `json:"state"`
	PostalCode         string `json:"postal_code"`
	Country            string `json:"country"`
	LogoURL            string `json:"logo_url"`
	PrimaryColor       string `json:"primary_color"`
	SecondaryColor     string `json:"secondary_color"`
	AccentColor        string `json:"accent_color"`
	FontFamily         string `json:"font_family"`
	InvoicePrefix      string `json:"invoice_prefix"`
	QuotePrefix        string `json:"quote_prefix"`
	ReceiptPrefix      string `json:"receipt_prefix"`
	Currency           string `json:"currency"`

	DefaultTaxRate      decimal.Decimal `json:"default_tax_rate"`
	DefaultDiscountRate decimal.Decimal `json:"default_discount_rate"`
	DefaultPaymentTerms int             `json:"default_payment_terms"`
}

// CompanyInputFrom prefills a form from a stored company.
func CompanyInputFrom(c *models.Company) CompanyInput {
	return CompanyInput{
		Name: c.Name, RegistrationNumber: c.RegistrationNumber, TaxNumber: c.TaxNumber,
		Email: c.Email, Phone: c.Phone, Website: c.Website,
		AddressLine1: c.AddressLine1, AddressLine2: c.AddressLine2, City: c.City,
		State: c.State, PostalCode: c.PostalCode, Country: c.Country,
		LogoURL: c.LogoURL, PrimaryColor: c.PrimaryColor, SecondaryColor: c.SecondaryColor,
		AccentColor: c.AccentColor, FontFamily: c.FontFamily,
		InvoicePrefix: c.InvoicePrefix, QuotePrefix: c.QuotePrefix, ReceiptPrefix: c.ReceiptPrefix,
		Currency: c.Currency, DefaultTaxRate: c.DefaultTaxRate,
		DefaultDiscountRate: c.DefaultDiscountRate, DefaultPaymentTerms: c.DefaultPaymentTerms,
	}
}

func (in CompanyInput) apply(c *models.Company) validation.Violations {
	trim := strings.TrimSpace
	c.Name = trim(in.Name)
	c.RegistrationNumber = trim(in.RegistrationNumber)
	c.TaxNumber = trim(in.TaxNumber)
	c.Email = strings.ToLower(trim(in.Email))
	c.Phone = trim(in.Phone)
	c.Website = trim(in.Website)
	c.AddressLine1 = trim(in.AddressLine1)
	c.AddressLine2 = trim(in.AddressLine2)
	c.City = trim(in.City)
	c.State = trim(in.State)
	c.PostalCode = trim(in.PostalCode)
	c.Country = trim(in.Country)
	c.LogoURL = trim(in.LogoURL)
	c.PrimaryColor = trim(in.PrimaryColor)
	c.SecondaryColor = trim(in.SecondaryColor)
	c.AccentColor = trim(in.AccentColor)
	c.FontFamily = trim(in.FontFamily)
	c.InvoicePrefix = trim(in.InvoicePrefix)
	c.QuotePrefix = trim(in.QuotePrefix)
	c.ReceiptPrefix = trim(in.ReceiptPrefix)
	c.Currency = trim(in.Currency)
	c.DefaultTaxRate = in.DefaultTaxRate
	c.DefaultDiscountRate = in.DefaultDiscountRate
	c.DefaultPaymentTerms = in.DefaultPaymentTerms
	c.ApplyDefaults()

	v := validation.Struct(c)
	validation.PercentDecimal("default_tax_rate", c.DefaultTaxRate, v)
	validation.PercentDecimal("default_discount_rate", c.DefaultDiscountRate, v)
	return v
}

type CompanyService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewCompanyService(db *gorm.DB, audit *AuditService) *CompanyService {
	return &CompanyService{db: db, audit: audit}
}

func (s *CompanyService) Get(ctx context.Context, id uint) (*models.Company, error) {
	var c models.Company
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCompany
		}
		return nil, err
	}
	return &c, nil
}

// Setup creates the company of a user that has none and makes them its owner.
func (s *CompanyService) Setup(ctx context.Context, userID uint, ip string, in CompanyInput) (*models.Company, error) {
	var company models.Company
	if err := invalid(in.apply(&company)); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return notFound(err)
		}
		if user.CompanyID != nil {
			return ErrAlreadyConfigured
		}
		owner, err := db.ProfileByName(tx, models.RoleOwner)
		if err != nil {
			return err
		}
		company.OwnerID = &user.ID
		if err := tx.Create(&company).Error; err != nil {
			return fmt.Errorf("create company: %w", err)
		}
		if err := tx.Model(&user).Updates(map[string]any{"company_id": company.ID, "profile_id": owner.ID}).Error; err != nil {
			return fmt.Errorf("assign owner: %w", err)
		}
		actor := Actor{UserID: user.ID, CompanyID: company.ID, Role: models.RoleOwner, IP: ip}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Action: ActionCompanyCreated, EntityType: "company", EntityID: company.ID,
			Details: fmt.Sprintf("Company %q created", company.Name),
		})
	})
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// Update rewrites the company settings. Numbering prefixes only affect
// documents created afterwards.
func (s *CompanyService) Update(ctx context.Context, actor Actor, c *models.Company, in CompanyInput) error {
	next := *c
	if err := invalid(in.apply(&next)); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&next).Error; err != nil {
			return fmt.Errorf("update company: %w", err)
		}
		*c = next
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Action: ActionCompanyUpdated, EntityType: "company", EntityID: c.ID,
			Details: fmt.Sprintf("Company %q updated", c.Name),
		})
	})
}
