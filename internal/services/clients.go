package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/validation"
)

const PageSize = 20

// ClientInput is the editable part of a client.
type ClientInput struct {
	Name         string           `json:"name" validate:"required,max=255"`
	Email        string           `json:"email" validate:"omitempty,email,max=255"`
	Phone        string           `json:"phone" validate:"max=50"`
	CompanyName  string           `json:"company_name" validate:"max=255"`
	AddressLine1 string           `json:"address_line1" validate:"max=255"`
	AddressLine2 string           `json:"address_line2" validate:"max=255"`
	City         string           `json:"city" validate:"max=100"`
	State        string           `json:"state" validate:"max=100"`
	PostalCode   string           `json:"postal_code" validate:"max=20"`
	Country      string           `json:"country" validate:"max=100"`
	TaxNumber    string           `json:"tax_number" validate:"max=100"`
	Notes        string           `json:"notes"`
	Currency     string           `json:"currency" validate:"omitempty,len=3,alpha"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
}

func (in *ClientInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
}

func (in *ClientInput) validate() validation.Violations {
	v := validation.Struct(in)
	if in.TaxRate != nil {
		validation.PercentDecimal("tax_rate", *in.TaxRate, v)
	}
	return v
}

func (in *ClientInput) apply(c *models.Client) {
	c.Name = in.Name
	c.Email = in.Email
	c.Phone = in.Phone
	c.CompanyName = in.CompanyName
	c.AddressLine1 = in.AddressLine1
	c.AddressLine2 = in.AddressLine2
	c.City = in.City
	c.State = in.State
	c.PostalCode = in.PostalCode
	c.Country = in.Country
	c.TaxNumber = in.TaxNumber
	c.Notes = in.Notes
	c.Currency = in.Currency
	c.TaxRate = decimal.NullDecimal{}
	if in.TaxRate != nil {
		c.TaxRate = decimal.NewNullDecimal(*in.TaxRate)
	}
}

type ClientFilter struct {
	Query string
	// CreatedBy restricts to one creator when non-zero.
	CreatedBy uint
	Page      int
}

type ClientService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewClientService(db *gorm.DB, audit *AuditService) *ClientService {
	return &ClientService{db: db, audit: audit}
}

func (s *ClientService) List(ctx context.Context, companyID uint, f ClientFilter) ([]models.Client, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Client{}).Where("company_id = ?", companyID)
	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company_name) LIKE ?", like, like, like)
	}
	if f.CreatedBy != 0 {
		q = q.Where("created_by_id = ?", f.CreatedBy)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page := max(f.Page, 1)
	var out []models.Client
	err := q.Order("name ASC").Offset((page - 1) * PageSize).Limit(PageSize).Find(&out).Error
	return out, total, err
}

// All returns every client of the company ordered by name, for selects and the API.
func (s *ClientService) All(ctx context.Context, companyID uint) ([]models.Client, error) {
	var out []models.Client
	err := s.db.WithContext(ctx).Where("company_id = ?", companyID).Order("name ASC").Find(&out).Error
	return out, err
}

// Get loads a client of the company; other tenants' clients are ErrNotFound.
func (s *ClientService) Get(ctx context.Context, companyID, id uint) (*models.Client, error) {
	var c models.Client
	if err := s.db.WithContext(ctx).Where("company_id = ?", companyID).First(&c, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindDuplicate looks up an existing client by email, then phone, then
// (name, company_name), all within the company.
func (s *ClientService) FindDuplicate(ctx context.Context, tx *gorm.DB, companyID uint, in ClientInput) (*models.Client, error) {
	if tx == nil {
		tx = s.db
	}
	in.normalize()
	lookups := []struct {
		ok    bool
		query string
		args  []any
	}{
		{in.Email != "", "LOWER(email) = ?", []any{in.Email}},
		{in.Phone != "", "phone = ?", []any{in.Phone}},
		{in.Name != "", "LOWER(name) = ? AND LOWER(company_name) = ?", []any{strings.ToLower(in.Name), strings.ToLower(in.CompanyName)}},
	}
	for _, l := range lookups {
		if !l.ok {
			continue
		}
		var c models.Client
		err := tx.WithContext(ctx).Where("company_id = ?", companyID).Where(l.query, l.args...).Order("id ASC").First(&c).Error
		if err == nil {
			return &c, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func (s *ClientService) emailTaken(tx *gorm.DB, companyID uint, email string, exceptID uint) (bool, error) {
	if email == "" {
		return false, nil
	}
	var n int64
	q := tx.Model(&models.Client{}).Where("company_id = ? AND LOWER(email) = ?", companyID, email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (s *ClientService) Create(ctx context.Context, actor Actor, in ClientInput) (*models.Client, error) {
	in.normalize()
	if err := invalid(in.validate()); err != nil {
		return nil, err
	}
	c := &models.Client{CompanyID: actor.CompanyID, CreatedByID: actor.UserID}
	in.apply(c)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.emailTaken(tx, actor.CompanyID, in.Email, 0)
		if err != nil {
			return err
		}
		if taken {
			return invalidField("email", "email_taken")
		}
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("create client: %w", err)
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Action: EntityAction("client", "created"), EntityType: "client", EntityID: c.ID,
			Details: fmt.Sprintf("Client %q created", c.Name),
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindOrCreate returns the duplicate of in when one exists, else creates it.
func (s *ClientService) FindOrCreate(ctx context.Context, tx *gorm.DB, actor Actor, in ClientInput) (*models.Client, error) {
	existing, err := s.FindDuplicate(ctx, tx, actor.CompanyID, in)
	if err != nil || existing != nil {
		return existing, err
	}
	in.normalize()
	if err := invalid(in.validate()); err != nil {
		return nil, err
	}
	c := &models.Client{CompanyID: actor.CompanyID, CreatedByID: actor.UserID}
	in.apply(c)
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, s.audit.Record(ctx, tx, actor, AuditEntry{
		Action: EntityAction("client", "created"), EntityType: "client", EntityID: c.ID,
		Details: fmt.Sprintf("Client %q created from document", c.Name),
	})
}

func (s *ClientService) Update(ctx context.Context, actor Actor, c *models.Client, in ClientInput) error {
	in.normalize()
	if err := invalid(in.validate()); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.emailTaken(tx, c.CompanyID, in.Email, c.ID)
		if err != nil {
			return err
		}
		if taken {
			return invalidField("email", "email_taken")
		}
		in.apply(c)
		if err := tx.Save(c).Error; err != nil {
			return fmt.Errorf("update client: %w", err)
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Action: EntityAction("client", "updated"), EntityType: "client", EntityID: c.ID,
			Details: fmt.Sprintf("Client %q updated", c.Name),
		})
	})
}

// Delete soft-deletes the client. Documents keep their copied client details.
func (s *ClientService) Delete(ctx context.Context, actor Actor, c *models.Client) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(c).Error; err != nil {
			return fmt.Errorf("delete client: %w", err)
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Action: EntityAction("client", "deleted"), EntityType: "client", EntityID: c.ID,
			Details: fmt.Sprintf("Client %q deleted", c.Name),
		})
	})
}
