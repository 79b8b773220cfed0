// Package seed fills a database with demo companies for local development.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/services"
)

// Password is shared by every seeded owner.
const Password = "password123"

var demoTaxRate = decimal.RequireFromString("8.25")

type Options struct {
	Companies          int
	ClientsPerCompany  int
	DocumentsPerClient int
	// Seed makes quantities and prices reproducible.
	Seed uint64
}

// Result counts what a run created.
type Result struct {
	Companies int
	Skipped   int
	Clients   int
	Invoices  int
	Quotes    int
	Receipts  int
}

type Seeder struct {
	db        *gorm.DB
	users     *services.UserService
	companies *services.CompanyService
	clients   *services.ClientService
	docs      *services.DocumentService
}

func New(db *gorm.DB, users *services.UserService, companies *services.CompanyService,
	clients *services.ClientService, docs *services.DocumentService) *Seeder {
	return &Seeder{db: db, users: users, companies: companies, clients: clients, docs: docs}
}

// OwnerEmail is the login of the n-th seeded company, starting at 1.
func OwnerEmail(n int) string { return fmt.Sprintf("owner%d@example.com", n) }

// Run creates the demo data. Companies whose name already exists are
// skipped, so running twice adds nothing.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	log := zerolog.Ctx(ctx)
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	res := &Result{}
	for i := 1; i <= opts.Companies; i++ {
		name := fmt.Sprintf("Sample Company %d", i)
		var existing int64
		if err := s.db.WithContext(ctx).Model(&models.Company{}).Where("name = ?", name).Count(&existing).Error; err != nil {
			return res, err
		}
		if existing > 0 {
			log.Info().Str("company", name).Msg("company exists, skipping")
			res.Skipped++
			continue
		}
		actor, err := s.company(ctx, rng, i, name)
		if err != nil {
			return res, fmt.Errorf("seed %s: %w", name, err)
		}
		res.Companies++
		for j := 1; j <= opts.ClientsPerCompany; j++ {
			if err := s.client(ctx, rng, actor, i, j, opts.DocumentsPerClient, res); err != nil {
				return res, fmt.Errorf("seed %s client %d: %w", name, j, err)
			}
		}
		log.Info().Str("company", name).Str("owner", OwnerEmail(i)).Msg("company seeded")
	}
	return res, nil
}

func (s *Seeder) company(ctx context.Context, rng *rand.Rand, i int, name string) (services.Actor, error) {
	email := OwnerEmail(i)
	owner, err := s.users.Register(ctx, services.AccountInput{
		Email:    email,
		Name:     fmt.Sprintf("Owner %d", i),
		Password: Password,
	})
	if err != nil {
		return services.Actor{}, err
	}
	company, err := s.companies.Setup(ctx, owner.ID, "127.0.0.1", services.CompanyInput{
		Name:           name,
		Email:          email,
		Phone:          phone(rng),
		AddressLine1:   fmt.Sprintf("%d Main Street", 100+rng.IntN(9900)),
		City:           "Sample City",
		State:          "CA",
		PostalCode:     fmt.Sprintf("%05d", 10000+rng.IntN(90000)),
		Country:        "United States",
		PrimaryColor:   "#3B82F6",
		SecondaryColor: "#64748B",
		Currency:       "USD",
		DefaultTaxRate: demoTaxRate,
		// 30 days like the company form default
		DefaultPaymentTerms: 30,
	})
	if err != nil {
		return services.Actor{}, err
	}
	return services.Actor{UserID: owner.ID, CompanyID: company.ID, Role: models.RoleOwner, IP: "127.0.0.1"}, nil
}

func (s *Seeder) client(ctx context.Context, rng *rand.Rand, actor services.Actor, i, j, docs int, res *Result) error {
	c, err := s.clients.Create(ctx, actor, services.ClientInput{
		Name:         fmt.Sprintf("Client %d", j),
		Email:        fmt.Sprintf("client%d@company%d.example.com", j, i),
		Phone:        phone(rng),
		CompanyName:  fmt.Sprintf("Client Company %d", j),
		AddressLine1: fmt.Sprintf("%d Client Street", 100+rng.IntN(9900)),
		City:         "Sample City",
		State:        "CA",
		PostalCode:   fmt.Sprintf("%05d", 10000+rng.IntN(90000)),
	})
	if err != nil {
		return err
	}
	res.Clients++
	clientID := c.ID

	for k := 0; k < docs; k++ {
		inv, err := s.docs.Create(ctx, actor, models.KindInvoice, services.DocumentInput{
			ClientID: &clientID,
			Items:    items(rng, "Service", 1+rng.IntN(4), 1, 10, 50, 500),
		})
		if err != nil {
			return err
		}
		if err := s.docs.ChangeStatus(ctx, actor, inv, models.StatusSent); err != nil {
			return err
		}
		res.Invoices++

		quote, err := s.docs.Create(ctx, actor, models.KindQuote, services.DocumentInput{
			ClientID: &clientID,
			Items:    items(rng, "Quoted Service", 1+rng.IntN(3), 1, 5, 100, 1000),
		})
		if err != nil {
			return err
		}
		if err := s.docs.ChangeStatus(ctx, actor, quote, models.StatusSent); err != nil {
			return err
		}
		res.Quotes++

		// every other invoice gets paid
		if k%2 != 0 {
			continue
		}
		invoiceID := inv.Doc().ID
		_, err = s.docs.Create(ctx, actor, models.KindReceipt, services.DocumentInput{
			ClientID:        &clientID,
			InvoiceID:       &invoiceID,
			Items:           itemInputs(inv.LineItems()),
			PaymentMethod:   models.PaymentMethods[rng.IntN(len(models.PaymentMethods))],
			ReferenceNumber: fmt.Sprintf("REF-%06d", rng.IntN(1000000)),
		})
		if err != nil {
			return err
		}
		res.Receipts++
	}
	return nil
}

func items(rng *rand.Rand, label string, n, minQty, maxQty, minPrice, maxPrice int) []services.LineItemInput {
	out := make([]services.LineItemInput, n)
	for l := range out {
		out[l] = services.LineItemInput{
			Description: fmt.Sprintf("%s %d", label, l+1),
			Quantity:    decimal.NewFromInt(int64(minQty + rng.IntN(maxQty-minQty+1))),
			UnitPrice:   decimal.NewFromInt(int64(minPrice + rng.IntN(maxPrice-minPrice+1))),
		}
	}
	return out
}

func itemInputs(lines []models.LineItem) []services.LineItemInput {
	out := make([]services.LineItemInput, len(lines))
	for i, l := range lines {
		out[i] = services.LineItemInput{Description: l.Description, Quantity: l.Quantity, UnitPrice: l.UnitPrice, Discount: l.Discount}
	}
	return out
}

func phone(rng *rand.Rand) string {
	return fmt.Sprintf("+1 (555) %03d-%04d", 100+rng.IntN(900), 1000+rng.IntN(9000))
}

// ErrNothingToSeed is returned when every option is zero.
var ErrNothingToSeed = errors.New("nothing to seed")

// Validate rejects negative counts and empty runs.
func (o Options) Validate() error {
	if o.Companies < 0 || o.ClientsPerCompany < 0 || o.DocumentsPerClient < 0 {
		return errors.New("seed counts must not be negative")
	}
	if o.Companies == 0 {
		return ErrNothingToSeed
	}
	return nil
}
