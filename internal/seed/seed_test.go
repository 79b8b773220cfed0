package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-billing/internal/dbtest"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/services"
)

func newSeeder(t *testing.T) (*Seeder, *services.UserService) {
	t.Helper()
	gdb := dbtest.Open(t)
	audit := services.NewAuditService(gdb)
	users := services.NewUserService(gdb, audit)
	clients := services.NewClientService(gdb, audit)
	docs := services.NewDocumentService(gdb, services.NewNumberer(time.Now), clients, audit, time.Now)
	return New(gdb, users, services.NewCompanyService(gdb, audit), clients, docs), users
}

func TestRun(t *testing.T) {
	s, users := newSeeder(t)
	ctx := context.Background()

	res, err := s.Run(ctx, Options{Companies: 2, ClientsPerCompany: 2, DocumentsPerClient: 2, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, &Result{Companies: 2, Clients: 4, Invoices: 8, Quotes: 8, Receipts: 4}, res)

	owner, err := users.Authenticate(ctx, OwnerEmail(2), Password)
	require.NoError(t, err)
	member, err := users.Member(ctx, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, member.CompanyID)
	assert.Equal(t, models.RoleOwner, member.Role())

	var invoices []models.Invoice
	require.NoError(t, s.db.Where("company_id = ?", *member.CompanyID).Order("id").Find(&invoices).Error)
	require.Len(t, invoices, 4)
	paid := 0
	for _, inv := range invoices {
		assert.True(t, inv.TaxRate.Equal(demoTaxRate), inv.Number)
		assert.Equal(t, "USD", inv.Currency)
		if inv.Status == models.StatusPaid {
			paid++
		} else {
			assert.Equal(t, models.StatusSent, inv.Status)
		}
	}
	assert.Equal(t, 2, paid)

	var quotes int64
	require.NoError(t, s.db.Model(&models.Quote{}).Where("status = ?", models.StatusSent).Count(&quotes).Error)
	assert.EqualValues(t, 8, quotes)
}

func TestRunTwiceSkipsExisting(t *testing.T) {
	s, _ := newSeeder(t)
	ctx := context.Background()
	opts := Options{Companies: 1, ClientsPerCompany: 1, DocumentsPerClient: 1}

	_, err := s.Run(ctx, opts)
	require.NoError(t, err)
	res, err := s.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, &Result{Skipped: 1}, res)

	var companies int64
	require.NoError(t, s.db.Model(&models.Company{}).Count(&companies).Error)
	assert.EqualValues(t, 1, companies)
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, Options{Companies: 3, ClientsPerCompany: 5, DocumentsPerClient: 3}.Validate())
	assert.ErrorIs(t, Options{}.Validate(), ErrNothingToSeed)
	assert.Error(t, Options{Companies: 1, ClientsPerCompany: -1}.Validate())
}
