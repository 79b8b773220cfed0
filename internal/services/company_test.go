package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-billing/internal/dbtest"
	"github.com/diewo77/go-billing/internal/models"
)

func TestCompanyService_Setup(t *testing.T) {
	gdb := dbtest.Open(t)
	ctx := context.Background()
	u := dbtest.User(t, gdb, nil, "new@example.com", models.RoleUser)
	svc := NewCompanyService(gdb, NewAuditService(gdb))

	_, err := svc.Setup(ctx, u.ID, "10.0.0.1", CompanyInput{Name: "", PrimaryColor: "red"})
	v := ViolationsOf(err)
	assert.Equal(t, "required", v["name"])
	assert.Equal(t, "invalid_color", v["primary_color"])

	c, err := svc.Setup(ctx, u.ID, "10.0.0.1", CompanyInput{Name: "Fresh Co", InvoicePrefix: "fac-", Currency: "eur"})
	require.NoError(t, err)
	assert.Equal(t, "fac", c.InvoicePrefix)
	assert.Equal(t, "EUR", c.Currency)
	assert.Equal(t, models.DefaultPrimaryColor, c.PrimaryColor)
	require.NotNil(t, c.OwnerID)
	assert.Equal(t, u.ID, *c.OwnerID)

	var reloaded models.User
	require.NoError(t, gdb.Preload("Profile").First(&reloaded, u.ID).Error)
	assert.Equal(t, c.ID, reloaded.CompanyIDValue())
	assert.Equal(t, models.RoleOwner, reloaded.Role())

	var entry models.AuditLog
	require.NoError(t, gdb.Where("action = ?", ActionCompanyCreated).First(&entry).Error)
	assert.Equal(t, c.ID, entry.CompanyID)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)

	_, err = svc.Setup(ctx, u.ID, "", CompanyInput{Name: "Again"})
	assert.ErrorIs(t, err, ErrAlreadyConfigured)
}

func TestCompanyService_Update(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewCompanyService(e.db, e.audit)

	in := CompanyInputFrom(e.company)
	in.QuotePrefix = "EST"
	in.DefaultTaxRate = dec("150")
	err := svc.Update(ctx, e.owner, e.company, in)
	assert.Equal(t, "out_of_range", ViolationsOf(err)["default_tax_rate"])
	assert.Equal(t, "QUO", e.company.QuotePrefix, "failed updates leave the company untouched")

	in.DefaultTaxRate = dec("5")
	require.NoError(t, svc.Update(ctx, e.owner, e.company, in))
	rec := e.create(t, e.owner, models.KindQuote, DocumentInput{})
	assert.Equal(t, "EST-2025-0001", rec.Doc().Number)
	assert.True(t, rec.Doc().TaxRate.Equal(dec("5")))

	got, err := svc.Get(ctx, e.company.ID)
	require.NoError(t, err)
	assert.Equal(t, "EST", got.QuotePrefix)
	_, err = svc.Get(ctx, e.company.ID+10)
	assert.ErrorIs(t, err, ErrNoCompany)
}
