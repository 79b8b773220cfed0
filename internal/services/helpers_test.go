package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/dbtest"
	"github.com/diewo77/go-billing/internal/models"
)

type env struct {
	db       *gorm.DB
	company  *models.Company
	owner    Actor
	user     Actor
	now      time.Time
	audit    *AuditService
	clients  *ClientService
	docs     *DocumentService
	snapshot *SnapshotService
}

func (e *env) clock() time.Time { return e.now }

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := dbtest.Open(t)
	company := dbtest.Company(t, gdb, "Acme Studio", "8.25")
	owner := dbtest.User(t, gdb, company, "owner@example.com", models.RoleOwner)
	user := dbtest.User(t, gdb, company, "user@example.com", models.RoleUser)

	e := &env{
		db:      gdb,
		company: company,
		owner:   Actor{UserID: owner.ID, CompanyID: company.ID, Role: models.RoleOwner, IP: "127.0.0.1"},
		user:    Actor{UserID: user.ID, CompanyID: company.ID, Role: models.RoleUser, IP: "127.0.0.1"},
		now:     time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
	}
	e.audit = NewAuditService(gdb)
	e.clients = NewClientService(gdb, e.audit)
	e.docs = NewDocumentService(gdb, NewNumberer(e.clock), e.clients, e.audit, e.clock)
	e.snapshot = NewSnapshotService(gdb, e.audit, e.clock)
	return e
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func designItems() []LineItemInput {
	return []LineItemInput{{Description: "Design work", Quantity: dec("2"), UnitPrice: dec("100"), Discount: dec("10")}}
}

func (e *env) create(t *testing.T, actor Actor, kind models.Kind, in DocumentInput) models.Record {
	t.Helper()
	if in.Client == nil && in.ClientID == nil {
		in.Client = &ClientInput{Name: "Jane Buyer", Email: "jane@example.com"}
	}
	if in.Items == nil {
		in.Items = designItems()
	}
	rec, err := e.docs.Create(context.Background(), actor, kind, in)
	require.NoError(t, err)
	return rec
}
