package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-billing/internal/models"
)

func TestSnapshotService_LockIsImmutable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rec := e.create(t, e.owner, models.KindInvoice, DocumentInput{})

	snap, err := e.snapshot.Lock(ctx, e.owner, e.company, rec)
	require.NoError(t, err)
	assert.Equal(t, "Acme Studio", snap.Company.Name)
	assert.Equal(t, "Jane Buyer", snap.Client.Name)
	assert.Equal(t, "INV-2025-0001", snap.Document.Number)
	require.NotNil(t, snap.Document.DueDate)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "180.00", snap.Items[0].LineTotal)
	assert.Equal(t, wantTotals, snap.Totals)
	assert.True(t, e.now.Equal(snap.LockedAt))

	// branding and client edits after locking do not leak in
	e.company.Name = "Renamed"
	e.company.PrimaryColor = "#000000"
	require.NoError(t, e.db.Save(e.company).Error)
	c, err := e.clients.Get(ctx, e.company.ID, *rec.Doc().ClientID)
	require.NoError(t, err)
	require.NoError(t, e.clients.Update(ctx, e.owner, c, ClientInput{Name: "Someone Else"}))

	reloaded, err := e.docs.Get(ctx, e.company.ID, models.KindInvoice, rec.Doc().ID)
	require.NoError(t, err)
	e.now = e.now.AddDate(0, 1, 0)
	again, err := e.snapshot.Lock(ctx, e.owner, e.company, reloaded)
	require.NoError(t, err)
	assert.Equal(t, "Acme Studio", again.Company.Name)
	assert.Equal(t, models.DefaultPrimaryColor, again.Company.PrimaryColor)
	assert.Equal(t, "Jane Buyer", again.Client.Name)
	assert.True(t, again.LockedAt.Equal(snap.LockedAt))

	var locks int64
	e.db.Model(&models.AuditLog{}).Where("action = ?", ActionDocumentLocked).Count(&locks)
	assert.EqualValues(t, 1, locks)
}

var wantTotals = models.SnapshotTotals{
	Subtotal: "180.00", TaxTotal: "14.85", DiscountTotal: "0.00", Total: "194.85",
}

func TestBuild_ReceiptFields(t *testing.T) {
	e := newEnv(t)
	rec := e.create(t, e.owner, models.KindReceipt, DocumentInput{
		AmountPaid: decPtr("50"), PaymentMethod: models.PaymentBankTransfer, ReferenceNumber: "TX-1",
	})
	snap := Build(e.company, rec, e.now)
	assert.Equal(t, models.KindReceipt, snap.Document.Kind)
	assert.Equal(t, "50.00", snap.Document.AmountPaid)
	assert.Equal(t, models.PaymentBankTransfer, snap.Document.PaymentMethod)
	assert.Equal(t, "TX-1", snap.Document.Reference)
	assert.Nil(t, snap.Document.DueDate)
}
