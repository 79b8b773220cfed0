package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-billing/internal/models"
)

func TestStatsService_Compute(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.create(t, e.owner, models.KindInvoice, DocumentInput{})
	sent := e.create(t, e.owner, models.KindInvoice, DocumentInput{})
	require.NoError(t, e.docs.ChangeStatus(ctx, e.owner, sent, models.StatusSent))
	e.create(t, e.owner, models.KindQuote, DocumentInput{})
	sentID := sent.Doc().ID
	e.create(t, e.owner, models.KindReceipt, DocumentInput{
		ClientID: sent.Doc().ClientID, InvoiceID: &sentID, AmountPaid: decPtr("50"),
	})

	// due date passes
	e.now = e.now.AddDate(0, 2, 0)
	st, err := NewStatsService(e.db, e.clock).Compute(ctx, e.company.ID)
	require.NoError(t, err)

	assert.EqualValues(t, 2, st.TotalInvoices)
	assert.EqualValues(t, 1, st.TotalQuotes)
	assert.EqualValues(t, 1, st.TotalReceipts)
	assert.EqualValues(t, 1, st.TotalClients)
	assert.EqualValues(t, 1, st.PendingInvoices)
	// partially paid invoices are outstanding but not counted as overdue sent ones
	assert.EqualValues(t, 0, st.OverdueInvoices)
	assert.Equal(t, "194.85", st.OutstandingAmount.StringFixed(2))
	assert.Equal(t, "50.00", st.ReceivedAmount.StringFixed(2))

	empty, err := NewStatsService(e.db, e.clock).Compute(ctx, e.company.ID+1)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalInvoices)
	assert.True(t, empty.OutstandingAmount.IsZero())
}

func TestStatsService_Overdue(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sent := e.create(t, e.owner, models.KindInvoice, DocumentInput{})
	require.NoError(t, e.docs.ChangeStatus(ctx, e.owner, sent, models.StatusSent))

	st, err := NewStatsService(e.db, e.clock).Compute(ctx, e.company.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, st.OverdueInvoices)

	e.now = e.now.AddDate(0, 0, 31)
	st, err = NewStatsService(e.db, e.clock).Compute(ctx, e.company.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.OverdueInvoices)
}
