package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-billing/internal/models"
)

func TestAuditService_RecordAndList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for i := 0; i < AuditPageSize+5; i++ {
		require.NoError(t, e.audit.Record(ctx, nil, e.owner, AuditEntry{Action: ActionCompanyUpdated, EntityType: "company", EntityID: e.company.ID}))
	}
	other := Actor{UserID: e.owner.UserID, CompanyID: e.company.ID + 1}
	require.NoError(t, e.audit.Record(ctx, nil, other, AuditEntry{Action: ActionCompanyUpdated}))

	page1, total, err := e.audit.List(ctx, e.company.ID, 1)
	require.NoError(t, err)
	assert.EqualValues(t, AuditPageSize+5, total)
	assert.Len(t, page1, AuditPageSize)
	assert.Greater(t, page1[0].ID, page1[1].ID, "newest first")
	assert.Equal(t, "127.0.0.1", page1[0].IPAddress)

	page2, _, err := e.audit.List(ctx, e.company.ID, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 5)
}

func TestAuditLog_Immutable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.audit.Record(ctx, nil, e.owner, AuditEntry{Action: ActionCompanyUpdated, Details: "original"}))

	var entry models.AuditLog
	require.NoError(t, e.db.First(&entry).Error)

	entry.Details = "tampered"
	assert.ErrorIs(t, e.db.Save(&entry).Error, models.ErrAuditLogImmutable)
	assert.ErrorIs(t, e.db.Model(&entry).Update("details", "tampered").Error, models.ErrAuditLogImmutable)
	assert.ErrorIs(t, e.db.Delete(&entry).Error, models.ErrAuditLogImmutable)

	var reloaded models.AuditLog
	require.NoError(t, e.db.First(&reloaded, entry.ID).Error)
	assert.Equal(t, "original", reloaded.Details)
}
