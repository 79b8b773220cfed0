package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-billing/internal/dbtest"
	"github.com/diewo77/go-billing/internal/models"
)

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	gdb := dbtest.Open(t)
	ctx := context.Background()
	svc := NewUserService(gdb, NewAuditService(gdb))

	_, err := svc.Register(ctx, AccountInput{Email: "nope", Password: "short"})
	v := ViolationsOf(err)
	assert.Equal(t, "invalid_email", v["email"])
	assert.Equal(t, "password_too_short", v["password"])

	u, err := svc.Register(ctx, AccountInput{Email: " New@Example.com ", Name: "New", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Nil(t, u.CompanyID)

	_, err = svc.Register(ctx, AccountInput{Email: "new@example.com", Password: "longenough"})
	assert.Equal(t, "email_exists", ViolationsOf(err)["email"])

	got, err := svc.Authenticate(ctx, "NEW@example.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_, err = svc.Authenticate(ctx, "new@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "ghost@example.com", "longenough")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_InviteAndChangeRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewUserService(e.db, e.audit)

	_, err := svc.Invite(ctx, e.user, AccountInput{Email: "x@example.com", Password: "password123", Role: models.RoleUser})
	assert.ErrorIs(t, err, ErrForbidden, "plain users cannot invite")

	acct, err := svc.Invite(ctx, e.owner, AccountInput{Email: "acct@example.com", Password: "password123", Role: models.RoleAccountant})
	require.NoError(t, err)
	member, err := svc.Member(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAccountant, member.Role())
	assert.Equal(t, e.company.ID, member.CompanyIDValue())

	changed, err := svc.ChangeRole(ctx, e.owner, acct.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, changed.Role())

	_, err = svc.ChangeRole(ctx, e.owner, e.owner.UserID, models.RoleUser)
	assert.ErrorIs(t, err, ErrForbidden, "own role is fixed")

	admin := Actor{UserID: acct.ID, CompanyID: e.company.ID, Role: models.RoleAdmin}
	_, err = svc.ChangeRole(ctx, admin, e.user.UserID, models.RoleOwner)
	assert.ErrorIs(t, err, ErrForbidden, "only owners grant owner")
	_, err = svc.ChangeRole(ctx, admin, e.owner.UserID, models.RoleUser)
	assert.ErrorIs(t, err, ErrForbidden, "company owner keeps the role")

	other := dbtest.Company(t, e.db, "Other", "")
	stranger := dbtest.User(t, e.db, other, "stranger@example.com", models.RoleUser)
	_, err = svc.ChangeRole(ctx, e.owner, stranger.ID, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)

	var n int64
	e.db.Model(&models.AuditLog{}).Where("action IN ?", []string{ActionUserInvited, ActionRoleChanged}).Count(&n)
	assert.EqualValues(t, 2, n)

	members, err := svc.List(ctx, e.company.ID)
	require.NoError(t, err)
	assert.Len(t, members, 3)
}

func TestUserService_ChangePassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewUserService(e.db, e.audit)

	err := svc.ChangePassword(ctx, e.user, "wrong", "short", "other")
	v := ViolationsOf(err)
	assert.Equal(t, "password_invalid", v["current_password"])
	assert.Equal(t, "password_too_short", v["new_password"])
	assert.Equal(t, "password_mismatch", v["confirm_password"])

	require.NoError(t, svc.ChangePassword(ctx, e.user, dbtest.Password, "brand-new-pass", "brand-new-pass"))
	_, err = svc.Authenticate(ctx, "user@example.com", "brand-new-pass")
	assert.NoError(t, err)
}

func TestUserService_SetRolePermissions(t *testing.T) {
	gdb := dbtest.Open(t)
	ctx := context.Background()
	svc := NewUserService(gdb, NewAuditService(gdb))

	roles, err := svc.Roles(ctx)
	require.NoError(t, err)
	byName := map[string]models.Profile{}
	for _, r := range roles {
		byName[r.Name] = r
	}

	_, err = svc.SetRolePermissions(ctx, byName[models.RoleOwner].ID, []string{"client:list"})
	assert.ErrorIs(t, err, ErrForbidden)

	p, err := svc.SetRolePermissions(ctx, byName[models.RoleUser].ID, []string{"client:list", "invoice:view"})
	require.NoError(t, err)
	assert.Len(t, p.Permissions, 2)

	_, err = svc.SetRolePermissions(ctx, byName[models.RoleUser].ID, []string{"*:*"})
	assert.Equal(t, "invalid_choice", ViolationsOf(err)["permissions"])
}
