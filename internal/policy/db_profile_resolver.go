package policy

import (
	"context"

	"gorm.io/gorm"

	"github.com/diewo77/go-billing/gate"
	"github.com/diewo77/go-billing/internal/models"
)

// DBProfileResolver loads a user's role and its permissions from the database.
type DBProfileResolver struct {
	DB *gorm.DB
}

func NewDBProfileResolver(db *gorm.DB) *DBProfileResolver {
	return &DBProfileResolver{DB: db}
}

// Resolve returns nil without error for users that have no role yet.
func (r *DBProfileResolver) Resolve(ctx context.Context, userID uint) (gate.Profile, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Preload("Profile.Permissions").First(&user, userID).Error
	if err != nil {
		return nil, err
	}
	if user.Profile == nil {
		return nil, nil
	}
	return NewProfile(user.Profile), nil
}

// NewProfile adapts a stored role to gate.Profile.
func NewProfile(p *models.Profile) gate.Profile {
	perms := make([]gate.Permission, len(p.Permissions))
	for i, perm := range p.Permissions {
		perms[i] = gate.NewPermission(perm.ResourceType, gate.Action(perm.Action))
	}
	return &dbProfile{id: p.ID, name: p.Name, perms: perms}
}

type dbProfile struct {
	id    uint
	name  string
	perms []gate.Permission
}

func (p *dbProfile) ID() uint                       { return p.id }
func (p *dbProfile) Name() string                   { return p.name }
func (p *dbProfile) Permissions() []gate.Permission { return p.perms }

func (p *dbProfile) HasPermission(requested gate.Permission) bool {
	return gate.AnyMatches(p.perms, requested)
}
