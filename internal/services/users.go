package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/gate"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/validation"
)

// AccountInput is used by signup, invitations and profile edits.
type AccountInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"max=255"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (in *AccountInput) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
}

func passwordViolation(field, password string, v validation.Violations) {
	if len(password) < auth.MinPasswordLength {
		v.Add(field, "password_too_short")
	}
}

type UserService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewUserService(db *gorm.DB, audit *AuditService) *UserService {
	return &UserService{db: db, audit: audit}
}

// Member loads a user with role and company.
func (s *UserService) Member(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Preload("Profile").Preload("Company").First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Register creates an account without company or role; the company setup
// makes it an owner.
func (s *UserService) Register(ctx context.Context, in AccountInput) (*models.User, error) {
	in.normalize()
	v := validation.Struct(&in)
	passwordViolation("password", in.Password, v)
	if err := invalid(v); err != nil {
		return nil, err
	}
	return s.create(ctx, s.db, in, nil, nil)
}

func (s *UserService) create(ctx context.Context, tx *gorm.DB, in AccountInput, companyID, profileID *uint) (*models.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, invalidField("password", "password_too_short")
	}
	u := models.User{Email: in.Email, Name: in.Name, Password: hash, CompanyID: companyID, ProfileID: profileID}
	if err := tx.WithContext(ctx).Create(&u).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, invalidField("email", "email_exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords give
// the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

// List returns the members of a company by email.
func (s *UserService) List(ctx context.Context, companyID uint) ([]models.User, error) {
	var out []models.User
	err := s.db.WithContext(ctx).Preload("Profile").
		Where("company_id = ?", companyID).Order("email").Find(&out).Error
	return out, err
}

// assignable reports whether actor may hand out role. Only owners create
// other owners.
func assignable(actor Actor, role string) bool {
	if !slices.Contains(models.Roles, role) {
		return false
	}
	if role == models.RoleOwner {
		return actor.Role == models.RoleOwner
	}
	return models.IsManager(actor.Role)
}

// Invite adds a user with a role to the actor's company.
func (s *UserService) Invite(ctx context.Context, actor Actor, in AccountInput) (*models.User, error) {
	in.normalize()
	v := validation.Struct(&in)
	passwordViolation("password", in.Password, v)
	if !slices.Contains(models.Roles, in.Role) {
		v.Add("role", "invalid_choice")
	}
	if err := invalid(v); err != nil {
		return nil, err
	}
	if !assignable(actor, in.Role) {
		return nil, ErrForbidden
	}
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := db.ProfileByName(tx, in.Role)
		if err != nil {
			return err
		}
		companyID := actor.CompanyID
		user, err = s.create(ctx, tx, in, &companyID, &profile.ID)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Action: ActionUserInvited, EntityType: "user", EntityID: user.ID,
			Details: fmt.Sprintf("%s invited as %s", user.Email, in.Role),
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ChangeRole moves a member of the actor's company to another role. The
// company owner keeps the owner role and nobody changes their own role.
func (s *UserService) ChangeRole(ctx context.Context, actor Actor, userID uint, role string) (*models.User, error) {
	if !slices.Contains(models.Roles, role) {
		return nil, invalidField("role", "invalid_choice")
	}
	if userID == actor.UserID || !assignable(actor, role) {
		return nil, ErrForbidden
	}
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Profile").Where("company_id = ?", actor.CompanyID).First(&user, userID).Error; err != nil {
			return notFound(err)
		}
		var company models.Company
		if err := tx.First(&company, actor.CompanyID).Error; err != nil {
			return notFound(err)
		}
		if company.OwnerID != nil && *company.OwnerID == user.ID {
			return ErrForbidden
		}
		if user.Role() == models.RoleOwner && actor.Role != models.RoleOwner {
			return ErrForbidden
		}
		from := user.Role()
		profile, err := db.ProfileByName(tx, role)
		if err != nil {
			return err
		}
		if err := tx.Model(&user).Update("profile_id", profile.ID).Error; err != nil {
			return fmt.Errorf("change role: %w", err)
		}
		user.Profile = profile
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Action: ActionRoleChanged, EntityType: "user", EntityID: user.ID,
			Details: fmt.Sprintf("%s: %s -> %s", user.Email, from, role),
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile edits the user's own name and email.
func (s *UserService) UpdateProfile(ctx context.Context, u *models.User, in AccountInput) error {
	in.normalize()
	if err := invalid(validation.Struct(&in)); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Model(u).Updates(map[string]any{"email": in.Email, "name": in.Name}).Error
	if IsUniqueViolation(err) {
		return invalidField("email", "email_exists")
	}
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	u.Email, u.Name = in.Email, in.Name
	return nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *UserService) ChangePassword(ctx context.Context, actor Actor, current, next, confirm string) error {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, actor.UserID).Error; err != nil {
		return notFound(err)
	}
	v := validation.Violations{}
	if !auth.CheckPassword(u.Password, current) {
		v.Add("current_password", "password_invalid")
	}
	passwordViolation("new_password", next, v)
	if next != confirm {
		v.Add("confirm_password", "password_mismatch")
	}
	if err := invalid(v); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&u).Update("password", hash).Error; err != nil {
			return fmt.Errorf("change password: %w", err)
		}
		if actor.CompanyID == 0 {
			return nil
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Action: ActionPasswordChanged, EntityType: "user", EntityID: u.ID,
		})
	})
}

// Roles lists the roles with their grants.
func (s *UserService) Roles(ctx context.Context) ([]models.Profile, error) {
	var out []models.Profile
	err := s.db.WithContext(ctx).Preload("Permissions").Order("id").Find(&out).Error
	return out, err
}

// Permissions lists every grant that can be attached to a role.
func (s *UserService) Permissions(ctx context.Context) ([]models.Permission, error) {
	var out []models.Permission
	err := s.db.WithContext(ctx).Order("resource_type, action").Find(&out).Error
	return out, err
}

// SetRolePermissions replaces the grants of a role. Roles holding "*:*"
// are fixed.
func (s *UserService) SetRolePermissions(ctx context.Context, profileID uint, codes []string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Permissions").First(&profile, profileID).Error; err != nil {
			return notFound(err)
		}
		for _, p := range profile.Permissions {
			if gate.Permission(p.Code()) == gate.PermissionSuperAdmin {
				return ErrForbidden
			}
		}
		perms := []models.Permission{}
		for _, code := range codes {
			perm, err := gate.ParsePermission(code)
			if err != nil || perm == gate.PermissionSuperAdmin {
				return invalidField("permissions", "invalid_choice")
			}
			res, act := perm.Parse()
			var row models.Permission
			err = tx.Where("resource_type = ? AND action = ?", res, string(act)).First(&row).Error
			if err != nil {
				return invalidField("permissions", "invalid_choice")
			}
			perms = append(perms, row)
		}
		if err := tx.Model(&profile).Association("Permissions").Replace(perms); err != nil {
			return fmt.Errorf("replace permissions: %w", err)
		}
		profile.Permissions = perms
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
