package db

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/models"
)

type permissionDef struct {
	ResourceType string
	Action       string
	Description  string
}

var crud = []string{"list", "view", "create", "update", "delete"}

func permissionDefs() []permissionDef {
	defs := []permissionDef{{"*", "*", "Full access"}}
	for _, res := range []string{"client", "invoice", "quote", "receipt"} {
		defs = append(defs, permissionDef{res, "*", "All " + res + " actions"})
		for _, act := range crud {
			defs = append(defs, permissionDef{res, act, strings.ToUpper(act[:1]) + act[1:] + " " + res + "s"})
		}
	}
	return append(defs,
		permissionDef{"pdf", "generate", "Generate PDFs"},
		permissionDef{"pdf", "download", "Download PDFs"},
		permissionDef{"dashboard", "view", "View dashboard"},
		permissionDef{"report", "view", "View and export reports"},
		permissionDef{"company", "view", "View company settings"},
		permissionDef{"company", "update", "Edit company settings"},
		permissionDef{"audit", "list", "Read the audit log"},
		permissionDef{"user", "list", "List company users"},
		permissionDef{"user", "create", "Invite users"},
		permissionDef{"user", "update", "Change user roles"},
		permissionDef{"profile", "list", "List roles"},
		permissionDef{"profile", "update", "Edit role permissions"},
	)
}

// RolePermissions is the seeded grant set per system role.
var RolePermissions = map[string][]string{
	models.RoleOwner: {"*:*"},
	models.RoleAdmin: {"*:*"},
	models.RoleAccountant: {
		"invoice:*", "receipt:*",
		"client:list", "client:view",
		"quote:list", "quote:view",
		"report:view", "pdf:generate", "pdf:download",
		"dashboard:view", "company:view",
	},
	models.RoleUser: {
		"client:*",
		"invoice:list", "invoice:view", "invoice:create", "invoice:update",
		"quote:list", "quote:view", "quote:create", "quote:update",
		"receipt:list", "receipt:view", "receipt:create", "receipt:update",
		"pdf:generate", "pdf:download", "dashboard:view", "company:view",
	},
}

var roleDescriptions = map[string]string{
	models.RoleOwner:      "Company owner, full access",
	models.RoleAdmin:      "Company administrator, full access",
	models.RoleAccountant: "Invoices, receipts and reports",
	models.RoleUser:       "Works on the documents they create",
}

// SeedPermissions creates every known permission. Safe to run repeatedly.
func SeedPermissions(db *gorm.DB) error {
	for _, p := range permissionDefs() {
		perm := models.Permission{ResourceType: p.ResourceType, Action: p.Action, Description: p.Description}
		if err := db.Where("resource_type = ? AND action = ?", p.ResourceType, p.Action).
			FirstOrCreate(&perm).Error; err != nil {
			return fmt.Errorf("seed permission %s:%s: %w", p.ResourceType, p.Action, err)
		}
	}
	return nil
}

// SeedProfiles creates the four system roles and resets their grants.
func SeedProfiles(db *gorm.DB) error {
	if err := SeedPermissions(db); err != nil {
		return err
	}
	for _, name := range models.Roles {
		var profile models.Profile
		err := db.Where("name = ?", name).First(&profile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			profile = models.Profile{Name: name, Description: roleDescriptions[name], IsSystem: true}
			err = db.Create(&profile).Error
		}
		if err != nil {
			return fmt.Errorf("seed profile %s: %w", name, err)
		}

		var perms []models.Permission
		for _, code := range RolePermissions[name] {
			res, act, _ := strings.Cut(code, ":")
			var perm models.Permission
			if err := db.Where("resource_type = ? AND action = ?", res, act).First(&perm).Error; err != nil {
				return fmt.Errorf("seed profile %s: permission %s: %w", name, code, err)
			}
			perms = append(perms, perm)
		}
		if err := db.Model(&profile).Association("Permissions").Replace(perms); err != nil {
			return fmt.Errorf("seed profile %s: %w", name, err)
		}
	}
	return nil
}

// ProfileByName loads a role by name.
func ProfileByName(db *gorm.DB, name string) (*models.Profile, error) {
	var p models.Profile
	if err := db.Where("name = ?", name).First(&p).Error; err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}
	return &p, nil
}
