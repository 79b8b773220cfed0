// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/models"
)

// Open returns a fresh sqlite database named after the test, migrated and
// seeded with the system roles.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), db.GormConfig(false))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.SeedProfiles(gdb); err != nil {
		t.Fatalf("seed profiles: %v", err)
	}
	return gdb
}

// Company creates a company with default settings and the given tax rate.
func Company(t testing.TB, gdb *gorm.DB, name string, taxRate string) *models.Company {
	t.Helper()
	c := &models.Company{Name: name, Email: strings.ToLower(strings.ReplaceAll(name, " ", "")) + "@example.com"}
	if taxRate != "" {
		c.DefaultTaxRate = decimal.RequireFromString(taxRate)
	}
	c.ApplyDefaults()
	if err := gdb.Create(c).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}
	return c
}

// Password is the clear text password of every user created by User.
const Password = "password123"

// User creates a user of company with role. company may be nil.
func User(t testing.TB, gdb *gorm.DB, company *models.Company, email, role string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(Password)
	if err != nil {
		t.Fatal(err)
	}
	u := &models.User{Email: email, Name: strings.Split(email, "@")[0], Password: hash}
	if company != nil {
		id := company.ID
		u.CompanyID = &id
	}
	if role != "" {
		p, err := db.ProfileByName(gdb, role)
		if err != nil {
			t.Fatal(err)
		}
		u.ProfileID = &p.ID
		u.Profile = p
	}
	if err := gdb.Omit("Profile", "Company").Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	if company != nil && role == models.RoleOwner && company.OwnerID == nil {
		company.OwnerID = &u.ID
		if err := gdb.Model(company).Update("owner_id", u.ID).Error; err != nil {
			t.Fatal(err)
		}
	}
	return u
}
