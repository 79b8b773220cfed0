package db

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers postgres://
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/migrations"
)

// Models lists every table in dependency order.
func Models() []any {
	return []any{
		&models.Permission{},
		&models.Profile{},
		&models.Company{},
		&models.User{},
		&models.Client{},
		&models.Invoice{},
		&models.Quote{},
		&models.Receipt{},
		&models.LineItem{},
		&models.PDFLog{},
		&models.AuditLog{},
	}
}

// Migrate runs AutoMigrate for all models.
func Migrate(db *gorm.DB) error {
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// RunSQLMigrations applies the embedded SQL migrations to a PostgreSQL DSN.
func RunSQLMigrations(dsn string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, ToURLDSN(NormalizeDSN(dsn)))
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Setup brings the schema up to date, with SQL migrations when sqlMigrations
// is set and AutoMigrate otherwise, then seeds the system roles.
func Setup(db *gorm.DB, dsn string, sqlMigrations bool) error {
	if sqlMigrations {
		if err := RunSQLMigrations(dsn); err != nil {
			return err
		}
	} else if err := Migrate(db); err != nil {
		return err
	}
	for _, table := range []string{"profiles", "users", "companies", "invoices", "pdf_logs", "audit_logs"} {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return SeedProfiles(db)
}
