// Package db opens the database, applies the schema and seeds roles.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/diewo77/go-billing/internal/config"
)

// GormConfig is shared by the postgres and sqlite openers. TranslateError
// maps unique violations to gorm.ErrDuplicatedKey.
func GormConfig(debug bool) *gorm.Config {
	level := gormlogger.Silent
	if debug {
		level = gormlogger.Info
	}
	return &gorm.Config{Logger: gormlogger.Default.LogMode(level), TranslateError: true}
}

// Connect opens PostgreSQL, retrying with exponential backoff while the
// server is starting.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := NormalizeDSN(cfg.ConnString())
	if dsn == "" {
		return nil, errors.New("database dsn is empty")
	}
	log := zerolog.Ctx(ctx)
	tries := cfg.ConnectTries
	if tries <= 0 {
		tries = 1
	}
	gcfg := GormConfig(cfg.Debug)

	open := func() (*gorm.DB, error) {
		gdb, err := gorm.Open(postgres.Open(dsn), gcfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return gdb, nil
	}

	gdb, err := backoff.Retry(ctx, open,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Msg("database not ready")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect database after %d tries: %w", tries, err)
	}
	log.Info().Str("dsn", MaskDSN(dsn)).Msg("database connected")
	return gdb, nil
}
