package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/config"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/pdf"
	"github.com/diewo77/go-billing/internal/seed"
)

// Globals is handed to every command.
type Globals struct {
	Config *config.Config
}

// open connects and brings the schema up to date.
func (g *Globals) open(ctx context.Context) (*gorm.DB, error) {
	gdb, err := db.Connect(ctx, g.Config.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Setup(gdb, g.Config.Database.ConnString(), g.Config.App.Migrations); err != nil {
		return nil, fmt.Errorf("database setup: %w", err)
	}
	return gdb, nil
}

var cli struct {
	Serve       ServeCmd   `cmd:"" default:"withargs" help:"Run the HTTP server."`
	Migrate     MigrateCmd `cmd:"" help:"Apply the schema and the system roles, then exit."`
	Seed        SeedCmd    `cmd:"" help:"Create demo companies, clients and documents."`
	CleanupPDFs CleanupCmd `cmd:"" name:"cleanup-pdfs" help:"Delete generated PDFs older than --days."`
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.App.Dev, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(log.WithContext(context.Background()), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kctx := kong.Parse(&cli,
		kong.Name("server"),
		kong.Description("Multi-tenant invoicing: companies, clients, invoices, quotes and receipts."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err := kctx.Run(&Globals{Config: cfg}); err != nil {
		log.Fatal().Err(err).Str("command", kctx.Command()).Msg("command failed")
	}
}

type ServeCmd struct{}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	log := zerolog.Ctx(ctx)
	cfg := g.Config
	gdb, err := g.open(ctx)
	if err != nil {
		return err
	}
	app, err := NewApp(cfg, gdb, *log)
	if err != nil {
		return err
	}

	read, write, idle := cfg.Server.Timeouts()
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Bool("dev", cfg.App.Dev).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server stopped gracefully")
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx context.Context, g *Globals) error {
	if _, err := g.open(ctx); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Bool("sql", g.Config.App.Migrations).Msg("migrations completed")
	return nil
}

type SeedCmd struct {
	Companies          int    `help:"Number of sample companies." default:"3"`
	ClientsPerCompany  int    `help:"Clients per company." default:"5"`
	DocumentsPerClient int    `help:"Invoices and quotes per client." default:"3"`
	RandomSeed         uint64 `help:"Seed for quantities and prices." default:"1"`
}

func (c *SeedCmd) Run(ctx context.Context, g *Globals) error {
	opts := seed.Options{
		Companies:          c.Companies,
		ClientsPerCompany:  c.ClientsPerCompany,
		DocumentsPerClient: c.DocumentsPerClient,
		Seed:               c.RandomSeed,
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	gdb, err := g.open(ctx)
	if err != nil {
		return err
	}
	s := newServices(gdb, time.Now)
	res, err := seed.New(gdb, s.users, s.companies, s.clients, s.docs).Run(ctx, opts)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().
		Int("companies", res.Companies).Int("skipped", res.Skipped).Int("clients", res.Clients).
		Int("invoices", res.Invoices).Int("quotes", res.Quotes).Int("receipts", res.Receipts).
		Str("password", seed.Password).Msg("seeding completed")
	return nil
}

type CleanupCmd struct {
	Days   int  `help:"Remove files older than this many days (0 uses PDF_CLEANUP_DAYS)." default:"0"`
	DryRun bool `help:"List what would be removed without deleting."`
}

func (c *CleanupCmd) Run(ctx context.Context, g *Globals) error {
	log := zerolog.Ctx(ctx)
	cfg := g.Config
	gdb, err := g.open(ctx)
	if err != nil {
		return err
	}
	store, err := pdf.NewStore(cfg.PDF.StoragePath)
	if err != nil {
		return err
	}
	var locker pdf.Locker
	if cfg.Redis.URL != "" {
		l, closeRedis, err := pdf.ConnectRedisLocker(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer closeRedis()
		locker = l
	}
	days := c.Days
	if days <= 0 {
		days = cfg.PDF.CleanupDays
	}

	res, err := pdf.NewCleaner(gdb, store, locker, time.Now).Run(ctx, days, c.DryRun)
	if errors.Is(err, pdf.ErrCleanupRunning) {
		log.Warn().Msg("another cleanup holds the lock, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	ev := log.Info().Int("days", days).Bool("dry_run", c.DryRun).Int("found", res.Found).
		Int("cleaned", res.Cleaned).Int("failed", res.Failed)
	if c.DryRun {
		ev = ev.Strs("would_remove", res.Paths)
	}
	ev.Msg("pdf cleanup finished")
	return nil
}
