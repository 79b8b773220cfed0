package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"filippo.io/csrf"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/gate"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/config"
	"github.com/diewo77/go-billing/internal/handlers"
	"github.com/diewo77/go-billing/internal/middleware"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/pdf"
	"github.com/diewo77/go-billing/internal/policy"
	"github.com/diewo77/go-billing/internal/services"
	"github.com/diewo77/go-billing/view"
)

// serviceSet is the domain layer shared by the server and the seed command.
type serviceSet struct {
	audit     *services.AuditService
	users     *services.UserService
	companies *services.CompanyService
	clients   *services.ClientService
	docs      *services.DocumentService
	snapshots *services.SnapshotService
	stats     *services.StatsService
}

func newServices(gdb *gorm.DB, now func() time.Time) *serviceSet {
	audit := services.NewAuditService(gdb)
	clients := services.NewClientService(gdb, audit)
	return &serviceSet{
		audit:     audit,
		users:     services.NewUserService(gdb, audit),
		companies: services.NewCompanyService(gdb, audit),
		clients:   clients,
		docs:      services.NewDocumentService(gdb, services.NewNumberer(now), clients, audit, now),
		snapshots: services.NewSnapshotService(gdb, audit, now),
		stats:     services.NewStatsService(gdb, now),
	}
}

// App is the main application handler that sets up all routes.
type App struct {
	mux     *http.ServeMux
	handler http.Handler
	db      *gorm.DB
	gate    *policy.AuthGate
	svc     *serviceSet
	pdfs    *pdf.Service
}

// NewApp builds the services and routes. It also installs the process-wide
// session settings and template resolvers.
func NewApp(cfg *config.Config, gdb *gorm.DB, log zerolog.Logger) (*App, error) {
	if err := view.Load(); err != nil {
		return nil, err
	}
	svc := newServices(gdb, time.Now)

	store, err := pdf.NewStore(cfg.PDF.StoragePath)
	if err != nil {
		return nil, err
	}
	renderer, err := pdf.NewRenderer()
	if err != nil {
		return nil, err
	}
	var primary pdf.Converter
	if cfg.PDF.ConverterURL != "" {
		primary = pdf.NewHTTPConverter(cfg.PDF.ConverterURL, time.Duration(cfg.PDF.ConverterTimeout)*time.Second)
	}
	converter := pdf.FallbackConverter{Primary: primary, Fallback: pdf.TextConverter{}}

	ag := policy.NewAuthGate(gdb, time.Duration(cfg.Auth.ProfileCacheTTL)*time.Second)
	ag.Deny = denyPage

	app := &App{
		mux:  http.NewServeMux(),
		db:   gdb,
		gate: ag,
		svc:  svc,
		pdfs: pdf.NewService(gdb, svc.snapshots, svc.audit, renderer, converter, store,
			pdf.Options{Expiry: cfg.PDF.Expiry()}),
	}

	auth.Configure(cfg.Auth.SessionSecret, cfg.Auth.SecureCookies)
	auth.SetUserVerifier(func(ctx context.Context, uid uint) bool {
		var count int64
		gdb.WithContext(ctx).Model(&models.User{}).Where("id = ?", uid).Count(&count)
		return count > 0
	})
	app.installViewResolvers()
	app.setupRoutes()

	// HTML routes get cross-origin request protection, /api/ gets CORS.
	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{cfg.App.BaseURL}
	}
	html := csrf.New().Handler(app.mux)
	api := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}).Handler(app.mux)
	split := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			api.ServeHTTP(w, r)
			return
		}
		html.ServeHTTP(w, r)
	})

	var h http.Handler = split
	h = middleware.Member(svc.users)(h)
	h = auth.Middleware(h)
	h = middleware.Prefs(h)
	h = middleware.Recover(h)
	h = middleware.Logger(log)(h)
	app.handler = h
	return app, nil
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// denyPage redirects anonymous browsers to the login page and shows the
// error page for refused ones.
func denyPage(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.WantsJSON(r) || httpx.IsJSONBody(r) {
		policy.DefaultDeny(w, r, err)
		return
	}
	if errors.Is(err, gate.ErrUnauthorized) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	view.Error(w, r, http.StatusForbidden, "forbidden")
}

func (a *App) installViewResolvers() {
	ag := a.gate
	view.SetCanProfileResolver(func(r *http.Request, resource, action string) bool {
		return ag.CanProfile(r.Context(), gate.Action(action), resource)
	})
	view.SetIsAdminResolver(func(r *http.Request) bool {
		return ag.CanProfile(r.Context(), gate.ActionList, policy.ResourceUser)
	})
	view.SetFlashResolver(middleware.TakeFlash)
	view.SetUserResolver(func(r *http.Request) any {
		if u, ok := middleware.MemberFrom(r.Context()); ok {
			return u
		}
		return nil
	})
}

// member requires a session and a company.
func (a *App) member(h http.Handler) http.Handler {
	return auth.RequireAuth(middleware.RequireCompany(h))
}

// protect requires a session, a company and resource:action on the profile.
func (a *App) protect(resource string, action gate.Action, h http.HandlerFunc) http.Handler {
	return a.member(a.gate.RequirePermission(resource, action)(h))
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	svc := a.svc
	ag := a.gate

	a.mux.HandleFunc("GET /health", a.health)
	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.Handle("GET /static/", view.StaticHandler())

	// ─────────────────────────────────────────────────────────────────────────
	// Public routes
	// ─────────────────────────────────────────────────────────────────────────
	ah := handlers.NewAuthHandler(svc.users)
	a.mux.HandleFunc("GET /{$}", ah.Landing)
	a.mux.HandleFunc("GET /login", ah.Login)
	a.mux.HandleFunc("POST /login", ah.Login)
	a.mux.HandleFunc("GET /signup", ah.Signup)
	a.mux.HandleFunc("POST /signup", ah.Signup)
	a.mux.HandleFunc("GET /logout", ah.Logout)
	a.mux.HandleFunc("POST /logout", ah.Logout)

	// ─────────────────────────────────────────────────────────────────────────
	// Signed-in routes that do not need a company
	// ─────────────────────────────────────────────────────────────────────────
	co := handlers.NewCompanyHandler(svc.companies, ag)
	a.mux.Handle("GET /company/setup", auth.RequireAuth(http.HandlerFunc(co.Setup)))
	a.mux.Handle("POST /company/setup", auth.RequireAuth(http.HandlerFunc(co.Setup)))

	ph := handlers.NewProfileHandler(svc.users)
	a.mux.Handle("GET /profile", auth.RequireAuth(http.HandlerFunc(ph.Show)))
	a.mux.Handle("POST /profile", auth.RequireAuth(http.HandlerFunc(ph.Update)))
	a.mux.Handle("POST /profile/password", auth.RequireAuth(http.HandlerFunc(ph.ChangePassword)))

	// ─────────────────────────────────────────────────────────────────────────
	// Company routes (session + company + permission)
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.Handle("GET /settings", a.protect(policy.ResourceCompany, gate.ActionView, co.Edit))
	a.mux.Handle("POST /settings", a.protect(policy.ResourceCompany, gate.ActionUpdate, co.Update))

	dh := handlers.NewDashboardHandler(svc.stats, svc.docs, svc.clients, ag)
	a.mux.Handle("GET /dashboard", a.protect(policy.ResourceDashboard, gate.ActionView, dh.Show))
	a.mux.Handle("GET /api/dashboard/stats", a.protect(policy.ResourceDashboard, gate.ActionView, dh.Stats))
	a.mux.Handle("GET /api/clients", a.protect(policy.ResourceClient, gate.ActionList, dh.Clients))

	ch := handlers.NewClientHandler(svc.clients, ag)
	a.mux.Handle("GET /clients", a.protect(policy.ResourceClient, gate.ActionList, ch.List))
	a.mux.Handle("GET /clients/new", a.protect(policy.ResourceClient, gate.ActionCreate, ch.New))
	a.mux.Handle("POST /clients", a.protect(policy.ResourceClient, gate.ActionCreate, ch.Create))
	a.mux.Handle("GET /clients/{id}", a.protect(policy.ResourceClient, gate.ActionView, ch.View))
	a.mux.Handle("GET /clients/{id}/edit", a.protect(policy.ResourceClient, gate.ActionUpdate, ch.Edit))
	a.mux.Handle("POST /clients/{id}", a.protect(policy.ResourceClient, gate.ActionUpdate, ch.Update))
	a.mux.Handle("POST /clients/{id}/delete", a.protect(policy.ResourceClient, gate.ActionDelete, ch.Delete))

	for _, kind := range models.Kinds {
		h := handlers.NewDocumentHandler(kind, svc.docs, svc.clients, svc.companies, svc.snapshots, ag)
		res, base := string(kind), "/"+kind.Plural()
		a.mux.Handle("GET "+base, a.protect(res, gate.ActionList, h.List))
		a.mux.Handle("GET "+base+"/new", a.protect(res, gate.ActionCreate, h.New))
		a.mux.Handle("POST "+base, a.protect(res, gate.ActionCreate, h.Create))
		a.mux.Handle("GET "+base+"/{id}", a.protect(res, gate.ActionView, h.View))
		a.mux.Handle("GET "+base+"/{id}/edit", a.protect(res, gate.ActionUpdate, h.Edit))
		a.mux.Handle("POST "+base+"/{id}", a.protect(res, gate.ActionUpdate, h.Update))
		a.mux.Handle("POST "+base+"/{id}/delete", a.protect(res, gate.ActionDelete, h.Delete))
		a.mux.Handle("POST "+base+"/{id}/status", a.protect(res, gate.ActionUpdate, h.Status))
		a.mux.Handle("POST "+base+"/{id}/lock", a.protect(res, gate.ActionView, h.Lock))
	}

	pdfh := handlers.NewPDFHandler(a.pdfs, svc.docs, svc.companies, ag)
	a.mux.Handle("GET /pdf/{type}/{id}/", a.protect(policy.ResourcePDF, gate.ActionGenerate, pdfh.Generate))
	a.mux.Handle("GET /download/{token}/", a.protect(policy.ResourcePDF, gate.ActionDownload, pdfh.Download))

	rh := handlers.NewReportHandler(svc.docs, svc.audit)
	a.mux.Handle("GET /reports/invoices.xlsx", a.protect(policy.ResourceReport, gate.ActionView, rh.Invoices))
	a.mux.Handle("GET /audit", a.protect(policy.ResourceAudit, gate.ActionList, rh.Audit))

	// ─────────────────────────────────────────────────────────────────────────
	// Administration
	// ─────────────────────────────────────────────────────────────────────────
	uh := handlers.NewAdminUserHandler(svc.users, ag)
	a.mux.Handle("GET /admin/users", a.protect(policy.ResourceUser, gate.ActionList, uh.List))
	a.mux.Handle("POST /admin/users", a.protect(policy.ResourceUser, gate.ActionCreate, uh.Invite))
	a.mux.Handle("POST /admin/users/{id}/role", a.protect(policy.ResourceUser, gate.ActionUpdate, uh.ChangeRole))

	rl := handlers.NewAdminRoleHandler(svc.users, ag)
	a.mux.Handle("GET /admin/roles", a.protect(policy.ResourceProfile, gate.ActionList, rl.List))
	a.mux.Handle("POST /admin/roles/{id}/permissions", a.protect(policy.ResourceProfile, gate.ActionUpdate, rl.SavePermissions))

	// anything else
	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		view.Error(w, r, http.StatusNotFound, "not_found")
	})
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// healthz also pings the database.
func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "down"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "up"})
}
