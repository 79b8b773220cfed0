// Package view renders the embedded HTML templates. Pages are parsed once;
// each request executes a clone bound to its own language, theme and
// permission helpers.
package view

import (
	"bytes"
	"context"
	"crypto/sha1"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/i18n"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Context key for theme
type themeKey struct{}

// WithTheme returns a new context with the given theme.
func WithTheme(ctx context.Context, theme string) context.Context {
	return context.WithValue(ctx, themeKey{}, theme)
}

// ThemeFromContext retrieves the theme from context, defaulting to "system".
func ThemeFromContext(ctx context.Context) string {
	if theme, ok := ctx.Value(themeKey{}).(string); ok && theme != "" {
		return theme
	}
	return "system"
}

type page struct {
	tpl   *template.Template
	entry string
}

var (
	loadOnce sync.Once
	loadErr  error
	pages    map[string]page

	assetOnce   sync.Once
	assetHashes map[string]string

	langResolver  = func(r *http.Request) string { return i18n.LangFromContext(r.Context()) }
	themeResolver = func(r *http.Request) string { return ThemeFromContext(r.Context()) }
	// permission resolvers can be set by the host app to allow templates to check auth
	canProfileResolver func(*http.Request, string, string) bool
	isAdminResolver    func(*http.Request) bool
	flashResolver      func(http.ResponseWriter, *http.Request) string
	userResolver       func(*http.Request) any
)

// SetCanProfileResolver sets a callback used by templates to check profile-level permissions.
func SetCanProfileResolver(f func(*http.Request, string, string) bool) {
	if f != nil {
		canProfileResolver = f
	}
}

// SetIsAdminResolver sets a callback used by templates to determine superadmin users.
func SetIsAdminResolver(f func(*http.Request) bool) {
	if f != nil {
		isAdminResolver = f
	}
}

// SetLangResolver allows the host app to provide a custom language resolver.
func SetLangResolver(f func(*http.Request) string) {
	if f != nil {
		langResolver = f
	}
}

// SetThemeResolver allows the host app to provide a custom theme resolver.
func SetThemeResolver(f func(*http.Request) string) {
	if f != nil {
		themeResolver = f
	}
}

// SetFlashResolver reads and clears the pending flash message.
func SetFlashResolver(f func(http.ResponseWriter, *http.Request) string) {
	if f != nil {
		flashResolver = f
	}
}

// SetUserResolver provides the signed-in user shown in the header.
func SetUserResolver(f func(*http.Request) any) {
	if f != nil {
		userResolver = f
	}
}

// staticFuncs do not depend on the request.
var staticFuncs = template.FuncMap{
	"asset": resolveAsset,
	// dict creates a map from key-value pairs for passing to sub-templates.
	// Usage: {{ template "partial" (dict "Key1" val1 "Key2" val2) }}
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	"add":     func(a, b int) int { return a + b },
	"decimal": formatDecimal,
	"money": func(d decimal.Decimal, currency string) string {
		return strings.TrimSpace(formatDecimal(d) + " " + currency)
	},
	"date":     formatDate,
	"datetime": formatDateTime,
	"deref": func(p *uint) uint {
		if p == nil {
			return 0
		}
		return *p
	},
}

// Funcs returns the standard func map including i18n and simple helpers.
func Funcs(r *http.Request) template.FuncMap {
	lang := langResolver(r)
	theme := themeResolver(r)
	m := template.FuncMap{
		"t":    func(code string) string { return i18n.T(lang, code) },
		"lang": func() string { return lang },
		// can checks profile-level permission (resource, action) -> bool
		"can": func(resource string, action string) bool {
			if canProfileResolver == nil {
				return false
			}
			return canProfileResolver(r, resource, action)
		},
		// isAdmin returns true if the authenticated user has superadmin permission
		"isAdmin": func() bool {
			if isAdminResolver == nil {
				return false
			}
			return isAdminResolver(r)
		},
		"theme":       func() string { return theme },
		"year":        func() int { return time.Now().Year() },
		"statusLabel": func(s any) string { return i18n.T(lang, fmt.Sprintf("status_%v", s)) },
	}
	for k, v := range staticFuncs {
		m[k] = v
	}
	return m
}

// parseFuncs declares every helper so templates parse without a request.
func parseFuncs() template.FuncMap {
	return Funcs(httpRequestStub())
}

func httpRequestStub() *http.Request {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	return r
}

func formatDecimal(d decimal.Decimal) string { return d.StringFixed(2) }

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	}
	return ""
}

func formatDateTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02 15:04")
	case *time.Time:
		if t != nil {
			return t.Format("2006-01-02 15:04")
		}
	}
	return ""
}

// Load parses every page. Render calls it lazily; the server calls it at
// startup to fail fast on template errors.
func Load() error {
	loadOnce.Do(func() { pages, loadErr = parseAll() })
	return loadErr
}

func parseAll() (map[string]page, error) {
	base, err := template.New("layout.html").Funcs(parseFuncs()).
		ParseFS(templateFS, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, err
	}
	out := map[string]page{}
	err = fs.WalkDir(templateFS, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ".html" {
			return err
		}
		name := strings.TrimPrefix(p, "templates/")
		if name == "layout.html" || strings.HasPrefix(name, "partials/") {
			return nil
		}
		content, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}
		// Full documents skip the layout wrapping.
		if bytes.Contains(bytes.ToLower(content), []byte("<!doctype")) {
			// The root must not share the page name or Clone drops the body.
			t, err := template.New("partials").Funcs(parseFuncs()).
				ParseFS(templateFS, "templates/partials/*.html")
			if err != nil {
				return err
			}
			if _, err := t.New(name).Parse(string(content)); err != nil {
				return fmt.Errorf("parse %s: %w", name, err)
			}
			out[name] = page{tpl: t, entry: name}
			return nil
		}
		t, err := base.Clone()
		if err != nil {
			return err
		}
		if _, err := t.New(name).Parse(string(content)); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		out[name] = page{tpl: t, entry: "layout"}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Render executes a page with status 200. name is relative to the templates
// directory (e.g. "clients/index.html").
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	return RenderStatus(w, r, http.StatusOK, name, data)
}

// RenderStatus executes a page into a buffer so template errors never
// produce a half-written response.
func RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error {
	if err := Load(); err != nil {
		return err
	}
	p, ok := pages[name]
	if !ok {
		return fmt.Errorf("view: unknown template %q", name)
	}
	// Ensure data map exists and inject common defaults to avoid template errors.
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["IsLoggedIn"]; !exists {
		_, loggedIn := auth.UserIDFromContext(r.Context())
		data["IsLoggedIn"] = loggedIn
	}
	if _, exists := data["CurrentUser"]; !exists && userResolver != nil {
		data["CurrentUser"] = userResolver(r)
	}
	if _, exists := data["Flash"]; !exists && flashResolver != nil {
		data["Flash"] = flashResolver(w, r)
	}
	t, err := p.tpl.Clone()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := t.Funcs(Funcs(r)).ExecuteTemplate(&buf, p.entry, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

// Error renders the error page, falling back to plain text.
func Error(w http.ResponseWriter, r *http.Request, status int, code string) {
	err := RenderStatus(w, r, status, "error.html", map[string]any{
		"Status": status,
		"Code":   code,
	})
	if err != nil {
		http.Error(w, i18n.T(langResolver(r), code), status)
	}
}

// StaticHandler serves the embedded assets under /static/.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	files := http.FileServerFS(sub)
	return http.StripPrefix("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "" {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		files.ServeHTTP(w, r)
	}))
}

// resolveAsset returns /static/<name>?v=<hash> for cache busting.
func resolveAsset(rel string) string {
	// If absolute URL or starts with http, return as-is
	if strings.HasPrefix(rel, "http://") || strings.HasPrefix(rel, "https://") || strings.HasPrefix(rel, "//") {
		return rel
	}
	assetOnce.Do(hashAssets)
	if h, ok := assetHashes[rel]; ok {
		return "/static/" + rel + "?v=" + h
	}
	return "/static/" + rel
}

func hashAssets() {
	assetHashes = map[string]string{}
	_ = fs.WalkDir(staticFS, "static", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := staticFS.ReadFile(p)
		if err != nil {
			return err
		}
		h := sha1.Sum(b)
		assetHashes[strings.TrimPrefix(p, "static/")] = fmt.Sprintf("%x", h[:8])
		return nil
	})
}
