package view

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-billing/i18n"
)

func englishRequest(target string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	return r.WithContext(i18n.WithLang(r.Context(), "en"))
}

func TestLoadParsesEveryPage(t *testing.T) {
	require.NoError(t, Load())
	for _, name := range []string{
		"login.html", "signup.html", "error.html", "dashboard.html",
		"clients/index.html", "documents/form.html", "admin/roles.html",
	} {
		assert.Contains(t, pages, name)
	}
	assert.Equal(t, "layout", pages["error.html"].entry)
	assert.Equal(t, "login.html", pages["login.html"].entry)
}

func TestRenderStandalonePage(t *testing.T) {
	rr := httptest.NewRecorder()
	err := Render(rr, englishRequest("/login"), "login.html", map[string]any{"Email": "a@example.com", "Next": "/clients"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, `action="/login"`)
	assert.Contains(t, body, `value="a@example.com"`)
	assert.Contains(t, body, `lang="en"`)
}

func TestStandalonePagesRenderRepeatedly(t *testing.T) {
	for _, tc := range []struct{ name, action string }{
		{"login.html", `action="/login"`},
		{"signup.html", `action="/signup"`},
	} {
		for i := 0; i < 2; i++ {
			rr := httptest.NewRecorder()
			require.NoError(t, Render(rr, englishRequest("/"), tc.name, map[string]any{}), tc.name)
			assert.Contains(t, rr.Body.String(), tc.action)
			assert.True(t, strings.HasPrefix(strings.TrimSpace(strings.ToLower(rr.Body.String())), "<!doctype html>"), tc.name)
		}
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	rr := httptest.NewRecorder()
	err := Render(rr, englishRequest("/"), "missing.html", nil)
	assert.Error(t, err)
	assert.Equal(t, 0, rr.Body.Len())
}

func TestErrorPage(t *testing.T) {
	rr := httptest.NewRecorder()
	Error(rr, englishRequest("/clients/9"), http.StatusNotFound, "not_found")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Not found")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(body), "<!doctype html>"))
}

func TestAssetIsFingerprinted(t *testing.T) {
	u := resolveAsset("app.css")
	assert.True(t, strings.HasPrefix(u, "/static/app.css?v="), u)
	assert.Equal(t, "https://cdn.example.com/x.css", resolveAsset("https://cdn.example.com/x.css"))
	assert.Equal(t, "/static/nope.css", resolveAsset("nope.css"))
}

func TestStaticHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	StaticHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/app.js?v=1", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Cache-Control"), "immutable")
}

func TestNewPageKeepsFilters(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/invoices?status=paid&page=2", nil)
	p := NewPage(r, 2, 10, 25)

	assert.Equal(t, 3, p.Pages)
	assert.Equal(t, "/invoices?page=1&status=paid", p.Prev)
	assert.Equal(t, "/invoices?page=3&status=paid", p.Next)

	last := NewPage(r, 1, 10, 0)
	assert.Equal(t, 1, last.Pages)
	assert.Empty(t, last.Prev)
	assert.Empty(t, last.Next)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "", formatDate(nil))
	assert.Equal(t, "2024-03-05", formatDate(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)))
	money := staticFuncs["money"].(func(decimal.Decimal, string) string)
	assert.Equal(t, "12.50 EUR", money(decimal.RequireFromString("12.5"), "EUR"))
	assert.Equal(t, "3.00", money(decimal.NewFromInt(3), ""))
}
