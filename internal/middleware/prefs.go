// Package middleware holds the HTTP middlewares shared by every route.
package middleware

import (
	"net/http"
	"net/url"

	"github.com/diewo77/go-billing/i18n"
	"github.com/diewo77/go-billing/view"
)

const (
	langCookie  = "lang"
	themeCookie = "theme"
	flashCookie = "flash"
	prefMaxAge  = 86400 * 365
)

var themes = map[string]bool{"light": true, "dark": true, "system": true}

// Prefs extracts language/theme preferences (query > cookie > header) and
// stores them in context. Query-provided prefs are persisted in cookies.
func Prefs(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := ""
		if c, err := r.Cookie(langCookie); err == nil {
			lang = c.Value
		}
		if ql := r.URL.Query().Get("lang"); ql != "" {
			lang = i18n.Normalize(ql)
			http.SetCookie(w, &http.Cookie{Name: langCookie, Value: lang, Path: "/", MaxAge: prefMaxAge, HttpOnly: true})
		}
		if lang == "" {
			lang = i18n.DetectLanguage(r.Header.Get("Accept-Language"))
		}
		theme := "system"
		if c, err := r.Cookie(themeCookie); err == nil && themes[c.Value] {
			theme = c.Value
		}
		if qt := r.URL.Query().Get("theme"); themes[qt] {
			theme = qt
			http.SetCookie(w, &http.Cookie{Name: themeCookie, Value: theme, Path: "/", MaxAge: prefMaxAge, HttpOnly: true})
		}
		ctx := i18n.WithLang(r.Context(), lang)
		ctx = view.WithTheme(ctx, theme)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Flash stores a message code shown on the next rendered page.
func Flash(w http.ResponseWriter, code string) {
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: url.QueryEscape(code), Path: "/", HttpOnly: true})
}

// TakeFlash returns the pending message translated for the request and
// clears it.
func TakeFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})
	code, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return i18n.T(i18n.LangFromContext(r.Context()), code)
}
