package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sessionRequest(t *testing.T, uid uint) *http.Request {
	t.Helper()
	rr := httptest.NewRecorder()
	CreateSession(rr, uid)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSessionRoundTrip(t *testing.T) {
	Configure("test-secret", false)
	t.Cleanup(func() { Configure("", false) })

	uid, ok := ParseSession(sessionRequest(t, 42))
	if !ok || uid != 42 {
		t.Fatalf("ParseSession = %d, %v", uid, ok)
	}
}

func TestSessionRejectsTamperedCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	good := sessionRequest(t, 7)
	c, _ := good.Cookie(sessionCookieName)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: strings.Replace(c.Value, "7.", "8.", 1)})
	if _, ok := ParseSession(req); ok {
		t.Fatal("tampered cookie accepted")
	}
}

func TestSessionExpires(t *testing.T) {
	req := sessionRequest(t, 5)
	now = func() time.Time { return time.Now().Add(MaxAge + time.Hour) }
	t.Cleanup(func() { now = time.Now })
	if _, ok := ParseSession(req); ok {
		t.Fatal("expired session accepted")
	}
}

func TestRequireAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(RequireAuth(next))

	t.Run("html redirect", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
			t.Fatalf("got %d %q", rr.Code, rr.Header().Get("Location"))
		}
	})

	t.Run("json 401", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
		req.Header.Set("Accept", "application/json")
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized || !strings.Contains(rr.Body.String(), "unauthorized") {
			t.Fatalf("got %d %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("valid session", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, sessionRequest(t, 3))
		if rr.Code != http.StatusNoContent {
			t.Fatalf("got %d", rr.Code)
		}
	})

	t.Run("verifier rejects removed user", func(t *testing.T) {
		SetUserVerifier(func(_ context.Context, uid uint) bool { return uid != 3 })
		t.Cleanup(func() { SetUserVerifier(nil) })
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, sessionRequest(t, 3))
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("got %d", rr.Code)
		}
	})
}

func TestHashPassword(t *testing.T) {
	if _, err := HashPassword("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "password123") || CheckPassword(hash, "wrong-password") {
		t.Fatal("CheckPassword mismatch")
	}
}
