package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func protected(t *testing.T, ts *TokenService) (http.Handler, *bool) {
	t.Helper()
	called := false
	h := RequireAuth(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Error("IdentityFromContext() ok = false inside protected handler")
		}
		w.Write([]byte(id.ID))
	}))
	return h, &called
}

func TestRequireAuth_NoCookie(t *testing.T) {
	h, called := protected(t, newTestTokenService(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if *called {
		t.Error("handler ran without a session")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRequireAuth_InvalidAndExpired(t *testing.T) {
	ts := newTestTokenService(t)
	expired, _ := ts.GenerateWithDuration(testIdentity("u1"), -time.Minute)

	for name, value := range map[string]string{"garbage": "abc.def.ghi", "expired": expired} {
		t.Run(name, func(t *testing.T) {
			h, called := protected(t, ts)
			req := httptest.NewRequest(http.MethodGet, "/files", nil)
			req.AddCookie(&http.Cookie{Name: CookieName, Value: value})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if *called {
				t.Error("handler ran with a bad session")
			}
		})
	}
}

func TestRequireAuth_ValidCookie(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate(testIdentity("user-42"))
	h, called := protected(t, ts)

	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !*called {
		t.Fatal("handler not called")
	}
	if rec.Body.String() != "user-42" {
		t.Errorf("identity id = %q, want user-42", rec.Body.String())
	}
}

func TestIdentityFromContext_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := IdentityFromContext(req.Context()); ok {
		t.Error("IdentityFromContext() ok = true for anonymous request")
	}
}

func TestSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "tok", DefaultTokenTTL, true)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName || c.Value != "tok" {
		t.Errorf("cookie = %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie flags HttpOnly=%v Secure=%v SameSite=%v", c.HttpOnly, c.Secure, c.SameSite)
	}
	if c.MaxAge != int(DefaultTokenTTL.Seconds()) {
		t.Errorf("MaxAge = %d", c.MaxAge)
	}

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, false)
	cleared := rec.Result().Cookies()[0]
	if cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Errorf("cleared cookie = %+v", cleared)
	}
}
