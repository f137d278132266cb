package innercircle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSessionCookieRoundTrip(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Session.SecureCookies = true
	})

	grant, err := engine.CreateSession(context.Background(), TierInnerCircle, "/posts")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	rec := httptest.NewRecorder()
	engine.SetSessionCookie(rec, grant)

	res := rec.Result()
	cookies := res.Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != "aol_access" || c.Value != grant.SessionID {
		t.Fatalf("unexpected cookie: %+v", c)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookie attributes: HttpOnly=%v Secure=%v SameSite=%v", c.HttpOnly, c.Secure, c.SameSite)
	}
	if c.MaxAge <= 0 {
		t.Fatalf("MaxAge = %d", c.MaxAge)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	if got := engine.ReadSessionCookie(req); got != grant.SessionID {
		t.Fatalf("ReadSessionCookie = %q", got)
	}
}

func TestClearSessionCookie(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	rec := httptest.NewRecorder()
	engine.ClearSessionCookie(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	if cookies[0].Value != "" || cookies[0].MaxAge != -1 {
		t.Fatalf("cookie not cleared: %+v", cookies[0])
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := engine.ReadSessionCookie(req); got != "" {
		t.Fatalf("ReadSessionCookie on bare request = %q", got)
	}
}
