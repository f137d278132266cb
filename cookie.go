package innercircle

import "net/http"

// SetSessionCookie writes the access cookie for a freshly minted session.
// HttpOnly keeps it away from page scripts and SameSite=Lax keeps it off
// cross-site subrequests; Max-Age tracks the session's remaining lifetime
// so the browser and the store expire together.
func (e *Engine) SetSessionCookie(w http.ResponseWriter, grant *SessionGrant) {
	maxAge := int(grant.ExpiresAt.Sub(e.now()).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	http.SetCookie(w, &http.Cookie{
		Name:     e.config.Session.CookieName,
		Value:    grant.SessionID,
		Path:     "/",
		Domain:   e.config.Session.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   e.config.Session.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the access cookie immediately.
func (e *Engine) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     e.config.Session.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   e.config.Session.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   e.config.Session.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadSessionCookie extracts the session identifier from a request, or ""
// when the cookie is absent.
func (e *Engine) ReadSessionCookie(r *http.Request) string {
	c, err := r.Cookie(e.config.Session.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
