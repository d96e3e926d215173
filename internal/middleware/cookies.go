package middleware

import (
	"net/http"
	"strings"
	"time"

	"storefront/internal/model"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
	StateCookie   = "oauth_state"

	stateCookieTTL = 10 * time.Minute
)

// Cookies writes the session cookies. Max-age follows the token lifetimes.
type Cookies struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c Cookies) SetAuthCookies(w http.ResponseWriter, r *http.Request, pair model.TokenPair) {
	c.SetAccessCookie(w, r, pair.AccessToken)
	http.SetCookie(w, newCookie(r, RefreshCookie, pair.RefreshToken, c.RefreshTTL))
}

func (c Cookies) SetAccessCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, newCookie(r, AccessCookie, token, c.AccessTTL))
}

func (c Cookies) ClearAuthCookies(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, expiredCookie(r, AccessCookie))
	http.SetCookie(w, expiredCookie(r, RefreshCookie))
}

func (c Cookies) SetStateCookie(w http.ResponseWriter, r *http.Request, state string) {
	http.SetCookie(w, newCookie(r, StateCookie, state, stateCookieTTL))
}

func (c Cookies) ClearStateCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, expiredCookie(r, StateCookie))
}

// CookieValue returns the named cookie's value, or "" when absent.
func CookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func newCookie(r *http.Request, name string, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredCookie(r *http.Request, name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}

func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}
