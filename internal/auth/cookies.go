package auth

import (
	"net/http"
	"time"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
)

// CookiePolicy writes and reads the session cookie.
type CookiePolicy struct {
	Name   string
	Domain string
	MaxAge time.Duration
	// Secure is set outside LOCAL so plain-http development still works.
	Secure bool
}

// NewCookiePolicy derives the cookie attributes from configuration.
func NewCookiePolicy(cfg *config.SessionConfig, env config.Environment) CookiePolicy {
	return CookiePolicy{
		Name:   cfg.CookieName,
		Domain: cfg.Domain,
		MaxAge: cfg.MaxAge,
		Secure: env != config.Local,
	}
}

// Set writes value as the session cookie.
func (p CookiePolicy) Set(w http.ResponseWriter, value string) {
	http.SetCookie(w, p.cookie(value, int(p.MaxAge.Seconds())))
}

// Clear deletes the session cookie.
func (p CookiePolicy) Clear(w http.ResponseWriter) {
	http.SetCookie(w, p.cookie("", -1))
}

// Read returns the session cookie value, if any.
func (p CookiePolicy) Read(r *http.Request) (string, bool) {
	c, err := r.Cookie(p.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (p CookiePolicy) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     p.Name,
		Value:    value,
		Path:     "/",
		Domain:   p.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
