package auth

import (
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

// setSessionCookie writes an HTTP-only session cookie. Secure is derived
// from the request so local plain-HTTP development still works.
func setSessionCookie(c router.Context, name, val string, expires time.Time) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   requestIsSecure(c),
		SameSite: "Lax",
	})
}

func cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   requestIsSecure(c),
		SameSite: "Lax",
	})
}

// requestIsSecure reports whether the request arrived over TLS, directly
// or behind a terminating proxy.
func requestIsSecure(c router.Context) bool {
	if proto := c.Header("X-Forwarded-Proto"); proto != "" {
		return strings.EqualFold(proto, "https")
	}
	return strings.HasPrefix(strings.ToLower(c.OriginalURL()), "https://")
}

// parseCookieHeader splits a raw Cookie header into name/value pairs.
// Needed because the router surface reads cookies by name but never
// enumerates them, and the per-account cookies carry dynamic names.
func parseCookieHeader(header string) map[string]string {
	cookies := map[string]string{}
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		if !found || name == "" {
			continue
		}
		cookies[name] = value
	}
	return cookies
}
