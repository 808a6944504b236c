package middleware

import (
	"net/http"
	"time"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
)

// Cookie names carrying the session tokens
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// Cookies writes the session cookies
type Cookies struct {
	Secure bool
}

// SetSession sets the cookies of every token present in pair
func (c Cookies) SetSession(w http.ResponseWriter, pair *entities.TokenPair) {
	if pair == nil {
		return
	}
	if pair.AccessToken != "" {
		http.SetCookie(w, c.cookie(AccessTokenCookie, pair.AccessToken, pair.AccessExpiresAt))
	}
	if pair.RefreshToken != "" {
		http.SetCookie(w, c.cookie(RefreshTokenCookie, pair.RefreshToken, pair.RefreshExpiresAt))
	}
}

// Clear expires both session cookies
func (c Cookies) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		cookie := c.cookie(name, "", time.Unix(0, 0))
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

func (c Cookies) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// CookieValue returns the named cookie's value or ""
func CookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
