package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/pgfinder/internal/api/respond"
	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/internal/domain/entities"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

// MsgForbidden is returned when the caller's role is not allowed
const MsgForbidden = "You do not have permission to perform this action"

type userCtxKey struct{}

// Authenticator resolves the user behind a pair of tokens
type Authenticator interface {
	Authenticate(ctx context.Context, access, refresh string) (*services.Authentication, error)
}

// Auth guards routes that need a logged in user
type Auth struct {
	authenticator Authenticator
	cookies       Cookies
}

// NewAuth creates the auth middleware
func NewAuth(authenticator Authenticator, cookies Cookies) *Auth {
	return &Auth{authenticator: authenticator, cookies: cookies}
}

// Protect rejects requests without a valid session. A new access cookie is
// set when the session was refreshed from the refresh token.
func (a *Auth) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := a.authenticator.Authenticate(r.Context(), accessToken(r), CookieValue(r, RefreshTokenCookie))
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if result.Refreshed != nil {
			a.cookies.SetSession(w, result.Refreshed)
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), result.User)))
	})
}

// RestrictTo only lets users holding one of roles through. It must run
// after Protect.
func RestrictTo(roles ...entities.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil || !user.HasRole(roles...) {
				respond.Error(w, r, apperrors.NewForbiddenError(MsgForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, user *entities.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

// UserFromContext returns the authenticated user, or nil
func UserFromContext(ctx context.Context) *entities.User {
	user, _ := ctx.Value(userCtxKey{}).(*entities.User)
	return user
}

func accessToken(r *http.Request) string {
	if token := CookieValue(r, AccessTokenCookie); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
