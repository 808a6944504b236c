package providers

import (
	"context"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
)

// OAuthProvider runs the authorization code flow against an identity provider
type OAuthProvider interface {
	// AuthCodeURL returns the consent page URL for state
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for the user's identity
	Exchange(ctx context.Context, code string) (*entities.OAuthUserInfo, error)
}
