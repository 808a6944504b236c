package providers

import (
	"context"
	"time"
)

// TokenStore keeps the refresh tokens a user currently holds
type TokenStore interface {
	// Save records a refresh token for userID until ttl elapses
	Save(ctx context.Context, userID, token string, ttl time.Duration) error

	// Exists reports whether the token is still held by userID
	Exists(ctx context.Context, userID, token string) (bool, error)

	// Remove revokes one token and reports whether it was held
	Remove(ctx context.Context, userID, token string) (bool, error)

	// RemoveAll revokes every token of userID
	RemoveAll(ctx context.Context, userID string) error
}
