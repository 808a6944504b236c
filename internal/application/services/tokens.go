package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/pkg/config"
)

var (
	// ErrTokenExpired is returned by Parse for a well formed token past its expiry
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned by Parse for any other rejected token
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenClaims are the claims carried by access and refresh tokens
type TokenClaims struct {
	Type entities.TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 access and refresh tokens.
// Each token type has its own secret.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenManager creates a token manager from the auth configuration
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		now:           time.Now,
	}
}

// RefreshTTL is the lifetime of refresh tokens
func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// Issue signs a new access and refresh token for userID
func (m *TokenManager) Issue(userID string) (*entities.TokenPair, error) {
	access, accessExp, err := m.sign(userID, entities.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := m.sign(userID, entities.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return &entities.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueAccess signs a new access token only
func (m *TokenManager) IssueAccess(userID string) (string, time.Time, error) {
	return m.sign(userID, entities.TokenTypeAccess)
}

// Parse verifies a token of the given type. Expired tokens yield their
// claims together with ErrTokenExpired.
func (m *TokenManager) Parse(token string, typ entities.TokenType) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret(typ), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		if claims.Type != typ || claims.Subject == "" {
			return nil, ErrTokenInvalid
		}
		return claims, ErrTokenExpired
	case err != nil:
		return nil, ErrTokenInvalid
	case claims.Type != typ || claims.Subject == "":
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (m *TokenManager) sign(userID string, typ entities.TokenType) (string, time.Time, error) {
	now := m.now()
	ttl := m.accessTTL
	if typ == entities.TokenTypeRefresh {
		ttl = m.refreshTTL
	}
	expiresAt := now.Add(ttl)

	claims := TokenClaims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret(typ))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (m *TokenManager) secret(typ entities.TokenType) []byte {
	if typ == entities.TokenTypeRefresh {
		return m.refreshSecret
	}
	return m.accessSecret
}
