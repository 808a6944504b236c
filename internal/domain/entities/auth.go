package entities

import "time"

// TokenType distinguishes access from refresh JWTs
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenPair is issued on signup, login and password changes
type TokenPair struct {
	AccessToken      string    `json:"-"`
	RefreshToken     string    `json:"-"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// AuthSession is the result of a successful authentication
type AuthSession struct {
	User   *User
	Tokens *TokenPair
}

// OAuthUserInfo is the identity returned by a federated provider
type OAuthUserInfo struct {
	Email         string
	Name          string
	EmailVerified bool
}
