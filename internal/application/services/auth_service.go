package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/providers"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
	"github.com/zatekoja/pgfinder/pkg/textutil"
	"github.com/zatekoja/pgfinder/pkg/validation"
)

const (
	resetTokenTTL      = 10 * time.Minute
	oauthStateTTL      = 10 * time.Minute
	oauthStateCapacity = 10000
	oauthPasswordLen   = 20
)

// Messages shared by the auth middleware and handlers
const (
	MsgNotLoggedIn      = "You are not logged in! Please log in to get access."
	MsgInvalidToken     = "Invalid token. Please log in again!"
	MsgUserGone         = "The user belonging to this token no longer exists."
	MsgPasswordChanged  = "User recently changed password! Please log in again."
	MsgJWTExpired       = "Json Web Token is expired."
	MsgJWTInvalid       = "Json Web Token is invalid,try again."
	MsgInvalidRequest   = "Invalid Request"
	MsgWrongCredentials = "Incorrect email or password!!"
)

// SignupInput is the body of a signup request
type SignupInput struct {
	Name            string `json:"name" validate:"required,min=2,max=50"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,phone10"`
	Password        string `json:"password" validate:"required,min=8,strongpassword"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"omitempty,oneof=user pgOwner"`
}

// PasswordInput carries a new password and its confirmation
type PasswordInput struct {
	Password        string `json:"password" validate:"required,min=8,strongpassword"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// UpdatePasswordInput is the body of a password change by a logged in user
type UpdatePasswordInput struct {
	PasswordCurrent string `json:"passwordCurrent"`
	PasswordInput
}

// Authentication is the outcome of checking a request's credentials.
// Refreshed is set when a new access token was minted from the refresh token.
type Authentication struct {
	User      *entities.User
	Refreshed *entities.TokenPair
}

// AuthService handles accounts, sessions and federated sign-in
type AuthService struct {
	users     repositories.UserRepository
	store     providers.TokenStore
	mailer    providers.Mailer
	oauth     providers.OAuthProvider
	tokens    *TokenManager
	states    *expirable.LRU[string, struct{}]
	validator *validation.Validator
	now       func() time.Time
}

// NewAuthService creates a new auth service. oauth may be nil when Google
// sign-in is not configured.
func NewAuthService(
	users repositories.UserRepository,
	store providers.TokenStore,
	mailer providers.Mailer,
	oauth providers.OAuthProvider,
	tokens *TokenManager,
	validator *validation.Validator,
) *AuthService {
	return &AuthService{
		users:     users,
		store:     store,
		mailer:    mailer,
		oauth:     oauth,
		tokens:    tokens,
		states:    expirable.NewLRU[string, struct{}](oauthStateCapacity, nil, oauthStateTTL),
		validator: validator,
		now:       time.Now,
	}
}

// Signup creates an account and opens a session for it
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*entities.AuthSession, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	role := entities.RoleUser
	if in.Role == string(entities.RolePGOwner) {
		role = entities.RolePGOwner
	}

	now := s.now().UTC()
	user := &entities.User{
		ID:           uuid.NewString(),
		Name:         textutil.CapitalizeEachWord(in.Name),
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.openSession(ctx, user)
}

// Login checks credentials and opens a session. A refresh token the client
// still holds is revoked.
func (s *AuthService) Login(ctx context.Context, email, password, oldRefresh string) (*entities.AuthSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewBadRequestError("Please provide email and password!")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewUnauthorizedError(MsgWrongCredentials)
		}
		return nil, err
	}
	if !checkPassword(user.PasswordHash, password) {
		return nil, apperrors.NewUnauthorizedError(MsgWrongCredentials)
	}

	if oldRefresh != "" {
		s.revoke(ctx, oldRefresh)
	}

	return s.openSession(ctx, user)
}

// Logout revokes a refresh token
func (s *AuthService) Logout(ctx context.Context, refresh string) error {
	if refresh == "" {
		return apperrors.NewBadRequestError(MsgInvalidRequest)
	}

	claims, err := s.tokens.Parse(refresh, entities.TokenTypeRefresh)
	if claims == nil {
		return apperrors.NewBadRequestError(MsgInvalidRequest)
	}
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return apperrors.NewBadRequestError(MsgInvalidRequest)
	}

	removed, err := s.store.Remove(ctx, claims.Subject, refresh)
	if err != nil {
		return apperrors.NewInternalError("failed to revoke refresh token", err)
	}
	if !removed {
		return apperrors.NewBadRequestError(MsgInvalidRequest)
	}
	return nil
}

// Refresh mints a new access token from a stored refresh token
func (s *AuthService) Refresh(ctx context.Context, refresh string) (*entities.AuthSession, error) {
	if refresh == "" {
		return nil, apperrors.NewUnauthorizedError(MsgNotLoggedIn)
	}

	claims, err := s.tokens.Parse(refresh, entities.TokenTypeRefresh)
	switch {
	case errors.Is(err, ErrTokenExpired):
		s.forget(ctx, claims.Subject, refresh)
		return nil, apperrors.NewBadRequestError(MsgJWTExpired)
	case err != nil:
		return nil, apperrors.NewBadRequestError(MsgJWTInvalid)
	}

	held, err := s.store.Exists(ctx, claims.Subject, refresh)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to look up refresh token", err)
	}
	if !held {
		return nil, apperrors.NewBadRequestError(MsgJWTInvalid)
	}

	user, err := s.currentUser(ctx, claims)
	if err != nil {
		return nil, err
	}

	access, expiresAt, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to sign access token", err)
	}
	return &entities.AuthSession{
		User:   user,
		Tokens: &entities.TokenPair{AccessToken: access, AccessExpiresAt: expiresAt},
	}, nil
}

// Authenticate resolves the user behind a request. When the access token is
// missing or expired a held refresh token mints a new one.
func (s *AuthService) Authenticate(ctx context.Context, access, refresh string) (*Authentication, error) {
	var (
		claims    *TokenClaims
		refreshed *entities.TokenPair
	)

	if access != "" {
		c, err := s.tokens.Parse(access, entities.TokenTypeAccess)
		switch {
		case err == nil:
			claims = c
		case !errors.Is(err, ErrTokenExpired):
			return nil, apperrors.NewUnauthorizedError(MsgInvalidToken)
		}
	}

	if claims == nil {
		if refresh == "" {
			return nil, apperrors.NewUnauthorizedError(MsgNotLoggedIn)
		}

		rc, err := s.tokens.Parse(refresh, entities.TokenTypeRefresh)
		switch {
		case errors.Is(err, ErrTokenExpired):
			s.forget(ctx, rc.Subject, refresh)
			return nil, apperrors.NewUnauthorizedError(MsgNotLoggedIn)
		case err != nil:
			return nil, apperrors.NewUnauthorizedError(MsgInvalidToken)
		}

		held, err := s.store.Exists(ctx, rc.Subject, refresh)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to look up refresh token", err)
		}
		if !held {
			return nil, apperrors.NewUnauthorizedError(MsgNotLoggedIn)
		}

		token, expiresAt, err := s.tokens.IssueAccess(rc.Subject)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to sign access token", err)
		}
		refreshed = &entities.TokenPair{AccessToken: token, AccessExpiresAt: expiresAt}
		claims = rc
	}

	user, err := s.currentUser(ctx, claims)
	if err != nil {
		return nil, err
	}
	return &Authentication{User: user, Refreshed: refreshed}, nil
}

// ForgotPassword mails a single use reset link to the account owner
func (s *AuthService) ForgotPassword(ctx context.Context, email, baseURL string) error {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}

	token, err := textutil.RandomHex(32)
	if err != nil {
		return apperrors.NewInternalError("failed to generate reset token", err)
	}
	expires := s.now().UTC().Add(resetTokenTTL)
	user.PasswordResetToken = textutil.SHA256Hex(token)
	user.PasswordResetExpires = &expires
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/api/v1/user/resetPassword/%s&%s", strings.TrimRight(baseURL, "/"), token, user.Email)
	err = s.mailer.Send(ctx, providers.Email{
		To:      user.Email,
		Subject: "Your password reset token (valid for 10 min)",
		Body: fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s\n"+
			"If you didn't forget your password, please ignore this email!", resetURL),
	})
	if err != nil {
		user.PasswordResetToken = ""
		user.PasswordResetExpires = nil
		if uerr := s.users.Update(ctx, user); uerr != nil {
			log.Error().Err(uerr).Str("user_id", user.ID).Msg("failed to clear reset token")
		}
		return apperrors.NewInternalError("There was an error sending the email. Try again later!", err).Expose()
	}
	return nil
}

// ResetPassword sets a new password using a mailed reset token. Every
// session of the user is closed and a new one opened.
func (s *AuthService) ResetPassword(ctx context.Context, token, email string, in PasswordInput) (*entities.AuthSession, error) {
	user, err := s.users.GetByResetToken(ctx, strings.ToLower(email), textutil.SHA256Hex(token), s.now().UTC())
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewBadRequestError("Token is invalid or has expired")
		}
		return nil, err
	}

	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	if err := s.setPassword(user, in.Password); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := s.store.RemoveAll(ctx, user.ID); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to revoke refresh tokens")
	}
	return s.openSession(ctx, user)
}

// UpdatePassword changes the password of a logged in user after checking the current one
func (s *AuthService) UpdatePassword(ctx context.Context, userID string, in UpdatePasswordInput, refresh string) (*entities.AuthSession, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !checkPassword(user.PasswordHash, in.PasswordCurrent) {
		return nil, apperrors.NewUnauthorizedError("Wrong password")
	}

	if err := s.validator.Struct(in.PasswordInput); err != nil {
		return nil, err
	}
	if err := s.setPassword(user, in.Password); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if refresh != "" {
		s.revoke(ctx, refresh)
	}
	return s.openSession(ctx, user)
}

// GoogleAuthURL starts a Google sign-in and returns the consent page URL
func (s *AuthService) GoogleAuthURL() (string, error) {
	if s.oauth == nil {
		return "", apperrors.NewNotFoundError("Google sign-in is not enabled")
	}
	state, err := textutil.RandomID(32)
	if err != nil {
		return "", apperrors.NewInternalError("failed to generate oauth state", err)
	}
	s.states.Add(state, struct{}{})
	return s.oauth.AuthCodeURL(state), nil
}

// GoogleCallback completes a Google sign-in. Unknown emails get a new account.
func (s *AuthService) GoogleCallback(ctx context.Context, state, code string) (*entities.AuthSession, error) {
	if s.oauth == nil {
		return nil, apperrors.NewNotFoundError("Google sign-in is not enabled")
	}
	if _, ok := s.states.Get(state); !ok || code == "" {
		return nil, apperrors.NewBadRequestError(MsgInvalidRequest)
	}
	s.states.Remove(state)

	info, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, info.Email)
	switch {
	case err == nil:
	case apperrors.IsType(err, apperrors.ErrorTypeNotFound):
		if user, err = s.federatedUser(ctx, info); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return s.openSession(ctx, user)
}

func (s *AuthService) federatedUser(ctx context.Context, info *entities.OAuthUserInfo) (*entities.User, error) {
	password, err := textutil.RandomID(oauthPasswordLen)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to generate password", err)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		name, _, _ = strings.Cut(info.Email, "@")
	}

	now := s.now().UTC()
	user := &entities.User{
		ID:           uuid.NewString(),
		Name:         textutil.CapitalizeEachWord(name),
		Email:        info.Email,
		PasswordHash: hash,
		Role:         entities.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// openSession issues a token pair and records the refresh token
func (s *AuthService) openSession(ctx context.Context, user *entities.User) (*entities.AuthSession, error) {
	pair, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to sign tokens", err)
	}
	if err := s.store.Save(ctx, user.ID, pair.RefreshToken, s.tokens.RefreshTTL()); err != nil {
		return nil, apperrors.NewInternalError("failed to store refresh token", err)
	}
	return &entities.AuthSession{User: user, Tokens: pair}, nil
}

// currentUser loads the token subject and rejects tokens older than the last password change
func (s *AuthService) currentUser(ctx context.Context, claims *TokenClaims) (*entities.User, error) {
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewUnauthorizedError(MsgUserGone)
		}
		return nil, err
	}
	if claims.IssuedAt != nil && user.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, apperrors.NewUnauthorizedError(MsgPasswordChanged)
	}
	return user, nil
}

func (s *AuthService) setPassword(user *entities.User, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	changedAt := now.Add(-time.Second)
	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	user.UpdatedAt = now
	return nil
}

// revoke drops a refresh token the client presented; failures are only logged
func (s *AuthService) revoke(ctx context.Context, refresh string) {
	claims, _ := s.tokens.Parse(refresh, entities.TokenTypeRefresh)
	if claims == nil {
		return
	}
	s.forget(ctx, claims.Subject, refresh)
}

func (s *AuthService) forget(ctx context.Context, userID, refresh string) {
	if _, err := s.store.Remove(ctx, userID, refresh); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to revoke refresh token")
	}
}
