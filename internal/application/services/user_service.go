package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/providers"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
	"github.com/zatekoja/pgfinder/pkg/textutil"
	"github.com/zatekoja/pgfinder/pkg/validation"
)

const usersPerPage = 20

var (
	profileFields = []string{"name", "about", "phone", "address"}
	adminFields   = []string{"name", "email", "about", "phone", "address", "role"}
)

// profile is the validated shape of the editable user fields
type profile struct {
	Name    string `json:"name" validate:"required,min=2,max=50"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,phone10"`
	About   string `json:"about" validate:"max=500"`
	Address string `json:"address" validate:"max=200"`
	Role    string `json:"role" validate:"oneof=user pgOwner admin"`
}

// CreateUserInput is the body of an admin user creation
type CreateUserInput struct {
	Name            string `json:"name" validate:"required,min=2,max=50"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,phone10"`
	Password        string `json:"password" validate:"required,min=8,strongpassword"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"omitempty,oneof=user pgOwner admin"`
}

// UserService handles profile reads and edits and user administration
type UserService struct {
	users     repositories.UserRepository
	listings  repositories.ListingRepository
	store     providers.TokenStore
	validator *validation.Validator
}

// NewUserService creates a new user service
func NewUserService(
	users repositories.UserRepository,
	listings repositories.ListingRepository,
	store providers.TokenStore,
	validator *validation.Validator,
) *UserService {
	return &UserService{
		users:     users,
		listings:  listings,
		store:     store,
		validator: validator,
	}
}

// GetMe returns the user with the listings they published
func (s *UserService) GetMe(ctx context.Context, userID string) (*entities.UserProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	listings, err := s.listings.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &entities.UserProfile{User: user, Listings: listings}, nil
}

// UpdateMe edits the caller's own profile. Passwords have their own route.
func (s *UserService) UpdateMe(ctx context.Context, userID string, body map[string]any) (*entities.User, error) {
	if _, ok := body["password"]; ok {
		return nil, errPasswordRoute()
	}
	if _, ok := body["passwordConfirm"]; ok {
		return nil, errPasswordRoute()
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(user, textutil.Pick(body, profileFields...)); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns one page of users, newest first
func (s *UserService) ListUsers(ctx context.Context, page int) ([]*entities.User, error) {
	if page < 1 {
		page = 1
	}
	return s.users.List(ctx, usersPerPage, (page-1)*usersPerPage)
}

// CreateUser creates an account on behalf of an admin
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*entities.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	role := entities.RoleUser
	if in.Role != "" {
		role = entities.Role(in.Role)
	}

	now := time.Now().UTC()
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
	return user, nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id string) (*entities.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateUser edits any user's profile and role; password fields are ignored
func (s *UserService) UpdateUser(ctx context.Context, id string, body map[string]any) (*entities.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(user, textutil.Pick(body, adminFields...)); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes a user and closes all of their sessions
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.RemoveAll(ctx, id); err != nil {
		log.Warn().Err(err).Str("user_id", id).Msg("failed to revoke refresh tokens of deleted user")
	}
	return nil
}

// apply copies string fields from a filtered body onto user and validates the result
func (s *UserService) apply(user *entities.User, fields map[string]any) error {
	p := profile{
		Name:    user.Name,
		Email:   user.Email,
		Phone:   user.Phone,
		About:   user.About,
		Address: user.Address,
		Role:    string(user.Role),
	}
	targets := map[string]*string{
		"name":    &p.Name,
		"email":   &p.Email,
		"phone":   &p.Phone,
		"about":   &p.About,
		"address": &p.Address,
		"role":    &p.Role,
	}

	var errs []apperrors.FieldError
	for key, value := range fields {
		str, ok := value.(string)
		if !ok {
			errs = append(errs, apperrors.FieldError{Field: key, Message: fmt.Sprintf("%s must be a string.", key)})
			continue
		}
		*targets[key] = strings.TrimSpace(str)
	}
	if len(errs) > 0 {
		return apperrors.NewFieldValidationError(errs)
	}

	p.Email = strings.ToLower(p.Email)
	p.About = s.validator.Sanitize(p.About)
	p.Address = s.validator.Sanitize(p.Address)
	if err := s.validator.Struct(p); err != nil {
		return err
	}

	user.Name = p.Name
	user.Email = p.Email
	user.Phone = p.Phone
	user.About = p.About
	user.Address = p.Address
	user.Role = entities.Role(p.Role)
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func errPasswordRoute() error {
	return apperrors.NewBadRequestError("This route is not for password updates. Please use /updatePassword.")
}
