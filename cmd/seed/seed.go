package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/internal/domain/entities"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

// seedFile is the layout of a seed document
type seedFile struct {
	Users    []services.CreateUserInput `json:"users"`
	Listings []seedListing              `json:"listings"`
}

// seedListing is a listing plus the email of the user that owns it
type seedListing struct {
	OwnerEmail string `json:"ownerEmail"`
	entities.Listing
}

type userCreator interface {
	CreateUser(ctx context.Context, in services.CreateUserInput) (*entities.User, error)
}

type userFinder interface {
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
}

type listingCreator interface {
	Create(ctx context.Context, owner *entities.User, listing *entities.Listing) (*entities.Listing, error)
}

type seeder struct {
	users    userCreator
	finder   userFinder
	listings listingCreator
}

type seedResult struct {
	UsersCreated    int
	UsersExisting   int
	ListingsCreated int
}

func loadSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var file seedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &file, nil
}

// run creates the users first so listings can resolve their owners.
// Users that already exist are reused.
func (s *seeder) run(ctx context.Context, file *seedFile) (seedResult, error) {
	var res seedResult
	owners := make(map[string]*entities.User, len(file.Users))

	for _, in := range file.Users {
		email := strings.ToLower(strings.TrimSpace(in.Email))
		if in.PasswordConfirm == "" {
			in.PasswordConfirm = in.Password
		}

		existing, err := s.finder.GetByEmail(ctx, email)
		switch {
		case err == nil:
			owners[email] = existing
			res.UsersExisting++
			continue
		case !apperrors.IsType(err, apperrors.ErrorTypeNotFound):
			return res, fmt.Errorf("look up %s: %w", email, err)
		}

		user, err := s.users.CreateUser(ctx, in)
		if err != nil {
			return res, fmt.Errorf("create user %s: %w", email, err)
		}
		owners[email] = user
		res.UsersCreated++
		log.Info().Str("email", email).Str("role", string(user.Role)).Msg("Seeded user")
	}

	for i := range file.Listings {
		item := &file.Listings[i]
		email := strings.ToLower(strings.TrimSpace(item.OwnerEmail))
		owner, ok := owners[email]
		if !ok {
			return res, fmt.Errorf("listing %q: unknown owner %q", item.Name, item.OwnerEmail)
		}

		listing, err := s.listings.Create(ctx, owner, &item.Listing)
		if err != nil {
			return res, fmt.Errorf("create listing %q: %w", item.Name, err)
		}
		res.ListingsCreated++
		log.Info().Str("slug", listing.Slug).Str("owner", email).Msg("Seeded listing")
	}
	return res, nil
}
