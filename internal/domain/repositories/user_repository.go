package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// GetByIDs retrieves multiple users by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*entities.User, error)

	// GetByResetToken finds the user owning an unexpired reset token hash
	GetByResetToken(ctx context.Context, email, tokenHash string, now time.Time) (*entities.User, error)

	// List retrieves users ordered by creation time
	List(ctx context.Context, limit, offset int) ([]*entities.User, error)

	// Update updates a user's profile, role, password and reset fields
	Update(ctx context.Context, user *entities.User) error

	// Delete deletes a user
	Delete(ctx context.Context, id string) error
}
