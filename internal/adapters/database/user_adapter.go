package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	"github.com/zatekoja/pgfinder/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

const usersTable = "users"

var userColumns = []any{
	"id", "name", "email", "phone", "about", "address", "password_hash", "role",
	"password_changed_at", "password_reset_token", "password_reset_expires", "created_at", "updated_at",
}

// UserAdapter implements UserRepository
type UserAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewUserAdapter creates a new user adapter
func NewUserAdapter(client *postgres.Client) repositories.UserRepository {
	return &UserAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a user; a taken email is a conflict
func (a *UserAdapter) Create(ctx context.Context, user *entities.User) error {
	record := userRecord(user)
	record["id"] = user.ID
	record["created_at"] = user.CreatedAt

	query, args, err := a.db.Insert(usersTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return duplicateEmailError()
		}
		return apperrors.NewInternalError("failed to create user", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (a *UserAdapter) GetByID(ctx context.Context, id string) (*entities.User, error) {
	return a.getOne(ctx, "No user found with that ID", goqu.C("id").Eq(id))
}

// GetByEmail retrieves a user by email
func (a *UserAdapter) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return a.getOne(ctx, "There is no user with that email address.", goqu.C("email").Eq(email))
}

// GetByResetToken finds the user whose reset token hash matches and has not expired
func (a *UserAdapter) GetByResetToken(ctx context.Context, email, tokenHash string, now time.Time) (*entities.User, error) {
	return a.getOne(ctx, "Token is invalid or has expired",
		goqu.C("email").Eq(email),
		goqu.C("password_reset_token").Eq(tokenHash),
		goqu.C("password_reset_expires").Gt(now),
	)
}

func (a *UserAdapter) getOne(ctx context.Context, notFound string, where ...exp.Expression) (*entities.User, error) {
	query, args, err := a.db.From(usersTable).Prepared(true).
		Select(userColumns...).
		Where(where...).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build select query", err)
	}

	user, err := scanUser(a.client.DB().QueryRowContext(ctx, query, args...))
	if isMissing(err) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get user", err)
	}
	return user, nil
}

// GetByIDs retrieves users by id, in no particular order
func (a *UserAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.User, error) {
	if len(ids) == 0 {
		return []*entities.User{}, nil
	}

	query, args, err := a.db.From(usersTable).Prepared(true).
		Select(userColumns...).
		Where(goqu.C("id").In(ids)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build select query", err)
	}
	return a.query(ctx, query, args)
}

// List retrieves users, newest first
func (a *UserAdapter) List(ctx context.Context, limit, offset int) ([]*entities.User, error) {
	query, args, err := a.db.From(usersTable).Prepared(true).
		Select(userColumns...).
		Order(goqu.C("created_at").Desc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build select query", err)
	}
	return a.query(ctx, query, args)
}

// Update writes profile, role, password and reset fields
func (a *UserAdapter) Update(ctx context.Context, user *entities.User) error {
	query, args, err := a.db.Update(usersTable).Prepared(true).
		Set(userRecord(user)).
		Where(goqu.C("id").Eq(user.ID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return duplicateEmailError()
		}
		if isMissing(err) {
			return apperrors.NewNotFoundError("No user found with that ID")
		}
		return apperrors.NewInternalError("failed to update user", err)
	}
	return requireAffected(result, "No user found with that ID")
}

// Delete removes a user
func (a *UserAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(usersTable).Prepared(true).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if isMissing(err) {
		return apperrors.NewNotFoundError("No user found with that ID")
	}
	if err != nil {
		return apperrors.NewInternalError("failed to delete user", err)
	}
	return requireAffected(result, "No user found with that ID")
}

func (a *UserAdapter) query(ctx context.Context, query string, args []any) ([]*entities.User, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query users", err)
	}
	defer rows.Close()

	users := make([]*entities.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan user", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating users", err)
	}
	return users, nil
}

func duplicateEmailError() *apperrors.AppError {
	return apperrors.NewConflictError("An account with that email already exists.").WithFields("email")
}

func userRecord(u *entities.User) goqu.Record {
	return goqu.Record{
		"name":                   u.Name,
		"email":                  u.Email,
		"phone":                  sql.NullString{String: u.Phone, Valid: u.Phone != ""},
		"about":                  sql.NullString{String: u.About, Valid: u.About != ""},
		"address":                sql.NullString{String: u.Address, Valid: u.Address != ""},
		"password_hash":          u.PasswordHash,
		"role":                   string(u.Role),
		"password_changed_at":    nullTime(u.PasswordChangedAt),
		"password_reset_token":   sql.NullString{String: u.PasswordResetToken, Valid: u.PasswordResetToken != ""},
		"password_reset_expires": nullTime(u.PasswordResetExpires),
		"updated_at":             u.UpdatedAt,
	}
}

func scanUser(row rowScanner) (*entities.User, error) {
	var (
		u                            entities.User
		phone, about, address, token sql.NullString
		changedAt, resetExpires      sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &phone, &about, &address, &u.PasswordHash, &u.Role,
		&changedAt, &token, &resetExpires, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Phone = phone.String
	u.About = about.String
	u.Address = address.String
	u.PasswordResetToken = token.String
	if changedAt.Valid {
		u.PasswordChangedAt = &changedAt.Time
	}
	if resetExpires.Valid {
		u.PasswordResetExpires = &resetExpires.Time
	}
	return &u, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
