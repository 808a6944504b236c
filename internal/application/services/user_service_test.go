package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
	"github.com/zatekoja/pgfinder/pkg/validation"
)

func newUserFixture() (*UserService, *MockUserRepository, *MockListingRepository, *memoryTokenStore) {
	users := &MockUserRepository{}
	listings := &MockListingRepository{}
	store := newMemoryTokenStore()
	return NewUserService(users, listings, store, validation.New()), users, listings, store
}

func TestUserService_GetMe(t *testing.T) {
	svc, users, listings, _ := newUserFixture()
	user := &entities.User{ID: "owner-1", Name: "Ravi", Role: entities.RolePGOwner}
	users.On("GetByID", mock.Anything, "owner-1").Return(user, nil).Once()
	listings.On("ListByOwner", mock.Anything, "owner-1").Return([]*entities.Listing{storedListing("owner-1")}, nil).Once()

	profile, err := svc.GetMe(context.Background(), "owner-1")
	require.NoError(t, err)

	assert.Equal(t, user, profile.User)
	assert.Len(t, profile.Listings, 1)
}

func TestUserService_UpdateMe_RejectsPasswords(t *testing.T) {
	svc, users, _, _ := newUserFixture()

	for _, key := range []string{"password", "passwordConfirm"} {
		_, err := svc.UpdateMe(context.Background(), "user-1", map[string]any{key: "x", "name": "Ravi"})
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, 400, appErr.HTTPStatus())
		assert.Equal(t, "This route is not for password updates. Please use /updatePassword.", appErr.Message)
	}
	users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestUserService_UpdateMe_OnlyProfileFields(t *testing.T) {
	svc, users, _, _ := newUserFixture()
	user := &entities.User{ID: "user-1", Name: "Ravi", Email: "ravi@example.com", Role: entities.RoleUser}
	users.On("GetByID", mock.Anything, "user-1").Return(user, nil).Once()
	users.On("Update", mock.Anything, user).Return(nil).Once()

	updated, err := svc.UpdateMe(context.Background(), "user-1", map[string]any{
		"name":  "Ravi Kumar",
		"about": "<i>Student</i>",
		"phone": "9876543210",
		"role":  "admin",
		"email": "other@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "Ravi Kumar", updated.Name)
	assert.Equal(t, "Student", updated.About)
	assert.Equal(t, "9876543210", updated.Phone)
	assert.Equal(t, entities.RoleUser, updated.Role)
	assert.Equal(t, "ravi@example.com", updated.Email)
}

func TestUserService_UpdateMe_InvalidValues(t *testing.T) {
	svc, users, _, _ := newUserFixture()
	users.On("GetByID", mock.Anything, "user-1").
		Return(&entities.User{ID: "user-1", Name: "Ravi", Email: "ravi@example.com", Role: entities.RoleUser}, nil)

	_, err := svc.UpdateMe(context.Background(), "user-1", map[string]any{"phone": "123"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"phone"}, appErr.Fields)

	_, err = svc.UpdateMe(context.Background(), "user-1", map[string]any{"name": 42})
	appErr, ok = apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"name"}, appErr.Fields)
	users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUserService_UpdateUser_AdminMayChangeRole(t *testing.T) {
	svc, users, _, _ := newUserFixture()
	user := &entities.User{ID: "user-1", Name: "Ravi", Email: "ravi@example.com", Role: entities.RoleUser}
	users.On("GetByID", mock.Anything, "user-1").Return(user, nil).Once()
	users.On("Update", mock.Anything, user).Return(nil).Once()

	updated, err := svc.UpdateUser(context.Background(), "user-1", map[string]any{"role": "pgOwner", "password": "ignored"})
	require.NoError(t, err)

	assert.Equal(t, entities.RolePGOwner, updated.Role)
	assert.Empty(t, updated.PasswordHash)
}

func TestUserService_CreateUser(t *testing.T) {
	svc, users, _, _ := newUserFixture()
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *entities.User) bool {
		return u.Role == entities.RoleAdmin && u.Email == "root@example.com"
	})).Return(nil).Once()

	user, err := svc.CreateUser(context.Background(), CreateUserInput{
		Name:            "Root",
		Email:           "Root@Example.com",
		Password:        testPassword,
		PasswordConfirm: testPassword,
		Role:            "admin",
	})
	require.NoError(t, err)
	assert.True(t, checkPassword(user.PasswordHash, testPassword))
}

func TestUserService_DeleteUser_RevokesSessions(t *testing.T) {
	svc, users, _, store := newUserFixture()
	users.On("Delete", mock.Anything, "user-1").Return(nil).Once()
	require.NoError(t, store.Save(context.Background(), "user-1", "t1", 0))
	require.NoError(t, store.Save(context.Background(), "user-1", "t2", 0))

	require.NoError(t, svc.DeleteUser(context.Background(), "user-1"))
	assert.Equal(t, 0, store.count("user-1"))
}

func TestUserService_ListUsers_Pages(t *testing.T) {
	svc, users, _, _ := newUserFixture()
	users.On("List", mock.Anything, usersPerPage, usersPerPage).Return([]*entities.User{}, nil).Once()

	_, err := svc.ListUsers(context.Background(), 2)
	require.NoError(t, err)
	users.AssertExpectations(t)
}
