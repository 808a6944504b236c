package handlers_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/internal/domain/entities"
)

type mockListingService struct {
	mock.Mock
}

func (m *mockListingService) Create(ctx context.Context, owner *entities.User, listing *entities.Listing) (*entities.Listing, error) {
	args := m.Called(ctx, owner, listing)
	l, _ := args.Get(0).(*entities.Listing)
	return l, args.Error(1)
}

func (m *mockListingService) GetListing(ctx context.Context, idOrSlug string) (*entities.Listing, error) {
	args := m.Called(ctx, idOrSlug)
	l, _ := args.Get(0).(*entities.Listing)
	return l, args.Error(1)
}

func (m *mockListingService) Update(ctx context.Context, actor *entities.User, id string, patch json.RawMessage) (*entities.Listing, error) {
	args := m.Called(ctx, actor, id, patch)
	l, _ := args.Get(0).(*entities.Listing)
	return l, args.Error(1)
}

func (m *mockListingService) Delete(ctx context.Context, actor *entities.User, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockListingService) AttachImages(ctx context.Context, actor *entities.User, id string, cover *entities.Image, images []entities.Image) (*entities.Listing, error) {
	args := m.Called(ctx, actor, id, cover, images)
	l, _ := args.Get(0).(*entities.Listing)
	return l, args.Error(1)
}

func (m *mockListingService) Search(ctx context.Context, q services.SearchQuery) (*entities.SearchResult, error) {
	args := m.Called(ctx, q)
	r, _ := args.Get(0).(*entities.SearchResult)
	return r, args.Error(1)
}

func (m *mockListingService) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]*entities.Listing, error) {
	args := m.Called(ctx, lat, lng, radiusKm, limit)
	l, _ := args.Get(0).([]*entities.Listing)
	return l, args.Error(1)
}

type mockReviewService struct {
	mock.Mock
}

func (m *mockReviewService) GetAllReviews(ctx context.Context, listingID string, page int) ([]*entities.Review, error) {
	args := m.Called(ctx, listingID, page)
	r, _ := args.Get(0).([]*entities.Review)
	return r, args.Error(1)
}

func (m *mockReviewService) CreateReview(ctx context.Context, userID, listingID string, review *entities.Review) (*entities.Review, error) {
	args := m.Called(ctx, userID, listingID, review)
	r, _ := args.Get(0).(*entities.Review)
	return r, args.Error(1)
}

func (m *mockReviewService) GetReview(ctx context.Context, id string) (*entities.Review, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*entities.Review)
	return r, args.Error(1)
}

func (m *mockReviewService) UpdateReview(ctx context.Context, userID, id string, patch services.ReviewPatch) (*entities.Review, error) {
	args := m.Called(ctx, userID, id, patch)
	r, _ := args.Get(0).(*entities.Review)
	return r, args.Error(1)
}

func (m *mockReviewService) DeleteReview(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) session(args mock.Arguments) (*entities.AuthSession, error) {
	s, _ := args.Get(0).(*entities.AuthSession)
	return s, args.Error(1)
}

func (m *mockAuthService) Signup(ctx context.Context, in services.SignupInput) (*entities.AuthSession, error) {
	return m.session(m.Called(ctx, in))
}

func (m *mockAuthService) Login(ctx context.Context, email, password, oldRefresh string) (*entities.AuthSession, error) {
	return m.session(m.Called(ctx, email, password, oldRefresh))
}

func (m *mockAuthService) Logout(ctx context.Context, refresh string) error {
	return m.Called(ctx, refresh).Error(0)
}

func (m *mockAuthService) Refresh(ctx context.Context, refresh string) (*entities.AuthSession, error) {
	return m.session(m.Called(ctx, refresh))
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, email, baseURL string) error {
	return m.Called(ctx, email, baseURL).Error(0)
}

func (m *mockAuthService) ResetPassword(ctx context.Context, token, email string, in services.PasswordInput) (*entities.AuthSession, error) {
	return m.session(m.Called(ctx, token, email, in))
}

func (m *mockAuthService) UpdatePassword(ctx context.Context, userID string, in services.UpdatePasswordInput, refresh string) (*entities.AuthSession, error) {
	return m.session(m.Called(ctx, userID, in, refresh))
}

func (m *mockAuthService) GoogleAuthURL() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockAuthService) GoogleCallback(ctx context.Context, state, code string) (*entities.AuthSession, error) {
	return m.session(m.Called(ctx, state, code))
}

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) user(args mock.Arguments) (*entities.User, error) {
	u, _ := args.Get(0).(*entities.User)
	return u, args.Error(1)
}

func (m *mockUserService) GetMe(ctx context.Context, userID string) (*entities.UserProfile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*entities.UserProfile)
	return p, args.Error(1)
}

func (m *mockUserService) UpdateMe(ctx context.Context, userID string, body map[string]any) (*entities.User, error) {
	return m.user(m.Called(ctx, userID, body))
}

func (m *mockUserService) ListUsers(ctx context.Context, page int) ([]*entities.User, error) {
	args := m.Called(ctx, page)
	u, _ := args.Get(0).([]*entities.User)
	return u, args.Error(1)
}

func (m *mockUserService) CreateUser(ctx context.Context, in services.CreateUserInput) (*entities.User, error) {
	return m.user(m.Called(ctx, in))
}

func (m *mockUserService) GetUser(ctx context.Context, id string) (*entities.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *mockUserService) UpdateUser(ctx context.Context, id string, body map[string]any) (*entities.User, error) {
	return m.user(m.Called(ctx, id, body))
}

func (m *mockUserService) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockImageService struct {
	mock.Mock
}

func (m *mockImageService) Upload(ctx context.Context, cover *services.ImageFile, images []services.ImageFile) (*services.UploadResult, error) {
	args := m.Called(ctx, cover, images)
	r, _ := args.Get(0).(*services.UploadResult)
	return r, args.Error(1)
}

func (m *mockImageService) Destroy(ctx context.Context, publicIDs []string) (*services.DestroyResult, error) {
	args := m.Called(ctx, publicIDs)
	r, _ := args.Get(0).(*services.DestroyResult)
	return r, args.Error(1)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
