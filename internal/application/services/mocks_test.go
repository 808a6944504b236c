package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/providers"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	"github.com/zatekoja/pgfinder/pkg/config"
)

func init() {
	bcryptCost = 4
}

func testTokenManager() *TokenManager {
	return NewTokenManager(config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    30 * 24 * time.Hour,
	})
}

type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Create(ctx context.Context, listing *entities.Listing) error {
	return m.Called(ctx, listing).Error(0)
}

func (m *MockListingRepository) GetByID(ctx context.Context, id string) (*entities.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Listing), args.Error(1)
}

func (m *MockListingRepository) GetBySlug(ctx context.Context, slug string) (*entities.Listing, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Listing), args.Error(1)
}

func (m *MockListingRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.Listing, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Listing), args.Error(1)
}

func (m *MockListingRepository) Update(ctx context.Context, listing *entities.Listing) error {
	return m.Called(ctx, listing).Error(0)
}

func (m *MockListingRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockListingRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Listing, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Listing), args.Error(1)
}

func (m *MockListingRepository) List(ctx context.Context, limit, offset int) ([]*entities.Listing, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Listing), args.Error(1)
}

func (m *MockListingRepository) Search(ctx context.Context, filter repositories.ListingFilter) ([]*entities.Listing, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*entities.Listing), args.Int(1), args.Error(2)
}

func (m *MockListingRepository) UpdateRatings(ctx context.Context, id string, summary entities.RatingSummary) error {
	return m.Called(ctx, id, summary).Error(0)
}

func (m *MockListingRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

type MockListingSearchRepository struct {
	mock.Mock
}

func (m *MockListingSearchRepository) Search(ctx context.Context, filter repositories.ListingFilter) (*repositories.SearchHits, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.SearchHits), args.Error(1)
}

func (m *MockListingSearchRepository) Index(ctx context.Context, listing *entities.Listing) error {
	return m.Called(ctx, listing).Error(0)
}

func (m *MockListingSearchRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) Create(ctx context.Context, review *entities.Review) error {
	return m.Called(ctx, review).Error(0)
}

func (m *MockReviewRepository) GetByID(ctx context.Context, id string) (*entities.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Review), args.Error(1)
}

func (m *MockReviewRepository) ListByListing(ctx context.Context, listingID string, limit, offset int) ([]*entities.Review, error) {
	args := m.Called(ctx, listingID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Review), args.Error(1)
}

func (m *MockReviewRepository) UpdateOwned(ctx context.Context, review *entities.Review) error {
	return m.Called(ctx, review).Error(0)
}

func (m *MockReviewRepository) DeleteOwned(ctx context.Context, id, userID string) (string, error) {
	args := m.Called(ctx, id, userID)
	return args.String(0), args.Error(1)
}

func (m *MockReviewRepository) Summary(ctx context.Context, listingID string) (entities.RatingSummary, error) {
	args := m.Called(ctx, listingID)
	return args.Get(0).(entities.RatingSummary), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByResetToken(ctx context.Context, email, tokenHash string, now time.Time) (*entities.User, error) {
	args := m.Called(ctx, email, tokenHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*entities.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *entities.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// memoryTokenStore is a TokenStore kept in a map
type memoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]map[string]bool
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{tokens: map[string]map[string]bool{}}
}

func (s *memoryTokenStore) Save(_ context.Context, userID, token string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens[userID] == nil {
		s.tokens[userID] = map[string]bool{}
	}
	s.tokens[userID][token] = true
	return nil
}

func (s *memoryTokenStore) Exists(_ context.Context, userID, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[userID][token], nil
}

func (s *memoryTokenStore) Remove(_ context.Context, userID, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.tokens[userID][token]
	delete(s.tokens[userID], token)
	return held, nil
}

func (s *memoryTokenStore) RemoveAll(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

func (s *memoryTokenStore) count(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens[userID])
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, email providers.Email) error {
	return m.Called(ctx, email).Error(0)
}

type MockOAuthProvider struct {
	mock.Mock
}

func (m *MockOAuthProvider) AuthCodeURL(state string) string {
	return m.Called(state).String(0)
}

func (m *MockOAuthProvider) Exchange(ctx context.Context, code string) (*entities.OAuthUserInfo, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.OAuthUserInfo), args.Error(1)
}

type MockMediaStore struct {
	mock.Mock
}

func (m *MockMediaStore) Upload(ctx context.Context, publicID string, r io.Reader) (*entities.Image, error) {
	args := m.Called(ctx, publicID, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Image), args.Error(1)
}

func (m *MockMediaStore) Destroy(ctx context.Context, publicID string) error {
	return m.Called(ctx, publicID).Error(0)
}

// recordingEventBus keeps published events in memory
type recordingEventBus struct {
	mu     sync.Mutex
	events []*entities.ListingEvent
	subs   []chan *entities.ListingEvent
}

func (b *recordingEventBus) Publish(_ context.Context, _ string, event *entities.ListingEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	for _, ch := range b.subs {
		ch <- event
	}
	return nil
}

func (b *recordingEventBus) Subscribe(_ context.Context, _ string) (<-chan *entities.ListingEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan *entities.ListingEvent, 10)
	b.subs = append(b.subs, ch)
	return ch, nil
}

func (b *recordingEventBus) Unsubscribe(context.Context, string) error { return nil }

func (b *recordingEventBus) Close() error { return nil }

func (b *recordingEventBus) types() []entities.ListingEventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]entities.ListingEventType, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventType)
	}
	return out
}
