package loaders

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders holds the per-request batch loaders
type Loaders struct {
	AuthorLoader *dataloader.Loader[string, *entities.ReviewAuthor]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(userRepo repositories.UserRepository) *Loaders {
	return &Loaders{
		AuthorLoader: dataloader.NewBatchedLoader(
			func(ctx context.Context, keys []string) []*dataloader.Result[*entities.ReviewAuthor] {
				results := make([]*dataloader.Result[*entities.ReviewAuthor], len(keys))
				users, err := userRepo.GetByIDs(ctx, keys)

				userMap := make(map[string]*entities.User, len(users))
				if err == nil {
					for _, u := range users {
						userMap[u.ID] = u
					}
				}

				for i, key := range keys {
					if err != nil {
						results[i] = &dataloader.Result[*entities.ReviewAuthor]{Error: err}
					} else if u, ok := userMap[key]; ok {
						results[i] = &dataloader.Result[*entities.ReviewAuthor]{Data: &entities.ReviewAuthor{ID: u.ID, Name: u.Name}}
					} else {
						results[i] = &dataloader.Result[*entities.ReviewAuthor]{Error: fmt.Errorf("user %s not found", key)}
					}
				}
				return results
			},
			dataloader.WithWait[string, *entities.ReviewAuthor](2*time.Millisecond),
		),
	}
}

// For returns the loaders for a given context, or nil
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Middleware attaches a fresh set of loaders to every request
func Middleware(userRepo repositories.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(userRepo))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AttachAuthors sets the author of each review in one batched lookup.
// Reviews whose author is gone keep a nil Author.
func AttachAuthors(ctx context.Context, reviews []*entities.Review) {
	l := For(ctx)
	if l == nil || len(reviews) == 0 {
		return
	}

	keys := make([]string, len(reviews))
	for i, r := range reviews {
		keys[i] = r.UserID
	}
	authors, _ := l.AuthorLoader.LoadMany(ctx, keys)()
	for i, a := range authors {
		reviews[i].Author = a
	}
}
