package routes

import (
	"net/http"
	"time"

	"github.com/zatekoja/pgfinder/internal/api/handlers"
	"github.com/zatekoja/pgfinder/internal/api/loaders"
	"github.com/zatekoja/pgfinder/internal/api/middleware"
	"github.com/zatekoja/pgfinder/internal/api/respond"
	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	"github.com/zatekoja/pgfinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

// Options holds the limits applied by the router
type Options struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	AuthRequests   int
	AuthWindow     time.Duration
}

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	listingHandler *handlers.ListingHandler
	reviewHandler  *handlers.ReviewHandler
	authHandler    *handlers.AuthHandler
	userHandler    *handlers.UserHandler
	imageHandler   *handlers.ImageHandler
	healthHandler  *handlers.HealthHandler

	auth            *middleware.Auth
	cacheMiddleware *middleware.CacheMiddleware
	userRepo        repositories.UserRepository
	metrics         *observability.Metrics
	opts            Options
}

// NewRouter creates a new router
func NewRouter(
	listingHandler *handlers.ListingHandler,
	reviewHandler *handlers.ReviewHandler,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	imageHandler *handlers.ImageHandler,
	healthHandler *handlers.HealthHandler,
	auth *middleware.Auth,
	cacheMiddleware *middleware.CacheMiddleware,
	userRepo repositories.UserRepository,
	metrics *observability.Metrics,
	opts Options,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		listingHandler:  listingHandler,
		reviewHandler:   reviewHandler,
		authHandler:     authHandler,
		userHandler:     userHandler,
		imageHandler:    imageHandler,
		healthHandler:   healthHandler,
		auth:            auth,
		cacheMiddleware: cacheMiddleware,
		userRepo:        userRepo,
		metrics:         metrics,
		opts:            opts,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	var (
		protect   = r.auth.Protect
		cached    = r.cacheMiddleware.Middleware
		body      = middleware.BodyLimit(r.opts.MaxBodyBytes)
		limited   = middleware.RateLimitByIP(r.opts.AuthRequests, r.opts.AuthWindow)
		owners    = middleware.RestrictTo(entities.RolePGOwner, entities.RoleAdmin)
		admins    = middleware.RestrictTo(entities.RoleAdmin)
		withUsers = loaders.Middleware(r.userRepo)
	)

	r.mux.HandleFunc("GET /health", r.healthHandler.Health)

	// Listings
	r.handle("POST /api/v1/pg", r.listingHandler.CreateListing, body, protect, owners)
	r.handle("GET /api/v1/pg/search", r.listingHandler.SearchListings, cached)
	r.handle("GET /api/v1/pg/near", r.listingHandler.NearbyListings, cached)
	r.handle("GET /api/v1/pg/{id}", r.listingHandler.GetListing, cached)
	r.handle("PATCH /api/v1/pg/{id}", r.listingHandler.UpdateListing, body, protect)
	r.handle("DELETE /api/v1/pg/{id}", r.listingHandler.DeleteListing, protect)
	r.handle("PATCH /api/v1/pg/{id}/images", r.listingHandler.AttachImages, body, protect)

	// Images
	r.handle("POST /api/v1/pg/images", r.imageHandler.UploadImages, protect, owners)
	r.handle("DELETE /api/v1/pg/images", r.imageHandler.DestroyImages, body, protect, owners)

	// Sessions
	r.handle("POST /api/v1/user/signup", r.authHandler.Signup, limited, body)
	r.handle("POST /api/v1/user/login", r.authHandler.Login, limited, body)
	r.handle("GET /api/v1/user/logout", r.authHandler.Logout)
	r.handle("POST /api/v1/user/refresh", r.authHandler.Refresh)
	r.handle("POST /api/v1/user/forgotPassword", r.authHandler.ForgotPassword, limited, body)
	r.handle("PATCH /api/v1/user/resetPassword/{token}", r.authHandler.ResetPassword, limited, body)
	r.handle("PATCH /api/v1/user/updatePassword", r.authHandler.UpdatePassword, body, protect)
	r.handle("GET /api/v1/user/auth/google", r.authHandler.GoogleLogin)
	r.handle("GET /api/v1/user/auth/google/callback", r.authHandler.GoogleCallback)

	// Profile and administration
	r.handle("GET /api/v1/user/me", r.userHandler.GetMe, protect)
	r.handle("PATCH /api/v1/user/updateMe", r.userHandler.UpdateMe, body, protect)
	r.handle("GET /api/v1/user", r.userHandler.ListUsers, protect, admins)
	r.handle("POST /api/v1/user", r.userHandler.CreateUser, body, protect, admins)
	r.handle("GET /api/v1/user/{id}", r.userHandler.GetUser, protect, admins)
	r.handle("PATCH /api/v1/user/{id}", r.userHandler.UpdateUser, body, protect, admins)
	r.handle("DELETE /api/v1/user/{id}", r.userHandler.DeleteUser, protect, admins)

	// Reviews
	r.handle("GET /api/v1/review/pg/{pgID}", r.reviewHandler.GetAllReviews, cached, withUsers)
	r.handle("POST /api/v1/review/pg/{pgID}", r.reviewHandler.CreateReview, body, protect)
	r.handle("GET /api/v1/review/{id}", r.reviewHandler.GetReview, withUsers)
	r.handle("PATCH /api/v1/review/{id}", r.reviewHandler.UpdateReview, body, protect)
	r.handle("DELETE /api/v1/review/{id}", r.reviewHandler.DeleteReview, protect)

	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		respond.Error(w, req, apperrors.NewNotFoundError("Can't find "+req.URL.Path+" on this server!"))
	})

	// The mux sets r.Pattern on the request it receives, so the middleware
	// below must pass the request through without copying it.
	var handler http.Handler = r.mux
	handler = middleware.CORS(r.opts.AllowedOrigins)(handler)
	handler = middleware.Logging(handler)
	handler = middleware.Observability(r.metrics)(handler)
	handler = middleware.Recover(handler)
	return handler
}

// handle registers h behind mws; the first middleware runs first
func (r *Router) handle(pattern string, h http.HandlerFunc, mws ...func(http.Handler) http.Handler) {
	var handler http.Handler = h
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	r.mux.Handle(pattern, handler)
}
