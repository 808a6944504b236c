package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/zatekoja/pgfinder/internal/api/respond"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

// BodyLimit caps request bodies at maxBytes. Multipart uploads are limited
// by the upload handler instead.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				respond.Error(w, r, apperrors.NewTooLargeError("Request body too large"))
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP allows requests per window for each client IP. Rejected
// requests get a 429 in the error envelope.
func RateLimitByIP(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respond.JSON(w, http.StatusTooManyRequests, respond.ErrorBody{
				Status:  "failure",
				Message: "Too many requests from this IP, please try again later.",
			})
		}),
	)
}
