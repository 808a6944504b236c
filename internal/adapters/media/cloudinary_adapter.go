package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/providers"
	cldclient "github.com/zatekoja/pgfinder/internal/infrastructure/clients/cloudinary"
)

const eagerTransformation = "q_60,f_auto,fl_progressive"

// ErrUnavailable is returned while the circuit breaker is open
var ErrUnavailable = errors.New("media store temporarily unavailable")

// uploadAPI is the part of the Cloudinary upload API the adapter uses
type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, uploadParams uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryAdapter implements MediaStore on Cloudinary behind a circuit breaker
type CloudinaryAdapter struct {
	api    uploadAPI
	folder string
	cb     *gobreaker.CircuitBreaker[any]
}

var _ providers.MediaStore = (*CloudinaryAdapter)(nil)

// NewCloudinaryAdapter creates a media store from a configured Cloudinary client
func NewCloudinaryAdapter(client *cldclient.Client) *CloudinaryAdapter {
	return newCloudinaryAdapter(&client.SDK().Upload, client.Folder())
}

func newCloudinaryAdapter(upload uploadAPI, folder string) *CloudinaryAdapter {
	return &CloudinaryAdapter{
		api:    upload,
		folder: folder,
		cb:     newBreaker("cloudinary"),
	}
}

// newBreaker opens after 5 consecutive failures, or 60% failures over at least 10 requests
func newBreaker(name string) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 5 {
				return true
			}
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
}

// Upload stores r as folder/publicID with the progressive eager transformation
func (a *CloudinaryAdapter) Upload(ctx context.Context, publicID string, r io.Reader) (*entities.Image, error) {
	res, err := a.cb.Execute(func() (any, error) {
		result, err := a.api.Upload(ctx, r, uploader.UploadParams{
			PublicID:   publicID,
			Folder:     a.folder,
			Eager:      eagerTransformation,
			EagerAsync: api.Bool(true),
		})
		if err != nil {
			return nil, err
		}
		if result.Error.Message != "" {
			return nil, fmt.Errorf("cloudinary: %s", result.Error.Message)
		}
		return result, nil
	})
	if err != nil {
		return nil, breakerError("upload", publicID, err)
	}

	result := res.(*uploader.UploadResult)
	return &entities.Image{PublicID: publicID, Version: result.Version}, nil
}

// Destroy removes folder/publicID and invalidates CDN copies
func (a *CloudinaryAdapter) Destroy(ctx context.Context, publicID string) error {
	_, err := a.cb.Execute(func() (any, error) {
		result, err := a.api.Destroy(ctx, uploader.DestroyParams{
			PublicID:     path.Join(a.folder, publicID),
			ResourceType: "image",
			Invalidate:   api.Bool(true),
		})
		if err != nil {
			return nil, err
		}
		if result.Error.Message != "" {
			return nil, fmt.Errorf("cloudinary: %s", result.Error.Message)
		}
		if result.Result != "ok" && result.Result != "not found" {
			return nil, fmt.Errorf("cloudinary destroy returned %q", result.Result)
		}
		return nil, nil
	})
	if err != nil {
		return breakerError("destroy", publicID, err)
	}
	return nil
}

func breakerError(op, publicID string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s %s: %w", op, publicID, ErrUnavailable)
	}
	return fmt.Errorf("%s %s: %w", op, publicID, err)
}
