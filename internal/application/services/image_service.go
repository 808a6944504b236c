package services

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/providers"
	"github.com/zatekoja/pgfinder/internal/infrastructure/observability"
	"github.com/zatekoja/pgfinder/pkg/config"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
	"github.com/zatekoja/pgfinder/pkg/retry"
	"github.com/zatekoja/pgfinder/pkg/textutil"
)

const (
	imagePublicIDPrefix = "pg_image_"
	imagePublicIDLen    = 15
)

// ImageFile is an uploaded file held in memory
type ImageFile struct {
	Name string
	Data []byte
}

// UploadResult lists the stored images; files that could not be stored are
// named in ImageErrors
type UploadResult struct {
	CoverImage  *entities.Image  `json:"coverImage,omitempty"`
	Images      []entities.Image `json:"images"`
	ImageErrors []string         `json:"imageErrors,omitempty"`
}

// DestroyResult reports which images were removed
type DestroyResult struct {
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed,omitempty"`
}

// ImageService uploads listing images to the media store in fixed size batches
type ImageService struct {
	media     providers.MediaStore
	batchSize int
	maxImages int
	retry     retry.Config
	metrics   *observability.Metrics
}

// NewImageService creates a new image service
func NewImageService(media providers.MediaStore, cfg config.UploadConfig, metrics *observability.Metrics) *ImageService {
	return &ImageService{
		media:     media,
		batchSize: max(cfg.Concurrency, 1),
		maxImages: cfg.MaxImages,
		retry:     retry.Fixed(cfg.RetryAttempts, cfg.RetryDelay),
		metrics:   metrics,
	}
}

// Upload stores an optional cover and the gallery images. A failed file
// does not fail the request.
func (s *ImageService) Upload(ctx context.Context, cover *ImageFile, images []ImageFile) (*UploadResult, error) {
	if s.media == nil {
		return nil, apperrors.NewExternalError("Image uploads are not available right now.", nil).Expose()
	}
	if len(images) > s.maxImages {
		return nil, apperrors.NewBadRequestError("You can upload maximum 50 pictures.")
	}

	result := &UploadResult{Images: make([]entities.Image, 0, len(images))}

	if cover != nil {
		img, err := s.uploadOne(ctx, *cover)
		if err != nil {
			log.Warn().Err(err).Str("file", cover.Name).Msg("cover image upload failed")
		} else {
			result.CoverImage = img
		}
	}

	uploaded := make([]*entities.Image, len(images))
	for start := 0; start < len(images); start += s.batchSize {
		end := min(start+s.batchSize, len(images))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				img, err := s.uploadOne(ctx, images[i])
				if err != nil {
					log.Warn().Err(err).Str("file", images[i].Name).Msg("image upload failed")
					return nil
				}
				uploaded[i] = img
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, img := range uploaded {
		if img == nil {
			result.ImageErrors = append(result.ImageErrors, images[i].Name)
			continue
		}
		result.Images = append(result.Images, *img)
	}
	return result, nil
}

// Destroy removes images from the media store. Failures are reported per id.
func (s *ImageService) Destroy(ctx context.Context, publicIDs []string) (*DestroyResult, error) {
	if s.media == nil {
		return nil, apperrors.NewExternalError("Image uploads are not available right now.", nil).Expose()
	}
	if len(publicIDs) == 0 {
		return nil, apperrors.NewValidationError("publicIds is required.").WithFields("publicIds")
	}
	if len(publicIDs) > s.maxImages {
		return nil, apperrors.NewBadRequestError("You can delete maximum 50 pictures at once.")
	}

	var (
		mu     sync.Mutex
		result = &DestroyResult{Deleted: make([]string, 0, len(publicIDs))}
		g      errgroup.Group
	)
	g.SetLimit(s.batchSize)
	for _, id := range publicIDs {
		g.Go(func() error {
			err := s.media.Destroy(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("public_id", id).Msg("image delete failed")
				result.Failed = append(result.Failed, id)
				return nil
			}
			result.Deleted = append(result.Deleted, id)
			return nil
		})
	}
	_ = g.Wait()
	return result, nil
}

func (s *ImageService) uploadOne(ctx context.Context, file ImageFile) (*entities.Image, error) {
	suffix, err := textutil.RandomID(imagePublicIDLen)
	if err != nil {
		return nil, err
	}
	publicID := imagePublicIDPrefix + suffix

	var img *entities.Image
	err = retry.DoWithLog(ctx, s.retry, "upload "+file.Name, func() error {
		var uerr error
		img, uerr = s.media.Upload(ctx, publicID, bytes.NewReader(file.Data))
		return uerr
	}, func(attempt int, err error, next time.Duration) {
		log.Debug().Err(err).Int("attempt", attempt).Dur("next_delay", next).Str("file", file.Name).Msg("retrying image upload")
	})

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	observability.RecordImageUpload(ctx, s.metrics, outcome)
	return img, err
}
