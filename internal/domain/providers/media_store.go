package providers

import (
	"context"
	"io"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
)

// MediaStore uploads and removes listing images in an external media service
type MediaStore interface {
	// Upload stores r under publicID and returns the stored image reference
	Upload(ctx context.Context, publicID string, r io.Reader) (*entities.Image, error)

	// Destroy removes an image and invalidates cached copies
	Destroy(ctx context.Context, publicID string) error
}
