package cloudinary

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/pgfinder/pkg/config"
)

// Client wraps the Cloudinary SDK handle together with the target folder
type Client struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewClient builds a Cloudinary client from credentials
func NewClient(cfg *config.CloudinaryConfig) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("cloudinary credentials are not configured")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true

	log.Info().Str("cloud", cfg.CloudName).Str("folder", cfg.Folder).Msg("Cloudinary client ready")
	return &Client{cld: cld, folder: cfg.Folder}, nil
}

// SDK returns the underlying Cloudinary handle
func (c *Client) SDK() *cloudinary.Cloudinary {
	return c.cld
}

// Folder returns the folder uploads are stored under
func (c *Client) Folder() string {
	return c.folder
}

// Ping calls the admin ping endpoint
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.cld.Admin.Ping(ctx)
	if err != nil {
		return err
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary ping: %s", res.Error.Message)
	}
	return nil
}
