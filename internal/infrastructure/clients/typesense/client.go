package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/pgfinder/pkg/config"
	"github.com/zatekoja/pgfinder/pkg/retry"
)

// ListingsCollection is the Typesense collection holding searchable listings
const ListingsCollection = "listings"

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// Ping reports whether the Typesense node is healthy
func (c *Client) Ping(ctx context.Context) error {
	ok, err := c.client.Health(ctx, 2*time.Second)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("typesense reports unhealthy")
	}
	return nil
}

// ListingsSchema describes the listings collection
func ListingsSchema() *api.CollectionSchema {
	facet := func(name, typ string) api.Field {
		return api.Field{Name: name, Type: typ, Facet: pointer.True()}
	}
	return &api.CollectionSchema{
		Name: ListingsCollection,
		Fields: []api.Field{
			{Name: "name", Type: "string"},
			{Name: "slug", Type: "string"},
			{Name: "description", Type: "string"},
			facet("locality", "string"),
			facet("city", "string"),
			facet("state", "string"),
			facet("pg_type", "string"),
			facet("food", "string"),
			{Name: "location", Type: "geopoint"},
			facet("min_price", "int32"),
			facet("max_price", "int32"),
			facet("occupancies", "int32[]"),
			facet("has_ac", "bool"),
			{Name: "amenities", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "rules", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			facet("ratings_average", "float"),
			{Name: "ratings_quantity", Type: "int32"},
			{Name: "owner_id", Type: "string"},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at"),
	}
}

// InitSchema ensures the listings collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == ListingsCollection {
			log.Debug().Str("collection", ListingsCollection).Msg("Typesense collection already exists")
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, ListingsSchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", ListingsCollection).Msg("created Typesense collection")
	return nil
}

// DropCollection removes the listings collection, used by the indexer's reset mode
func (c *Client) DropCollection(ctx context.Context) error {
	if _, err := c.client.Collection(ListingsCollection).Delete(ctx); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
