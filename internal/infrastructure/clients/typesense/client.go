package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/pkg/config"
	"github.com/ddeok-labs/search-backend/pkg/retry"
	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

const collectionPrefix = "autocomplete_"

// CollectionName returns the Typesense collection holding a domain's entities
func CollectionName(domain entities.Domain) string {
	return collectionPrefix + string(domain)
}

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

	err := retry.DoWithLog(context.Background(), retry.DefaultConfig(), "Typesense", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_, err := client.Health(ctx, 2*time.Second)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Msg("Successfully connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// InitSchema ensures the collection of every domain exists
func (c *Client) InitSchema(ctx context.Context, domains ...entities.Domain) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	existing := make(map[string]struct{}, len(collections))
	for _, col := range collections {
		existing[col.Name] = struct{}{}
	}

	for _, domain := range domains {
		name := CollectionName(domain)
		if _, ok := existing[name]; ok {
			continue
		}
		if _, err := c.client.Collections().Create(ctx, entitySchema(name)); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
		log.Info().Str("collection", name).Msg("Created Typesense collection")
	}
	return nil
}

// UpsertEntity indexes one entity document
func (c *Client) UpsertEntity(ctx context.Context, domain entities.Domain, document map[string]interface{}) error {
	_, err := c.client.Collection(CollectionName(domain)).Documents().Upsert(ctx, document)
	return err
}

// DeleteEntities deletes the domain documents matching filterBy and returns
// how many were removed
func (c *Client) DeleteEntities(ctx context.Context, domain entities.Domain, filterBy string) (int, error) {
	return c.client.Collection(CollectionName(domain)).Documents().Delete(ctx, &api.DeleteDocumentsParams{
		FilterBy: pointer.String(filterBy),
	})
}

func entitySchema(name string) *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: name,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "popularity", Type: "float"},
			{Name: "primary", Type: "bool", Facet: pointer.True()},
			{Name: "store_id", Type: "string", Optional: pointer.True()},
			{Name: "category_id", Type: "string", Optional: pointer.True()},
			{Name: "seq", Type: "int64"},
			{Name: "generation", Type: "int64"},
		},
		DefaultSortingField: pointer.String("popularity"),
	}
}
