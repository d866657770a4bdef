package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ddeok-labs/search-backend/internal/domain/entities"
	"github.com/ddeok-labs/search-backend/internal/domain/repositories"
	tsclient "github.com/ddeok-labs/search-backend/internal/infrastructure/clients/typesense"
	apperrors "github.com/ddeok-labs/search-backend/pkg/errors"
	"github.com/ddeok-labs/search-backend/pkg/hangul"
	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

// maxPerPage is the Typesense per_page ceiling
const maxPerPage = 250

// TypesenseEntityAdapter serves entity lookups from the per-domain
// autocomplete collections
type TypesenseEntityAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseEntityAdapter implements EntityRepository
var _ repositories.EntityRepository = (*TypesenseEntityAdapter)(nil)

// NewTypesenseEntityAdapter creates a new Typesense entity adapter
func NewTypesenseEntityAdapter(client *tsclient.Client) *TypesenseEntityAdapter {
	return &TypesenseEntityAdapter{client: client}
}

// FindByNamePrefix searches the name field and keeps only names that start
// with prefix, since Typesense matches word prefixes and tolerates typos.
func (a *TypesenseEntityAdapter) FindByNamePrefix(ctx context.Context, domain entities.Domain, prefix string, limit int) ([]*entities.AutocompleteEntity, error) {
	normalized := hangul.NormalizeKeyword(prefix)
	if normalized == "" || limit <= 0 {
		return []*entities.AutocompleteEntity{}, nil
	}

	params := &api.SearchCollectionParams{
		Q:       pointer.String(normalized),
		QueryBy: pointer.String("name"),
		SortBy:  pointer.String("popularity:desc"),
		PerPage: pointer.Int(min(limit*2, maxPerPage)),
	}
	docs, err := a.search(ctx, domain, params)
	if err != nil {
		return nil, err
	}

	items := make([]*entities.AutocompleteEntity, 0, len(docs))
	for _, doc := range docs {
		item := documentToEntity(doc)
		if !strings.HasPrefix(hangul.NormalizeKeyword(item.Name), normalized) {
			continue
		}
		items = append(items, item)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

// FindByIDs fetches documents by id in chunks of the per_page ceiling
func (a *TypesenseEntityAdapter) FindByIDs(ctx context.Context, domain entities.Domain, ids []string) ([]*entities.AutocompleteEntity, error) {
	items := []*entities.AutocompleteEntity{}
	for start := 0; start < len(ids); start += maxPerPage {
		chunk := ids[start:min(start+maxPerPage, len(ids))]
		params := &api.SearchCollectionParams{
			Q:        pointer.String("*"),
			QueryBy:  pointer.String("name"),
			FilterBy: pointer.String(idFilter(chunk)),
			PerPage:  pointer.Int(len(chunk)),
		}
		docs, err := a.search(ctx, domain, params)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			items = append(items, documentToEntity(doc))
		}
	}
	return items, nil
}

// Count returns the number of documents in the domain collection
func (a *TypesenseEntityAdapter) Count(ctx context.Context, domain entities.Domain) (int, error) {
	params := &api.SearchCollectionParams{
		Q:       pointer.String("*"),
		QueryBy: pointer.String("name"),
		PerPage: pointer.Int(0),
	}
	result, err := a.client.Client().Collection(tsclient.CollectionName(domain)).Documents().Search(ctx, params)
	if err != nil {
		return 0, apperrors.NewExternalError("failed to count documents", err)
	}
	if result.Found == nil {
		return 0, nil
	}
	return *result.Found, nil
}

// Page returns one zero-based page ordered by the seq field. Pages larger
// than the per_page ceiling are assembled from aligned sub-pages.
func (a *TypesenseEntityAdapter) Page(ctx context.Context, domain entities.Domain, pageNumber, pageSize int) ([]*entities.AutocompleteEntity, error) {
	if pageNumber < 0 || pageSize <= 0 {
		return nil, apperrors.NewValidationError("page number must be >= 0 and page size > 0")
	}

	sub := subPageSize(pageSize)
	first := pageNumber * pageSize / sub
	items := make([]*entities.AutocompleteEntity, 0, pageSize)

	for p := first; p < first+pageSize/sub; p++ {
		params := &api.SearchCollectionParams{
			Q:       pointer.String("*"),
			QueryBy: pointer.String("name"),
			SortBy:  pointer.String("seq:asc"),
			Page:    pointer.Int(p + 1),
			PerPage: pointer.Int(sub),
		}
		docs, err := a.search(ctx, domain, params)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			items = append(items, documentToEntity(doc))
		}
		if len(docs) < sub {
			break
		}
	}
	return items, nil
}

// Index replaces the domain's documents with items, which must be the whole
// domain. Every document is stamped with a new generation; documents of older
// generations (entities gone from the system of record) are deleted after the
// upserts succeed. seqStart numbers the documents so that Page can walk them
// in a stable order.
func (a *TypesenseEntityAdapter) Index(ctx context.Context, domain entities.Domain, items []*entities.AutocompleteEntity, seqStart int64) error {
	generation := time.Now().UnixNano()
	for i, item := range items {
		if err := a.client.UpsertEntity(ctx, domain, EntityDocument(item, seqStart+int64(i), generation)); err != nil {
			return apperrors.NewExternalError(fmt.Sprintf("failed to index entity %s", item.ID), err)
		}
	}

	deleted, err := a.client.DeleteEntities(ctx, domain, staleFilter(generation))
	if err != nil {
		return apperrors.NewExternalError("failed to delete stale entities", err)
	}
	if deleted > 0 {
		log.Info().Str("domain", string(domain)).Int("deleted", deleted).Msg("Deleted stale search documents")
	}
	return nil
}

func (a *TypesenseEntityAdapter) search(ctx context.Context, domain entities.Domain, params *api.SearchCollectionParams) ([]map[string]interface{}, error) {
	result, err := a.client.Client().Collection(tsclient.CollectionName(domain)).Documents().Search(ctx, params)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to search entities", err)
	}
	if result.Hits == nil {
		return nil, nil
	}

	docs := make([]map[string]interface{}, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document != nil {
			docs = append(docs, *hit.Document)
		}
	}
	return docs, nil
}

// EntityDocument builds the Typesense document of an entity
func EntityDocument(item *entities.AutocompleteEntity, seq, generation int64) map[string]interface{} {
	doc := map[string]interface{}{
		"id":         item.ID,
		"name":       item.Name,
		"popularity": item.Popularity,
		"primary":    item.IsPrimary(),
		"seq":        seq,
		"generation": generation,
	}
	if v := item.Attr(entities.AttrStoreID); v != "" {
		doc["store_id"] = v
	}
	if v := item.Attr(entities.AttrCategoryID); v != "" {
		doc["category_id"] = v
	}
	return doc
}

func documentToEntity(doc map[string]interface{}) *entities.AutocompleteEntity {
	item := &entities.AutocompleteEntity{}
	item.ID, _ = doc["id"].(string)
	item.Name, _ = doc["name"].(string)
	item.Popularity, _ = doc["popularity"].(float64)

	attrs := map[string]string{}
	if v, ok := doc["primary"].(bool); ok {
		attrs[entities.AttrPrimary] = strconv.FormatBool(v)
	}
	if v, ok := doc["store_id"].(string); ok && v != "" {
		attrs[entities.AttrStoreID] = v
	}
	if v, ok := doc["category_id"].(string); ok && v != "" {
		attrs[entities.AttrCategoryID] = v
	}
	if len(attrs) > 0 {
		item.Attributes = attrs
	}
	return item
}

// staleFilter matches documents indexed before generation
func staleFilter(generation int64) string {
	return fmt.Sprintf("generation:<%d", generation)
}

// idFilter builds an id:[...] filter with every id backtick-quoted
func idFilter(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "`" + strings.ReplaceAll(id, "`", "") + "`"
	}
	return "id:[" + strings.Join(quoted, ",") + "]"
}

// subPageSize returns the largest divisor of pageSize within the per_page
// ceiling, so sub-pages stay aligned with the requested page.
func subPageSize(pageSize int) int {
	for d := min(pageSize, maxPerPage); d > 1; d-- {
		if pageSize%d == 0 {
			return d
		}
	}
	return 1
}
