package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	tsclient "github.com/zatekoja/pgfinder/internal/infrastructure/clients/typesense"
)

const queryBy = "name,locality,city,description"

// TypesenseAdapter implements listing search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.ListingSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a listing document
func (a *TypesenseAdapter) Index(ctx context.Context, listing *entities.Listing) error {
	_, err := a.client.Client().Collection(tsclient.ListingsCollection).Documents().Upsert(ctx, listingDocument(listing))
	if err != nil {
		return fmt.Errorf("failed to index listing %s: %w", listing.ID, err)
	}
	return nil
}

// Delete removes a listing from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	if _, err := a.client.Client().Collection(tsclient.ListingsCollection).Document(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete listing %s from index: %w", id, err)
	}
	return nil
}

// Search returns the ids of one page of matching listings
func (a *TypesenseAdapter) Search(ctx context.Context, filter repositories.ListingFilter) (*repositories.SearchHits, error) {
	result, err := a.client.Client().Collection(tsclient.ListingsCollection).Documents().Search(ctx, searchParams(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}

	hits := &repositories.SearchHits{DistancesKm: map[string]float64{}}
	if result.Found != nil {
		hits.Total = *result.Found
	}
	if result.Hits == nil {
		return hits, nil
	}

	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		id, ok := (*hit.Document)["id"].(string)
		if !ok {
			continue
		}
		hits.IDs = append(hits.IDs, id)
		if hit.GeoDistanceMeters != nil {
			if meters, ok := (*hit.GeoDistanceMeters)["location"]; ok {
				hits.DistancesKm[id] = float64(meters) / 1000
			}
		}
	}
	return hits, nil
}

func searchParams(filter repositories.ListingFilter) *api.SearchCollectionParams {
	q := strings.TrimSpace(filter.Query)
	if q == "" {
		q = "*"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = repositories.DefaultPageSize
	}

	params := &api.SearchCollectionParams{
		Q:             pointer.String(q),
		QueryBy:       pointer.String(queryBy),
		SortBy:        pointer.String(sortBy(filter, q != "*")),
		Page:          pointer.Int(filter.Offset/limit + 1),
		PerPage:       pointer.Int(limit),
		IncludeFields: pointer.String("id"),
	}
	if fb := filterBy(filter); fb != "" {
		params.FilterBy = pointer.String(fb)
	}
	return params
}

// filterBy renders a ListingFilter as a Typesense filter_by expression
func filterBy(f repositories.ListingFilter) string {
	var clauses []string
	exact := func(field, value string) {
		if value != "" {
			clauses = append(clauses, fmt.Sprintf("%s:=%s", field, quote(value)))
		}
	}

	exact("city", strings.ToLower(f.City))
	exact("locality", strings.ToLower(f.Locality))
	exact("state", strings.ToLower(f.State))
	exact("pg_type", f.PGType)
	exact("food", f.Food)

	if f.MinPrice > 0 {
		clauses = append(clauses, fmt.Sprintf("max_price:>=%d", f.MinPrice))
	}
	if f.MaxPrice > 0 {
		clauses = append(clauses, fmt.Sprintf("min_price:<=%d", f.MaxPrice))
	}
	if len(f.Occupancies) > 0 {
		values := make([]string, len(f.Occupancies))
		for i, o := range f.Occupancies {
			values[i] = strconv.Itoa(o)
		}
		clauses = append(clauses, fmt.Sprintf("occupancies:[%s]", strings.Join(values, ",")))
	}
	if f.AC {
		clauses = append(clauses, "has_ac:=true")
	}
	// every requested flag must be present, so one clause per name
	for _, name := range f.Amenities {
		exact("amenities", name)
	}
	for _, name := range f.Rules {
		exact("rules", name)
	}
	if f.Geo != nil {
		clauses = append(clauses, fmt.Sprintf("location:(%f, %f, %f km)", f.Geo.Lat, f.Geo.Lng, f.Geo.RadiusKm))
	}
	return strings.Join(clauses, " && ")
}

func sortBy(f repositories.ListingFilter, textQuery bool) string {
	switch f.Sort {
	case repositories.SortPriceAsc:
		return "min_price:asc,created_at:desc"
	case repositories.SortPriceDesc:
		return "min_price:desc,created_at:desc"
	case repositories.SortRatingAsc:
		return "ratings_average:asc,created_at:desc"
	case repositories.SortRatingDesc:
		return "ratings_average:desc,ratings_quantity:desc,created_at:desc"
	case repositories.SortDistance:
		if f.Geo != nil {
			return fmt.Sprintf("location(%f, %f):asc", f.Geo.Lat, f.Geo.Lng)
		}
	}
	if textQuery {
		return "_text_match:desc,created_at:desc"
	}
	return "created_at:desc"
}

// quote wraps values containing spaces or commas in backticks
func quote(value string) string {
	if strings.ContainsAny(value, " ,()&|:[]") {
		return "`" + strings.ReplaceAll(value, "`", "") + "`"
	}
	return value
}

// listingDocument flattens a listing into the searchable document
func listingDocument(l *entities.Listing) map[string]any {
	occupancies := l.Occupancies()
	return map[string]any{
		"id":               l.ID,
		"name":             l.Name,
		"slug":             l.Slug,
		"description":      l.Description,
		"locality":         strings.ToLower(l.Address.Locality),
		"city":             strings.ToLower(l.Address.City),
		"state":            strings.ToLower(l.Address.State),
		"pg_type":          string(l.PGType),
		"food":             string(l.Food),
		"location":         []float64{l.Location.Lat, l.Location.Lng},
		"min_price":        l.MinPrice,
		"max_price":        l.MaxPrice,
		"occupancies":      occupancies,
		"has_ac":           l.HasAC(),
		"amenities":        l.Amenities.Names(),
		"rules":            l.Rules.Names(),
		"ratings_average":  l.RatingsAverage,
		"ratings_quantity": l.RatingsQuantity,
		"owner_id":         l.OwnerID,
		"created_at":       l.CreatedAt.Unix(),
	}
}
