package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	"github.com/zatekoja/pgfinder/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

const (
	listingsTable = "listings"
	earthRadiusKm = 6371.0
)

var listingColumns = []any{
	"id", "name", "slug", "description", "locality", "city", "state", "pincode",
	"sharing", "pg_type", "contact_phone", "contact_email", "owner_id", "nearby_places",
	"amenities", "rules", "notice_period_days", "security_deposit", "gate_closing_time",
	"min_price", "max_price", "cover_image", "images", "latitude", "longitude",
	"ratings_average", "ratings_quantity", "food", "created_at", "updated_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListingAdapter implements ListingRepository on PostgreSQL
type ListingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewListingAdapter creates a new listing adapter
func NewListingAdapter(client *postgres.Client) repositories.ListingRepository {
	return &ListingAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a listing
func (a *ListingAdapter) Create(ctx context.Context, listing *entities.Listing) error {
	record, err := listingRecord(listing)
	if err != nil {
		return apperrors.NewInternalError("failed to encode listing", err)
	}
	record["id"] = listing.ID
	record["ratings_average"] = listing.RatingsAverage
	record["ratings_quantity"] = listing.RatingsQuantity
	record["created_at"] = listing.CreatedAt

	query, args, err := a.db.Insert(listingsTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return apperrors.NewConflictError("A PG with that name already exists.").WithFields("name")
		}
		return apperrors.NewInternalError("failed to create listing", err)
	}
	return nil
}

// GetByID retrieves a listing by ID
func (a *ListingAdapter) GetByID(ctx context.Context, id string) (*entities.Listing, error) {
	return a.getOne(ctx, goqu.C("id").Eq(id))
}

// GetBySlug retrieves a listing by slug
func (a *ListingAdapter) GetBySlug(ctx context.Context, slug string) (*entities.Listing, error) {
	return a.getOne(ctx, goqu.C("slug").Eq(slug))
}

func (a *ListingAdapter) getOne(ctx context.Context, where exp.Expression) (*entities.Listing, error) {
	query, args, err := a.db.From(listingsTable).Prepared(true).
		Select(listingColumns...).
		Where(where).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build select query", err)
	}

	listing, err := scanListing(a.client.DB().QueryRowContext(ctx, query, args...))
	if isMissing(err) {
		return nil, apperrors.NewNotFoundError("No PG found with that ID")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get listing", err)
	}
	return listing, nil
}

// GetByIDs retrieves listings in the order of ids; unknown ids are skipped
func (a *ListingAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Listing, error) {
	if len(ids) == 0 {
		return []*entities.Listing{}, nil
	}

	query, args, err := a.db.From(listingsTable).Prepared(true).
		Select(listingColumns...).
		Where(goqu.C("id").In(ids)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build select query", err)
	}

	found, err := a.query(ctx, query, args, false)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*entities.Listing, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}
	ordered := make([]*entities.Listing, 0, len(found))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			ordered = append(ordered, l)
		}
	}
	return ordered, nil
}

// Update stores every mutable field of a listing
func (a *ListingAdapter) Update(ctx context.Context, listing *entities.Listing) error {
	record, err := listingRecord(listing)
	if err != nil {
		return apperrors.NewInternalError("failed to encode listing", err)
	}

	query, args, err := a.db.Update(listingsTable).Prepared(true).
		Set(record).
		Where(goqu.C("id").Eq(listing.ID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return apperrors.NewConflictError("A PG with that name already exists.").WithFields("name")
		}
		if isMissing(err) {
			return apperrors.NewNotFoundError("No PG found with that ID")
		}
		return apperrors.NewInternalError("failed to update listing", err)
	}
	return requireAffected(result, "No PG found with that ID")
}

// Delete removes a listing; reviews go with it through the foreign key
func (a *ListingAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(listingsTable).Prepared(true).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if isMissing(err) {
		return apperrors.NewNotFoundError("No PG found with that ID")
	}
	if err != nil {
		return apperrors.NewInternalError("failed to delete listing", err)
	}
	return requireAffected(result, "No PG found with that ID")
}

// ListByOwner retrieves the listings of ownerID, newest first
func (a *ListingAdapter) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Listing, error) {
	query, args, err := a.db.From(listingsTable).Prepared(true).
		Select(listingColumns...).
		Where(goqu.C("owner_id").Eq(ownerID)).
		Order(goqu.C("created_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build select query", err)
	}
	return a.query(ctx, query, args, false)
}

// List pages through all listings, oldest first
func (a *ListingAdapter) List(ctx context.Context, limit, offset int) ([]*entities.Listing, error) {
	query, args, err := a.db.From(listingsTable).Prepared(true).
		Select(listingColumns...).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build select query", err)
	}
	return a.query(ctx, query, args, false)
}

// Search runs filter against PostgreSQL and returns one page plus the total match count
func (a *ListingAdapter) Search(ctx context.Context, filter repositories.ListingFilter) ([]*entities.Listing, int, error) {
	conditions := listingConditions(filter)

	countQuery, countArgs, err := a.db.From(listingsTable).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(conditions...).
		ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var total int
	if err := a.client.DB().QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, apperrors.NewInternalError("failed to count listings", err)
	}
	if total == 0 {
		return []*entities.Listing{}, 0, nil
	}

	columns := listingColumns
	withDistance := filter.Geo != nil
	if withDistance {
		columns = append(append([]any{}, listingColumns...), distanceExpr(filter.Geo).As("distance_km"))
	}

	query, args, err := a.db.From(listingsTable).Prepared(true).
		Select(columns...).
		Where(conditions...).
		Order(listingOrder(filter)...).
		Limit(uint(filter.Limit)).
		Offset(uint(filter.Offset)).
		ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build search query", err)
	}

	listings, err := a.query(ctx, query, args, withDistance)
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

// UpdateRatings stores the review aggregate on a listing
func (a *ListingAdapter) UpdateRatings(ctx context.Context, id string, summary entities.RatingSummary) error {
	query, args, err := a.db.Update(listingsTable).Prepared(true).
		Set(goqu.Record{
			"ratings_average":  summary.Average,
			"ratings_quantity": summary.Quantity,
			"updated_at":       time.Now().UTC(),
		}).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if isMissing(err) {
		return apperrors.NewNotFoundError("No PG found with that ID")
	}
	if err != nil {
		return apperrors.NewInternalError("failed to update listing ratings", err)
	}
	return requireAffected(result, "No PG found with that ID")
}

// SlugExists reports whether a slug is already taken
func (a *ListingAdapter) SlugExists(ctx context.Context, slug string) (bool, error) {
	query, args, err := a.db.From(listingsTable).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C("slug").Eq(slug)).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, apperrors.NewInternalError("failed to check slug", err)
	}
	return count > 0, nil
}

func (a *ListingAdapter) query(ctx context.Context, query string, args []any, withDistance bool) ([]*entities.Listing, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query listings", err)
	}
	defer rows.Close()

	listings := make([]*entities.Listing, 0)
	for rows.Next() {
		var (
			listing *entities.Listing
			err     error
		)
		if withDistance {
			var distance float64
			listing, err = scanListing(rows, &distance)
			if err == nil {
				listing.DistanceKm = &distance
			}
		} else {
			listing, err = scanListing(rows)
		}
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan listing", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating listings", err)
	}
	return listings, nil
}

// listingRecord maps the mutable columns of a listing
func listingRecord(l *entities.Listing) (goqu.Record, error) {
	sharing, err := json.Marshal(l.Sharing)
	if err != nil {
		return nil, fmt.Errorf("sharing: %w", err)
	}
	nearby, err := json.Marshal(nonNil(l.NearbyPlaces))
	if err != nil {
		return nil, fmt.Errorf("nearby places: %w", err)
	}
	images, err := json.Marshal(nonNil(l.Images))
	if err != nil {
		return nil, fmt.Errorf("images: %w", err)
	}
	var cover any
	if l.CoverImage != nil {
		b, err := json.Marshal(l.CoverImage)
		if err != nil {
			return nil, fmt.Errorf("cover image: %w", err)
		}
		cover = string(b)
	}

	occupancies := make([]int64, 0, len(l.Sharing))
	for _, o := range l.Occupancies() {
		occupancies = append(occupancies, int64(o))
	}

	return goqu.Record{
		"name":               l.Name,
		"slug":               l.Slug,
		"description":        l.Description,
		"locality":           l.Address.Locality,
		"city":               l.Address.City,
		"state":              l.Address.State,
		"pincode":            l.Pincode,
		"sharing":            string(sharing),
		"occupancies":        pq.Array(occupancies),
		"has_ac":             l.HasAC(),
		"pg_type":            string(l.PGType),
		"contact_phone":      l.Contact.Phone,
		"contact_email":      l.Contact.Email,
		"owner_id":           l.OwnerID,
		"nearby_places":      string(nearby),
		"amenities":          pq.Array(l.Amenities.Names()),
		"rules":              pq.Array(l.Rules.Names()),
		"notice_period_days": l.NoticePeriodDays,
		"security_deposit":   l.SecurityDeposit,
		"gate_closing_time":  sql.NullString{String: l.GateClosingTime, Valid: l.GateClosingTime != ""},
		"min_price":          l.MinPrice,
		"max_price":          l.MaxPrice,
		"cover_image":        cover,
		"images":             string(images),
		"latitude":           l.Location.Lat,
		"longitude":          l.Location.Lng,
		"food":               string(l.Food),
		"updated_at":         l.UpdatedAt,
	}, nil
}

func scanListing(row rowScanner, extra ...any) (*entities.Listing, error) {
	var (
		l                       entities.Listing
		sharing, nearby, images []byte
		cover                   []byte
		amenities, rules        []string
		gate                    sql.NullString
	)

	dest := []any{
		&l.ID, &l.Name, &l.Slug, &l.Description, &l.Address.Locality, &l.Address.City, &l.Address.State, &l.Pincode,
		&sharing, &l.PGType, &l.Contact.Phone, &l.Contact.Email, &l.OwnerID, &nearby,
		pq.Array(&amenities), pq.Array(&rules), &l.NoticePeriodDays, &l.SecurityDeposit, &gate,
		&l.MinPrice, &l.MaxPrice, &cover, &images, &l.Location.Lat, &l.Location.Lng,
		&l.RatingsAverage, &l.RatingsQuantity, &l.Food, &l.CreatedAt, &l.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(sharing, &l.Sharing); err != nil {
		return nil, fmt.Errorf("sharing: %w", err)
	}
	if len(nearby) > 0 {
		if err := json.Unmarshal(nearby, &l.NearbyPlaces); err != nil {
			return nil, fmt.Errorf("nearby places: %w", err)
		}
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &l.Images); err != nil {
			return nil, fmt.Errorf("images: %w", err)
		}
	}
	if len(cover) > 0 {
		l.CoverImage = &entities.Image{}
		if err := json.Unmarshal(cover, l.CoverImage); err != nil {
			return nil, fmt.Errorf("cover image: %w", err)
		}
	}

	var err error
	if l.Amenities, err = entities.AmenitiesFromNames(amenities); err != nil {
		return nil, err
	}
	if l.Rules, err = entities.RulesFromNames(rules); err != nil {
		return nil, err
	}
	l.GateClosingTime = gate.String
	return &l, nil
}

// listingConditions translates a filter into WHERE expressions
func listingConditions(f repositories.ListingFilter) []exp.Expression {
	var where []exp.Expression

	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + likeEscaper.Replace(q) + "%"
		where = append(where, goqu.Or(
			goqu.C("name").ILike(pattern),
			goqu.C("description").ILike(pattern),
			goqu.C("locality").ILike(pattern),
			goqu.C("city").ILike(pattern),
		))
	}
	if f.City != "" {
		where = append(where, goqu.C("city").Eq(strings.ToLower(f.City)))
	}
	if f.Locality != "" {
		where = append(where, goqu.C("locality").Eq(strings.ToLower(f.Locality)))
	}
	if f.State != "" {
		where = append(where, goqu.C("state").Eq(strings.ToLower(f.State)))
	}
	if f.PGType != "" {
		where = append(where, goqu.C("pg_type").Eq(f.PGType))
	}
	if f.Food != "" {
		where = append(where, goqu.C("food").Eq(f.Food))
	}
	if f.MinPrice > 0 {
		where = append(where, goqu.C("max_price").Gte(f.MinPrice))
	}
	if f.MaxPrice > 0 {
		where = append(where, goqu.C("min_price").Lte(f.MaxPrice))
	}
	if len(f.Occupancies) > 0 {
		occupancies := make([]int64, len(f.Occupancies))
		for i, o := range f.Occupancies {
			occupancies[i] = int64(o)
		}
		where = append(where, goqu.L("occupancies && ?::integer[]", pq.Array(occupancies)))
	}
	if f.AC {
		where = append(where, goqu.C("has_ac").IsTrue())
	}
	if len(f.Amenities) > 0 {
		where = append(where, goqu.L("amenities @> ?::text[]", pq.Array(f.Amenities)))
	}
	if len(f.Rules) > 0 {
		where = append(where, goqu.L("rules @> ?::text[]", pq.Array(f.Rules)))
	}
	if f.Geo != nil {
		where = append(where, distanceExpr(f.Geo).Lte(f.Geo.RadiusKm))
	}
	return where
}

// distanceExpr is the great circle distance in km between the row and the filter point
func distanceExpr(g *repositories.GeoFilter) exp.LiteralExpression {
	return goqu.L(
		"? * acos(LEAST(1.0, cos(radians(?)) * cos(radians(latitude)) * cos(radians(longitude) - radians(?)) + sin(radians(?)) * sin(radians(latitude))))",
		earthRadiusKm, g.Lat, g.Lng, g.Lat,
	)
}

func listingOrder(f repositories.ListingFilter) []exp.OrderedExpression {
	newest := goqu.C("created_at").Desc()
	switch f.Sort {
	case repositories.SortPriceAsc:
		return []exp.OrderedExpression{goqu.C("min_price").Asc(), newest}
	case repositories.SortPriceDesc:
		return []exp.OrderedExpression{goqu.C("min_price").Desc(), newest}
	case repositories.SortRatingAsc:
		return []exp.OrderedExpression{goqu.C("ratings_average").Asc(), newest}
	case repositories.SortRatingDesc:
		return []exp.OrderedExpression{goqu.C("ratings_average").Desc(), goqu.C("ratings_quantity").Desc(), newest}
	case repositories.SortDistance:
		if f.Geo != nil {
			return []exp.OrderedExpression{distanceExpr(f.Geo).Asc()}
		}
	}
	return []exp.OrderedExpression{newest}
}

func requireAffected(result sql.Result, notFound string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to read affected rows", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError(notFound)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
