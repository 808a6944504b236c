package services

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

const (
	maxRadiusKm = 100.0
	maxPage     = math.MaxInt32 / repositories.MaxPageSize
)

var sortOrders = map[string]bool{
	repositories.SortNewest:     true,
	repositories.SortPriceAsc:   true,
	repositories.SortPriceDesc:  true,
	repositories.SortRatingAsc:  true,
	repositories.SortRatingDesc: true,
	repositories.SortDistance:   true,
}

// SearchQuery is a parsed search request
type SearchQuery struct {
	Filter repositories.ListingFilter
	Page   int
}

// ParseSearchQuery maps query string parameters onto a listing filter.
// Every invalid parameter is reported in one validation error.
func ParseSearchQuery(values url.Values) (SearchQuery, error) {
	var (
		f    repositories.ListingFilter
		errs []apperrors.FieldError
	)
	bad := func(field, msg string) {
		errs = append(errs, apperrors.FieldError{Field: field, Message: msg})
	}

	f.Query = strings.TrimSpace(values.Get("q"))
	f.City = strings.TrimSpace(values.Get("city"))
	f.Locality = strings.TrimSpace(values.Get("locality"))
	f.State = strings.TrimSpace(values.Get("state"))

	if v := values.Get("pgType"); v != "" {
		switch entities.PGType(v) {
		case entities.PGTypeMale, entities.PGTypeFemale, entities.PGTypeCoLiving:
			f.PGType = v
		default:
			bad("pgType", "pgType must be one of: male, female, coLiving.")
		}
	}
	if v := values.Get("food"); v != "" {
		switch entities.FoodType(v) {
		case entities.FoodVeg, entities.FoodBoth:
			f.Food = v
		default:
			bad("food", "food must be one of: veg, both.")
		}
	}

	f.MinPrice = intParam(values, "minPrice", 0, bad)
	f.MaxPrice = intParam(values, "maxPrice", 0, bad)
	if f.MinPrice > 0 && f.MaxPrice > 0 && f.MinPrice > f.MaxPrice {
		bad("minPrice", "minPrice cannot be greater than maxPrice.")
	}

	for _, s := range csv(values.Get("sharing")) {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			bad("sharing", fmt.Sprintf("Invalid sharing value %q.", s))
			continue
		}
		f.Occupancies = append(f.Occupancies, n)
	}

	if v := values.Get("ac"); v != "" {
		ac, err := strconv.ParseBool(v)
		if err != nil {
			bad("ac", "ac must be true or false.")
		}
		f.AC = ac
	}

	for _, a := range csv(values.Get("amenities")) {
		if !entities.IsAmenity(a) {
			bad("amenities", fmt.Sprintf("Unknown amenity %q.", a))
			continue
		}
		f.Amenities = append(f.Amenities, a)
	}
	for _, r := range csv(values.Get("rules")) {
		if !entities.IsRule(r) {
			bad("rules", fmt.Sprintf("Unknown rule %q.", r))
			continue
		}
		f.Rules = append(f.Rules, r)
	}

	lat, lng := values.Get("lat"), values.Get("lng")
	switch {
	case lat != "" && lng != "":
		geo := &repositories.GeoFilter{RadiusKm: repositories.DefaultRadiusKm}
		var err error
		if geo.Lat, err = strconv.ParseFloat(lat, 64); err != nil || math.IsNaN(geo.Lat) || geo.Lat < -90 || geo.Lat > 90 {
			bad("lat", "Invalid lat value.")
		}
		if geo.Lng, err = strconv.ParseFloat(lng, 64); err != nil || math.IsNaN(geo.Lng) || geo.Lng < -180 || geo.Lng > 180 {
			bad("lng", "Invalid lng value.")
		}
		if v := values.Get("radiusKm"); v != "" {
			r, err := strconv.ParseFloat(v, 64)
			if err != nil || math.IsNaN(r) || r <= 0 || r > maxRadiusKm {
				bad("radiusKm", fmt.Sprintf("radiusKm must be between 0 and %.0f.", maxRadiusKm))
			} else {
				geo.RadiusKm = r
			}
		}
		f.Geo = geo
	case lat != "" || lng != "":
		bad("lat", "lat and lng must be given together.")
	}

	f.Sort = values.Get("sort")
	if f.Sort == "" {
		f.Sort = repositories.SortNewest
		if f.Geo != nil {
			f.Sort = repositories.SortDistance
		}
	}
	if !sortOrders[f.Sort] {
		bad("sort", "sort must be one of: newest, price, -price, rating, -rating, distance.")
	} else if f.Sort == repositories.SortDistance && f.Geo == nil {
		bad("sort", "Sorting by distance needs lat and lng.")
	}

	page := intParam(values, "page", repositories.DefaultSearchPage, bad)
	if page < 1 {
		page = repositories.DefaultSearchPage
	}
	if page > maxPage {
		bad("page", fmt.Sprintf("page cannot be greater than %d.", maxPage))
		page = repositories.DefaultSearchPage
	}
	f.Limit = intParam(values, "limit", repositories.DefaultPageSize, bad)
	if f.Limit < 1 {
		f.Limit = repositories.DefaultPageSize
	}
	f.Limit = min(f.Limit, repositories.MaxPageSize)
	f.Offset = (page - 1) * f.Limit

	if len(errs) > 0 {
		return SearchQuery{}, apperrors.NewFieldValidationError(errs)
	}
	return SearchQuery{Filter: f, Page: page}, nil
}

func intParam(values url.Values, name string, def int, bad func(field, msg string)) int {
	v := values.Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		bad(name, fmt.Sprintf("%s must be a non-negative number.", name))
		return def
	}
	return n
}

func csv(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
