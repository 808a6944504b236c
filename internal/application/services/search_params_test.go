package services

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

func TestParseSearchQuery_Defaults(t *testing.T) {
	q, err := ParseSearchQuery(url.Values{})
	require.NoError(t, err)

	assert.Equal(t, 1, q.Page)
	assert.Equal(t, repositories.SortNewest, q.Filter.Sort)
	assert.Equal(t, repositories.DefaultPageSize, q.Filter.Limit)
	assert.Equal(t, 0, q.Filter.Offset)
	assert.Nil(t, q.Filter.Geo)
}

func TestParseSearchQuery_AllFilters(t *testing.T) {
	values, err := url.ParseQuery("q=metro&city=Bengaluru&pgType=female&food=both&minPrice=5000&maxPrice=9000" +
		"&sharing=2,3&ac=true&amenities=wifi,tv&rules=guests&lat=12.9&lng=77.6&page=2&limit=100")
	require.NoError(t, err)

	q, err := ParseSearchQuery(values)
	require.NoError(t, err)

	f := q.Filter
	assert.Equal(t, "metro", f.Query)
	assert.Equal(t, "Bengaluru", f.City)
	assert.Equal(t, "female", f.PGType)
	assert.Equal(t, "both", f.Food)
	assert.Equal(t, 5000, f.MinPrice)
	assert.Equal(t, 9000, f.MaxPrice)
	assert.Equal(t, []int{2, 3}, f.Occupancies)
	assert.True(t, f.AC)
	assert.Equal(t, []string{"wifi", "tv"}, f.Amenities)
	assert.Equal(t, []string{"guests"}, f.Rules)
	require.NotNil(t, f.Geo)
	assert.Equal(t, repositories.DefaultRadiusKm, f.Geo.RadiusKm)
	assert.Equal(t, repositories.SortDistance, f.Sort)
	assert.Equal(t, repositories.MaxPageSize, f.Limit)
	assert.Equal(t, repositories.MaxPageSize, f.Offset)
	assert.Equal(t, 2, q.Page)
}

func TestParseSearchQuery_CollectsEveryError(t *testing.T) {
	values := url.Values{
		"amenities": {"wifi,pool"},
		"rules":     {"pets"},
		"sharing":   {"two"},
		"sort":      {"distance"},
		"lat":       {"12.9"},
		"minPrice":  {"9000"},
		"maxPrice":  {"5000"},
	}

	_, err := ParseSearchQuery(values)
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
	assert.ElementsMatch(t, []string{"amenities", "rules", "sharing", "sort", "lat", "minPrice"}, appErr.Fields)
	assert.Contains(t, appErr.ErrorList, `Unknown amenity "pool".`)
}

func TestParseSearchQuery_UnknownSort(t *testing.T) {
	_, err := ParseSearchQuery(url.Values{"sort": {"popular"}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestParseSearchQuery_Radius(t *testing.T) {
	q, err := ParseSearchQuery(url.Values{"lat": {"12.9"}, "lng": {"77.6"}, "radiusKm": {"12.5"}, "sort": {"price"}})
	require.NoError(t, err)
	assert.Equal(t, 12.5, q.Filter.Geo.RadiusKm)
	assert.Equal(t, repositories.SortPriceAsc, q.Filter.Sort)

	_, err = ParseSearchQuery(url.Values{"lat": {"12.9"}, "lng": {"77.6"}, "radiusKm": {"500"}})
	assert.Error(t, err)
}

func TestParseSearchQuery_PageOutOfRange(t *testing.T) {
	_, err := ParseSearchQuery(url.Values{"page": {"2000000000000000000"}})
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"page"}, appErr.Fields)

	q, err := ParseSearchQuery(url.Values{"page": {"1000"}, "limit": {"20"}})
	require.NoError(t, err)
	assert.Equal(t, 19980, q.Filter.Offset)
}

func TestParseSearchQuery_RejectsNaN(t *testing.T) {
	_, err := ParseSearchQuery(url.Values{"lat": {"NaN"}, "lng": {"NaN"}, "radiusKm": {"NaN"}})
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"lat", "lng", "radiusKm"}, appErr.Fields)
}
