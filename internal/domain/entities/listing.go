package entities

import (
	"fmt"
	"time"
)

// PGType is the occupant group a listing accepts
type PGType string

const (
	PGTypeMale     PGType = "male"
	PGTypeFemale   PGType = "female"
	PGTypeCoLiving PGType = "coLiving"
)

// FoodType describes the kitchen of a listing
type FoodType string

const (
	FoodVeg  FoodType = "veg"
	FoodBoth FoodType = "both"
)

// Default rating shown for listings that have no reviews yet
const (
	DefaultRatingsAverage  = 4.0
	DefaultRatingsQuantity = 0
)

// Listing represents a PG (paying-guest accommodation) published by an owner
type Listing struct {
	ID               string          `json:"id" db:"id"`
	Name             string          `json:"name" db:"name" validate:"required,max=60"`
	Slug             string          `json:"slug" db:"slug"`
	Description      string          `json:"description" db:"description" validate:"required"`
	Address          Address         `json:"address" db:"-"`
	Pincode          string          `json:"pincode" db:"pincode" validate:"pincode"`
	Sharing          []SharingOption `json:"sharing" db:"-" validate:"required,min=1,dive"`
	PGType           PGType          `json:"pgType" db:"pg_type" validate:"oneof=male female coLiving"`
	Contact          Contact         `json:"contact" db:"-"`
	OwnerID          string          `json:"owner" db:"owner_id"`
	NearbyPlaces     []NearbyPlace   `json:"nearbyPlaces" db:"-" validate:"dive"`
	Amenities        Amenities       `json:"amenities" db:"-"`
	Rules            Rules           `json:"rules" db:"-"`
	NoticePeriodDays int             `json:"noticePeriodDays" db:"notice_period_days" validate:"gte=0"`
	SecurityDeposit  int             `json:"securityDeposit" db:"security_deposit" validate:"gte=0"`
	GateClosingTime  string          `json:"gateClosingTime,omitempty" db:"gate_closing_time" validate:"omitempty,len=5,gatetime"`
	MinPrice         int             `json:"minPrice" db:"min_price"`
	MaxPrice         int             `json:"maxPrice" db:"max_price"`
	CoverImage       *Image          `json:"coverImage,omitempty" db:"-"`
	Images           []Image         `json:"images" db:"-"`
	Location         GeoPoint        `json:"location" db:"-"`
	RatingsAverage   float64         `json:"ratingsAverage" db:"ratings_average"`
	RatingsQuantity  int             `json:"ratingsQuantity" db:"ratings_quantity"`
	Food             FoodType        `json:"food" db:"food" validate:"oneof=veg both"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" db:"updated_at"`

	// DistanceKm is only populated by geo searches.
	DistanceKm *float64 `json:"distanceKm,omitempty" db:"-"`
}

// Address of a listing. Stored lowercased.
type Address struct {
	Locality string `json:"locality" validate:"required"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state" validate:"required"`
}

// SharingOption is one pricing tier: a room for Occupancy people
type SharingOption struct {
	Occupancy int  `json:"occupancy" validate:"min=1"`
	Price     int  `json:"price" validate:"min=1"`
	AC        bool `json:"ac"`
}

// Contact details shown to prospective tenants
type Contact struct {
	Phone string `json:"phone" validate:"required,phone10"`
	Email string `json:"email" validate:"required,email"`
}

// NearbyPlace is a landmark with its distance in metres
type NearbyPlace struct {
	PlaceName string `json:"placeName" validate:"required"`
	Distance  int    `json:"distance" validate:"min=1"`
}

// Image references an asset held by the media store
type Image struct {
	PublicID string `json:"publicId"`
	Version  int    `json:"version"`
}

// GeoPoint is a WGS84 coordinate
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// ComputePriceRange sets MinPrice and MaxPrice from the sharing prices
func (l *Listing) ComputePriceRange() {
	if len(l.Sharing) == 0 {
		l.MinPrice, l.MaxPrice = 0, 0
		return
	}
	l.MinPrice, l.MaxPrice = l.Sharing[0].Price, l.Sharing[0].Price
	for _, s := range l.Sharing[1:] {
		l.MinPrice = min(l.MinPrice, s.Price)
		l.MaxPrice = max(l.MaxPrice, s.Price)
	}
}

// Occupancies returns the distinct occupancies offered, in first-seen order
func (l *Listing) Occupancies() []int {
	seen := make(map[int]struct{}, len(l.Sharing))
	out := make([]int, 0, len(l.Sharing))
	for _, s := range l.Sharing {
		if _, ok := seen[s.Occupancy]; ok {
			continue
		}
		seen[s.Occupancy] = struct{}{}
		out = append(out, s.Occupancy)
	}
	return out
}

// HasAC reports whether any sharing option is air conditioned
func (l *Listing) HasAC() bool {
	for _, s := range l.Sharing {
		if s.AC {
			return true
		}
	}
	return false
}

// ImageIDs lists the public ids of the cover and gallery images
func (l *Listing) ImageIDs() []string {
	ids := make([]string, 0, len(l.Images)+1)
	if l.CoverImage != nil && l.CoverImage.PublicID != "" {
		ids = append(ids, l.CoverImage.PublicID)
	}
	for _, img := range l.Images {
		ids = append(ids, img.PublicID)
	}
	return ids
}

// IsOwnedBy reports whether userID published the listing
func (l *Listing) IsOwnedBy(userID string) bool {
	return l.OwnerID == userID
}

func (g GeoPoint) String() string {
	return fmt.Sprintf("%.6f,%.6f", g.Lat, g.Lng)
}
