package entities

import (
	"math"
	"time"
)

// Review is a user's rating of a listing. A user may review a listing once.
type Review struct {
	ID        string        `json:"id" db:"id"`
	Review    string        `json:"review" db:"review" validate:"required,max=1000"`
	Rating    int           `json:"rating" db:"rating" validate:"min=1,max=5"`
	ListingID string        `json:"pg" db:"listing_id"`
	UserID    string        `json:"user" db:"user_id"`
	Author    *ReviewAuthor `json:"author,omitempty" db:"-"`
	CreatedAt time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time     `json:"updatedAt" db:"updated_at"`
}

// ReviewAuthor is the public part of the reviewing user
type ReviewAuthor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RatingSummary is the aggregate stored on a listing
type RatingSummary struct {
	Average  float64 `json:"ratingsAverage"`
	Quantity int     `json:"ratingsQuantity"`
}

// NewRatingSummary rounds avg to one decimal; no reviews resets to the default rating
func NewRatingSummary(avg float64, quantity int) RatingSummary {
	if quantity == 0 {
		return RatingSummary{Average: DefaultRatingsAverage, Quantity: DefaultRatingsQuantity}
	}
	return RatingSummary{Average: math.Round(avg*10) / 10, Quantity: quantity}
}
