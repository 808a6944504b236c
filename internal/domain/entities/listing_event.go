package entities

import (
	"time"

	"github.com/google/uuid"
)

// ListingEventType represents the type of listing event
type ListingEventType string

const (
	ListingEventCreated  ListingEventType = "listing.created"
	ListingEventUpdated  ListingEventType = "listing.updated"
	ListingEventDeleted  ListingEventType = "listing.deleted"
	ListingEventReviewed ListingEventType = "listing.reviewed"
)

// ListingEvent announces a change to a listing or its reviews
type ListingEvent struct {
	ID            string           `json:"id"`
	ListingID     string           `json:"listing_id"`
	Slug          string           `json:"slug,omitempty"`
	EventType     ListingEventType `json:"event_type"`
	Timestamp     time.Time        `json:"timestamp"`
	ChangedFields map[string]any   `json:"changed_fields,omitempty"`
}

// NewListingEvent creates a new listing event
func NewListingEvent(listingID string, eventType ListingEventType, changedFields map[string]any) *ListingEvent {
	return &ListingEvent{
		ID:            uuid.NewString(),
		ListingID:     listingID,
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		ChangedFields: changedFields,
	}
}

// WithSlug records the slug the listing was served under before the change
func (e *ListingEvent) WithSlug(slug string) *ListingEvent {
	e.Slug = slug
	return e
}
