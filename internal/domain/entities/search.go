package entities

// SearchedListing is a listing as returned by search: amenities and rules are
// flattened to name lists, matching the caller's filters first.
type SearchedListing struct {
	Listing
	Amenities []string `json:"amenities"`
	Rules     []string `json:"rules"`
}

// SearchResult is one page of search hits
type SearchResult struct {
	Listings []*SearchedListing `json:"listings"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	Limit    int                `json:"limit"`
}
