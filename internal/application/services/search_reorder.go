package services

import (
	"slices"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
)

// ReorderSearchResults flattens amenities and rules to name lists and moves
// whatever the caller filtered on to the front of each listing's lists.
func ReorderSearchResults(listings []*entities.Listing, filter repositories.ListingFilter) []*entities.SearchedListing {
	out := make([]*entities.SearchedListing, 0, len(listings))
	for _, l := range listings {
		searched := &entities.SearchedListing{
			Listing:   *l,
			Amenities: filteredFirst(filter.Amenities, l.Amenities.Names()),
			Rules:     filteredFirst(filter.Rules, l.Rules.Names()),
		}
		searched.Sharing = sharingFilteredFirst(l.Sharing, filter.Occupancies)
		out = append(out, searched)
	}
	return out
}

// filteredFirst returns the filtered names the listing has, in filter order,
// then its remaining names in canonical order
func filteredFirst(filtered, present []string) []string {
	out := make([]string, 0, len(present))
	for _, name := range filtered {
		if slices.Contains(present, name) && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	for _, name := range present {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// sharingFilteredFirst groups options by filtered occupancy in filter order;
// unmatched options keep their original relative order
func sharingFilteredFirst(sharing []entities.SharingOption, occupancies []int) []entities.SharingOption {
	if len(occupancies) == 0 {
		return sharing
	}
	out := make([]entities.SharingOption, 0, len(sharing))
	used := make([]bool, len(sharing))
	seen := make(map[int]bool, len(occupancies))
	for _, occ := range occupancies {
		if seen[occ] {
			continue
		}
		seen[occ] = true
		for i, s := range sharing {
			if !used[i] && s.Occupancy == occ {
				out = append(out, s)
				used[i] = true
			}
		}
	}
	for i, s := range sharing {
		if !used[i] {
			out = append(out, s)
		}
	}
	return out
}
