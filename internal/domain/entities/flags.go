package entities

import (
	"fmt"
	"slices"
)

// AmenityNames lists every amenity flag in canonical order
var AmenityNames = []string{
	"wifi", "ac", "parking", "laundry", "cleaning", "tv", "fridge", "tiffin", "warden",
	"microwave", "lift", "cctv", "nonVeg", "selfCooking", "attachWashroom", "wardrobe",
	"powerBackup", "library",
}

// RuleNames lists every house rule flag in canonical order
var RuleNames = []string{"smoking", "guests", "loudMusicAllowed", "alcoholAllowed"}

// Amenities offered by a listing
type Amenities struct {
	WiFi           bool `json:"wifi"`
	AC             bool `json:"ac"`
	Parking        bool `json:"parking"`
	Laundry        bool `json:"laundry"`
	Cleaning       bool `json:"cleaning"`
	TV             bool `json:"tv"`
	Fridge         bool `json:"fridge"`
	Tiffin         bool `json:"tiffin"`
	Warden         bool `json:"warden"`
	Microwave      bool `json:"microwave"`
	Lift           bool `json:"lift"`
	CCTV           bool `json:"cctv"`
	NonVeg         bool `json:"nonVeg"`
	SelfCooking    bool `json:"selfCooking"`
	AttachWashroom bool `json:"attachWashroom"`
	Wardrobe       bool `json:"wardrobe"`
	PowerBackup    bool `json:"powerBackup"`
	Library        bool `json:"library"`
}

// Rules of a listing; true means allowed
type Rules struct {
	Smoking          bool `json:"smoking"`
	Guests           bool `json:"guests"`
	LoudMusicAllowed bool `json:"loudMusicAllowed"`
	AlcoholAllowed   bool `json:"alcoholAllowed"`
}

func (a *Amenities) fields() []*bool {
	return []*bool{
		&a.WiFi, &a.AC, &a.Parking, &a.Laundry, &a.Cleaning, &a.TV, &a.Fridge, &a.Tiffin, &a.Warden,
		&a.Microwave, &a.Lift, &a.CCTV, &a.NonVeg, &a.SelfCooking, &a.AttachWashroom, &a.Wardrobe,
		&a.PowerBackup, &a.Library,
	}
}

func (r *Rules) fields() []*bool {
	return []*bool{&r.Smoking, &r.Guests, &r.LoudMusicAllowed, &r.AlcoholAllowed}
}

// Names returns the amenities that are set, in canonical order
func (a Amenities) Names() []string {
	return trueNames(AmenityNames, a.fields())
}

// Names returns the rules that are set, in canonical order
func (r Rules) Names() []string {
	return trueNames(RuleNames, r.fields())
}

// AmenitiesFromNames sets the named amenities
func AmenitiesFromNames(names []string) (Amenities, error) {
	var a Amenities
	err := setNames(AmenityNames, a.fields(), names, "amenity")
	return a, err
}

// RulesFromNames sets the named rules
func RulesFromNames(names []string) (Rules, error) {
	var r Rules
	err := setNames(RuleNames, r.fields(), names, "rule")
	return r, err
}

// IsAmenity reports whether name is a known amenity
func IsAmenity(name string) bool { return slices.Contains(AmenityNames, name) }

// IsRule reports whether name is a known rule
func IsRule(name string) bool { return slices.Contains(RuleNames, name) }

func trueNames(names []string, fields []*bool) []string {
	out := make([]string, 0, len(names))
	for i, f := range fields {
		if *f {
			out = append(out, names[i])
		}
	}
	return out
}

func setNames(names []string, fields []*bool, set []string, kind string) error {
	for _, n := range set {
		idx := slices.Index(names, n)
		if idx < 0 {
			return fmt.Errorf("unknown %s %q", kind, n)
		}
		*fields[idx] = true
	}
	return nil
}
