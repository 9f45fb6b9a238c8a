package merge

import (
	"carprobe/internal/store"
	"carprobe/internal/textutil"
)

// Kind names a merge outcome.
type Kind string

const (
	// KindAttach updates an existing vehicle in place.
	KindAttach Kind = "attach"
	// KindCreateNew inserts a fresh vehicle for the listing.
	KindCreateNew Kind = "create_new"
	// KindFork inserts a new vehicle for the listing, optionally copying
	// register data from another listing's vehicle and retiring the listing's
	// current one.
	KindFork Kind = "fork"
)

// Decision is the outcome of Decide. Target is set for attach; Source and
// Retire are optional for fork.
type Decision struct {
	Kind   Kind
	Target *store.Vehicle
	Source *store.Vehicle
	Retire *store.Vehicle
	Reason string
}

// Decide picks the vehicle a listing's registration belongs to. current is the
// listing's active vehicle (nil when none) and byRegistration are the active
// vehicles already carrying the registration. Decide performs no I/O.
func Decide(listingID int64, registration string, current *store.Vehicle, byRegistration []*store.Vehicle) Decision {
	key := textutil.SanitizeRegistration(registration)
	if current != nil && !current.Retired() {
		if key != "" && current.HasRegistration() && textutil.SanitizeRegistration(current.Registration) != key {
			return Decision{
				Kind:   KindFork,
				Source: otherListing(listingID, byRegistration),
				Retire: current,
				Reason: "registration changed on listing",
			}
		}
		return Decision{Kind: KindAttach, Target: current, Reason: "listing already has a vehicle"}
	}
	if key == "" {
		return Decision{Kind: KindCreateNew, Reason: "no registration"}
	}
	for _, v := range byRegistration {
		if v == nil || v.Retired() {
			continue
		}
		if v.ListingID == 0 || v.ListingID == listingID {
			return Decision{Kind: KindAttach, Target: v, Reason: "registration matches unattached vehicle"}
		}
	}
	if donor := otherListing(listingID, byRegistration); donor != nil {
		return Decision{Kind: KindFork, Source: donor, Reason: "registration belongs to another listing"}
	}
	return Decision{Kind: KindCreateNew, Reason: "registration not seen before"}
}

func otherListing(listingID int64, vehicles []*store.Vehicle) *store.Vehicle {
	for _, v := range vehicles {
		if v != nil && !v.Retired() && v.ListingID != 0 && v.ListingID != listingID {
			return v
		}
	}
	return nil
}
