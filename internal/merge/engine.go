package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carprobe/internal/extract"
	"carprobe/internal/logging"
	"carprobe/internal/store"
	"carprobe/internal/textutil"
)

// Provenance describes where a registration came from.
type Provenance struct {
	Source     store.RegistrationSource
	Confidence float64
	ImageURL   string
}

// Engine executes merge decisions against the store.
type Engine struct {
	store  *store.Store
	logger *slog.Logger
}

// NewEngine constructs a merge engine.
func NewEngine(st *store.Store, logger *slog.Logger) *Engine {
	return &Engine{store: st, logger: logging.NewComponentLogger(logger, "merge")}
}

// Apply resolves the vehicle for listing and writes the merged result. The
// registration may be empty, in which case only attributes are merged.
// Store invariant violations are returned unchanged.
func (e *Engine) Apply(ctx context.Context, listing *store.Listing, registration string, attrs extract.Attributes, provenance Provenance) (*store.Vehicle, Decision, error) {
	if listing == nil || listing.ID == 0 {
		return nil, Decision{}, errors.New("merge: listing must be saved first")
	}
	current, err := e.store.VehicleForListing(ctx, listing.ID)
	if err != nil {
		return nil, Decision{}, fmt.Errorf("merge: load listing vehicle: %w", err)
	}
	var byRegistration []*store.Vehicle
	if key := textutil.SanitizeRegistration(registration); key != "" {
		byRegistration, err = e.store.VehiclesByRegistration(ctx, key)
		if err != nil {
			return nil, Decision{}, fmt.Errorf("merge: load vehicles by registration: %w", err)
		}
	}

	decision := Decide(listing.ID, registration, current, byRegistration)
	vehicle, retireID := build(listing.ID, decision, registration, attrs, provenance)
	if err := e.store.SaveVehicle(ctx, vehicle, retireID); err != nil {
		return nil, decision, err
	}

	logger := logging.WithContext(ctx, e.logger)
	attrsOut := append(logging.DecisionAttrs("vehicle_merge", string(decision.Kind), decision.Reason),
		logging.ListingID(listing.ID),
		logging.VehicleID(vehicle.ID),
	)
	if retireID != 0 {
		attrsOut = append(attrsOut, logging.Int64("retired_vehicle_id", retireID))
	}
	logger.Debug("vehicle merged", logging.Args(attrsOut...)...)
	return vehicle, decision, nil
}

func build(listingID int64, d Decision, registration string, attrs extract.Attributes, p Provenance) (*store.Vehicle, int64) {
	switch d.Kind {
	case KindAttach:
		v := *d.Target
		v.ListingID = listingID
		mergeAttributes(&v, attrs)
		// The store clears stage markers when this assigns a registration.
		assignRegistration(&v, registration, p)
		return &v, 0
	case KindFork:
		v := &store.Vehicle{ListingID: listingID}
		var retireID int64
		if d.Retire != nil {
			copyListingAttributes(v, d.Retire)
			retireID = d.Retire.ID
		}
		mergeAttributes(v, attrs)
		assignRegistration(v, registration, p)
		if d.Source != nil {
			copyRegisterData(v, d.Source)
		}
		return v, retireID
	default:
		v := &store.Vehicle{ListingID: listingID}
		mergeAttributes(v, attrs)
		assignRegistration(v, registration, p)
		return v, 0
	}
}

// assignRegistration sets the registration when v has none.
func assignRegistration(v *store.Vehicle, registration string, p Provenance) {
	key := textutil.SanitizeRegistration(registration)
	if key == "" || v.HasRegistration() {
		return
	}
	v.Registration = key
	v.RegistrationSource = p.Source
	v.RegistrationConfidence = p.Confidence
	if p.ImageURL != "" {
		v.RegistrationImageURL = p.ImageURL
	}
}

// mergeAttributes copies extracted values onto v. Empty values never replace
// filled ones, and register-owned fields are left alone once register data
// exists.
func mergeAttributes(v *store.Vehicle, a extract.Attributes) {
	authoritative := v.HasRegisterData()
	setString(&v.Make, a.Make, authoritative)
	setString(&v.Model, a.Model, authoritative)
	setString(&v.FuelType, a.FuelType, authoritative)
	setString(&v.Colour, a.Colour, authoritative)
	setInt(&v.Year, a.Year, authoritative)

	setString(&v.Transmission, a.Transmission, false)
	setString(&v.BodyType, a.BodyType, false)
	setString(&v.ServiceHistory, a.ServiceHistory, false)
	setInt(&v.EngineSize, a.EngineSize, false)
	setInt(&v.Doors, a.Doors, false)
	setInt(&v.Mileage, a.Mileage, false)
	setInt(&v.PreviousOwners, a.PreviousOwners, false)
	if a.Price.Valid {
		v.Price = a.Price
	}
}

func setString(dst *string, value string, keep bool) {
	if value == "" || (keep && *dst != "") {
		return
	}
	*dst = value
}

func setInt(dst *int, value int, keep bool) {
	if value <= 0 || (keep && *dst != 0) {
		return
	}
	*dst = value
}

// copyListingAttributes carries heuristic fields from a retired vehicle to
// its replacement. Registration and register data stay behind.
func copyListingAttributes(dst, src *store.Vehicle) {
	dst.Make = src.Make
	dst.Model = src.Model
	dst.Year = src.Year
	dst.FuelType = src.FuelType
	dst.Transmission = src.Transmission
	dst.EngineSize = src.EngineSize
	dst.Colour = src.Colour
	dst.BodyType = src.BodyType
	dst.Doors = src.Doors
	dst.Mileage = src.Mileage
	dst.PreviousOwners = src.PreviousOwners
	dst.ServiceHistory = src.ServiceHistory
	dst.Price = src.Price
	dst.VIN = src.VIN
	dst.DetectedPlate = src.DetectedPlate
	dst.VisionCheckedAt = cloneTime(src.VisionCheckedAt)
}

// copyRegisterData gives a forked vehicle its own copy of the donor's register
// view so the register stage does not look it up again.
func copyRegisterData(dst, src *store.Vehicle) {
	if !src.HasRegisterData() {
		return
	}
	setString(&dst.Make, src.Make, false)
	setString(&dst.Model, src.Model, false)
	setString(&dst.FuelType, src.FuelType, false)
	setString(&dst.Colour, src.Colour, false)
	setInt(&dst.Year, src.Year, false)
	dst.TaxStatus = src.TaxStatus
	dst.TaxDueDate = cloneTime(src.TaxDueDate)
	dst.MotStatus = src.MotStatus
	dst.MotExpiryDate = cloneTime(src.MotExpiryDate)
	dst.CO2Emissions = src.CO2Emissions
	dst.FirstRegistered = src.FirstRegistered
	dst.EngineCapacity = src.EngineCapacity
	dst.RegisterPayload = src.RegisterPayload
	dst.RegisterCheckedAt = cloneTime(src.RegisterCheckedAt)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
