package stage

import (
	"context"

	"carprobe/internal/services"
	"carprobe/internal/store"
)

// VehicleReader is the slice of the store needed to resolve a task target.
type VehicleReader interface {
	GetVehicle(ctx context.Context, id int64) (*store.Vehicle, error)
	VehicleForListing(ctx context.Context, listingID int64) (*store.Vehicle, error)
}

// ResolveVehicle loads the vehicle a task targets. A retired vehicle is
// swapped for its listing's active vehicle. It returns (nil, nil) when no
// vehicle exists.
func ResolveVehicle(ctx context.Context, reader VehicleReader, task Task) (*store.Vehicle, error) {
	if task.VehicleID != 0 {
		vehicle, err := reader.GetVehicle(ctx, task.VehicleID)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, task.Stage, "load vehicle", "", err)
		}
		if vehicle != nil && !vehicle.Retired() {
			return vehicle, nil
		}
		if vehicle != nil && task.ListingID == 0 {
			task.ListingID = vehicle.ListingID
		}
	}
	if task.ListingID == 0 {
		return nil, nil
	}
	vehicle, err := reader.VehicleForListing(ctx, task.ListingID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, task.Stage, "load listing vehicle", "", err)
	}
	return vehicle, nil
}
