package workflow

import (
	"context"

	"carprobe/internal/queue"
	"carprobe/internal/services"
)

func withJobContext(ctx context.Context, job *queue.Job, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if job != nil {
		ctx = services.WithJobID(ctx, job.ID)
		ctx = services.WithStage(ctx, job.Stage)
		ctx = services.WithListingID(ctx, job.ListingID)
		ctx = services.WithVehicleID(ctx, job.VehicleID)
	}
	return services.WithRequestID(ctx, correlationID)
}
