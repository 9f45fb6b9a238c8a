package vision

import (
	"context"
	"log/slog"
	"time"

	"carprobe/internal/extract"
	"carprobe/internal/logging"
	"carprobe/internal/merge"
	"carprobe/internal/services"
	"carprobe/internal/stage"
	"carprobe/internal/store"
)

// PlateReader finds a plate in a set of images.
type PlateReader interface {
	Recognize(ctx context.Context, imageURLs []string) Scan
}

// Stage runs plate recognition for a listing's vehicle.
type Stage struct {
	store         *store.Store
	reader        PlateReader
	merger        *merge.Engine
	enabled       bool
	minConfidence float64
	logger        *slog.Logger
	now           func() time.Time
}

// NewStage constructs the vision stage. A nil reader disables recognition.
func NewStage(st *store.Store, reader PlateReader, merger *merge.Engine, enabled bool, minConfidence float64, logger *slog.Logger) *Stage {
	return &Stage{
		store:         st,
		reader:        reader,
		merger:        merger,
		enabled:       enabled && reader != nil,
		minConfidence: minConfidence,
		logger:        logging.NewComponentLogger(logger, stage.Vision),
		now:           time.Now,
	}
}

// Name implements stage.Handler.
func (s *Stage) Name() string { return stage.Vision }

// Execute implements stage.Handler.
func (s *Stage) Execute(ctx context.Context, task stage.Task) (stage.Result, error) {
	if !s.enabled {
		return stage.Skipped(task.VehicleID, "vision disabled"), nil
	}
	vehicle, err := stage.ResolveVehicle(ctx, s.store, task)
	if err != nil {
		return stage.Skipped(task.VehicleID, "vehicle unavailable"), err
	}
	if vehicle == nil {
		return stage.Skipped(task.VehicleID, "no vehicle"), nil
	}
	if vehicle.HasRegistration() {
		return stage.Skipped(vehicle.ID, "registration already known"), nil
	}
	if vehicle.VisionCheckedAt != nil {
		return stage.Skipped(vehicle.ID, "images already checked"), nil
	}
	listing, err := s.store.GetListing(ctx, vehicle.ListingID)
	if err != nil {
		return stage.Skipped(vehicle.ID, "listing unavailable"), services.Wrap(services.ErrTransient, stage.Vision, "load listing", "", err)
	}
	if listing == nil {
		return stage.Skipped(vehicle.ID, "no listing"), nil
	}

	logger := logging.WithContext(ctx, s.logger)
	if len(listing.ImageURLs) == 0 {
		if err := s.store.MarkChecked(ctx, vehicle.ID, store.MarkerVision, s.now()); err != nil {
			return stage.Skipped(vehicle.ID, "no images"), err
		}
		return stage.Skipped(vehicle.ID, "no images"), nil
	}

	scan := s.reader.Recognize(ctx, listing.ImageURLs)
	if !scan.Found && scan.Failed > 0 {
		logger.Info("images left unchecked",
			logging.Int("failed_images", scan.Failed),
			logging.Int("image_count", len(listing.ImageURLs)),
		)
		return stage.Completed(vehicle.ID, "no plate found, images unreadable"), nil
	}
	if !scan.Found {
		if err := s.store.MarkChecked(ctx, vehicle.ID, store.MarkerVision, s.now()); err != nil {
			return stage.Completed(vehicle.ID, "no plate found"), err
		}
		return stage.Completed(vehicle.ID, "no plate found"), nil
	}
	detection := scan.Detection
	if err := s.store.RecordDetection(ctx, vehicle.ID, detection.Plate, detection.Confidence, detection.ImageURL, s.now()); err != nil {
		return stage.Completed(vehicle.ID, "detection not recorded"), err
	}

	if Partial(detection.Plate) || detection.Confidence < s.minConfidence {
		logger.Info("plate not merged",
			logging.Args(logging.DecisionAttrs("plate_merge", "skipped", "below confidence threshold")...)...,
		)
		return stage.Completed(vehicle.ID, "plate below confidence threshold"), nil
	}

	merged, decision, err := s.merger.Apply(ctx, listing, detection.Plate, extract.Attributes{}, merge.Provenance{
		Source:     store.SourceVision,
		Confidence: detection.Confidence,
		ImageURL:   detection.ImageURL,
	})
	if err != nil {
		return stage.Completed(vehicle.ID, "merge failed"), err
	}
	if merged.ID != vehicle.ID {
		if err := s.store.RecordDetection(ctx, merged.ID, detection.Plate, detection.Confidence, detection.ImageURL, s.now()); err != nil {
			return stage.Completed(merged.ID, "detection not recorded"), err
		}
	}
	logger.Info("plate merged",
		logging.String("registration", merged.Registration),
		logging.String("decision", string(decision.Kind)),
		logging.VehicleID(merged.ID),
	)
	return stage.Completed(merged.ID, "plate merged"), nil
}

// HealthCheck implements stage.Handler.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if !s.enabled {
		return stage.HealthyWithDetail(stage.Vision, "disabled")
	}
	return stage.Healthy(stage.Vision)
}
