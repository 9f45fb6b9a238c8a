package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"carprobe/internal/extract"
	"carprobe/internal/logging"
	"carprobe/internal/merge"
	"carprobe/internal/queue"
	"carprobe/internal/services"
	"carprobe/internal/stage"
	"carprobe/internal/store"
)

// RawRegistrationKey is the raw scraper field carrying a registration.
const RawRegistrationKey = "registration"

// Scheduler enqueues stage jobs.
type Scheduler interface {
	Enqueue(ctx context.Context, stage string, listingID, vehicleID int64) (*queue.Job, error)
}

// Report describes what a Save did.
type Report struct {
	ListingID int64
	VehicleID int64
	Change    store.ListingChange
	Decision  merge.Decision
	// Scheduled is the first chain stage enqueued, or "" when nothing was.
	Scheduled string
	JobID     int64
}

// Service stores listings and keeps their vehicles current.
type Service struct {
	store         *store.Store
	merger        *merge.Engine
	scheduler     Scheduler
	visionEnabled bool
	logger        *slog.Logger
	now           func() time.Time
}

// NewService builds an ingest service. A nil scheduler stores listings
// without scheduling enrichment.
func NewService(st *store.Store, merger *merge.Engine, scheduler Scheduler, visionEnabled bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:         st,
		merger:        merger,
		scheduler:     scheduler,
		visionEnabled: visionEnabled,
		logger:        logging.NewComponentLogger(logger, "ingest"),
		now:           time.Now,
	}
}

// Save upserts listing, derives its vehicle synchronously, and schedules the
// enrichment chain when the listing is new or its images or status changed.
func (s *Service) Save(ctx context.Context, listing *store.Listing) (Report, error) {
	if listing == nil {
		return Report{}, services.Wrap(services.ErrValidation, "ingest", "save listing", "listing is required", nil)
	}
	change, err := s.store.UpsertListing(ctx, listing)
	if err != nil {
		return Report{}, services.Wrap(services.ErrTransient, "ingest", "upsert listing", listing.SourceID, err)
	}
	ctx = services.WithListingID(ctx, listing.ID)
	logger := logging.WithContext(ctx, s.logger)
	report := Report{ListingID: listing.ID, Change: change}

	attrs := extract.FromListing(extract.Input{
		Title:       listing.Title,
		Description: listing.Description,
		Specs:       listing.Specs,
		Price:       listing.Price,
		PostedAt:    listing.PostedAt,
		Now:         s.now(),
	})
	registration := strings.TrimSpace(listing.Raw[RawRegistrationKey])
	provenance := merge.Provenance{}
	if registration != "" {
		provenance = merge.Provenance{Source: store.SourceListing, Confidence: 1}
	}
	vehicle, decision, err := s.merger.Apply(ctx, listing, registration, attrs, provenance)
	if err != nil {
		return report, err
	}
	report.VehicleID = vehicle.ID
	report.Decision = decision

	if change.ImagesChanged && !change.Created {
		if err := s.store.ClearVisionMarker(ctx, listing.ID); err != nil {
			return report, services.Wrap(services.ErrTransient, "ingest", "clear vision marker", "", err)
		}
		logger.Debug("listing images changed; plate recognition will re-run")
	}

	if !change.NeedsEnrichment() || s.scheduler == nil {
		logger.Info("listing saved",
			logging.String(logging.FieldEventType, "listing_saved"),
			logging.VehicleID(vehicle.ID),
			logging.String("decision", string(decision.Kind)),
			logging.Bool("scheduled", false),
		)
		return report, nil
	}

	first := stage.Vision
	if !s.visionEnabled {
		first = stage.Register
	}
	job, err := s.scheduler.Enqueue(ctx, first, listing.ID, vehicle.ID)
	if err != nil {
		return report, services.Wrap(services.ErrTransient, "ingest", "schedule enrichment", first, err)
	}
	report.Scheduled = first
	report.JobID = job.ID

	logger.Info("listing saved",
		logging.String(logging.FieldEventType, "listing_saved"),
		logging.VehicleID(vehicle.ID),
		logging.String("decision", string(decision.Kind)),
		logging.Bool("created", change.Created),
		logging.Bool("images_changed", change.ImagesChanged),
		logging.Bool("status_changed", change.StatusChanged),
		logging.String("first_stage", first),
	)
	return report, nil
}
