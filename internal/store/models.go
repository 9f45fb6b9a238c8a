package store

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus tracks a listing's lifecycle on the source site.
type ListingStatus string

const (
	ListingActive  ListingStatus = "active"
	ListingSold    ListingStatus = "sold"
	ListingExpired ListingStatus = "expired"
)

// Valid reports whether the status is one of the known values.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingActive, ListingSold, ListingExpired:
		return true
	}
	return false
}

// Listing is a scraped advertisement.
type Listing struct {
	ID          int64
	SourceID    string
	URL         string
	Title       string
	Description string
	Price       decimal.Decimal
	Location    string
	ImageURLs   []string
	Specs       []string
	PostedAt    time.Time
	Status      ListingStatus
	Raw         map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListingChange reports what an upsert changed.
type ListingChange struct {
	Created       bool
	ImagesChanged bool
	StatusChanged bool
}

// NeedsEnrichment reports whether the change should schedule the stage chain.
func (c ListingChange) NeedsEnrichment() bool {
	return c.Created || c.ImagesChanged || c.StatusChanged
}

// RegistrationSource records where a vehicle's registration came from.
type RegistrationSource string

const (
	SourceListing  RegistrationSource = "listing"
	SourceVision   RegistrationSource = "vision"
	SourceRegister RegistrationSource = "register"
)

// Vehicle is the normalized, enrichable entity derived from a listing.
type Vehicle struct {
	ID        int64
	ListingID int64

	Make           string
	Model          string
	Year           int
	FuelType       string
	Transmission   string
	EngineSize     int
	Colour         string
	BodyType       string
	Doors          int
	Mileage        int
	PreviousOwners int
	ServiceHistory string
	Price          decimal.NullDecimal

	Registration           string
	VIN                    string
	RegistrationSource     RegistrationSource
	RegistrationConfidence float64
	RegistrationImageURL   string
	DetectedPlate          string

	TaxStatus       string
	TaxDueDate      *time.Time
	MotStatus       string
	MotExpiryDate   *time.Time
	CO2Emissions    int
	FirstRegistered string
	EngineCapacity  int
	RegisterPayload string

	PurchaseSummary string
	RepairEstimate  string
	LifetimeNote    string

	VisionCheckedAt   *time.Time
	RegisterCheckedAt *time.Time
	HistoryCheckedAt  *time.Time
	SummaryCheckedAt  *time.Time
	RetiredAt         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// VehicleState is the enrichment progress derived from a vehicle's fields.
type VehicleState string

const (
	StateNoRegistration    VehicleState = "no_registration"
	StateRegistrationKnown VehicleState = "registration_known"
	StateRegisterDone      VehicleState = "register_done"
	StateHistoryDone       VehicleState = "history_done"
	StateSummaryDone       VehicleState = "summary_done"
)

// HasRegistration reports whether a registration is known.
func (v *Vehicle) HasRegistration() bool {
	return v != nil && strings.TrimSpace(v.Registration) != ""
}

// HasRegisterData reports whether authoritative register data was stored or looked up.
func (v *Vehicle) HasRegisterData() bool {
	return v != nil && (v.RegisterPayload != "" || v.RegisterCheckedAt != nil)
}

// HasSummary reports whether the purchase advisory ran.
func (v *Vehicle) HasSummary() bool {
	return v != nil && (strings.TrimSpace(v.PurchaseSummary) != "" || v.SummaryCheckedAt != nil)
}

// Retired reports whether the vehicle was superseded by a fork.
func (v *Vehicle) Retired() bool {
	return v != nil && v.RetiredAt != nil
}

// State derives the enrichment state. A summary can be produced from make
// alone, so it wins over a missing registration.
func (v *Vehicle) State() VehicleState {
	switch {
	case v.HasSummary():
		return StateSummaryDone
	case !v.HasRegistration():
		return StateNoRegistration
	case v.HistoryCheckedAt != nil:
		return StateHistoryDone
	case v.HasRegisterData():
		return StateRegisterDone
	default:
		return StateRegistrationKnown
	}
}

// Test results recorded on MOT history.
const (
	ResultPassed = "PASSED"
	ResultFailed = "FAILED"
)

// MotTest is one inspection event. Rows are never updated after insert.
type MotTest struct {
	ID          int64
	VehicleID   int64
	TestNumber  string
	CompletedAt time.Time
	ExpiresAt   *time.Time
	Odometer    int
	Result      string
	Advisories  []string
	Failures    []string
	CreatedAt   time.Time
}

// Passed reports whether the test result was a pass.
func (t MotTest) Passed() bool {
	return t.Result == ResultPassed
}

// VehicleFilter narrows ListVehicles.
type VehicleFilter struct {
	IncludeRetired bool
	Limit          int
}

// Marker names a per-stage completion column.
type Marker string

const (
	MarkerVision   Marker = "vision_checked_at"
	MarkerRegister Marker = "register_checked_at"
	MarkerHistory  Marker = "history_checked_at"
	MarkerSummary  Marker = "summary_checked_at"
)

func (m Marker) valid() bool {
	switch m {
	case MarkerVision, MarkerRegister, MarkerHistory, MarkerSummary:
		return true
	}
	return false
}
