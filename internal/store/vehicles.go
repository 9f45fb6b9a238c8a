package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"carprobe/internal/textutil"
)

const vehicleColumns = "id, listing_id, make, model, year, fuel_type, transmission, engine_size, colour, body_type, doors, mileage, previous_owners, service_history, price, registration, vin, registration_source, registration_confidence, registration_image_url, detected_plate, tax_status, tax_due_date, mot_status, mot_expiry_date, co2_emissions, first_registered, engine_capacity, register_payload, purchase_summary, repair_estimate, lifetime_note, vision_checked_at, register_checked_at, history_checked_at, summary_checked_at, retired_at, created_at, updated_at"

func scanVehicle(scanner rowScanner) (*Vehicle, error) {
	var (
		v               Vehicle
		listingID       sql.NullInt64
		makeName        sql.NullString
		model           sql.NullString
		year            sql.NullInt64
		fuelType        sql.NullString
		transmission    sql.NullString
		engineSize      sql.NullInt64
		colour          sql.NullString
		bodyType        sql.NullString
		doors           sql.NullInt64
		mileage         sql.NullInt64
		owners          sql.NullInt64
		serviceHistory  sql.NullString
		registration    sql.NullString
		vin             sql.NullString
		regSource       sql.NullString
		regConfidence   sql.NullFloat64
		regImage        sql.NullString
		detectedPlate   sql.NullString
		taxStatus       sql.NullString
		taxDue          sql.NullString
		motStatus       sql.NullString
		motExpiry       sql.NullString
		co2             sql.NullInt64
		firstRegistered sql.NullString
		engineCapacity  sql.NullInt64
		payload         sql.NullString
		summary         sql.NullString
		repair          sql.NullString
		lifetime        sql.NullString
		visionAt        sql.NullString
		registerAt      sql.NullString
		historyAt       sql.NullString
		summaryAt       sql.NullString
		retiredAt       sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)
	if err := scanner.Scan(
		&v.ID,
		&listingID,
		&makeName,
		&model,
		&year,
		&fuelType,
		&transmission,
		&engineSize,
		&colour,
		&bodyType,
		&doors,
		&mileage,
		&owners,
		&serviceHistory,
		&v.Price,
		&registration,
		&vin,
		&regSource,
		&regConfidence,
		&regImage,
		&detectedPlate,
		&taxStatus,
		&taxDue,
		&motStatus,
		&motExpiry,
		&co2,
		&firstRegistered,
		&engineCapacity,
		&payload,
		&summary,
		&repair,
		&lifetime,
		&visionAt,
		&registerAt,
		&historyAt,
		&summaryAt,
		&retiredAt,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	v.ListingID = listingID.Int64
	v.Make = makeName.String
	v.Model = model.String
	v.Year = int(year.Int64)
	v.FuelType = fuelType.String
	v.Transmission = transmission.String
	v.EngineSize = int(engineSize.Int64)
	v.Colour = colour.String
	v.BodyType = bodyType.String
	v.Doors = int(doors.Int64)
	v.Mileage = int(mileage.Int64)
	v.PreviousOwners = int(owners.Int64)
	v.ServiceHistory = serviceHistory.String
	v.Registration = registration.String
	v.VIN = vin.String
	v.RegistrationSource = RegistrationSource(regSource.String)
	v.RegistrationConfidence = regConfidence.Float64
	v.RegistrationImageURL = regImage.String
	v.DetectedPlate = detectedPlate.String
	v.TaxStatus = taxStatus.String
	v.TaxDueDate = timePtr(taxDue)
	v.MotStatus = motStatus.String
	v.MotExpiryDate = timePtr(motExpiry)
	v.CO2Emissions = int(co2.Int64)
	v.FirstRegistered = firstRegistered.String
	v.EngineCapacity = int(engineCapacity.Int64)
	v.RegisterPayload = payload.String
	v.PurchaseSummary = summary.String
	v.RepairEstimate = repair.String
	v.LifetimeNote = lifetime.String
	v.VisionCheckedAt = timePtr(visionAt)
	v.RegisterCheckedAt = timePtr(registerAt)
	v.HistoryCheckedAt = timePtr(historyAt)
	v.SummaryCheckedAt = timePtr(summaryAt)
	v.RetiredAt = timePtr(retiredAt)
	v.CreatedAt = timeValue(createdRaw)
	v.UpdatedAt = timeValue(updatedRaw)
	return &v, nil
}

// vehicleValues returns the writable columns of v in vehicleColumns order,
// excluding id, created_at and updated_at.
func vehicleValues(v *Vehicle) []any {
	return []any{
		nullableID(v.ListingID),
		nullableString(v.Make),
		nullableString(v.Model),
		nullableInt(v.Year),
		nullableString(v.FuelType),
		nullableString(v.Transmission),
		nullableInt(v.EngineSize),
		nullableString(v.Colour),
		nullableString(v.BodyType),
		nullableInt(v.Doors),
		nullableInt(v.Mileage),
		nullableInt(v.PreviousOwners),
		nullableString(v.ServiceHistory),
		v.Price,
		nullableString(v.Registration),
		nullableString(textutil.SanitizeRegistration(v.Registration)),
		nullableString(v.VIN),
		nullableString(string(v.RegistrationSource)),
		nullableFloat(v.RegistrationConfidence),
		nullableString(v.RegistrationImageURL),
		nullableString(v.DetectedPlate),
		nullableString(v.TaxStatus),
		nullableTime(v.TaxDueDate),
		nullableString(v.MotStatus),
		nullableTime(v.MotExpiryDate),
		nullableInt(v.CO2Emissions),
		nullableString(v.FirstRegistered),
		nullableInt(v.EngineCapacity),
		nullableString(v.RegisterPayload),
		nullableString(v.PurchaseSummary),
		nullableString(v.RepairEstimate),
		nullableString(v.LifetimeNote),
		nullableTime(v.VisionCheckedAt),
		nullableTime(v.RegisterCheckedAt),
		nullableTime(v.HistoryCheckedAt),
		nullableTime(v.SummaryCheckedAt),
		nullableTime(v.RetiredAt),
	}
}

var vehicleWriteColumns = []string{
	"listing_id", "make", "model", "year", "fuel_type", "transmission", "engine_size", "colour", "body_type",
	"doors", "mileage", "previous_owners", "service_history", "price", "registration", "registration_key", "vin",
	"registration_source", "registration_confidence", "registration_image_url", "detected_plate", "tax_status",
	"tax_due_date", "mot_status", "mot_expiry_date", "co2_emissions", "first_registered", "engine_capacity",
	"register_payload", "purchase_summary", "repair_estimate", "lifetime_note", "vision_checked_at",
	"register_checked_at", "history_checked_at", "summary_checked_at", "retired_at",
}

// SaveVehicle is the single write path for merge decisions. It inserts v when
// v.ID is zero. Otherwise it re-reads the row inside the transaction and
// writes only the merge-owned fields of v over it, so stage results saved
// since v was loaded survive. When retireID is non-zero that vehicle is
// retired in the same transaction before v is written.
func (s *Store) SaveVehicle(ctx context.Context, v *Vehicle, retireID int64) error {
	if v == nil {
		return errors.New("save vehicle: nil vehicle")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		if retireID != 0 {
			if _, err := tx.ExecContext(ctx,
				"UPDATE vehicles SET retired_at = ?, updated_at = ? WHERE id = ? AND retired_at IS NULL",
				formatTime(now), formatTime(now), retireID,
			); err != nil {
				return fmt.Errorf("retire vehicle %d: %w", retireID, err)
			}
		}

		if err := checkRegistrationFree(ctx, tx, v); err != nil {
			return err
		}

		values := vehicleValues(v)
		if v.ID == 0 {
			cols := append(append([]string{}, vehicleWriteColumns...), "created_at", "updated_at")
			args := append(values, formatTime(now), formatTime(now))
			res, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO vehicles (%s) VALUES (%s)", strings.Join(cols, ", "), makePlaceholders(len(cols))),
				args...,
			)
			if err != nil {
				return fmt.Errorf("insert vehicle: %w", uniqueViolation(err))
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("vehicle id: %w", err)
			}
			v.ID = id
			v.CreatedAt = now
			v.UpdatedAt = now
			return nil
		}

		current, err := scanVehicle(tx.QueryRowContext(ctx, "SELECT "+vehicleColumns+" FROM vehicles WHERE id = ?", v.ID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update vehicle %d: not found", v.ID)
		}
		if err != nil {
			return fmt.Errorf("reload vehicle %d: %w", v.ID, err)
		}
		*v = overlayMergeFields(current, v)
		values = vehicleValues(v)

		assignments := make([]string, 0, len(vehicleWriteColumns)+1)
		for _, col := range vehicleWriteColumns {
			assignments = append(assignments, col+" = ?")
		}
		assignments = append(assignments, "updated_at = ?")
		args := append(values, formatTime(now), v.ID)
		res, err := tx.ExecContext(ctx,
			"UPDATE vehicles SET "+strings.Join(assignments, ", ")+" WHERE id = ?",
			args...,
		)
		if err != nil {
			return fmt.Errorf("update vehicle %d: %w", v.ID, uniqueViolation(err))
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("update vehicle %d: not found", v.ID)
		}
		v.UpdatedAt = now
		return nil
	})
}

// overlayMergeFields returns current with the fields a merge decides taken
// from next: the listing link, registration and provenance, heuristic
// attributes and retirement. Register-owned attributes follow next only while
// current has no register data. Stage results and markers stay as stored,
// except that a newly assigned registration clears the markers of the
// registration-dependent stages.
func overlayMergeFields(current, next *Vehicle) Vehicle {
	out := *current
	out.ListingID = next.ListingID
	if !current.HasRegisterData() {
		out.Make = next.Make
		out.Model = next.Model
		out.Year = next.Year
		out.FuelType = next.FuelType
		out.Colour = next.Colour
	}
	out.Transmission = next.Transmission
	out.EngineSize = next.EngineSize
	out.BodyType = next.BodyType
	out.Doors = next.Doors
	out.Mileage = next.Mileage
	out.PreviousOwners = next.PreviousOwners
	out.ServiceHistory = next.ServiceHistory
	out.Price = next.Price
	out.RetiredAt = next.RetiredAt

	if !current.HasRegistration() && next.HasRegistration() {
		out.Registration = next.Registration
		out.RegistrationSource = next.RegistrationSource
		out.RegistrationConfidence = next.RegistrationConfidence
		out.RegistrationImageURL = next.RegistrationImageURL
		out.RegisterCheckedAt = nil
		out.HistoryCheckedAt = nil
		out.SummaryCheckedAt = nil
	}
	return out
}

func checkRegistrationFree(ctx context.Context, tx *sql.Tx, v *Vehicle) error {
	key := textutil.SanitizeRegistration(v.Registration)
	if key == "" || v.ListingID == 0 || v.RetiredAt != nil {
		return nil
	}
	var clash int64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM vehicles WHERE registration_key = ? AND listing_id = ? AND retired_at IS NULL AND id != ? LIMIT 1",
		key, v.ListingID, v.ID,
	).Scan(&clash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check registration: %w", err)
	}
	return fmt.Errorf("%w: %s already on vehicle %d of listing %d", ErrDuplicateRegistration, key, clash, v.ListingID)
}

func (s *Store) updateColumns(ctx context.Context, id int64, cols []string, args []any) error {
	assignments := make([]string, 0, len(cols)+1)
	for _, col := range cols {
		assignments = append(assignments, col+" = ?")
	}
	assignments = append(assignments, "updated_at = ?")
	args = append(args, formatTime(s.timestamp()), id)
	res, err := s.execWithRetry(ctx, "UPDATE vehicles SET "+strings.Join(assignments, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update vehicle %d: %w", id, uniqueViolation(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update vehicle %d: not found", id)
	}
	return nil
}

// MarkChecked stamps a stage completion marker on a vehicle.
func (s *Store) MarkChecked(ctx context.Context, id int64, marker Marker, at time.Time) error {
	if !marker.valid() {
		return fmt.Errorf("mark checked: unknown marker %q", marker)
	}
	return s.updateColumns(ctx, id, []string{string(marker)}, []any{nullableTime(&at)})
}

// RecordDetection stores vision provenance and the vision marker.
func (s *Store) RecordDetection(ctx context.Context, id int64, plate string, confidence float64, imageURL string, at time.Time) error {
	return s.updateColumns(ctx, id,
		[]string{"detected_plate", "registration_confidence", "registration_image_url", string(MarkerVision)},
		[]any{nullableString(plate), nullableFloat(confidence), nullableString(imageURL), nullableTime(&at)},
	)
}

// SaveRegisterData writes the register-owned columns of v and its register marker.
func (s *Store) SaveRegisterData(ctx context.Context, v *Vehicle) error {
	return s.updateColumns(ctx, v.ID,
		[]string{
			"make", "model", "year", "fuel_type", "colour", "engine_capacity", "co2_emissions", "tax_status",
			"tax_due_date", "mot_status", "mot_expiry_date", "first_registered", "register_payload", string(MarkerRegister),
		},
		[]any{
			nullableString(v.Make), nullableString(v.Model), nullableInt(v.Year), nullableString(v.FuelType),
			nullableString(v.Colour), nullableInt(v.EngineCapacity), nullableInt(v.CO2Emissions),
			nullableString(v.TaxStatus), nullableTime(v.TaxDueDate), nullableString(v.MotStatus),
			nullableTime(v.MotExpiryDate), nullableString(v.FirstRegistered), nullableString(v.RegisterPayload),
			nullableTime(v.RegisterCheckedAt),
		},
	)
}

// SaveSummary writes the advisory-owned columns and the summary marker.
func (s *Store) SaveSummary(ctx context.Context, id int64, summary, repair, lifetime string, at time.Time) error {
	return s.updateColumns(ctx, id,
		[]string{"purchase_summary", "repair_estimate", "lifetime_note", string(MarkerSummary)},
		[]any{nullableString(summary), nullableString(repair), nullableString(lifetime), nullableTime(&at)},
	)
}

// ClearVisionMarker resets the vision marker on the listing's active vehicle
// so a changed image set is scanned again.
func (s *Store) ClearVisionMarker(ctx context.Context, listingID int64) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE vehicles SET vision_checked_at = NULL, updated_at = ? WHERE listing_id = ? AND retired_at IS NULL",
		formatTime(s.timestamp()), listingID,
	)
	if err != nil {
		return fmt.Errorf("clear vision marker: %w", err)
	}
	return nil
}

// GetVehicle fetches a vehicle by ID. Missing rows return (nil, nil).
func (s *Store) GetVehicle(ctx context.Context, id int64) (*Vehicle, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+vehicleColumns+" FROM vehicles WHERE id = ?", id)
	vehicle, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	return vehicle, nil
}

// VehicleForListing returns the listing's active vehicle, or nil.
func (s *Store) VehicleForListing(ctx context.Context, listingID int64) (*Vehicle, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+vehicleColumns+" FROM vehicles WHERE listing_id = ? AND retired_at IS NULL",
		listingID,
	)
	vehicle, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vehicle for listing: %w", err)
	}
	return vehicle, nil
}

// VehiclesByRegistration returns active vehicles whose sanitized registration
// matches, oldest first.
func (s *Store) VehiclesByRegistration(ctx context.Context, registration string) ([]*Vehicle, error) {
	key := textutil.SanitizeRegistration(registration)
	if key == "" {
		return nil, nil
	}
	return s.queryVehicles(ctx,
		"SELECT "+vehicleColumns+" FROM vehicles WHERE registration_key = ? AND retired_at IS NULL ORDER BY id",
		key,
	)
}

// ListVehicles returns vehicles ordered by ID.
func (s *Store) ListVehicles(ctx context.Context, filter VehicleFilter) ([]*Vehicle, error) {
	query := "SELECT " + vehicleColumns + " FROM vehicles"
	if !filter.IncludeRetired {
		query += " WHERE retired_at IS NULL"
	}
	query += " ORDER BY id"
	var args []any
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return s.queryVehicles(ctx, query, args...)
}

func (s *Store) queryVehicles(ctx context.Context, query string, args ...any) ([]*Vehicle, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*Vehicle
	for rows.Next() {
		vehicle, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles = append(vehicles, vehicle)
	}
	return vehicles, rows.Err()
}
