package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"carprobe/internal/logging"
	"carprobe/internal/store"
)

// Sheet names in the workbook.
const (
	VehiclesSheet = "Vehicles"
	MotSheet      = "MOT Tests"
)

const dateLayout = "2006-01-02"

var vehicleHeaders = []string{
	"ID", "Listing", "Registration", "Source", "Make", "Model", "Year", "Fuel",
	"Transmission", "Engine (cc)", "Colour", "Mileage", "Price", "MOT Status",
	"MOT Expiry", "Tax Status", "State", "Summary",
}

var motHeaders = []string{
	"Vehicle", "Registration", "Test Number", "Completed", "Expires", "Result",
	"Odometer", "Failures", "Advisories",
}

// Reader is the slice of the store the exporter reads.
type Reader interface {
	ListVehicles(ctx context.Context, filter store.VehicleFilter) ([]*store.Vehicle, error)
	MotTests(ctx context.Context, vehicleID int64) ([]store.MotTest, error)
}

// Service produces workbooks from stored vehicles.
type Service struct {
	store  Reader
	logger *slog.Logger
}

// NewService constructs an exporter.
func NewService(st Reader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{store: st, logger: logging.NewComponentLogger(logger, "export")}
}

// WorkbookXLSX returns the workbook bytes. Retired vehicles are included
// only when includeRetired is set.
func (s *Service) WorkbookXLSX(ctx context.Context, includeRetired bool) ([]byte, error) {
	start := time.Now()
	vehicles, err := s.store.ListVehicles(ctx, store.VehicleFilter{IncludeRetired: includeRetired})
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", VehiclesSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(MotSheet); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}
	writeRow(f, VehiclesSheet, 1, toAny(vehicleHeaders))
	writeRow(f, MotSheet, 1, toAny(motHeaders))

	motRow := 2
	for i, v := range vehicles {
		writeRow(f, VehiclesSheet, i+2, vehicleRow(v))

		tests, err := s.store.MotTests(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("mot tests for vehicle %d: %w", v.ID, err)
		}
		for _, test := range tests {
			writeRow(f, MotSheet, motRow, motTestRow(v, test))
			motRow++
		}
	}

	_ = f.SetColWidth(VehiclesSheet, "C", "C", 14)
	_ = f.SetColWidth(VehiclesSheet, "E", "F", 18)
	_ = f.SetColWidth(VehiclesSheet, "R", "R", 80)
	_ = f.SetColWidth(MotSheet, "H", "I", 60)
	if index, err := f.GetSheetIndex(VehiclesSheet); err == nil {
		f.SetActiveSheet(index)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("workbook exported",
		logging.String(logging.FieldEventType, "export_complete"),
		logging.Int("vehicles", len(vehicles)),
		logging.Int("mot_tests", motRow-2),
		logging.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return buf.Bytes(), nil
}

// WriteFile writes the workbook to path.
func (s *Service) WriteFile(ctx context.Context, path string, includeRetired bool) error {
	data, err := s.WorkbookXLSX(ctx, includeRetired)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func vehicleRow(v *store.Vehicle) []any {
	price := ""
	if v.Price.Valid {
		price = v.Price.Decimal.StringFixed(2)
	}
	return []any{
		v.ID,
		v.ListingID,
		v.Registration,
		string(v.RegistrationSource),
		v.Make,
		v.Model,
		blankZero(v.Year),
		v.FuelType,
		v.Transmission,
		blankZero(v.EngineSize),
		v.Colour,
		blankZero(v.Mileage),
		price,
		v.MotStatus,
		formatDate(v.MotExpiryDate),
		v.TaxStatus,
		string(v.State()),
		v.PurchaseSummary,
	}
}

func motTestRow(v *store.Vehicle, test store.MotTest) []any {
	return []any{
		v.ID,
		v.Registration,
		test.TestNumber,
		test.CompletedAt.Format(dateLayout),
		formatDate(test.ExpiresAt),
		test.Result,
		test.Odometer,
		strings.Join(test.Failures, "; "),
		strings.Join(test.Advisories, "; "),
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, value := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, value)
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func blankZero(value int) any {
	if value == 0 {
		return ""
	}
	return value
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
