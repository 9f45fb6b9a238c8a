package dvla

import (
	"encoding/json"
	"strings"
	"time"

	"carprobe/internal/services/synthetic"
	"carprobe/internal/store"
	"carprobe/internal/textutil"
)

// Record is a register entry mapped onto internal field names. It never
// carries a transmission.
type Record struct {
	Registration      string
	Make              string
	Model             string
	Colour            string
	FuelType          string
	YearOfManufacture int
	EngineCapacity    int
	CO2Emissions      int
	TaxStatus         string
	TaxDueDate        *time.Time
	MotStatus         string
	MotExpiryDate     *time.Time
	// FirstRegistered is the month of first registration as YYYY-MM.
	FirstRegistered string
	Payload         string
	Synthetic       bool
}

// Apply copies register data onto v. Register values replace extracted ones
// when present; empty register fields leave v untouched.
func (r Record) Apply(v *store.Vehicle) {
	setString(&v.Make, r.Make)
	setString(&v.Model, r.Model)
	setString(&v.Colour, r.Colour)
	setString(&v.FuelType, r.FuelType)
	if r.YearOfManufacture > 0 {
		v.Year = r.YearOfManufacture
	}
	if r.EngineCapacity > 0 {
		v.EngineCapacity = r.EngineCapacity
		if v.EngineSize == 0 {
			v.EngineSize = r.EngineCapacity
		}
	}
	if r.CO2Emissions > 0 {
		v.CO2Emissions = r.CO2Emissions
	}
	setString(&v.TaxStatus, r.TaxStatus)
	if r.TaxDueDate != nil {
		v.TaxDueDate = r.TaxDueDate
	}
	setString(&v.MotStatus, r.MotStatus)
	if r.MotExpiryDate != nil {
		v.MotExpiryDate = r.MotExpiryDate
	}
	setString(&v.FirstRegistered, r.FirstRegistered)
	setString(&v.RegisterPayload, r.Payload)
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func mapResponse(p enquiryResponse) Record {
	return Record{
		Registration:      textutil.SanitizeRegistration(p.RegistrationNumber),
		Make:              textutil.TitleCase(p.Make),
		Model:             textutil.TitleCase(p.Model),
		Colour:            textutil.TitleCase(p.Colour),
		FuelType:          textutil.TitleCase(p.FuelType),
		YearOfManufacture: p.YearOfManufacture,
		EngineCapacity:    p.EngineCapacity,
		CO2Emissions:      p.CO2Emissions,
		TaxStatus:         strings.TrimSpace(p.TaxStatus),
		TaxDueDate:        parseDate(p.TaxDueDate),
		MotStatus:         strings.TrimSpace(p.MotStatus),
		MotExpiryDate:     parseDate(p.MotExpiryDate),
		FirstRegistered:   parseMonth(p.MonthOfFirstRegistration),
	}
}

func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseMonth(value string) string {
	value = strings.TrimSpace(value)
	if _, err := time.Parse(monthLayout, value); err != nil {
		return ""
	}
	return value
}

func syntheticRecord(profile synthetic.Profile) Record {
	v := profile.Vehicle
	payload := enquiryResponse{
		RegistrationNumber:       v.Registration,
		TaxStatus:                v.TaxStatus,
		TaxDueDate:               v.TaxDueDate.Format(dateLayout),
		MotStatus:                v.MotStatus,
		Make:                     v.Make,
		Model:                    v.Model,
		Colour:                   v.Colour,
		FuelType:                 v.FuelType,
		YearOfManufacture:        v.YearOfManufacture,
		EngineCapacity:           v.EngineCapacity,
		CO2Emissions:             v.CO2Emissions,
		MonthOfFirstRegistration: v.FirstRegistered.Format(monthLayout),
	}
	if !v.MotExpiryDate.IsZero() {
		payload.MotExpiryDate = v.MotExpiryDate.Format(dateLayout)
	}
	record := mapResponse(payload)
	if encoded, err := json.Marshal(payload); err == nil {
		record.Payload = string(encoded)
	}
	record.Synthetic = true
	return record
}
