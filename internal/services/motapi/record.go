package motapi

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"

	"carprobe/internal/services/synthetic"
	"carprobe/internal/store"
)

var dateLayouts = []string{"2006.01.02 15:04:05", time.RFC3339, "2006-01-02", "2006.01.02"}

// Test is one MOT test mapped onto internal names.
type Test struct {
	Number      string
	CompletedAt time.Time
	ExpiresAt   *time.Time
	Odometer    int
	Result      string
	Advisories  []string
	Failures    []string
}

// Record converts the test into its stored form.
func (t Test) Record(vehicleID int64) store.MotTest {
	return store.MotTest{
		VehicleID:   vehicleID,
		TestNumber:  t.Number,
		CompletedAt: t.CompletedAt,
		ExpiresAt:   t.ExpiresAt,
		Odometer:    t.Odometer,
		Result:      t.Result,
		Advisories:  t.Advisories,
		Failures:    t.Failures,
	}
}

// Records converts a batch for vehicleID.
func Records(vehicleID int64, tests []Test) []store.MotTest {
	out := make([]store.MotTest, 0, len(tests))
	for _, test := range tests {
		out = append(out, test.Record(vehicleID))
	}
	return out
}

type vehicleResponse struct {
	Registration string         `json:"registration"`
	MotTests     []testResponse `json:"motTests"`
}

type testResponse struct {
	CompletedDate  string     `json:"completedDate"`
	ExpiryDate     string     `json:"expiryDate"`
	OdometerValue  odometer   `json:"odometerValue"`
	TestResult     string     `json:"testResult"`
	MotTestNumber  string     `json:"motTestNumber"`
	RfrAndComments []rfrEntry `json:"rfrAndComments"`
}

type rfrEntry struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// odometer accepts both numeric and quoted values.
type odometer int

func (o *odometer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*o = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || value < 0 {
		*o = 0
		return nil
	}
	*o = odometer(value)
	return nil
}

func mapVehicles(vehicles []vehicleResponse) []Test {
	var tests []Test
	for _, vehicle := range vehicles {
		for _, raw := range vehicle.MotTests {
			completed, ok := parseDate(raw.CompletedDate)
			if !ok {
				continue
			}
			test := Test{
				Number:      strings.TrimSpace(raw.MotTestNumber),
				CompletedAt: completed,
				Odometer:    int(raw.OdometerValue),
				Result:      mapResult(raw.TestResult),
			}
			if expires, ok := parseDate(raw.ExpiryDate); ok {
				test.ExpiresAt = &expires
			}
			test.Advisories, test.Failures = partition(raw.RfrAndComments)
			tests = append(tests, test)
		}
	}
	slices.SortStableFunc(tests, func(a, b Test) int {
		return b.CompletedAt.Compare(a.CompletedAt)
	})
	return tests
}

func mapResult(value string) string {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "PASSED", "PASS":
		return store.ResultPassed
	case "FAILED", "FAIL":
		return store.ResultFailed
	default:
		return strings.ToUpper(strings.TrimSpace(value))
	}
}

// partition splits comments by declared type, keeping emission order.
// Unrecognised types are dropped.
func partition(entries []rfrEntry) (advisories, failures []string) {
	for _, entry := range entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(entry.Type)) {
		case "ADVISORY", "MINOR", "USER ENTERED":
			advisories = append(advisories, text)
		case "FAIL", "MAJOR", "DANGEROUS", "PRS":
			failures = append(failures, text)
		}
	}
	return advisories, failures
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func syntheticTests(profile synthetic.Profile) []Test {
	tests := make([]Test, 0, len(profile.Tests))
	for _, generated := range profile.Tests {
		test := Test{
			Number:      generated.Number,
			CompletedAt: generated.CompletedAt,
			Odometer:    generated.Odometer,
			Result:      generated.Result,
			Advisories:  generated.Advisories,
			Failures:    generated.Failures,
		}
		if !generated.ExpiresAt.IsZero() {
			expires := generated.ExpiresAt
			test.ExpiresAt = &expires
		}
		tests = append(tests, test)
	}
	return tests
}
