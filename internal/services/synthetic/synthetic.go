package synthetic

import (
	"fmt"
	"math/rand/v2"
	"time"

	"carprobe/internal/textutil"
)

// Result values used in generated test records.
const (
	ResultPassed = "PASSED"
	ResultFailed = "FAILED"
)

// Vehicle is a generated register record.
type Vehicle struct {
	Registration      string
	Make              string
	Model             string
	Colour            string
	FuelType          string
	YearOfManufacture int
	FirstRegistered   time.Time
	EngineCapacity    int
	CO2Emissions      int
	TaxStatus         string
	TaxDueDate        time.Time
	MotStatus         string
	MotExpiryDate     time.Time
}

// Test is a generated MOT test, newest first in a Profile.
type Test struct {
	Number      string
	CompletedAt time.Time
	ExpiresAt   time.Time
	Odometer    int
	Result      string
	Advisories  []string
	Failures    []string
}

// Profile holds the register record and history generated for one
// registration. Both are drawn from the same sequence so they agree.
type Profile struct {
	Vehicle Vehicle
	Tests   []Test
}

type model struct {
	make     string
	model    string
	fuel     string
	capacity int
}

var models = []model{
	{"FORD", "FIESTA", "PETROL", 1242},
	{"FORD", "FOCUS", "DIESEL", 1560},
	{"VAUXHALL", "CORSA", "PETROL", 1398},
	{"VOLKSWAGEN", "GOLF", "PETROL", 1395},
	{"VOLKSWAGEN", "POLO", "DIESEL", 1422},
	{"TOYOTA", "YARIS", "HYBRID ELECTRIC", 1496},
	{"NISSAN", "QASHQAI", "DIESEL", 1461},
	{"BMW", "320D", "DIESEL", 1995},
	{"AUDI", "A3", "PETROL", 1395},
	{"HONDA", "JAZZ", "PETROL", 1339},
	{"KIA", "SPORTAGE", "DIESEL", 1685},
	{"PEUGEOT", "208", "PETROL", 1199},
}

var colourNames = []string{"BLACK", "WHITE", "SILVER", "GREY", "BLUE", "RED"}

var advisoryPool = []string{
	"Nearside front tyre worn close to legal limit",
	"Offside rear brake disc worn, pitted or scored",
	"Front brake pads wearing thin",
	"Oil leak but not excessive",
	"Underside has slight corrosion",
	"Front anti-roll bar linkage ball joint has slight play",
	"Windscreen has damage to an area less than a quarter of the area to be swept",
	"Exhaust has minor leak of exhaust gases",
}

var failurePool = []string{
	"Nearside headlamp aim too high",
	"Offside front coil spring fractured or broken",
	"Service brake efficiency below requirements",
	"Nearside rear tyre tread depth below requirements of 1.6mm",
	"Registration plate lamp inoperative",
	"Exhaust emissions carbon monoxide content exceeds limits",
}

// Epoch anchors every offline profile. Using a fixed date instead of the
// wall clock keeps a registration's register record and MOT history
// identical across days and across the two lookups that read them.
var Epoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// Seed is the sum of the character codes of the sanitized registration.
func Seed(registration string) uint64 {
	var sum uint64
	for _, r := range textutil.SanitizeRegistration(registration) {
		sum += uint64(r)
	}
	return sum
}

// Build generates the profile for registration as seen at asOf. Identical
// inputs always produce identical profiles.
func Build(registration string, asOf time.Time) Profile {
	seed := Seed(registration)
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	asOf = asOf.UTC().Truncate(24 * time.Hour)

	pick := models[r.IntN(len(models))]
	age := 4 + r.IntN(12)
	year := asOf.Year() - age
	month := time.Month(1 + r.IntN(12))
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	vehicle := Vehicle{
		Registration:      textutil.SanitizeRegistration(registration),
		Make:              pick.make,
		Model:             pick.model,
		Colour:            colourNames[r.IntN(len(colourNames))],
		FuelType:          pick.fuel,
		YearOfManufacture: year,
		FirstRegistered:   first,
		EngineCapacity:    pick.capacity,
		CO2Emissions:      90 + r.IntN(90),
		TaxStatus:         "Taxed",
		TaxDueDate:        time.Date(asOf.Year()+1, month, 1, 0, 0, 0, 0, time.UTC),
	}
	if r.IntN(10) == 0 {
		vehicle.TaxStatus = "SORN"
	}

	tests := buildTests(r, asOf, age)
	if len(tests) > 0 && tests[0].Result == ResultPassed {
		vehicle.MotStatus = "Valid"
		vehicle.MotExpiryDate = tests[0].ExpiresAt
	} else {
		vehicle.MotStatus = "Not valid"
	}
	return Profile{Vehicle: vehicle, Tests: tests}
}

// buildTests generates between one and five tests, newest first, one year
// apart. Mileage falls and wear grows going back in time.
func buildTests(r *rand.Rand, asOf time.Time, age int) []Test {
	count := 1 + r.IntN(min(5, age-3))
	rate := 6000 + r.IntN(6000)
	latest := asOf.AddDate(0, 0, -(30 + r.IntN(300)))
	odometer := rate*(age-1) + r.IntN(rate)

	advisoryBase := r.IntN(2)
	failures := 0
	offset := r.IntN(len(advisoryPool))

	tests := make([]Test, 0, count)
	for i := range count {
		completed := latest.AddDate(-i, 0, -r.IntN(7))
		if i > 0 {
			odometer -= rate*8/10 + r.IntN(rate*4/10)
			failures += r.IntN(2)
		}
		adv := min(advisoryBase+i+r.IntN(2), len(advisoryPool))
		test := Test{
			Number:      fmt.Sprintf("%012d", r.Int64N(1_000_000_000_000)),
			CompletedAt: completed,
			Odometer:    max(odometer, 1),
			Result:      ResultPassed,
			Advisories:  pickFrom(advisoryPool, offset, adv),
			Failures:    pickFrom(failurePool, offset, min(failures, len(failurePool))),
		}
		if len(test.Failures) > 0 {
			test.Result = ResultFailed
		} else {
			test.ExpiresAt = completed.AddDate(1, 0, -1)
		}
		tests = append(tests, test)
	}
	return tests
}

func pickFrom(pool []string, offset, n int) []string {
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	for i := range n {
		out[i] = pool[(offset+i)%len(pool)]
	}
	return out
}
