package extract_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"carprobe/internal/extract"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestFromListingTitle(t *testing.T) {
	attrs := extract.FromListing(extract.Input{
		Title: "2019 Ford Fiesta 1.2 Petrol Manual, 45,000 miles",
		Now:   now,
	})
	want := extract.Attributes{
		Year:         2019,
		Make:         "Ford",
		Model:        "Fiesta",
		FuelType:     "Petrol",
		Transmission: "Manual",
		Mileage:      45000,
		EngineSize:   1200,
	}
	if attrs != want {
		t.Fatalf("unexpected attributes:\n got %+v\nwant %+v", attrs, want)
	}
}

func TestFromListingTitleYearWins(t *testing.T) {
	attrs := extract.FromListing(extract.Input{
		Title:       "2018 Audi A3 Sportback",
		Description: "First registered 2017. Diesel, 2.0 TDI automatic.",
		Now:         now,
	})
	if attrs.Year != 2018 {
		t.Fatalf("expected title year 2018, got %d", attrs.Year)
	}
	if attrs.Make != "Audi" || attrs.Model != "A3" {
		t.Fatalf("unexpected make/model %q %q", attrs.Make, attrs.Model)
	}
	if attrs.FuelType != "Diesel" || attrs.Transmission != "Automatic" || attrs.EngineSize != 2000 {
		t.Fatalf("expected description to fill the rest, got %+v", attrs)
	}
}

func TestFromListingPrefersMakeWithModel(t *testing.T) {
	attrs := extract.FromListing(extract.Input{
		Title:       "Lovely family hatchback",
		Description: "Driver seat recently retrimmed. Ford Focus Titanium, full service history.",
		Now:         now,
	})
	if attrs.Make != "Ford" || attrs.Model != "Focus" {
		t.Fatalf("expected Ford Focus, got %q %q", attrs.Make, attrs.Model)
	}
}

func TestFromListingModelNumberIsNotYear(t *testing.T) {
	attrs := extract.FromListing(extract.Input{
		Title: "Peugeot 2008 SUV 1.2 PureTech, registered 2019",
		Now:   now,
	})
	if attrs.Make != "Peugeot" || attrs.Model != "2008" {
		t.Fatalf("unexpected make/model %q %q", attrs.Make, attrs.Model)
	}
	if attrs.Year != 2019 {
		t.Fatalf("expected year 2019, got %d", attrs.Year)
	}

	dated := extract.FromListing(extract.Input{Title: "2008 Peugeot 208 GT Line", Now: now})
	if dated.Year != 2008 || dated.Model != "208" {
		t.Fatalf("expected leading year kept, got %+v", dated)
	}
}

func TestFromListingMileageShorthand(t *testing.T) {
	cases := map[string]int{
		"only 32k miles":       32000,
		"32.5k miles from new": 32500,
		"mileage: 61,200":      61200,
		"7000 mls":             7000,
	}
	for text, want := range cases {
		got := extract.FromListing(extract.Input{Description: text, Now: now}).Mileage
		if got != want {
			t.Fatalf("mileage for %q = %d, want %d", text, got, want)
		}
	}
}

func TestFromListingIgnoresElectricExtras(t *testing.T) {
	attrs := extract.FromListing(extract.Input{
		Title:       "Vauxhall Corsa",
		Description: "Electric windows, auto lights, manual book present",
		Now:         now,
	})
	if attrs.FuelType != "" || attrs.Transmission != "" {
		t.Fatalf("expected no fuel or transmission, got %q %q", attrs.FuelType, attrs.Transmission)
	}

	attrs = extract.FromListing(extract.Input{
		Description: "electric windows, diesel engine",
		Now:         now,
	})
	if attrs.FuelType != "Diesel" {
		t.Fatalf("expected Diesel, got %q", attrs.FuelType)
	}
}

func TestFromListingYearBoundsAndFallback(t *testing.T) {
	posted := time.Date(2023, 11, 5, 0, 0, 0, 0, time.UTC)
	attrs := extract.FromListing(extract.Input{
		Title:    "Honda Jazz reg 2031",
		PostedAt: posted,
		Now:      now,
	})
	if attrs.Year != 2023 {
		t.Fatalf("expected post-date fallback 2023, got %d", attrs.Year)
	}

	attrs = extract.FromListing(extract.Input{Title: "Honda Jazz 2025", Now: now})
	if attrs.Year != 2025 {
		t.Fatalf("expected next year to be accepted, got %d", attrs.Year)
	}
}

func TestFromListingMultiWordNames(t *testing.T) {
	attrs := extract.FromListing(extract.Input{Title: "Land Rover Range Rover Sport HSE 2016", Now: now})
	if attrs.Make != "Land Rover" || attrs.Model != "Range Rover Sport" {
		t.Fatalf("unexpected make/model %q %q", attrs.Make, attrs.Model)
	}

	attrs = extract.FromListing(extract.Input{Title: "VW Golf GTI", Now: now})
	if attrs.Make != "Volkswagen" || attrs.Model != "Golf" {
		t.Fatalf("expected alias to resolve, got %q %q", attrs.Make, attrs.Model)
	}
}

func TestFromListingGuessesUnknownModel(t *testing.T) {
	attrs := extract.FromListing(extract.Input{Title: "Skoda Enyaq iV 80 for sale", Now: now})
	if attrs.Make != "Skoda" || attrs.Model != "Enyaq" {
		t.Fatalf("expected guessed model Enyaq, got %q %q", attrs.Make, attrs.Model)
	}
}

func TestFromListingSpecsAndDetails(t *testing.T) {
	attrs := extract.FromListing(extract.Input{
		Title:       "Kia Sportage",
		Specs:       []string{"Diesel", "Automatic", "5 doors", "SUV", "1995cc"},
		Description: "Finished in grey with 2 previous owners and full service history.",
		Now:         now,
	})
	if attrs.FuelType != "Diesel" || attrs.Transmission != "Automatic" || attrs.Doors != 5 || attrs.BodyType != "SUV" {
		t.Fatalf("unexpected spec fields %+v", attrs)
	}
	if attrs.EngineSize != 1995 || attrs.Colour != "Grey" || attrs.PreviousOwners != 2 {
		t.Fatalf("unexpected detail fields %+v", attrs)
	}
	if attrs.ServiceHistory != extract.ServiceFull {
		t.Fatalf("expected full service history, got %q", attrs.ServiceHistory)
	}

	partial := extract.FromListing(extract.Input{Description: "part service history, three owners", Now: now})
	if partial.ServiceHistory != extract.ServicePartial || partial.PreviousOwners != 3 {
		t.Fatalf("unexpected partial history fields %+v", partial)
	}
}

func TestFromListingPrice(t *testing.T) {
	listed := decimal.RequireFromString("9500")
	attrs := extract.FromListing(extract.Input{
		Title:       "Fiat 500",
		Description: "Reduced to £8,995 for a quick sale",
		Price:       listed,
		Now:         now,
	})
	if !attrs.Price.Valid || !attrs.Price.Decimal.Equal(decimal.RequireFromString("8995")) {
		t.Fatalf("expected text price 8995, got %+v", attrs.Price)
	}

	attrs = extract.FromListing(extract.Input{Title: "Fiat 500", Price: listed, Now: now})
	if !attrs.Price.Valid || !attrs.Price.Decimal.Equal(listed) {
		t.Fatalf("expected listing price fallback, got %+v", attrs.Price)
	}
}

func TestFromListingEmpty(t *testing.T) {
	if attrs := extract.FromListing(extract.Input{Now: now}); !attrs.Empty() {
		t.Fatalf("expected empty attributes, got %+v", attrs)
	}
}
