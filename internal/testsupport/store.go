package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"carprobe/internal/config"
	"carprobe/internal/store"
)

// MustOpenStore opens the database for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// NewListing returns an active listing with a title and two images.
func NewListing(sourceID, title string) *store.Listing {
	return &store.Listing{
		SourceID:  sourceID,
		URL:       "https://example.test/listings/" + sourceID,
		Title:     title,
		Price:     decimal.RequireFromString("8995"),
		Location:  "Leeds",
		ImageURLs: []string{"https://img.example.test/" + sourceID + "/1.jpg", "https://img.example.test/" + sourceID + "/2.jpg"},
		PostedAt:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Status:    store.ListingActive,
	}
}

// MustSaveListing upserts a listing and fails the test on error.
func MustSaveListing(t testing.TB, st *store.Store, listing *store.Listing) *store.Listing {
	t.Helper()

	if _, err := st.UpsertListing(context.Background(), listing); err != nil {
		t.Fatalf("UpsertListing: %v", err)
	}
	return listing
}

// MustSaveVehicle inserts or updates a vehicle and fails the test on error.
func MustSaveVehicle(t testing.TB, st *store.Store, vehicle *store.Vehicle) *store.Vehicle {
	t.Helper()

	if err := st.SaveVehicle(context.Background(), vehicle, 0); err != nil {
		t.Fatalf("SaveVehicle: %v", err)
	}
	return vehicle
}
