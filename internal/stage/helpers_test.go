package stage_test

import (
	"context"
	"testing"

	"carprobe/internal/stage"
	"carprobe/internal/store"
	"carprobe/internal/testsupport"
)

func TestNextFollowsChainOrder(t *testing.T) {
	cases := map[string]string{
		stage.Vision:   stage.Register,
		stage.Register: stage.History,
		stage.History:  stage.Summary,
		stage.Summary:  "",
		"unknown":      "",
	}
	for name, want := range cases {
		if got := stage.Next(name); got != want {
			t.Fatalf("Next(%q) = %q, want %q", name, got, want)
		}
	}
	if !stage.Known(stage.History) || stage.Known("encode") {
		t.Fatal("unexpected Known result")
	}
}

func TestResolveVehicleFollowsFork(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	listing := testsupport.MustSaveListing(t, st, testsupport.NewListing("src-1", "Focus"))
	old := testsupport.MustSaveVehicle(t, st, &store.Vehicle{ListingID: listing.ID, Registration: "AA11AAA"})
	replacement := &store.Vehicle{ListingID: listing.ID, Registration: "BB22BBB"}
	if err := st.SaveVehicle(ctx, replacement, old.ID); err != nil {
		t.Fatalf("SaveVehicle returned error: %v", err)
	}

	got, err := stage.ResolveVehicle(ctx, st, stage.Task{Stage: stage.Register, VehicleID: old.ID})
	if err != nil {
		t.Fatalf("ResolveVehicle returned error: %v", err)
	}
	if got == nil || got.ID != replacement.ID {
		t.Fatalf("expected active replacement %d, got %+v", replacement.ID, got)
	}

	missing, err := stage.ResolveVehicle(ctx, st, stage.Task{Stage: stage.Register, VehicleID: 999})
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown vehicle, got %v, %v", missing, err)
	}
}
