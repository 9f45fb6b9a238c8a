package registry_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"carprobe/internal/logging"
	"carprobe/internal/registry"
	"carprobe/internal/services"
	"carprobe/internal/services/dvla"
	"carprobe/internal/stage"
	"carprobe/internal/store"
	"carprobe/internal/testsupport"
)

func seedVehicle(t *testing.T, st *store.Store, registration string) *store.Vehicle {
	t.Helper()
	listing := testsupport.MustSaveListing(t, st, testsupport.NewListing("src-1", "Ford Fiesta"))
	return testsupport.MustSaveVehicle(t, st, &store.Vehicle{
		ListingID:    listing.ID,
		Make:         "Ford",
		Model:        "Fiesta",
		Transmission: "Manual",
		Registration: registration,
	})
}

func TestStageSavesRegisterDataOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"registrationNumber":"AB12CDE","make":"FORD","colour":"RED","fuelType":"PETROL","yearOfManufacture":2019,"motStatus":"Valid","motExpiryDate":"2025-02-14","taxStatus":"Taxed"}`))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithProduction(), testsupport.WithDVLA(server.URL))
	st := testsupport.MustOpenStore(t, cfg)
	vehicle := seedVehicle(t, st, "AB12CDE")
	client := dvla.NewClient(dvla.Config{APIKey: cfg.DVLA.APIKey, BaseURL: cfg.DVLA.BaseURL, Offline: cfg.RegistryOffline()})
	handler := registry.NewStage(st, client, logging.NewNop())

	task := stage.Task{Stage: stage.Register, VehicleID: vehicle.ID}
	result, err := handler.Execute(context.Background(), task)
	if err != nil || result.Outcome != stage.OutcomeCompleted {
		t.Fatalf("unexpected result %+v err=%v", result, err)
	}
	stored, _ := st.GetVehicle(context.Background(), vehicle.ID)
	if stored.Colour != "Red" || stored.Year != 2019 || stored.MotStatus != "Valid" || stored.RegisterCheckedAt == nil {
		t.Fatalf("expected register data, got %+v", stored)
	}
	if stored.Model != "Fiesta" || stored.Transmission != "Manual" {
		t.Fatalf("expected extracted fields kept, got %+v", stored)
	}

	again, err := handler.Execute(context.Background(), task)
	if err != nil || again.Outcome != stage.OutcomeSkipped {
		t.Fatalf("expected skip on second run, got %+v err=%v", again, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one external call, got %d", calls.Load())
	}
}

func TestStageSkipsWithoutRegistration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	vehicle := seedVehicle(t, st, "")
	handler := registry.NewStage(st, dvla.NewClient(dvla.Config{Offline: true}), logging.NewNop())

	result, err := handler.Execute(context.Background(), stage.Task{Stage: stage.Register, VehicleID: vehicle.ID})
	if err != nil || result.Outcome != stage.OutcomeSkipped || result.Detail != "no registration" {
		t.Fatalf("unexpected result %+v err=%v", result, err)
	}
}

func TestStageOfflineIsRepeatable(t *testing.T) {
	var first, second *store.Vehicle
	for i, target := range []**store.Vehicle{&first, &second} {
		cfg := testsupport.NewConfig(t)
		st := testsupport.MustOpenStore(t, cfg)
		vehicle := seedVehicle(t, st, "XY69ZZZ")
		handler := registry.NewStage(st, dvla.NewClient(dvla.Config{Offline: cfg.RegistryOffline()}), logging.NewNop())
		if _, err := handler.Execute(context.Background(), stage.Task{Stage: stage.Register, VehicleID: vehicle.ID}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		*target, _ = st.GetVehicle(context.Background(), vehicle.ID)
	}
	if first.RegisterPayload == "" || first.RegisterPayload != second.RegisterPayload {
		t.Fatalf("expected identical synthetic payloads, got %q and %q", first.RegisterPayload, second.RegisterPayload)
	}
	if first.Make != second.Make || first.Year != second.Year {
		t.Fatalf("expected identical synthetic fields")
	}
	if health := registry.NewStage(nil, dvla.NewClient(dvla.Config{}), nil).HealthCheck(context.Background()); !health.Ready || health.Detail == "" {
		t.Fatalf("expected offline health detail, got %+v", health)
	}
}

func TestStageRetriesAfterServiceFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"registrationNumber":"AB12CDE","make":"FORD","colour":"RED","yearOfManufacture":2019}`))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithProduction(), testsupport.WithDVLA(server.URL))
	st := testsupport.MustOpenStore(t, cfg)
	vehicle := seedVehicle(t, st, "AB12CDE")
	client := dvla.NewClient(dvla.Config{APIKey: cfg.DVLA.APIKey, BaseURL: cfg.DVLA.BaseURL})
	handler := registry.NewStage(st, client, logging.NewNop())
	task := stage.Task{Stage: stage.Register, VehicleID: vehicle.ID}

	_, err := handler.Execute(context.Background(), task)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	stored, _ := st.GetVehicle(context.Background(), vehicle.ID)
	if stored.RegisterCheckedAt != nil {
		t.Fatal("failed lookup must not stamp the register marker")
	}

	result, err := handler.Execute(context.Background(), task)
	if err != nil || result.Outcome != stage.OutcomeCompleted {
		t.Fatalf("unexpected retry result %+v err=%v", result, err)
	}
	stored, _ = st.GetVehicle(context.Background(), vehicle.ID)
	if stored.Colour != "Red" || stored.RegisterCheckedAt == nil || calls.Load() != 2 {
		t.Fatalf("expected register data after retry, got %+v calls=%d", stored, calls.Load())
	}
}

func TestStageMarksUnknownRegistration(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithProduction(), testsupport.WithDVLA(server.URL))
	st := testsupport.MustOpenStore(t, cfg)
	vehicle := seedVehicle(t, st, "ZZ99ZZZ")
	handler := registry.NewStage(st, dvla.NewClient(dvla.Config{APIKey: cfg.DVLA.APIKey, BaseURL: cfg.DVLA.BaseURL}), logging.NewNop())
	task := stage.Task{Stage: stage.Register, VehicleID: vehicle.ID}

	result, err := handler.Execute(context.Background(), task)
	if err != nil || result.Detail != "not on register" {
		t.Fatalf("unexpected result %+v err=%v", result, err)
	}
	again, err := handler.Execute(context.Background(), task)
	if err != nil || again.Outcome != stage.OutcomeSkipped || calls.Load() != 1 {
		t.Fatalf("expected guarded rerun, got %+v err=%v calls=%d", again, err, calls.Load())
	}
}
