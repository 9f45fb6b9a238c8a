package history_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"carprobe/internal/history"
	"carprobe/internal/logging"
	"carprobe/internal/services"
	"carprobe/internal/services/motapi"
	"carprobe/internal/stage"
	"carprobe/internal/store"
	"carprobe/internal/testsupport"
)

const body = `[{"registration":"AB12CDE","motTests":[
	{"completedDate":"2023.03.12 09:00:00","expiryDate":"2024.03.11","testResult":"PASSED","odometerValue":"45000","motTestNumber":"2",
	 "rfrAndComments":[{"text":"Tyre worn","type":"ADVISORY"}]},
	{"completedDate":"2022.03.10 09:00:00","testResult":"FAILED","odometerValue":"38000","motTestNumber":"1",
	 "rfrAndComments":[{"text":"Headlamp aim","type":"FAIL"}]}
]}]`

func seed(t *testing.T, st *store.Store, registration string) *store.Vehicle {
	t.Helper()
	listing := testsupport.MustSaveListing(t, st, testsupport.NewListing("src-1", "Ford Fiesta"))
	return testsupport.MustSaveVehicle(t, st, &store.Vehicle{ListingID: listing.ID, Registration: registration})
}

func TestStageIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithProduction(), testsupport.WithMOT(server.URL))
	st := testsupport.MustOpenStore(t, cfg)
	vehicle := seed(t, st, "AB12CDE")
	client := motapi.NewClient(motapi.Config{APIKey: cfg.MOT.APIKey, BaseURL: cfg.MOT.BaseURL, Offline: cfg.HistoryOffline()})
	handler := history.NewStage(st, client, logging.NewNop())
	task := stage.Task{Stage: stage.History, VehicleID: vehicle.ID}

	for i := 0; i < 2; i++ {
		if _, err := handler.Execute(context.Background(), task); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one external call, got %d", calls.Load())
	}
	tests, err := st.MotTests(context.Background(), vehicle.ID)
	if err != nil {
		t.Fatalf("MotTests: %v", err)
	}
	if len(tests) != 2 || tests[0].TestNumber != "2" || tests[1].Failures[0] != "Headlamp aim" {
		t.Fatalf("unexpected stored tests %+v", tests)
	}
}

func TestStageRecordsEmptyHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithProduction(), testsupport.WithMOT(server.URL))
	st := testsupport.MustOpenStore(t, cfg)
	vehicle := seed(t, st, "AB12CDE")
	client := motapi.NewClient(motapi.Config{APIKey: cfg.MOT.APIKey, BaseURL: cfg.MOT.BaseURL})
	handler := history.NewStage(st, client, logging.NewNop())

	result, err := handler.Execute(context.Background(), stage.Task{Stage: stage.History, VehicleID: vehicle.ID})
	if err != nil || result.Outcome != stage.OutcomeCompleted {
		t.Fatalf("unexpected result %+v err=%v", result, err)
	}
	stored, _ := st.GetVehicle(context.Background(), vehicle.ID)
	if stored.HistoryCheckedAt == nil {
		t.Fatal("expected history marker after empty lookup")
	}
}

func TestStageOfflineSynthesizesHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	vehicle := seed(t, st, "AB12CDE")
	handler := history.NewStage(st, motapi.NewClient(motapi.Config{Offline: cfg.HistoryOffline()}), logging.NewNop())

	if _, err := handler.Execute(context.Background(), stage.Task{Stage: stage.History, VehicleID: vehicle.ID}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	count, _ := st.CountMotTests(context.Background(), vehicle.ID)
	if count < 1 || count > 5 {
		t.Fatalf("expected 1-5 synthetic tests, got %d", count)
	}
}

func TestStageSkipsWithoutRegistration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	vehicle := seed(t, st, "")
	handler := history.NewStage(st, motapi.NewClient(motapi.Config{Offline: true}), logging.NewNop())

	result, err := handler.Execute(context.Background(), stage.Task{Stage: stage.History, VehicleID: vehicle.ID})
	if err != nil || result.Outcome != stage.OutcomeSkipped {
		t.Fatalf("unexpected result %+v err=%v", result, err)
	}
}

func TestStageRetriesAfterServiceFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithProduction(), testsupport.WithMOT(server.URL))
	st := testsupport.MustOpenStore(t, cfg)
	vehicle := seed(t, st, "AB12CDE")
	client := motapi.NewClient(motapi.Config{APIKey: cfg.MOT.APIKey, BaseURL: cfg.MOT.BaseURL})
	handler := history.NewStage(st, client, logging.NewNop())
	task := stage.Task{Stage: stage.History, VehicleID: vehicle.ID}

	if _, err := handler.Execute(context.Background(), task); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	stored, _ := st.GetVehicle(context.Background(), vehicle.ID)
	if stored.HistoryCheckedAt != nil {
		t.Fatal("failed lookup must not stamp the history marker")
	}

	result, err := handler.Execute(context.Background(), task)
	if err != nil || result.Outcome != stage.OutcomeCompleted {
		t.Fatalf("unexpected retry result %+v err=%v", result, err)
	}
	count, _ := st.CountMotTests(context.Background(), vehicle.ID)
	if count != 2 || calls.Load() != 2 {
		t.Fatalf("expected 2 tests after retry, got %d calls=%d", count, calls.Load())
	}
}
