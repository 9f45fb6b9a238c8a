package pipeline_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"carprobe/internal/ingest"
	"carprobe/internal/logging"
	"carprobe/internal/pipeline"
	"carprobe/internal/queue"
	"carprobe/internal/stage"
	"carprobe/internal/store"
	"carprobe/internal/testsupport"
)

func TestOfflineChainEnrichesListingRegistration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()
	p, err := pipeline.Open(ctx, cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	listing := testsupport.NewListing("ad-1", "2015 Ford Fiesta 1.2 Zetec 5dr")
	listing.Raw = map[string]string{ingest.RawRegistrationKey: "AB12 CDE"}
	report, err := p.Ingest.Save(ctx, listing)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if report.Scheduled != stage.Register {
		t.Fatalf("expected register first without an LLM key, got %q", report.Scheduled)
	}

	processed, err := p.Workflow.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if processed != 3 {
		t.Fatalf("expected register, history and summary jobs, got %d", processed)
	}

	vehicle, err := p.Store.GetVehicle(ctx, report.VehicleID)
	if err != nil {
		t.Fatalf("GetVehicle: %v", err)
	}
	if !vehicle.HasRegisterData() || vehicle.RegisterCheckedAt == nil {
		t.Fatal("expected register data")
	}
	if vehicle.HistoryCheckedAt == nil {
		t.Fatal("expected history marker")
	}
	tests, err := p.Store.MotTests(ctx, vehicle.ID)
	if err != nil {
		t.Fatalf("MotTests: %v", err)
	}
	if len(tests) < 1 || len(tests) > 5 {
		t.Fatalf("expected 1-5 synthetic tests, got %d", len(tests))
	}
	if !vehicle.HasSummary() || vehicle.PurchaseSummary == "" {
		t.Fatal("expected a templated summary")
	}

	// A second pass over the same vehicle is a no-op.
	for _, name := range []string{stage.Register, stage.History, stage.Summary} {
		if _, err := p.Queue.Enqueue(ctx, name, listing.ID, vehicle.ID); err != nil {
			t.Fatalf("Enqueue %s: %v", name, err)
		}
	}
	if _, err := p.Workflow.Drain(ctx); err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	count, err := p.Store.CountMotTests(ctx, vehicle.ID)
	if err != nil {
		t.Fatalf("CountMotTests: %v", err)
	}
	if count != len(tests) {
		t.Fatalf("expected %d tests after re-run, got %d", len(tests), count)
	}
	jobs, err := p.Queue.Recent(ctx, 50)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	for _, job := range jobs {
		if job.Status != queue.StatusDone {
			t.Fatalf("job %d %s: expected done, got %s (%s)", job.ID, job.Stage, job.Status, job.ErrorMessage)
		}
	}
}

func TestVisionPlateFeedsChain(t *testing.T) {
	var visionCalls, summaryCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var content string
		if strings.Contains(string(body), `"image_url"`) {
			visionCalls.Add(1)
			content = "License plate: AB12 CDE"
		} else {
			summaryCalls.Add(1)
			content = `{"summary":"Solid supermini with a clean recent MOT.","repair_cost_estimate":"£200-£400","expected_lifetime":"5+ years"}`
		}
		encoded, _ := json.Marshal(content)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":` + string(encoded) + `}}]}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithLLM(srv.URL))
	ctx := context.Background()
	p, err := pipeline.Open(ctx, cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	report, err := p.Ingest.Save(ctx, testsupport.NewListing("ad-1", "Ford Fiesta Zetec"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if report.Scheduled != stage.Vision {
		t.Fatalf("expected vision first, got %q", report.Scheduled)
	}
	if processed, err := p.Workflow.Drain(ctx); err != nil || processed != 4 {
		t.Fatalf("Drain: processed %d, err %v", processed, err)
	}

	vehicle, err := p.Store.VehicleForListing(ctx, report.ListingID)
	if err != nil || vehicle == nil {
		t.Fatalf("VehicleForListing: %v, %v", vehicle, err)
	}
	if vehicle.Registration != "AB12CDE" || vehicle.RegistrationSource != store.SourceVision {
		t.Fatalf("unexpected registration %q from %q", vehicle.Registration, vehicle.RegistrationSource)
	}
	if vehicle.PurchaseSummary != "Solid supermini with a clean recent MOT." {
		t.Fatalf("unexpected summary %q", vehicle.PurchaseSummary)
	}
	if visionCalls.Load() != 1 || summaryCalls.Load() != 1 {
		t.Fatalf("unexpected LLM calls: vision %d, summary %d", visionCalls.Load(), summaryCalls.Load())
	}
}

func TestStagesCoverChain(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	p, err := pipeline.Build(context.Background(), cfg, st, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(p.Stages) != len(stage.Names) {
		t.Fatalf("expected %d stages, got %d", len(stage.Names), len(p.Stages))
	}
	for i, handler := range p.Stages {
		if handler.Name() != stage.Names[i] {
			t.Fatalf("stage %d: expected %s, got %s", i, stage.Names[i], handler.Name())
		}
	}
	for _, health := range p.Workflow.HealthCheck(context.Background()) {
		if !health.Ready {
			t.Fatalf("expected %s ready, got %q", health.Name, health.Detail)
		}
	}
}
