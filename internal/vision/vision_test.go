package vision_test

import (
	"context"
	"errors"
	"testing"

	"carprobe/internal/extract"
	"carprobe/internal/logging"
	"carprobe/internal/merge"
	"carprobe/internal/stage"
	"carprobe/internal/store"
	"carprobe/internal/testsupport"
	"carprobe/internal/vision"
)

func TestParsePlate(t *testing.T) {
	cases := []struct {
		reply      string
		plate      string
		confidence float64
	}{
		{"License plate: AB1? C?E", "AB1? C?E", 0.5},
		{"License plate: ab12 cde.", "AB12 CDE", 0.9},
		{"license plate:   XY69   ZZZ", "XY69 ZZZ", 0.9},
		{"NOT_VISIBLE", "", 0},
		{"NOT_A_CAR", "", 0},
		{"I cannot tell", "", 0},
		{"License plate: ??", "", 0},
		{"License plate: AB12 CDE is clearly visible on the rear", "AB12 CDE", 0.9},
		{"License plate: AB12CDE is on the rear bumper", "AB12CDE", 0.9},
		{"License plate: K1 ABC", "K1 ABC", 0.9},
		{"License plate: ABCDEFGHIJK", "", 0},
	}
	for _, tc := range cases {
		plate, confidence := vision.ParsePlate(tc.reply)
		if plate != tc.plate || confidence != tc.confidence {
			t.Fatalf("ParsePlate(%q) = (%q, %v), want (%q, %v)", tc.reply, plate, confidence, tc.plate, tc.confidence)
		}
	}
}

type fakeDescriber struct {
	replies map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeDescriber) DescribeImage(_ context.Context, instruction, imageURL string) (string, error) {
	f.calls = append(f.calls, imageURL)
	if instruction != vision.Instruction {
		return "", errors.New("unexpected instruction")
	}
	if err := f.errs[imageURL]; err != nil {
		return "", err
	}
	return f.replies[imageURL], nil
}

func TestRecognizeSkipsFailuresAndStopsAtFirstPlate(t *testing.T) {
	describer := &fakeDescriber{
		replies: map[string]string{"b": "NOT_VISIBLE", "c": "License plate: AB12 CDE", "d": "License plate: XY69 ZZZ"},
		errs:    map[string]error{"a": errors.New("timeout")},
	}
	recognizer := vision.NewRecognizer(describer, logging.NewNop())
	scan := recognizer.Recognize(context.Background(), []string{"a", "b", "c", "d"})
	if !scan.Found || scan.Failed != 1 {
		t.Fatalf("expected detection after one failure, got %+v", scan)
	}
	detection := scan.Detection
	if detection.Plate != "AB12 CDE" || detection.Confidence != 0.9 || detection.ImageURL != "c" {
		t.Fatalf("unexpected detection %+v", detection)
	}
	if len(describer.calls) != 3 {
		t.Fatalf("expected 3 calls, got %v", describer.calls)
	}

	if scan := recognizer.Recognize(context.Background(), []string{"b"}); scan.Found || scan.Failed != 0 {
		t.Fatalf("expected a clean miss from sentinel reply, got %+v", scan)
	}
}

type fixedReader struct {
	scan  vision.Scan
	calls int
}

func (f *fixedReader) Recognize(context.Context, []string) vision.Scan {
	f.calls++
	return f.scan
}

func setup(t *testing.T) (*store.Store, *merge.Engine, *store.Listing, *store.Vehicle) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	engine := merge.NewEngine(st, logging.NewNop())
	listing := testsupport.MustSaveListing(t, st, testsupport.NewListing("src-1", "Ford Fiesta"))
	vehicle, _, err := engine.Apply(context.Background(), listing, "", extract.Attributes{Make: "Ford"}, merge.Provenance{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return st, engine, listing, vehicle
}

func TestStageMergesConfidentPlate(t *testing.T) {
	st, engine, listing, vehicle := setup(t)
	reader := &fixedReader{scan: vision.Scan{Detection: vision.Detection{Plate: "AB12 CDE", Confidence: 0.9, ImageURL: listing.ImageURLs[0]}, Found: true}}
	handler := vision.NewStage(st, reader, engine, true, 0.6, logging.NewNop())

	task := stage.Task{Stage: stage.Vision, ListingID: listing.ID, VehicleID: vehicle.ID}
	result, err := handler.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.Outcome != stage.OutcomeCompleted || result.VehicleID != vehicle.ID {
		t.Fatalf("unexpected result %+v", result)
	}
	stored, _ := st.GetVehicle(context.Background(), vehicle.ID)
	if stored.Registration != "AB12CDE" || stored.RegistrationSource != store.SourceVision || stored.RegistrationImageURL != listing.ImageURLs[0] {
		t.Fatalf("unexpected registration fields %+v", stored)
	}
	if stored.DetectedPlate != "AB12 CDE" || stored.VisionCheckedAt == nil {
		t.Fatalf("expected detection provenance, got %+v", stored)
	}

	again, err := handler.Execute(context.Background(), task)
	if err != nil || again.Outcome != stage.OutcomeSkipped || reader.calls != 1 {
		t.Fatalf("expected guarded second run, got %+v err=%v calls=%d", again, err, reader.calls)
	}
}

func TestStageKeepsPartialPlateAsProvenance(t *testing.T) {
	st, engine, listing, vehicle := setup(t)
	reader := &fixedReader{scan: vision.Scan{Detection: vision.Detection{Plate: "AB1? C?E", Confidence: 0.5, ImageURL: listing.ImageURLs[1]}, Found: true}}
	handler := vision.NewStage(st, reader, engine, true, 0.5, logging.NewNop())

	result, err := handler.Execute(context.Background(), stage.Task{Stage: stage.Vision, ListingID: listing.ID, VehicleID: vehicle.ID})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.Outcome != stage.OutcomeCompleted {
		t.Fatalf("unexpected result %+v", result)
	}
	stored, _ := st.GetVehicle(context.Background(), vehicle.ID)
	if stored.HasRegistration() {
		t.Fatalf("partial plate must not become a registration, got %q", stored.Registration)
	}
	if stored.DetectedPlate != "AB1? C?E" || stored.RegistrationConfidence != 0.5 {
		t.Fatalf("expected partial plate provenance, got %+v", stored)
	}
}

func TestStageNoPlateMarksChecked(t *testing.T) {
	st, engine, listing, vehicle := setup(t)
	reader := &fixedReader{}
	handler := vision.NewStage(st, reader, engine, true, 0.6, logging.NewNop())

	task := stage.Task{Stage: stage.Vision, ListingID: listing.ID, VehicleID: vehicle.ID}
	if _, err := handler.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	stored, _ := st.GetVehicle(context.Background(), vehicle.ID)
	if stored.VisionCheckedAt == nil {
		t.Fatal("expected vision marker")
	}
	if _, err := handler.Execute(context.Background(), task); err != nil || reader.calls != 1 {
		t.Fatalf("expected guard to skip recognition, calls=%d err=%v", reader.calls, err)
	}
}

func TestStageRetriesUnreadableImages(t *testing.T) {
	st, engine, listing, vehicle := setup(t)
	describer := &fakeDescriber{errs: map[string]error{}}
	for _, imageURL := range listing.ImageURLs {
		describer.errs[imageURL] = errors.New("llm unavailable")
	}
	handler := vision.NewStage(st, vision.NewRecognizer(describer, logging.NewNop()), engine, true, 0.6, logging.NewNop())

	task := stage.Task{Stage: stage.Vision, ListingID: listing.ID, VehicleID: vehicle.ID}
	result, err := handler.Execute(context.Background(), task)
	if err != nil || result.Outcome != stage.OutcomeCompleted {
		t.Fatalf("unexpected result %+v err=%v", result, err)
	}
	stored, _ := st.GetVehicle(context.Background(), vehicle.ID)
	if stored.VisionCheckedAt != nil {
		t.Fatal("failed image requests must not stamp the vision marker")
	}

	first := len(describer.calls)
	describer.errs = nil
	describer.replies = map[string]string{listing.ImageURLs[0]: "License plate: AB12 CDE"}
	if _, err := handler.Execute(context.Background(), task); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(describer.calls) == first {
		t.Fatal("expected retry to call the model again")
	}
	stored, _ = st.GetVehicle(context.Background(), vehicle.ID)
	if stored.Registration != "AB12CDE" || stored.VisionCheckedAt == nil {
		t.Fatalf("expected plate merged on retry, got %+v", stored)
	}
}

func TestStageDisabled(t *testing.T) {
	st, engine, listing, vehicle := setup(t)
	handler := vision.NewStage(st, nil, engine, true, 0.6, logging.NewNop())
	result, err := handler.Execute(context.Background(), stage.Task{Stage: stage.Vision, ListingID: listing.ID, VehicleID: vehicle.ID})
	if err != nil || result.Outcome != stage.OutcomeSkipped || result.VehicleID != vehicle.ID {
		t.Fatalf("expected skip, got %+v err=%v", result, err)
	}
	if health := handler.HealthCheck(context.Background()); !health.Ready || health.Detail != "disabled" {
		t.Fatalf("unexpected health %+v", health)
	}
}
