package workflow_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"carprobe/internal/config"
	"carprobe/internal/logging"
	"carprobe/internal/notifications"
	"carprobe/internal/queue"
	"carprobe/internal/services"
	"carprobe/internal/stage"
	"carprobe/internal/testsupport"
	"carprobe/internal/workflow"
)

type stubStage struct {
	name   string
	mu     sync.Mutex
	tasks  []stage.Task
	result func(stage.Task) (stage.Result, error)
	health stage.Health
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Name() string { return s.name }

func (s *stubStage) Execute(ctx context.Context, task stage.Task) (stage.Result, error) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
	if s.result != nil {
		return s.result(task)
	}
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		return stage.Result{}, errors.New("missing correlation id")
	}
	return stage.Completed(task.VehicleID, "ok"), nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health { return s.health }

func (s *stubStage) calls() []stage.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stage.Task(nil), s.tasks...)
}

type fixture struct {
	cfg   *config.Config
	queue *queue.Queue
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	q, err := queue.New(context.Background(), st)
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	return fixture{cfg: cfg, queue: q}
}

func chainStages() (*stubStage, *stubStage, *stubStage, *stubStage) {
	return newStubStage(stage.Vision), newStubStage(stage.Register), newStubStage(stage.History), newStubStage(stage.Summary)
}

func jobsByStage(t *testing.T, q *queue.Queue) map[string]*queue.Job {
	t.Helper()
	jobs, err := q.Recent(context.Background(), 50)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	out := make(map[string]*queue.Job, len(jobs))
	for _, job := range jobs {
		out[job.Stage] = job
	}
	return out
}

func TestDrainRunsFullChain(t *testing.T) {
	fx := newFixture(t)
	vision, register, history, summary := chainStages()
	mgr := workflow.NewManager(fx.cfg, fx.queue, logging.NewNop(), vision, register, history, summary)

	ctx := context.Background()
	if _, err := fx.queue.Enqueue(ctx, stage.Vision, 3, 7); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	processed, err := mgr.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if processed != 4 {
		t.Fatalf("expected 4 jobs processed, got %d", processed)
	}
	for _, s := range []*stubStage{vision, register, history, summary} {
		calls := s.calls()
		if len(calls) != 1 {
			t.Fatalf("%s: expected one call, got %d", s.name, len(calls))
		}
		if calls[0].ListingID != 3 || calls[0].VehicleID != 7 {
			t.Fatalf("%s: unexpected task %+v", s.name, calls[0])
		}
	}

	jobs := jobsByStage(t, fx.queue)
	if len(jobs) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(jobs))
	}
	for name, job := range jobs {
		if job.Status != queue.StatusDone {
			t.Fatalf("%s: expected done, got %s", name, job.Status)
		}
		if job.Outcome != string(stage.OutcomeCompleted) {
			t.Fatalf("%s: unexpected outcome %q", name, job.Outcome)
		}
		if job.CorrelationID == "" {
			t.Fatalf("%s: expected correlation id", name)
		}
	}
	if jobs[stage.Vision].CorrelationID == jobs[stage.Register].CorrelationID {
		t.Fatal("expected a fresh correlation id per job")
	}
}

func TestFailuresAndPanicsDoNotHaltChain(t *testing.T) {
	fx := newFixture(t)
	vision, register, history, summary := chainStages()
	register.result = func(stage.Task) (stage.Result, error) {
		return stage.Result{}, services.Wrap(services.ErrExternalService, stage.Register, "lookup", "register unavailable", nil)
	}
	history.result = func(stage.Task) (stage.Result, error) {
		panic("boom")
	}
	mgr := workflow.NewManager(fx.cfg, fx.queue, logging.NewNop(), vision, register, history, summary)

	ctx := context.Background()
	if _, err := fx.queue.Enqueue(ctx, stage.Vision, 3, 7); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := mgr.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if len(summary.calls()) != 1 {
		t.Fatal("expected summary to run after upstream failures")
	}
	jobs := jobsByStage(t, fx.queue)
	if job := jobs[stage.Register]; job.Status != queue.StatusFailed || job.ErrorKind != "external" {
		t.Fatalf("unexpected register job: %+v", job)
	}
	if job := jobs[stage.History]; job.Status != queue.StatusFailed || job.ErrorKind != "panic" {
		t.Fatalf("unexpected history job: %+v", job)
	}
	if job := jobs[stage.Summary]; job.Status != queue.StatusDone {
		t.Fatalf("unexpected summary job: %+v", job)
	}
	if status := mgr.Status(ctx); status.LastError == "" {
		t.Fatal("expected last error to be recorded")
	}
}

func TestSuccessorTargetsResultVehicle(t *testing.T) {
	fx := newFixture(t)
	vision, register, history, summary := chainStages()
	vision.result = func(stage.Task) (stage.Result, error) {
		return stage.Completed(99, "forked"), nil
	}
	mgr := workflow.NewManager(fx.cfg, fx.queue, logging.NewNop(), vision, register, history, summary)

	ctx := context.Background()
	if _, err := fx.queue.Enqueue(ctx, stage.Vision, 3, 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := mgr.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	calls := register.calls()
	if len(calls) != 1 || calls[0].VehicleID != 99 || calls[0].ListingID != 3 {
		t.Fatalf("unexpected register tasks: %+v", calls)
	}
	if got := summary.calls(); len(got) != 1 || got[0].VehicleID != 99 {
		t.Fatalf("unexpected summary tasks: %+v", got)
	}
}

func TestMissingHandlerFailsJobAndContinues(t *testing.T) {
	fx := newFixture(t)
	vision := newStubStage(stage.Vision)
	summary := newStubStage(stage.Summary)
	mgr := workflow.NewManager(fx.cfg, fx.queue, logging.NewNop(), vision, summary)

	ctx := context.Background()
	if _, err := fx.queue.Enqueue(ctx, stage.Vision, 3, 7); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	processed, err := mgr.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if processed != 4 {
		t.Fatalf("expected 4 jobs processed, got %d", processed)
	}
	jobs := jobsByStage(t, fx.queue)
	if job := jobs[stage.Register]; job.Status != queue.StatusFailed || job.ErrorKind != "configuration" {
		t.Fatalf("unexpected register job: %+v", job)
	}
	if len(summary.calls()) != 1 {
		t.Fatal("expected summary to run")
	}

	health := mgr.HealthCheck(ctx)
	if len(health) != 4 {
		t.Fatalf("expected health for every chain stage, got %d", len(health))
	}
	if !health[0].Ready || health[1].Ready || health[2].Ready || !health[3].Ready {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestStageTimeoutIsRecorded(t *testing.T) {
	fx := newFixture(t)
	fx.cfg.Workflow.StageTimeout = 1
	timed := &blockingStage{stubStage: newStubStage(stage.Summary)}
	mgr := workflow.NewManager(fx.cfg, fx.queue, logging.NewNop(), timed)

	ctx := context.Background()
	job, err := fx.queue.Enqueue(ctx, stage.Summary, 3, 7)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := mgr.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	stored, err := fx.queue.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != queue.StatusFailed || stored.ErrorKind != "timeout" {
		t.Fatalf("expected timeout failure, got %+v", stored)
	}
}

// blockingStage waits for the stage deadline and reports the context error.
type blockingStage struct {
	*stubStage
}

func (s *blockingStage) Execute(ctx context.Context, task stage.Task) (stage.Result, error) {
	<-ctx.Done()
	return stage.Result{}, ctx.Err()
}

func TestStartProcessesInBackground(t *testing.T) {
	fx := newFixture(t)
	vision, register, history, summary := chainStages()
	mgr := workflow.NewManager(fx.cfg, fx.queue, logging.NewNop(), vision, register, history, summary)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)
	if err := mgr.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	if _, err := fx.queue.Enqueue(ctx, stage.Vision, 3, 7); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.After(15 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for chain completion")
		default:
		}
		jobs := jobsByStage(t, fx.queue)
		if job, ok := jobs[stage.Summary]; ok && job.Status == queue.StatusDone {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}

	if !mgr.Status(ctx).Running {
		t.Fatal("expected manager to report running")
	}
	mgr.Stop()
	if mgr.Status(ctx).Running {
		t.Fatal("expected manager to report stopped")
	}
}

func TestStartRequiresHandlers(t *testing.T) {
	fx := newFixture(t)
	mgr := workflow.NewManager(fx.cfg, fx.queue, logging.NewNop())
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected error without handlers")
	}
}

func TestNotifierReceivesFailureAndCompletion(t *testing.T) {
	var mu sync.Mutex
	var titles, bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		bodies = append(bodies, string(body))
		mu.Unlock()
	}))
	defer srv.Close()

	fx := newFixture(t)
	fx.cfg.Notifications.NtfyTopic = srv.URL
	vision, register, history, summary := chainStages()
	register.result = func(stage.Task) (stage.Result, error) {
		return stage.Result{}, services.Wrap(services.ErrExternalService, stage.Register, "lookup", "register unavailable", nil)
	}
	mgr := workflow.NewManager(fx.cfg, fx.queue, logging.NewNop(), vision, register, history, summary)
	mgr.SetNotifier(notifications.NewService(fx.cfg), nil)

	ctx := context.Background()
	if _, err := fx.queue.Enqueue(ctx, stage.Vision, 3, 7); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := mgr.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(titles) != 2 {
		t.Fatalf("expected two notifications, got %v", titles)
	}
	if titles[0] != "carprobe - Stage Failed" || titles[1] != "carprobe - Vehicle Enriched" {
		t.Fatalf("unexpected notification order: %v", titles)
	}
	if bodies[1] != "Purchase summary ready: vehicle 7" {
		t.Fatalf("unexpected completion body %q", bodies[1])
	}
}

func TestNotifierSkipsUnchangedSummary(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
	defer srv.Close()

	fx := newFixture(t)
	fx.cfg.Notifications.NtfyTopic = srv.URL
	summary := newStubStage(stage.Summary)
	summary.result = func(task stage.Task) (stage.Result, error) {
		return stage.Skipped(task.VehicleID, "summary present"), nil
	}
	mgr := workflow.NewManager(fx.cfg, fx.queue, logging.NewNop(), summary)
	mgr.SetNotifier(notifications.NewService(fx.cfg), nil)

	ctx := context.Background()
	if _, err := fx.queue.Enqueue(ctx, stage.Summary, 3, 7); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := mgr.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no notification for a skipped summary, got %d", calls.Load())
	}
}
