package daemon_test

import (
	"context"
	"testing"

	"carprobe/internal/daemon"
	"carprobe/internal/logging"
	"carprobe/internal/queue"
	"carprobe/internal/stage"
	"carprobe/internal/testsupport"
	"carprobe/internal/workflow"
)

type noopStage struct{}

func (noopStage) Name() string { return stage.Vision }
func (noopStage) Execute(_ context.Context, task stage.Task) (stage.Result, error) {
	return stage.Completed(task.VehicleID, "noop"), nil
}
func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(stage.Vision)
}

func newDaemon(t *testing.T) (*daemon.Daemon, *queue.Queue) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	q, err := queue.New(context.Background(), st)
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, q, logger, noopStage{})
	d, err := daemon.New(cfg, q, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, q
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath == "" || status.DatabasePath == "" {
		t.Fatalf("expected paths in status: %+v", status)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running || status.Workflow.Running {
		t.Fatal("expected daemon to be stopped")
	}

	// The lock is released, so the daemon can start again.
	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
}

func TestDaemonRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
