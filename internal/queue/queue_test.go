package queue_test

import (
	"context"
	"testing"
	"time"

	"carprobe/internal/queue"
	"carprobe/internal/testsupport"
)

func newQueue(t *testing.T) *queue.Queue {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	q, err := queue.New(context.Background(), st)
	if err != nil {
		t.Fatalf("queue.New returned error: %v", err)
	}
	return q
}

func TestEnqueueCollapsesQueuedDuplicates(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, "history", 1, 7)
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	second, err := q.Enqueue(ctx, "history", 1, 7)
	if err != nil {
		t.Fatalf("second Enqueue returned error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected duplicate enqueue to reuse job %d, got %d", first.ID, second.ID)
	}
	other, err := q.Enqueue(ctx, "summary", 1, 7)
	if err != nil {
		t.Fatalf("Enqueue summary returned error: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("expected distinct job for a different stage")
	}

	if _, err := q.Enqueue(ctx, "", 1, 0); err == nil {
		t.Fatal("expected error for empty stage")
	}
	if _, err := q.Enqueue(ctx, "vision", 0, 0); err == nil {
		t.Fatal("expected error for missing target")
	}
}

func TestClaimCompleteFailLifecycle(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	if job, err := q.Claim(ctx); err != nil || job != nil {
		t.Fatalf("expected empty claim, got %v, %v", job, err)
	}

	a, _ := q.Enqueue(ctx, "vision", 1, 0)
	b, _ := q.Enqueue(ctx, "register", 2, 5)

	claimed, err := q.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("Claim returned %v, %v", claimed, err)
	}
	if claimed.ID != a.ID || claimed.Status != queue.StatusRunning || claimed.Attempts != 1 || claimed.LeasedAt == nil {
		t.Fatalf("unexpected claimed job: %+v", claimed)
	}
	if err := q.Complete(ctx, claimed.ID, "corr-1", "completed"); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	next, err := q.Claim(ctx)
	if err != nil || next == nil || next.ID != b.ID {
		t.Fatalf("expected second job, got %v, %v", next, err)
	}
	if err := q.Fail(ctx, next.ID, "corr-2", "external", "boom"); err != nil {
		t.Fatalf("Fail returned error: %v", err)
	}

	failed, err := q.Get(ctx, next.ID)
	if err != nil || failed == nil {
		t.Fatalf("Get returned %v, %v", failed, err)
	}
	if failed.Status != queue.StatusFailed || failed.ErrorKind != "external" || failed.CorrelationID != "corr-2" {
		t.Fatalf("unexpected failed job: %+v", failed)
	}

	health, err := q.Health(ctx)
	if err != nil {
		t.Fatalf("Health returned error: %v", err)
	}
	if health.Total != 2 || health.Done != 1 || health.Failed != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}

	removed, err := q.Purge(ctx)
	if err != nil || removed != 2 {
		t.Fatalf("Purge returned %d, %v", removed, err)
	}
}

func TestReclaimExpiredRedeliversLease(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	job, _ := q.Enqueue(ctx, "summary", 0, 3)
	if _, err := q.Claim(ctx); err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}

	if n, err := q.ReclaimExpired(ctx, time.Hour); err != nil || n != 0 {
		t.Fatalf("expected fresh lease to stay, got %d, %v", n, err)
	}

	time.Sleep(5 * time.Millisecond)
	n, err := q.ReclaimExpired(ctx, time.Millisecond)
	if err != nil || n != 1 {
		t.Fatalf("expected one reclaimed job, got %d, %v", n, err)
	}

	again, err := q.Claim(ctx)
	if err != nil || again == nil || again.ID != job.ID {
		t.Fatalf("expected redelivery of job %d, got %v, %v", job.ID, again, err)
	}
	if again.Attempts != 2 {
		t.Fatalf("expected second attempt, got %d", again.Attempts)
	}
}
