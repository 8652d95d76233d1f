package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubRejector struct {
	cutoffs  []time.Time
	rejected int64
	err      error
}

func (s *stubRejector) RejectStaleInitiations(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoffs = append(s.cutoffs, cutoff)
	return s.rejected, s.err
}

type stubSweeper struct {
	calls int
}

func (s *stubSweeper) Sweep() int {
	s.calls++
	return 3
}

func TestRunRejectsWithConfiguredCutoff(t *testing.T) {
	rejector := &stubRejector{rejected: 2}
	sweeper := &stubSweeper{}
	job := NewJob(rejector, sweeper, 48*time.Hour, nil)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return base }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rejector.cutoffs) != 1 {
		t.Fatalf("expected one reject call, got %d", len(rejector.cutoffs))
	}
	if want := base.Add(-48 * time.Hour); !rejector.cutoffs[0].Equal(want) {
		t.Fatalf("cutoff %v, want %v", rejector.cutoffs[0], want)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.calls)
	}
}

func TestRunPropagatesRejectError(t *testing.T) {
	rejector := &stubRejector{err: errors.New("db down")}
	job := NewJob(rejector, nil, time.Hour, nil)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunToleratesMissingDependencies(t *testing.T) {
	job := NewJob(nil, nil, 0, nil)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.tokenTTL != 24*time.Hour {
		t.Fatalf("default ttl %v", job.tokenTTL)
	}
}

func TestRunLoopStopsOnContextCancel(t *testing.T) {
	rejector := &stubRejector{}
	job := NewJob(rejector, nil, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.RunLoop(ctx, time.Minute)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	if len(rejector.cutoffs) == 0 {
		t.Fatal("expected an immediate first pass")
	}
}
