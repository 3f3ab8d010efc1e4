package usage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"example/comment-search-api/logging"
	"example/comment-search-api/store/memory"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (s *blockingSink) IncrementUsage(ctx context.Context, _ string) error {
	<-s.release
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return nil
}

type errSink struct{}

func (errSink) IncrementUsage(context.Context, string) error {
	return errors.New("write failed")
}

func TestWorkerDrainsOnStop(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	w := NewWorker(s, 4, 64, logging.Discard())
	w.Start()

	for i := 0; i < 50; i++ {
		w.Record("u1")
	}
	w.Stop()

	acct, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if acct.UsageCount != 50 {
		t.Fatalf("usage_count = %d, want 50", acct.UsageCount)
	}
}

func TestWorkerDropsWhenBufferFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	w := NewWorker(sink, 1, 1, logging.Discard())

	// Not started: the single slot fills and the rest are dropped.
	w.Record("a")
	w.Record("b")
	w.Record("c")

	w.Start()
	close(sink.release)
	w.Stop()

	if sink.calls != 1 {
		t.Fatalf("applied increments = %d, want 1", sink.calls)
	}
}

func TestWorkerRecordAfterStopIsDropped(t *testing.T) {
	s := memory.New()
	w := NewWorker(s, 1, 4, logging.Discard())
	w.Start()
	w.Stop()
	w.Stop()

	w.Record("late")
	if _, err := s.Get(context.Background(), "late"); err == nil {
		t.Fatal("increment recorded after Stop should be dropped")
	}
}

func TestWorkerSwallowsSinkErrors(t *testing.T) {
	w := NewWorker(errSink{}, 2, 4, logging.Discard())
	w.Start()
	w.Record("u1")
	w.Record("u2")
	w.Stop()
}

func TestWorkerCount(t *testing.T) {
	if got := WorkerCount(5); got != 5 {
		t.Fatalf("WorkerCount(5) = %d", got)
	}
	if got := WorkerCount(0); got < 1 {
		t.Fatalf("WorkerCount(0) = %d, want >= 1", got)
	}
}
