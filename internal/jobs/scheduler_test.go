package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDispatchRunsFnUnderSemaphore(t *testing.T) {
	s := &Scheduler{
		sem:     make(chan struct{}, 1),
		running: make(map[uuid.UUID]context.CancelFunc),
	}

	var ran int32
	done := make(chan struct{})
	s.dispatch(uuid.New(), func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatched fn never ran")
	}

	if atomic.LoadInt32(&ran) != 1 {
		t.Fatalf("expected fn to run once, ran %d times", ran)
	}
}

func TestDispatchUntracksJobOnCompletion(t *testing.T) {
	s := &Scheduler{
		sem:     make(chan struct{}, 1),
		running: make(map[uuid.UUID]context.CancelFunc),
	}

	jobID := uuid.New()
	done := make(chan struct{})
	s.dispatch(jobID, func(ctx context.Context) error {
		close(done)
		return nil
	})

	<-done
	// Give the deferred cleanup a moment to run after fn returns.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		_, tracked := s.running[jobID]
		s.mu.Unlock()
		if !tracked {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("job remained tracked in running map after completion")
}

func TestRunningMapHoldsTrackedCancelFunc(t *testing.T) {
	jobID := uuid.New()
	var cancelled int32
	s := &Scheduler{
		sem: make(chan struct{}, 1),
		running: map[uuid.UUID]context.CancelFunc{
			jobID: func() { atomic.StoreInt32(&cancelled, 1) },
		},
	}

	// Cancel also calls Store.CancelJob, which requires a real DB; this
	// test only exercises the in-process cancel-func bookkeeping by
	// calling the tracked func directly as Cancel would after a
	// successful store update.
	s.mu.Lock()
	cancel, ok := s.running[jobID]
	s.mu.Unlock()
	if !ok {
		t.Fatal("expected job to be tracked")
	}
	cancel()

	if atomic.LoadInt32(&cancelled) != 1 {
		t.Fatal("expected cancel func to run")
	}
}
