package pruner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeGraph struct {
	calls int32
}

func (f *fakeGraph) Prune(maxAge time.Duration) (int, int) {
	atomic.AddInt32(&f.calls, 1)
	return 0, 0
}

func TestPruner_TicksUntilCanceled(t *testing.T) {
	g := &fakeGraph{}
	p := New(g, 5*time.Millisecond, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop within one tick of cancellation")
	}

	if atomic.LoadInt32(&g.calls) == 0 {
		t.Errorf("expected at least one prune tick before cancellation")
	}
}
