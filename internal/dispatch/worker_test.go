package dispatch

import (
	"context"
	"testing"
	"time"
)

func TestWorkerRunsPassAndReports(t *testing.T) {
	store := newFakeStore(dueMessage(-time.Hour))
	d := newTestDispatcher(store, &fakeGateway{}, nil, nil)

	reports := make(chan *Report, 1)
	w := NewWorker(d, nil).
		WithInterval(time.Hour).
		WithReportFunc(func(ctx context.Context, r *Report) {
			select {
			case reports <- r:
			default:
			}
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case r := <-reports:
		if r.Successful != 1 {
			t.Fatalf("unexpected report: %+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first pass")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
