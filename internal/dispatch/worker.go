package dispatch

import (
	"context"
	"time"

	"github.com/reislab/travel-platform/pkg/logging"
)

// Worker runs dispatch passes on a fixed interval until the context is
// canceled.
type Worker struct {
	dispatcher *Dispatcher
	logger     *logging.Logger
	interval   time.Duration
	onReport   func(context.Context, *Report)
}

func NewWorker(dispatcher *Dispatcher, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		dispatcher: dispatcher,
		logger:     logger,
		interval:   1 * time.Minute,
	}
}

func (w *Worker) WithInterval(d time.Duration) *Worker {
	if d > 0 {
		w.interval = d
	}
	return w
}

// WithReportFunc registers a callback invoked after every pass, used for
// failure alerting.
func (w *Worker) WithReportFunc(fn func(context.Context, *Report)) *Worker {
	w.onReport = fn
	return w
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pass(ctx)
		}
	}
}

func (w *Worker) pass(ctx context.Context) {
	report, err := w.dispatcher.ProcessDue(ctx)
	if err != nil {
		w.logger.Error("dispatch pass failed", "error", err)
		return
	}
	if w.onReport != nil {
		w.onReport(ctx, report)
	}
}
