package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Handler runs one claimed job's side effect (workflow run, publish,
// evergreen rotation). An error triggers the backoff-and-retry path.
type Handler func(ctx context.Context, job Job) error

// Worker drains due jobs from a Store and dispatches them to registered
// handlers, plus a periodic cron sweep for crash recovery.
type Worker struct {
	Store        *Store
	Handlers     map[string]Handler
	PollInterval time.Duration // default 2s
	cron         *cron.Cron
}

// NewWorker builds a Worker with an empty handler registry.
func NewWorker(store *Store) *Worker {
	return &Worker{
		Store:        store,
		Handlers:     make(map[string]Handler),
		PollInterval: 2 * time.Second,
	}
}

// Register binds a handler to a job kind.
func (w *Worker) Register(kind string, h Handler) {
	w.Handlers[kind] = h
}

// Run blocks, polling for due jobs and running the 5-minute crash-safety
// sweep, until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.cron = cron.New()
	if _, err := w.cron.AddFunc("*/5 * * * *", func() { w.sweep(ctx) }); err != nil {
		return fmt.Errorf("scheduler: register sweep: %w", err)
	}
	w.cron.Start()
	defer w.cron.Stop()

	ticker := time.NewTicker(w.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *Worker) pollInterval() time.Duration {
	if w.PollInterval <= 0 {
		return 2 * time.Second
	}
	return w.PollInterval
}

func (w *Worker) pollOnce(ctx context.Context) {
	jobs, err := w.Store.ClaimDue(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("scheduler: poll: %v", err)
		return
	}
	for _, job := range jobs {
		w.dispatch(ctx, job)
	}
}

// sweep implements spec.md §4.11's periodic re-enqueue of pending entries
// the poll loop missed, idempotent by business key since a job already
// claimed active or completed is no longer pending.
func (w *Worker) sweep(ctx context.Context) {
	jobs, err := w.Store.ClaimDue(ctx, time.Now().UTC().Add(-1*time.Minute))
	if err != nil {
		log.Printf("scheduler: sweep: %v", err)
		return
	}
	for _, job := range jobs {
		w.dispatch(ctx, job)
	}
}

func (w *Worker) dispatch(ctx context.Context, job Job) {
	handler, ok := w.Handlers[job.Kind]
	if !ok {
		_ = w.Store.MarkFailed(ctx, job.ID, fmt.Errorf("no handler registered for kind %q", job.Kind))
		return
	}

	if err := handler(ctx, job); err != nil {
		if markErr := w.Store.MarkFailed(ctx, job.ID, err); markErr != nil {
			log.Printf("scheduler: mark failed for job %s: %v", job.ID, markErr)
		}
		return
	}

	if err := w.Store.MarkCompleted(ctx, job.ID); err != nil {
		log.Printf("scheduler: mark completed for job %s: %v", job.ID, err)
	}
}
