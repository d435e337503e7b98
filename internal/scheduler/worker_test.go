package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDispatchMarksCompletedOnHandlerSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.scheduleRaw(ctx, "publish", "{}", time.Now().Add(-time.Minute), "post-1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	worker := NewWorker(store)
	worker.Register("publish", func(ctx context.Context, j Job) error { return nil })
	worker.dispatch(ctx, *job)

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %v", got.Status)
	}
}

func TestDispatchMarksFailedOnHandlerError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.scheduleRaw(ctx, "publish", "{}", time.Now().Add(-time.Minute), "post-2", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	worker := NewWorker(store)
	worker.Register("publish", func(ctx context.Context, j Job) error { return errors.New("upstream rejected") })
	worker.dispatch(ctx, *job)

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %v", got.Status)
	}
}

func TestDispatchMarksFailedWhenNoHandlerRegistered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.scheduleRaw(ctx, "unknown-kind", "{}", time.Now().Add(-time.Minute), "post-3", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	worker := NewWorker(store)
	worker.dispatch(ctx, *job)

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %v", got.Status)
	}
}
