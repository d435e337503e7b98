// Package scheduler implements C11: a durable, Redis-backed delayed-job
// store plus a worker pool and crash-safety sweep, grounded on
// pkg/session/redis_backend.go's key-prefix/pipeline/secondary-index idiom
// generalized from session metadata to time-keyed scheduled jobs, per
// spec.md §4.11.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/contentops/aicore/internal/coordinator"
)

// Status is a scheduled job's lifecycle stage.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

const defaultMaxAttempts = 3
const backoffBase = 2 * time.Second

// Job is spec.md §3's Scheduled Job.
type Job struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Payload     string    `json:"payload"` // opaque JSON, interpreted by the kind's handler
	FireAt      time.Time `json:"fire_at"`
	BusinessKey string    `json:"business_key"`
	Status      Status    `json:"status"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ErrBusinessKeyPending is returned by Schedule when the business key already
// has a pending or active job, enforcing spec.md §4.11's at-most-one invariant.
var ErrBusinessKeyPending = errors.New("scheduler: business key already has a pending job")

// Store is the Redis-backed job store.
type Store struct {
	client *redis.Client
	prefix string
}

// New wraps a Redis client, following pkg/session/redis_backend.go's
// key-prefix-namespacing convention.
func New(client *redis.Client) *Store {
	return &Store{client: client, prefix: "sched:"}
}

func (s *Store) jobKey(id string) string { return s.prefix + "job:" + id }
func (s *Store) bkKey(key string) string { return s.prefix + "bk:" + key }
func (s *Store) dueZSetKey() string      { return s.prefix + "due" }

// Schedule implements spec.md §4.11's schedule(kind, payload, fire_at, business_key).
func (s *Store) Schedule(ctx context.Context, kind, payload string, fireAt time.Time, businessKey string, maxAttempts int) (string, error) {
	if !fireAt.After(time.Now().UTC()) {
		return "", &coordinator.ValidationError{Reason: "fire_at must be in the future"}
	}
	return s.scheduleRaw(ctx, kind, payload, fireAt, businessKey, maxAttempts)
}

// scheduleRaw persists a job without the fire_at-in-future check. It backs
// Schedule and lets the crash-safety sweep and test setup create jobs that
// are already due.
func (s *Store) scheduleRaw(ctx context.Context, kind, payload string, fireAt time.Time, businessKey string, maxAttempts int) (string, error) {
	exists, err := s.client.Exists(ctx, s.bkKey(businessKey)).Result()
	if err != nil {
		return "", fmt.Errorf("scheduler: check business key: %w", err)
	}
	if exists > 0 {
		return "", ErrBusinessKeyPending
	}

	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	now := time.Now().UTC()
	job := Job{
		ID:          uuid.New().String(),
		Kind:        kind,
		Payload:     payload,
		FireAt:      fireAt,
		BusinessKey: businessKey,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.jobKey(job.ID), data, 0)
	pipe.Set(ctx, s.bkKey(businessKey), job.ID, 0)
	pipe.ZAdd(ctx, s.dueZSetKey(), redis.Z{Score: float64(fireAt.Unix()), Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("scheduler: persist job: %w", err)
	}

	return job.ID, nil
}

// Cancel implements spec.md §4.11's cancel(business_key). Cancelling an
// unknown or already-terminal business key is a no-op.
func (s *Store) Cancel(ctx context.Context, businessKey string) error {
	id, err := s.client.Get(ctx, s.bkKey(businessKey)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("scheduler: lookup business key: %w", err)
	}

	job, err := s.load(ctx, id)
	if err != nil {
		return nil
	}
	if job.Status != StatusPending && job.Status != StatusActive {
		return nil
	}

	job.Status = StatusCancelled
	job.UpdatedAt = time.Now().UTC()

	pipe := s.client.Pipeline()
	pipe.ZRem(ctx, s.dueZSetKey(), id)
	pipe.Del(ctx, s.bkKey(businessKey))
	s.saveOn(pipe, ctx, job)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) load(ctx context.Context, id string) (*Job, error) {
	data, err := s.client.Get(ctx, s.jobKey(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Store) save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.jobKey(job.ID), data, 0).Err()
}

func (s *Store) saveOn(pipe redis.Pipeliner, ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	pipe.Set(ctx, s.jobKey(job.ID), data, 0)
}

// ClaimDue draws every pending job whose fire_at is at or before asOf,
// atomically transitioning each to active. The worker pool's poll loop calls
// this with time.Now(); the periodic sweep calls it with now minus one
// minute, per spec.md §4.11's crash-safety backstop.
func (s *Store) ClaimDue(ctx context.Context, asOf time.Time) ([]Job, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.dueZSetKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", asOf.Unix()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scheduler: range due jobs: %w", err)
	}

	var claimed []Job
	for _, id := range ids {
		job, err := s.load(ctx, id)
		if err != nil {
			s.client.ZRem(ctx, s.dueZSetKey(), id) // orphaned zset member, drop it
			continue
		}
		if job.Status != StatusPending {
			s.client.ZRem(ctx, s.dueZSetKey(), id)
			continue
		}

		// ZREM is the claim: only the caller that removes the member owns the job.
		removed, err := s.client.ZRem(ctx, s.dueZSetKey(), id).Result()
		if err != nil || removed == 0 {
			continue
		}
		job.Status = StatusActive
		job.UpdatedAt = time.Now().UTC()
		if err := s.save(ctx, job); err != nil {
			s.client.ZAdd(ctx, s.dueZSetKey(), redis.Z{Score: float64(job.FireAt.Unix()), Member: id})
			continue
		}
		claimed = append(claimed, *job)
	}

	return claimed, nil
}

// MarkCompleted transitions a job to completed and clears its business-key
// reservation, letting a new job reuse the same key.
func (s *Store) MarkCompleted(ctx context.Context, jobID string) error {
	job, err := s.load(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = StatusCompleted
	job.UpdatedAt = time.Now().UTC()

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.bkKey(job.BusinessKey))
	s.saveOn(pipe, ctx, job)
	_, err = pipe.Exec(ctx)
	return err
}

// MarkFailed records a handler failure. Below max_attempts it reschedules
// with exponential backoff plus jitter (base 2s); at or beyond max_attempts
// it terminates the job as failed, per spec.md §4.11.
func (s *Store) MarkFailed(ctx context.Context, jobID string, handlerErr error) error {
	job, err := s.load(ctx, jobID)
	if err != nil {
		return err
	}

	job.Attempts++
	job.LastError = handlerErr.Error()
	job.UpdatedAt = time.Now().UTC()

	if job.Attempts >= job.MaxAttempts {
		job.Status = StatusFailed
		pipe := s.client.Pipeline()
		pipe.Del(ctx, s.bkKey(job.BusinessKey))
		s.saveOn(pipe, ctx, job)
		_, err = pipe.Exec(ctx)
		return err
	}

	job.Status = StatusPending
	nextFire := time.Now().UTC().Add(backoff(job.Attempts))
	job.FireAt = nextFire

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.dueZSetKey(), redis.Z{Score: float64(nextFire.Unix()), Member: job.ID})
	s.saveOn(pipe, ctx, job)
	_, err = pipe.Exec(ctx)
	return err
}

// backoff is base(2s)*2^(attempt-1) plus up to 1s of jitter.
func backoff(attempt int) time.Duration {
	exp := backoffBase
	for i := 1; i < attempt; i++ {
		exp *= 2
	}
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	return exp + jitter
}

// Get fetches a job by id.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	return s.load(ctx, id)
}
