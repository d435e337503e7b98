// Package history implements C8: Task History & Learning. It persists Task
// History Records and feedback in a Firestore document collection, grounded
// on pkg/vectorstore/firestore/firestore.go's client wiring and BulkWriter
// idiom, generalized from vector-similarity search to plain document storage
// and read-path aggregation per spec.md §4.8.
package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/contentops/aicore/internal/agentregistry"
)

// Status is a Task History Record's lifecycle stage.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Feedback is spec.md §3's Feedback, attached to a record after completion.
type Feedback struct {
	Rating        int                `firestore:"rating"`
	Useful        bool               `firestore:"useful"`
	Modifications string             `firestore:"modifications,omitempty"`
	PerfMetrics   map[string]float64 `firestore:"perf_metrics,omitempty"`
	Comments      string             `firestore:"comments,omitempty"`
	ReceivedAt    time.Time          `firestore:"received_at"`
}

// Record is spec.md §3's Task History Record.
type Record struct {
	ID           string     `firestore:"id"`
	TenantID     string     `firestore:"tenant_id"`
	TaskID       string     `firestore:"task_id"`
	Type         string     `firestore:"type"`
	Input        string     `firestore:"input"`
	Output       string     `firestore:"output"`
	Result       string     `firestore:"result"`
	Platform     string     `firestore:"platform,omitempty"`
	WorkflowID   string     `firestore:"workflow_id,omitempty"`
	ParentTaskID string     `firestore:"parent_task_id,omitempty"`
	Status       Status     `firestore:"status"`
	Feedback     []Feedback `firestore:"feedback,omitempty"`
	CreatedAt    time.Time  `firestore:"created_at"`
	CompletedAt  *time.Time `firestore:"completed_at,omitempty"`
}

// Config wires a Store to a Firestore project.
type Config struct {
	ProjectID       string
	CredentialsFile string
	Collection      string // defaults to "task_history"
}

// Store is C8's Firestore-backed document store for Task History Records.
type Store struct {
	client     *firestore.Client
	collection string
}

// New connects to Firestore following pkg/vectorstore/firestore.New's
// credentials-file-or-ADC pattern.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("history: project ID is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("history: create firestore client: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "task_history"
	}

	return &Store{client: client, collection: collection}, nil
}

// Close releases the underlying Firestore client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) coll() *firestore.CollectionRef { return s.client.Collection(s.collection) }

// Create persists a new Task History Record at task start (status pending).
func (s *Store) Create(ctx context.Context, rec Record) error {
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.coll().Doc(rec.ID).Set(ctx, rec)
	return err
}

// UpdateStatus transitions a record's status, implementing the
// pending→running→(completed|failed) lifecycle of spec.md §3.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, output, result string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "output", Value: output},
		{Path: "result", Value: result},
	}
	if status == StatusCompleted || status == StatusFailed {
		now := time.Now().UTC()
		updates = append(updates, firestore.Update{Path: "completed_at", Value: now})
	}
	_, err := s.coll().Doc(id).Update(ctx, updates)
	return err
}

// RecordContribution implements internal/workflow.HistoryRecorder, writing a
// single completed record per participant contribution in a collaborative
// workflow run.
func (s *Store) RecordContribution(ctx context.Context, tenantID, workflowID string, agentType agentregistry.Type, input, output string, executionMS int64, success bool) error {
	status := StatusCompleted
	if !success {
		status = StatusFailed
	}
	now := time.Now().UTC()
	rec := Record{
		ID:          fmt.Sprintf("%s-%s", workflowID, agentType),
		TenantID:    tenantID,
		TaskID:      fmt.Sprintf("%s-%s", workflowID, agentType),
		Type:        string(agentType),
		Input:       input,
		Output:      output,
		Result:      fmt.Sprintf(`{"execution_ms":%d}`, executionMS),
		WorkflowID:  workflowID,
		Status:      status,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	return s.Create(ctx, rec)
}

// feedbackHash keys idempotency on (task_id, content-hash) per spec.md §4.8.
func feedbackHash(fb Feedback) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%t|%s|%s", fb.Rating, fb.Useful, fb.Modifications, fb.Comments)
	keys := make([]string, 0, len(fb.PerfMetrics))
	for k := range fb.PerfMetrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%v", k, fb.PerfMetrics[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// AddFeedback attaches feedback to a task's record, idempotently keyed on
// (task_id, feedback hash) per spec.md §4.8. Rating must be in 1..5.
func (s *Store) AddFeedback(ctx context.Context, taskID string, fb Feedback) error {
	if fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("history: feedback rating %d out of range [1,5]", fb.Rating)
	}

	docRef := s.coll().Doc(taskID)
	snap, err := docRef.Get(ctx)
	if err != nil {
		return fmt.Errorf("history: load record %s: %w", taskID, err)
	}
	var rec Record
	if err := snap.DataTo(&rec); err != nil {
		return fmt.Errorf("history: decode record %s: %w", taskID, err)
	}

	hash := feedbackHash(fb)
	for _, existing := range rec.Feedback {
		if feedbackHash(existing) == hash {
			return nil // already applied
		}
	}

	if fb.ReceivedAt.IsZero() {
		fb.ReceivedAt = time.Now().UTC()
	}
	rec.Feedback = append(rec.Feedback, fb)

	_, err = docRef.Update(ctx, []firestore.Update{{Path: "feedback", Value: rec.Feedback}})
	return err
}

// Get fetches a single Task History Record by id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	snap, err := s.coll().Doc(id).Get(ctx)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := snap.DataTo(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListForAgent returns every record for a (tenant, agent_type) pair, the
// read path learning insights and performance trends recompute over.
func (s *Store) ListForAgent(ctx context.Context, tenantID string, agentType agentregistry.Type) ([]Record, error) {
	iter := s.coll().
		Where("tenant_id", "==", tenantID).
		Where("type", "==", string(agentType)).
		Documents(ctx)
	defer iter.Stop()

	var records []Record
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := snap.DataTo(&rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// List returns every record for a tenant (used by Performance Monitor's
// cross-agent aggregation and the task history listing/fetch surface).
func (s *Store) List(ctx context.Context, tenantID string) ([]Record, error) {
	iter := s.coll().Where("tenant_id", "==", tenantID).Documents(ctx)
	defer iter.Stop()

	var records []Record
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := snap.DataTo(&rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// platformFromInput extracts the optional platform tag from a task's opaque JSON
// input, used to stratify learning insights per spec.md §4.8(e).
func platformFromInput(input string) string {
	var decoded struct {
		Platform string `json:"platform"`
	}
	if err := json.Unmarshal([]byte(input), &decoded); err != nil {
		return ""
	}
	return decoded.Platform
}
