package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/contentops/aicore/internal/agentregistry"
	"github.com/contentops/aicore/internal/automation"
	"github.com/contentops/aicore/internal/bus"
	"github.com/contentops/aicore/internal/coordinator"
	"github.com/contentops/aicore/internal/router"
)

// Contribution is one participant's output within a collaborative run.
type Contribution struct {
	AgentType   agentregistry.Type
	Output      string
	ExecutionMS int64
	Success     bool
}

// Result is spec.md §3's Workflow, enriched with the derived performance
// metrics execute_collaborative returns.
type Result struct {
	ID            string
	TenantID      string
	Name          string
	Participants  []agentregistry.Type
	SharedContext map[string]interface{}
	Messages      []*bus.Message
	Contributions []Contribution
	Status        string
	StartedAt     time.Time
	EndedAt       time.Time
	Efficiency    float64
}

// HistoryRecorder is C8's narrow surface the orchestrator depends on —
// implemented by internal/history.Store. A nil recorder is a no-op so the
// orchestrator is independently testable.
type HistoryRecorder interface {
	RecordContribution(ctx context.Context, tenantID, workflowID string, agentType agentregistry.Type, input, output string, executionMS int64, success bool) error
}

// ConfigLookup resolves a tenant's automation config — implemented by
// internal/automation's config store.
type ConfigLookup func(ctx context.Context, tenantID string) (automation.Config, error)

// Orchestrator implements C10: the sequential multi-agent collaboration
// loop, grounded on internal/workflow/executor.go's step-by-step run loop
// generalized from an arbitrary DAG of handlers to spec.md §4.10's fixed
// participant sequence.
type Orchestrator struct {
	Coordinator *coordinator.Coordinator
	Bus         *bus.Bus
	Store       Store
	History     HistoryRecorder
	Configs     ConfigLookup
}

// ExecuteCollaborative implements spec.md §4.10's execute_collaborative.
func (o *Orchestrator) ExecuteCollaborative(ctx context.Context, tenantID, name string, participants []agentregistry.Type, initialInput string) (*Result, error) {
	if len(participants) == 0 {
		return nil, &coordinator.ValidationError{Reason: "workflow requires at least one participant"}
	}

	cfg, err := o.Configs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("workflow: fetch automation config: %w", err)
	}

	workflowID := uuid.New().String()
	result := &Result{
		ID:            workflowID,
		TenantID:      tenantID,
		Name:          name,
		Participants:  participants,
		SharedContext: make(map[string]interface{}),
		StartedAt:     time.Now().UTC(),
		Status:        "completed",
	}

	for i, agentType := range participants {
		if cfg.EnabledTypes != nil && !cfg.EnabledTypes[string(agentType)] {
			continue
		}

		reqMeta := map[string]interface{}{"workflow_id": workflowID, "task_id": uuid.New().String()}
		reqMsg, err := bus.New("orchestrator", string(agentType), bus.KindRequest, initialInput, reqMeta)
		if err == nil {
			o.Bus.Send(reqMsg)
			result.Messages = append(result.Messages, reqMsg)
		}

		taskInput := o.buildTaskInput(initialInput, result.SharedContext, result.Contributions)

		taskResult, err := o.Coordinator.ExecuteAgentTask(ctx, coordinator.AgentTask{
			ID:       uuid.New().String(),
			TenantID: tenantID,
			Type:     agentType,
			Input:    taskInput,
			Priority: router.PriorityMedium,
		})

		contribution := Contribution{AgentType: agentType}
		if err != nil {
			contribution.Success = false
			result.Contributions = append(result.Contributions, contribution)
			result.Status = "failed"
			continue
		}

		contribution.Output = taskResult.Output
		contribution.ExecutionMS = taskResult.ExecutionMS
		contribution.Success = true
		result.Contributions = append(result.Contributions, contribution)
		result.SharedContext[string(agentType)] = taskResult.Output

		if o.History != nil {
			_ = o.History.RecordContribution(ctx, tenantID, workflowID, agentType, taskInput, taskResult.Output, taskResult.ExecutionMS, true)
		}

		if o.Store != nil {
			_ = o.Store.SaveCheckpoint(workflowID, &Checkpoint{
				ID:     fmt.Sprintf("step-%d-%s", i, agentType),
				StepID: string(agentType),
				State:  map[string]any{"shared_context": result.SharedContext},
			})
		}

		respMsg, err := bus.New(string(agentType), "", bus.KindResponse, taskResult.Output, map[string]interface{}{"workflow_id": workflowID})
		if err == nil {
			o.Bus.Send(respMsg)
			result.Messages = append(result.Messages, respMsg)
		}

		if i+1 < len(participants) {
			next := participants[i+1]
			feedbackMsg, err := o.Bus.RequestFeedback(string(agentType), string(next), taskResult.Output, map[string]interface{}{"workflow_id": workflowID})
			if err == nil {
				result.Messages = append(result.Messages, feedbackMsg)
			}
		}
	}

	result.EndedAt = time.Now().UTC()
	result.Efficiency = collaborationEfficiency(result.Contributions, result.Messages)

	if o.Store != nil {
		state := &State{
			ID:         workflowID,
			WorkflowID: workflowID,
			Status:     Status(result.Status),
			Context:    map[string]any{"shared_context": result.SharedContext},
			StartedAt:  result.StartedAt,
			UpdatedAt:  result.EndedAt,
		}
		_ = o.Store.Save(state)
	}

	return result, nil
}

// Status retrieves a previously executed workflow's persisted state by its
// workflow id, backing the workflow-status query endpoint.
func (o *Orchestrator) Status(workflowID string) (*State, error) {
	if o.Store == nil {
		return nil, fmt.Errorf("workflow: no store configured")
	}
	return o.Store.Load(workflowID)
}

// List retrieves every persisted workflow state, optionally filtered to one
// workflow id.
func (o *Orchestrator) List(workflowID string) ([]*State, error) {
	if o.Store == nil {
		return nil, fmt.Errorf("workflow: no store configured")
	}
	return o.Store.List(workflowID)
}

// LatestCheckpoint returns the most recent per-step checkpoint recorded
// during a workflow's run, letting an operator inspect progress without
// waiting for the whole run to finish.
func (o *Orchestrator) LatestCheckpoint(workflowID string) (*Checkpoint, error) {
	if o.Store == nil {
		return nil, fmt.Errorf("workflow: no store configured")
	}
	return o.Store.LoadLatestCheckpoint(workflowID)
}

// Delete removes a workflow's persisted state and checkpoints.
func (o *Orchestrator) Delete(workflowID string) error {
	if o.Store == nil {
		return fmt.Errorf("workflow: no store configured")
	}
	return o.Store.Delete(workflowID)
}

func (o *Orchestrator) buildTaskInput(initialInput string, sharedContext map[string]interface{}, previous []Contribution) string {
	return fmt.Sprintf("initial_input=%s shared_context=%v previous_contributions=%v", initialInput, sharedContext, previous)
}

// collaborationEfficiency implements spec.md §4.10 step 3's weighted score.
func collaborationEfficiency(contributions []Contribution, messages []*bus.Message) float64 {
	if len(contributions) == 0 {
		return 0
	}

	successful := 0
	var totalMS int64
	for _, c := range contributions {
		if c.Success {
			successful++
			totalMS += c.ExecutionMS
		}
	}

	contributionRate := float64(successful) / float64(len(contributions))

	messagesPerContribution := 0.0
	if len(contributions) > 0 {
		messagesPerContribution = float64(len(messages)) / float64(len(contributions))
	}
	commEfficiency := 1 - (messagesPerContribution-2)/10
	if commEfficiency < 0 {
		commEfficiency = 0
	}

	timeEfficiency := 1.0
	if successful > 0 {
		avgMS := float64(totalMS) / float64(successful)
		if avgMS > 0 {
			timeEfficiency = 5000 / avgMS
			if timeEfficiency > 1 {
				timeEfficiency = 1
			}
		}
	}

	return 0.5*contributionRate + 0.3*commEfficiency + 0.2*timeEfficiency
}

// ExecuteWithAutomation runs the collaborative flow and additionally gates
// its outcome through the Rule Engine (spec.md §4.10).
func (o *Orchestrator) ExecuteWithAutomation(ctx context.Context, tenantID, name string, participants []agentregistry.Type, initialInput string, ruleContext map[string]interface{}) (*Result, automation.Decision, error) {
	result, err := o.ExecuteCollaborative(ctx, tenantID, name, participants, initialInput)
	if err != nil {
		return nil, automation.Decision{}, err
	}

	cfg, err := o.Configs(ctx, tenantID)
	if err != nil {
		return result, automation.Decision{}, fmt.Errorf("workflow: fetch automation config: %w", err)
	}

	decision := automation.EvaluateRules(cfg, ruleContext)
	return result, decision, nil
}

// LearningRecommendation is one post-hoc suggestion from ExecuteWithLearning.
type LearningRecommendation struct {
	Reason string
}

// ExecuteWithLearning implements spec.md §4.10: enriches a single-agent
// input with learning insights before dispatch, then derives post-hoc
// recommendations from the run's own cost/latency.
func (o *Orchestrator) ExecuteWithLearning(ctx context.Context, tenantID string, agentType agentregistry.Type, input string, insights string) (*coordinator.AgentTaskResult, []LearningRecommendation, error) {
	enrichedInput := input
	if insights != "" {
		enrichedInput = fmt.Sprintf("%s\n\nlearning_insights: %s", input, insights)
	}

	result, err := o.Coordinator.ExecuteAgentTask(ctx, coordinator.AgentTask{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Type:     agentType,
		Input:    enrichedInput,
		Priority: router.PriorityMedium,
	})
	if err != nil {
		return nil, nil, err
	}

	var recs []LearningRecommendation
	if result.ExecutionMS > 5000 {
		recs = append(recs, LearningRecommendation{Reason: "optimize_prompts: execution exceeded 5000ms"})
	}
	if result.CostUSD > 0.05 {
		recs = append(recs, LearningRecommendation{Reason: "use_cheaper_model: cost exceeded $0.05"})
	}
	recs = append(recs, LearningRecommendation{Reason: "best_practice_reminder"})

	return result, recs, nil
}
