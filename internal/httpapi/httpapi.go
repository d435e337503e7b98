// Package httpapi is the thin JSON transport over spec.md §6's ingress
// operations. Authentication/tenant-identity verification is explicitly out
// of scope (spec.md §1); this layer trusts the X-Tenant-ID header the way an
// upstream auth proxy would have stamped it, the same trust boundary
// cmd/aixgo/main.go's HTTP server assumes for its own endpoints.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/contentops/aicore/internal/agentregistry"
	"github.com/contentops/aicore/internal/automation"
	"github.com/contentops/aicore/internal/coordinator"
	"github.com/contentops/aicore/internal/history"
	"github.com/contentops/aicore/internal/ledger"
	"github.com/contentops/aicore/internal/monitor"
	"github.com/contentops/aicore/internal/provider"
	"github.com/contentops/aicore/internal/router"
	"github.com/contentops/aicore/internal/scheduler"
	"github.com/contentops/aicore/internal/workflow"
)

// API wires every internal component this process's routes call into.
type API struct {
	Coordinator *coordinator.Coordinator
	Workflows   *workflow.Orchestrator
	Ledger      *ledger.Ledger
	History     *history.Store // nil when Firestore is not configured
	Monitor     *monitor.Monitor
	Scheduler   *scheduler.Store
	Configs     *automation.ConfigStore
}

// Routes registers every handler on mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /complete", a.handleComplete)
	mux.HandleFunc("POST /agent/execute", a.handleAgentExecute)
	mux.HandleFunc("POST /workflows/execute", a.handleWorkflowExecute)
	mux.HandleFunc("GET /workflows/{id}", a.handleGetWorkflow)
	mux.HandleFunc("GET /workflows", a.handleListWorkflows)
	mux.HandleFunc("GET /workflows/{id}/checkpoint", a.handleGetWorkflowCheckpoint)
	mux.HandleFunc("DELETE /workflows/{id}", a.handleDeleteWorkflow)

	mux.HandleFunc("GET /budget/{tenant}", a.handleGetBudget)
	mux.HandleFunc("PUT /budget/{tenant}", a.handleSetBudget)
	mux.HandleFunc("GET /cost/{tenant}", a.handleCostBreakdown)

	mux.HandleFunc("GET /automation/{tenant}", a.handleGetAutomationConfig)
	mux.HandleFunc("PUT /automation/{tenant}", a.handleSetAutomationConfig)

	mux.HandleFunc("GET /history/{tenant}", a.handleListHistory)
	mux.HandleFunc("GET /history/task/{id}", a.handleGetHistoryTask)
	mux.HandleFunc("POST /history/task/{id}/feedback", a.handleAddFeedback)

	mux.HandleFunc("GET /performance/{tenant}/dashboard", a.handleDashboard)
	mux.HandleFunc("GET /performance/{tenant}/health", a.handleHealth)

	mux.HandleFunc("POST /scheduler/jobs", a.handleScheduleJob)
	mux.HandleFunc("DELETE /scheduler/jobs/{businessKey}", a.handleCancelJob)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func tenantFromRequest(r *http.Request) string {
	return r.Header.Get("X-Tenant-ID")
}

func statusForErr(err error) int {
	switch err.(type) {
	case *coordinator.ValidationError:
		return http.StatusBadRequest
	case *coordinator.BudgetExceededError:
		return http.StatusPaymentRequired
	default:
		return http.StatusBadGateway
	}
}

func (a *API) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req provider.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.TenantID = tenantFromRequest(r)

	resp, err := a.Coordinator.Complete(r.Context(), req)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAgentExecute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type     agentregistry.Type `json:"type"`
		Input    string             `json:"input"`
		Context  string             `json:"context"`
		Priority router.Priority    `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.Coordinator.ExecuteAgentTask(r.Context(), coordinator.AgentTask{
		TenantID: tenantFromRequest(r),
		Type:     body.Type,
		Input:    body.Input,
		Context:  body.Context,
		Priority: body.Priority,
	})
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}

	if a.History != nil {
		if err := a.History.RecordContribution(r.Context(), tenantFromRequest(r), "", body.Type, body.Input, result.Output, result.ExecutionMS, true); err != nil {
			log.Printf("httpapi: record task history: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleWorkflowExecute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string               `json:"name"`
		Participants []agentregistry.Type `json:"participants"`
		Input        string               `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.Workflows.ExecuteCollaborative(r.Context(), tenantFromRequest(r), body.Name, body.Participants, body.Input)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	state, err := a.Workflows.Status(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	states, err := a.Workflows.List(r.URL.Query().Get("workflow_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (a *API) handleGetWorkflowCheckpoint(w http.ResponseWriter, r *http.Request) {
	checkpoint, err := a.Workflows.LatestCheckpoint(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if checkpoint == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no checkpoint recorded for workflow %s", r.PathValue("id")))
		return
	}
	writeJSON(w, http.StatusOK, checkpoint)
}

func (a *API) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := a.Workflows.Delete(r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")
	budget, ok, err := a.Ledger.Budget(r.Context(), tenant)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no budget configured"})
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

func (a *API) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var budget ledger.Budget
	if err := json.NewDecoder(r.Body).Decode(&budget); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	budget.TenantID = r.PathValue("tenant")
	if err := a.Ledger.SetBudget(r.Context(), budget); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

func (a *API) handleCostBreakdown(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")
	month := r.URL.Query().Get("month")
	if month == "" {
		month = time.Now().UTC().Format("2006-01")
	}
	breakdown, err := a.Ledger.BreakdownFor(r.Context(), tenant, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (a *API) handleGetAutomationConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Configs.Get(r.PathValue("tenant")))
}

func (a *API) handleSetAutomationConfig(w http.ResponseWriter, r *http.Request) {
	var cfg automation.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg.TenantID = r.PathValue("tenant")
	a.Configs.Set(cfg)
	writeJSON(w, http.StatusOK, cfg)
}

func (a *API) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		writeError(w, http.StatusServiceUnavailable, errHistoryDisabled)
		return
	}
	records, err := a.History.List(r.Context(), r.PathValue("tenant"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *API) handleGetHistoryTask(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		writeError(w, http.StatusServiceUnavailable, errHistoryDisabled)
		return
	}
	record, err := a.History.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (a *API) handleAddFeedback(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		writeError(w, http.StatusServiceUnavailable, errHistoryDisabled)
		return
	}
	var fb history.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.History.AddFeedback(r.Context(), r.PathValue("id"), fb); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := a.Monitor.RealTimeDashboard(r.Context(), r.PathValue("tenant"), agentregistry.All(), time.Hour)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	monitor.PublishDashboard(r.PathValue("tenant"), dash)
	writeJSON(w, http.StatusOK, dash)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := a.Monitor.SystemHealth(r.Context(), r.PathValue("tenant"), agentregistry.All(), time.Hour, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (a *API) handleScheduleJob(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind        string    `json:"kind"`
		Payload     string    `json:"payload"`
		FireAt      time.Time `json:"fire_at"`
		BusinessKey string    `json:"business_key"`
		MaxAttempts int       `json:"max_attempts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := a.Scheduler.Schedule(r.Context(), body.Kind, body.Payload, body.FireAt, body.BusinessKey, body.MaxAttempts)
	if err != nil {
		if err == scheduler.ErrBusinessKeyPending {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *API) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if err := a.Scheduler.Cancel(r.Context(), r.PathValue("businessKey")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
