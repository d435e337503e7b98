// Package monitor implements C12: the Performance Monitor, aggregating over
// the Cost Ledger, Task History, and Message Bus to produce per-agent
// metrics, a real-time dashboard, health, cost analysis, and alerts, per
// spec.md §4.12. Status/severity rules are deterministic functions of their
// inputs, grounded on pkg/observability/health.go's liveness/readiness shape.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/contentops/aicore/internal/agentregistry"
	"github.com/contentops/aicore/internal/history"
	"github.com/contentops/aicore/internal/ledger"
)

// AgentStatus is a per-agent or system health band.
type AgentStatus string

const (
	StatusHealthy  AgentStatus = "healthy"
	StatusDegraded AgentStatus = "degraded"
	StatusCritical AgentStatus = "critical"
)

const (
	errorRateDegradedThreshold = 0.05
	errorRateCriticalThreshold = 0.25
	avgResponseDegradedSeconds = 5.0
)

// HistoryReader is the narrow slice of internal/history.Store the monitor
// depends on, satisfied by *history.Store directly.
type HistoryReader interface {
	ListForAgent(ctx context.Context, tenantID string, agentType agentregistry.Type) ([]history.Record, error)
	List(ctx context.Context, tenantID string) ([]history.Record, error)
}

// LedgerReader is the narrow slice of internal/ledger.Ledger the monitor
// depends on, satisfied by *ledger.Ledger directly.
type LedgerReader interface {
	BreakdownFor(ctx context.Context, tenantID, month string) (ledger.Breakdown, error)
	History(ctx context.Context, tenantID, month string) ([]ledger.Entry, error)
}

// Monitor wires C3 and C8 into the read-only aggregation surface of C12. C7's
// figures are read separately through WorkflowCommunicationStats.
type Monitor struct {
	Ledger  LedgerReader
	History HistoryReader
}

// AgentMetrics is spec.md §4.12's per-agent metrics over [start, end].
type AgentMetrics struct {
	Type          agentregistry.Type
	TaskCount     int
	SuccessCount  int
	FailureCount  int
	SuccessRate   float64
	ErrorRate     float64
	AvgResponseMS float64
	RecentErrors  []string
}

// AgentMetricsFor computes spec.md §4.12's per-agent metrics over a window,
// derived solely from Task History Records — a pure aggregation, never a
// stored rollup, so it is always consistent with the underlying history.
func (m *Monitor) AgentMetricsFor(ctx context.Context, tenantID string, agentType agentregistry.Type, start, end time.Time) (AgentMetrics, error) {
	records, err := m.History.ListForAgent(ctx, tenantID, agentType)
	if err != nil {
		return AgentMetrics{}, fmt.Errorf("monitor: list history for %s: %w", agentType, err)
	}

	metrics := AgentMetrics{Type: agentType}
	var execSum float64
	var execN int

	for _, rec := range records {
		if rec.CompletedAt == nil || rec.CompletedAt.Before(start) || rec.CompletedAt.After(end) {
			continue
		}
		metrics.TaskCount++
		switch rec.Status {
		case history.StatusCompleted:
			metrics.SuccessCount++
		case history.StatusFailed:
			metrics.FailureCount++
			if len(metrics.RecentErrors) < 10 {
				metrics.RecentErrors = append(metrics.RecentErrors, rec.Result)
			}
		}
		if ms, ok := executionMS(rec); ok {
			execSum += ms
			execN++
		}
	}

	if metrics.TaskCount > 0 {
		metrics.SuccessRate = float64(metrics.SuccessCount) / float64(metrics.TaskCount)
		metrics.ErrorRate = float64(metrics.FailureCount) / float64(metrics.TaskCount)
	}
	if execN > 0 {
		metrics.AvgResponseMS = execSum / float64(execN)
	}

	return metrics, nil
}

func executionMS(rec history.Record) (float64, bool) {
	var params struct {
		ExecutionMS float64 `json:"execution_ms"`
	}
	if err := json.Unmarshal([]byte(rec.Result), &params); err != nil {
		return 0, false
	}
	return params.ExecutionMS, params.ExecutionMS > 0
}

// DashboardAgent is one agent's row in the real-time dashboard.
type DashboardAgent struct {
	Type         agentregistry.Type
	Status       AgentStatus
	Load         int
	SuccessRate  float64
	ResponseMS   float64
	RecentErrors []string
}

// Dashboard is spec.md §4.12's real-time dashboard.
type Dashboard struct {
	Agents       []DashboardAgent
	TotalTasks   int
	TotalSuccess int
	TotalFailure int
}

// RealTimeDashboard builds the dashboard over a trailing window (typically
// a few minutes), one row per requested agent type.
func (m *Monitor) RealTimeDashboard(ctx context.Context, tenantID string, agentTypes []agentregistry.Type, window time.Duration) (Dashboard, error) {
	end := time.Now().UTC()
	start := end.Add(-window)

	var dash Dashboard
	for _, t := range agentTypes {
		metrics, err := m.AgentMetricsFor(ctx, tenantID, t, start, end)
		if err != nil {
			return Dashboard{}, err
		}
		dash.Agents = append(dash.Agents, DashboardAgent{
			Type:         t,
			Status:       statusFor(metrics),
			Load:         metrics.TaskCount,
			SuccessRate:  metrics.SuccessRate,
			ResponseMS:   metrics.AvgResponseMS,
			RecentErrors: metrics.RecentErrors,
		})
		dash.TotalTasks += metrics.TaskCount
		dash.TotalSuccess += metrics.SuccessCount
		dash.TotalFailure += metrics.FailureCount
	}

	return dash, nil
}

// statusFor implements spec.md §4.12's deterministic status rule, extending
// the Health thresholds with a critical band for severe error rates.
func statusFor(m AgentMetrics) AgentStatus {
	if m.TaskCount == 0 {
		return StatusHealthy
	}
	if m.ErrorRate > errorRateCriticalThreshold {
		return StatusCritical
	}
	if m.ErrorRate > errorRateDegradedThreshold || m.AvgResponseMS > avgResponseDegradedSeconds*1000 {
		return StatusDegraded
	}
	return StatusHealthy
}

// Compare implements spec.md §4.12's head-to-head comparison.
func (m *Monitor) Compare(ctx context.Context, tenantID string, a, b agentregistry.Type, start, end time.Time) (AgentMetrics, AgentMetrics, error) {
	ma, err := m.AgentMetricsFor(ctx, tenantID, a, start, end)
	if err != nil {
		return AgentMetrics{}, AgentMetrics{}, err
	}
	mb, err := m.AgentMetricsFor(ctx, tenantID, b, start, end)
	if err != nil {
		return AgentMetrics{}, AgentMetrics{}, err
	}
	return ma, mb, nil
}

// Health is spec.md §4.12's health surface.
type Health struct {
	UptimeSeconds    float64
	ErrorRate        float64
	AvgResponseMS    float64
	ThroughputPerMin float64
	Status           AgentStatus
}

// ComputeHealth is a pure function over already-aggregated counts, per
// spec.md §4.12's thresholds (error_rate > 0.05 or avg_response > 5s →
// degraded).
func ComputeHealth(taskCount, failureCount int, avgResponseMS float64, windowSeconds, uptimeSeconds float64) Health {
	h := Health{UptimeSeconds: uptimeSeconds, AvgResponseMS: avgResponseMS}
	if taskCount > 0 {
		h.ErrorRate = float64(failureCount) / float64(taskCount)
	}
	if windowSeconds > 0 {
		h.ThroughputPerMin = float64(taskCount) / (windowSeconds / 60)
	}

	switch {
	case h.ErrorRate > errorRateCriticalThreshold:
		h.Status = StatusCritical
	case h.ErrorRate > errorRateDegradedThreshold || avgResponseMS > avgResponseDegradedSeconds*1000:
		h.Status = StatusDegraded
	default:
		h.Status = StatusHealthy
	}

	return h
}

// SystemHealth aggregates health across every requested agent type over a
// window ending now.
func (m *Monitor) SystemHealth(ctx context.Context, tenantID string, agentTypes []agentregistry.Type, window time.Duration, uptimeSeconds float64) (Health, error) {
	end := time.Now().UTC()
	start := end.Add(-window)

	var taskCount, failureCount int
	var execSum float64
	var execN int

	for _, t := range agentTypes {
		metrics, err := m.AgentMetricsFor(ctx, tenantID, t, start, end)
		if err != nil {
			return Health{}, err
		}
		taskCount += metrics.TaskCount
		failureCount += metrics.FailureCount
		if metrics.TaskCount > 0 {
			execSum += metrics.AvgResponseMS * float64(metrics.TaskCount)
			execN += metrics.TaskCount
		}
	}

	avgResponseMS := 0.0
	if execN > 0 {
		avgResponseMS = execSum / float64(execN)
	}

	return ComputeHealth(taskCount, failureCount, avgResponseMS, window.Seconds(), uptimeSeconds), nil
}
