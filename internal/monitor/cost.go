package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/contentops/aicore/internal/agentregistry"
)

// CostAnalysis is spec.md §4.12's cost analysis with month projection.
type CostAnalysis struct {
	PeriodTotal      float64
	PeriodDays       float64
	ProjectedMonthly float64
	Recommendations  []string
}

// costGrowthWarningUSD flags a projection a tenant should actively manage.
const costGrowthWarningUSD = 100.0

// CostAnalysisFor implements spec.md §4.12's `period_total · 30/period_days`
// projection plus deterministic recommendations.
func (m *Monitor) CostAnalysisFor(ctx context.Context, tenantID string, start, end time.Time) (CostAnalysis, error) {
	periodDays := end.Sub(start).Hours() / 24
	if periodDays <= 0 {
		periodDays = 1
	}

	var total float64
	for month := range monthsBetween(start, end) {
		entries, err := m.Ledger.History(ctx, tenantID, month)
		if err != nil {
			return CostAnalysis{}, fmt.Errorf("monitor: ledger history for %s: %w", month, err)
		}
		for _, e := range entries {
			if e.Timestamp.Before(start) || e.Timestamp.After(end) {
				continue
			}
			total += e.CostUSD
		}
	}

	analysis := CostAnalysis{
		PeriodTotal: total,
		PeriodDays:  periodDays,
	}
	analysis.ProjectedMonthly = total * (30 / periodDays)
	analysis.Recommendations = costRecommendations(analysis)

	return analysis, nil
}

func costRecommendations(a CostAnalysis) []string {
	var recs []string
	if a.ProjectedMonthly > costGrowthWarningUSD {
		recs = append(recs, "projected monthly spend exceeds $100; consider shifting low-priority traffic to the efficient tier")
	}
	if a.PeriodDays > 0 && a.PeriodTotal/a.PeriodDays > a.ProjectedMonthly/60 && a.ProjectedMonthly > 0 {
		recs = append(recs, "recent daily spend is trending above the period average; review cache hit rate")
	}
	return recs
}

// monthsBetween yields each "2006-01"-formatted month the [start, end] range
// touches, for iterating the ledger's month-keyed history.
func monthsBetween(start, end time.Time) func(func(string) bool) {
	return func(yield func(string) bool) {
		cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
		last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
		for !cur.After(last) {
			if !yield(cur.Format("2006-01")) {
				return
			}
			cur = cur.AddDate(0, 1, 0)
		}
	}
}

// Severity is an alert's urgency band.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is spec.md §4.12's alert surface.
type Alert struct {
	Severity Severity
	Message  string
}

// AlertsFor derives deterministic alerts from already-computed health and
// cost analysis.
func AlertsFor(health Health, cost CostAnalysis) []Alert {
	var alerts []Alert

	switch health.Status {
	case StatusCritical:
		alerts = append(alerts, Alert{Severity: SeverityCritical, Message: fmt.Sprintf("error rate %.1f%% exceeds critical threshold", health.ErrorRate*100)})
	case StatusDegraded:
		alerts = append(alerts, Alert{Severity: SeverityWarning, Message: fmt.Sprintf("error rate %.1f%% or response time %.0fms degraded", health.ErrorRate*100, health.AvgResponseMS)})
	}

	if cost.ProjectedMonthly > costGrowthWarningUSD*5 {
		alerts = append(alerts, Alert{Severity: SeverityCritical, Message: fmt.Sprintf("projected monthly spend $%.2f is critically high", cost.ProjectedMonthly)})
	} else if cost.ProjectedMonthly > costGrowthWarningUSD {
		alerts = append(alerts, Alert{Severity: SeverityWarning, Message: fmt.Sprintf("projected monthly spend $%.2f exceeds warning threshold", cost.ProjectedMonthly)})
	} else if cost.ProjectedMonthly > 0 {
		alerts = append(alerts, Alert{Severity: SeverityInfo, Message: fmt.Sprintf("projected monthly spend $%.2f", cost.ProjectedMonthly)})
	}

	return alerts
}

// Report is spec.md §4.12's full report.
type Report struct {
	Dashboard Dashboard
	Health    Health
	Cost      CostAnalysis
	Alerts    []Alert
}

// FullReport assembles the dashboard, health, cost analysis, and alerts for
// a tenant over a window.
func (m *Monitor) FullReport(ctx context.Context, tenantID string, agentTypes []agentregistry.Type, window time.Duration, uptimeSeconds float64) (Report, error) {
	dash, err := m.RealTimeDashboard(ctx, tenantID, agentTypes, window)
	if err != nil {
		return Report{}, err
	}
	health, err := m.SystemHealth(ctx, tenantID, agentTypes, window, uptimeSeconds)
	if err != nil {
		return Report{}, err
	}

	end := time.Now().UTC()
	start := end.Add(-window)
	cost, err := m.CostAnalysisFor(ctx, tenantID, start, end)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Dashboard: dash,
		Health:    health,
		Cost:      cost,
		Alerts:    AlertsFor(health, cost),
	}, nil
}
