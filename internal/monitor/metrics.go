package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus gauges mirroring the JSON dashboard, grounded on
// pkg/observability/metrics.go's CounterVec/GaugeVec registration pattern.
var (
	agentSuccessRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aicore_agent_success_rate",
			Help: "Per-agent success rate over the dashboard window",
		},
		[]string{"tenant", "agent_type"},
	)

	agentResponseMS = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aicore_agent_response_ms",
			Help: "Per-agent average response time in milliseconds",
		},
		[]string{"tenant", "agent_type"},
	)

	agentLoad = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aicore_agent_load",
			Help: "Per-agent task count over the dashboard window",
		},
		[]string{"tenant", "agent_type"},
	)

	tenantProjectedMonthlyCostUSD = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aicore_tenant_projected_monthly_cost_usd",
			Help: "Tenant's projected monthly spend from the latest cost analysis",
		},
		[]string{"tenant"},
	)

	metricsOnce sync.Once
)

// InitMetrics registers the monitor's Prometheus gauges exactly once.
func InitMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(agentSuccessRate, agentResponseMS, agentLoad, tenantProjectedMonthlyCostUSD)
	})
}

// PublishDashboard pushes a dashboard's per-agent figures into the
// registered gauges, for scraping alongside the JSON report.
func PublishDashboard(tenantID string, dash Dashboard) {
	for _, a := range dash.Agents {
		agentSuccessRate.WithLabelValues(tenantID, string(a.Type)).Set(a.SuccessRate)
		agentResponseMS.WithLabelValues(tenantID, string(a.Type)).Set(a.ResponseMS)
		agentLoad.WithLabelValues(tenantID, string(a.Type)).Set(float64(a.Load))
	}
}

// PublishCostAnalysis pushes a tenant's latest cost projection.
func PublishCostAnalysis(tenantID string, cost CostAnalysis) {
	tenantProjectedMonthlyCostUSD.WithLabelValues(tenantID).Set(cost.ProjectedMonthly)
}
