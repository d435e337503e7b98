// Package router implements C4: per-request model selection under explicit
// override, priority bias, and a steady-state 70/30 premium/efficient split,
// grounded on internal/orchestration/router.go's selection-policy shape and
// backed by internal/provider's pricing table.
package router

import (
	"sync/atomic"

	"github.com/contentops/aicore/internal/provider"
)

// Priority biases the tier chosen when no explicit model is given.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Router selects a model id for a completion request. The counter is
// process-wide and monotonically increasing so the 70/30 split holds as a
// long-run ratio under concurrent callers (spec.md §4.4).
type Router struct {
	table        *provider.PricingTable
	premiumModel string
	counter      uint64
}

// New builds a router over a pricing table. premiumDefault is the model
// returned for priority=high requests.
func New(table *provider.PricingTable, premiumDefault string) *Router {
	return &Router{table: table, premiumModel: premiumDefault}
}

// Select implements the four-step selection algorithm.
func (r *Router) Select(explicitModel string, priority Priority) string {
	if explicitModel != "" {
		return explicitModel
	}

	if priority == PriorityHigh {
		return r.premiumModel
	}

	if priority == PriorityLow {
		if cheapest, ok := r.cheapestInTier(provider.TierEfficient); ok {
			return cheapest
		}
	}

	return r.splitSelect()
}

// splitSelect implements the 70/30 counter-based split: i = N mod 10,
// efficient iff i < 7; within the chosen tier, alternate members by N mod 2.
func (r *Router) splitSelect() string {
	n := atomic.AddUint64(&r.counter, 1) - 1

	tier := provider.TierEfficient
	if n%10 >= 7 {
		tier = provider.TierPremium
	}

	members := r.table.ByTier(tier)
	if len(members) == 0 {
		return r.premiumModel
	}
	idx := int(n % 2)
	if idx >= len(members) {
		idx = 0
	}
	return members[idx].ID
}

func (r *Router) cheapestInTier(tier provider.Tier) (string, bool) {
	members := r.table.ByTier(tier)
	if len(members) == 0 {
		return "", false
	}
	best := members[0]
	for _, m := range members[1:] {
		if m.AvgPricePerMtok() < best.AvgPricePerMtok() {
			best = m
		}
	}
	return best.ID, true
}

// Estimate exposes the router's cost-estimation wrapper over the pricing
// table (spec.md §4.4).
func (r *Router) Estimate(model string, promptTok, completionTok int) (float64, bool) {
	return r.table.Estimate(model, promptTok, completionTok)
}
