// Package ledger implements C3: per-tenant, per-month spend tracking and
// budget alerting, grounded on pkg/session/redis_backend.go's key-prefix and
// time-ordered-list idiom.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// retention keeps 13 months of entries so a calendar-year comparison always
// has the prior December available.
const retention = 13 * 31 * 24 * time.Hour

// Entry is one tracked completion's cost.
type Entry struct {
	TenantID  string    `json:"tenant_id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	CostUSD   float64   `json:"cost_usd"`
	Timestamp time.Time `json:"timestamp"`
}

// Budget is a tenant's configured monthly ceiling and alert threshold. The
// idempotent per-month alert flags are kept as separate Redis keys, not here.
type Budget struct {
	TenantID          string  `json:"tenant_id"`
	MonthlyLimitUSD   float64 `json:"monthly_limit_usd"`
	ThresholdFraction float64 `json:"threshold_fraction"`
}

// AlertKind distinguishes the two alert thresholds a month can cross.
type AlertKind string

const (
	AlertThresholdCrossed AlertKind = "threshold_crossed"
	AlertBudgetExceeded   AlertKind = "budget_exceeded"
)

// Ledger is the Redis-backed cost ledger.
type Ledger struct {
	client *redis.Client
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func (l *Ledger) entriesKey(tenant, month string) string {
	return fmt.Sprintf("ledger:%s:%s:entries", tenant, month)
}

func (l *Ledger) sumKey(tenant, month string) string {
	return fmt.Sprintf("ledger:%s:%s:sum", tenant, month)
}

func (l *Ledger) alertKey(tenant, month string, kind AlertKind) string {
	return fmt.Sprintf("ledger:%s:%s:alert:%s", tenant, month, kind)
}

func (l *Ledger) budgetKey(tenant string) string {
	return fmt.Sprintf("ledger:budget:%s", tenant)
}

// Track records a spend entry and atomically increments the month's running
// sum via INCRBYFLOAT. Returns the new month-to-date total.
func (l *Ledger) Track(ctx context.Context, entry Entry) (float64, error) {
	month := monthKey(entry.Timestamp)
	data, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("ledger: marshal entry: %w", err)
	}

	pipe := l.client.Pipeline()
	pipe.RPush(ctx, l.entriesKey(entry.TenantID, month), data)
	pipe.Expire(ctx, l.entriesKey(entry.TenantID, month), retention)
	incr := pipe.IncrByFloat(ctx, l.sumKey(entry.TenantID, month), entry.CostUSD)
	pipe.Expire(ctx, l.sumKey(entry.TenantID, month), retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("ledger: track: %w", err)
	}

	return incr.Val(), nil
}

// MonthToDateSpend returns the running sum for a tenant's current month.
func (l *Ledger) MonthToDateSpend(ctx context.Context, tenant string) (float64, error) {
	val, err := l.client.Get(ctx, l.sumKey(tenant, monthKey(time.Now().UTC()))).Float64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return val, nil
}

// SetBudget stores a tenant's monthly limit and alert threshold fraction.
func (l *Ledger) SetBudget(ctx context.Context, b Budget) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return l.client.Set(ctx, l.budgetKey(b.TenantID), data, 0).Err()
}

// Budget returns a tenant's configured budget, or ok=false if none is set.
func (l *Ledger) Budget(ctx context.Context, tenant string) (Budget, bool, error) {
	data, err := l.client.Get(ctx, l.budgetKey(tenant)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Budget{}, false, nil
		}
		return Budget{}, false, err
	}
	var b Budget
	if err := json.Unmarshal(data, &b); err != nil {
		return Budget{}, false, err
	}
	return b, true, nil
}

// defaultMonthlyLimitUSD and defaultThresholdFraction are spec.md §3's
// implicit budget for a tenant that has never called SetBudget.
const (
	defaultMonthlyLimitUSD   = 100
	defaultThresholdFraction = 0.8
)

// effectiveBudget resolves a tenant's configured budget, substituting
// spec.md §3's default ($100/month, 80% alert threshold) when none has been
// set. Budget itself still reports ok=false for callers (e.g. the budget
// inspection endpoint) that need to distinguish "configured" from "default".
func (l *Ledger) effectiveBudget(ctx context.Context, tenant string) (Budget, error) {
	budget, ok, err := l.Budget(ctx, tenant)
	if err != nil {
		return Budget{}, err
	}
	if !ok {
		return Budget{TenantID: tenant, MonthlyLimitUSD: defaultMonthlyLimitUSD, ThresholdFraction: defaultThresholdFraction}, nil
	}
	if budget.MonthlyLimitUSD <= 0 {
		budget.MonthlyLimitUSD = defaultMonthlyLimitUSD
	}
	if budget.ThresholdFraction <= 0 {
		budget.ThresholdFraction = defaultThresholdFraction
	}
	return budget, nil
}

// Throttled reports whether a tenant's month-to-date spend has reached its
// configured monthly limit (spec.md §3: throttled ⟺ current_spend ≥
// monthly_limit). A tenant with no configured budget falls back to the
// $100/month default.
func (l *Ledger) Throttled(ctx context.Context, tenant string) (bool, error) {
	budget, err := l.effectiveBudget(ctx, tenant)
	if err != nil {
		return false, err
	}
	spend, err := l.MonthToDateSpend(ctx, tenant)
	if err != nil {
		return false, err
	}
	return spend >= budget.MonthlyLimitUSD, nil
}

// CheckAlerts compares month-to-date spend against the tenant's budget and
// fires each of threshold_crossed/budget_exceeded at most once per month
// (idempotent via SetNX on the alert key). A tenant with no configured
// budget falls back to the $100/month default.
func (l *Ledger) CheckAlerts(ctx context.Context, tenant string) ([]AlertKind, error) {
	budget, err := l.effectiveBudget(ctx, tenant)
	if err != nil {
		return nil, err
	}

	spend, err := l.MonthToDateSpend(ctx, tenant)
	if err != nil {
		return nil, err
	}

	month := monthKey(time.Now().UTC())
	var fired []AlertKind

	if spend >= budget.MonthlyLimitUSD*budget.ThresholdFraction {
		if l.tryFireOnce(ctx, tenant, month, AlertThresholdCrossed) {
			fired = append(fired, AlertThresholdCrossed)
		}
	}
	if spend >= budget.MonthlyLimitUSD {
		if l.tryFireOnce(ctx, tenant, month, AlertBudgetExceeded) {
			fired = append(fired, AlertBudgetExceeded)
		}
	}
	return fired, nil
}

func (l *Ledger) tryFireOnce(ctx context.Context, tenant, month string, kind AlertKind) bool {
	ok, err := l.client.SetNX(ctx, l.alertKey(tenant, month, kind), 1, retention).Result()
	if err != nil {
		log.Printf("ledger: alert flag %s/%s/%s: %v", tenant, month, kind, err)
		return false
	}
	return ok
}

// History returns every tracked entry for a tenant's month, oldest first.
func (l *Ledger) History(ctx context.Context, tenant, month string) ([]Entry, error) {
	raw, err := l.client.LRange(ctx, l.entriesKey(tenant, month), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			log.Printf("ledger: skip malformed entry: %v", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Breakdown aggregates a month's entries by provider and by model.
type Breakdown struct {
	ByProvider map[string]float64 `json:"by_provider"`
	ByModel    map[string]float64 `json:"by_model"`
	Total      float64            `json:"total"`
}

// BreakdownFor computes a cost breakdown from a month's entries.
func (l *Ledger) BreakdownFor(ctx context.Context, tenant, month string) (Breakdown, error) {
	entries, err := l.History(ctx, tenant, month)
	if err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{ByProvider: map[string]float64{}, ByModel: map[string]float64{}}
	for _, e := range entries {
		b.ByProvider[e.Provider] += e.CostUSD
		b.ByModel[e.Model] += e.CostUSD
		b.Total += e.CostUSD
	}
	return b, nil
}
