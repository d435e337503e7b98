// Package agentregistry implements C6: the static, process-wide mapping from
// Agent Type to Agent Descriptor. Per-tenant personalisation never mutates a
// descriptor — it flows through the task's input object instead (spec.md
// §4.6) — grounded on the closed Agent Type enumeration of spec.md §3.
package agentregistry

import "github.com/contentops/aicore/internal/provider"

// Type is the closed Agent Type enumeration.
type Type string

const (
	TypeContent    Type = "content"
	TypeStrategy   Type = "strategy"
	TypeEngagement Type = "engagement"
	TypeAnalytics  Type = "analytics"
	TypeTrend      Type = "trend"
	TypeCompetitor Type = "competitor"
	TypeCrisis     Type = "crisis"
	TypeSentiment  Type = "sentiment"
	TypeHashtag    Type = "hashtag"
)

// Descriptor is an Agent Type's fixed behavior: its system prompt, default
// sampling temperature, default cache TTL, and preferred pricing tier.
type Descriptor struct {
	SystemPrompt           string
	DefaultTemperature     float64
	DefaultCacheTTLSeconds int
	PreferredTier          provider.Tier
}

const (
	hour = 3600
	day  = 24 * hour
	week = 7 * day
)

// registry is the process-wide constant table.
var registry = map[Type]Descriptor{
	TypeContent: {
		SystemPrompt:       "You are a social content creator. Produce engaging, on-brand post copy from the given brief.",
		DefaultTemperature: 0.8,
		DefaultCacheTTLSeconds: day,
		PreferredTier:      provider.TierEfficient,
	},
	TypeStrategy: {
		SystemPrompt:       "You are a social strategy planner. Recommend a content plan given the tenant's goals and history.",
		DefaultTemperature: 0.2,
		DefaultCacheTTLSeconds: week,
		PreferredTier:      provider.TierPremium,
	},
	TypeEngagement: {
		SystemPrompt:       "You draft replies and engagement prompts that match the brand voice and invite interaction.",
		DefaultTemperature: 0.6,
		DefaultCacheTTLSeconds: hour,
		PreferredTier:      provider.TierEfficient,
	},
	TypeAnalytics: {
		SystemPrompt:       "You analyze performance data and summarize findings precisely, without embellishment.",
		DefaultTemperature: 0.2,
		DefaultCacheTTLSeconds: day,
		PreferredTier:      provider.TierEfficient,
	},
	TypeTrend: {
		SystemPrompt:       "You identify emerging trends relevant to the tenant's industry and audience.",
		DefaultTemperature: 0.5,
		DefaultCacheTTLSeconds: hour,
		PreferredTier:      provider.TierEfficient,
	},
	TypeCompetitor: {
		SystemPrompt:       "You analyze competitor activity and summarize notable moves factually.",
		DefaultTemperature: 0.2,
		DefaultCacheTTLSeconds: day,
		PreferredTier:      provider.TierEfficient,
	},
	TypeCrisis: {
		SystemPrompt:       "You assess potential PR crises and recommend a measured, factual response.",
		DefaultTemperature: 0.2,
		DefaultCacheTTLSeconds: 30 * 60,
		PreferredTier:      provider.TierPremium,
	},
	TypeSentiment: {
		SystemPrompt:       "You classify sentiment from the given text precisely and report a confidence score.",
		DefaultTemperature: 0.2,
		DefaultCacheTTLSeconds: day,
		PreferredTier:      provider.TierEfficient,
	},
	TypeHashtag: {
		SystemPrompt:       "You suggest relevant, non-redundant hashtags for the given content and platform.",
		DefaultTemperature: 0.5,
		DefaultCacheTTLSeconds: day,
		PreferredTier:      provider.TierEfficient,
	},
}

// Lookup resolves an Agent Type to its Descriptor.
func Lookup(t Type) (Descriptor, bool) {
	d, ok := registry[t]
	return d, ok
}

// All returns every registered Agent Type.
func All() []Type {
	out := make([]Type, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	return out
}
