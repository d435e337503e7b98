package scheduler

import "sort"

// EvergreenPost is one candidate for rotation — spec.md §4.11's "posts
// tagged evergreen".
type EvergreenPost struct {
	ID                   string
	DaysSinceLastPublish int
	PublishCount         int
}

// EvergreenPriority implements spec.md §4.11's rotation priority formula.
func EvergreenPriority(p EvergreenPost) int {
	recencyPenalty := min(50, max(0, 50-p.DaysSinceLastPublish))
	frequencyPenalty := min(30, 3*p.PublishCount)
	return 100 - recencyPenalty - frequencyPenalty
}

// EvergreenPriorityLabel buckets a priority score per spec.md §4.11.
func EvergreenPriorityLabel(priority int) string {
	switch {
	case priority >= 70:
		return "high"
	case priority >= 40:
		return "medium"
	default:
		return "low"
	}
}

// RankedEvergreenPost is one post plus its derived rotation priority.
type RankedEvergreenPost struct {
	Post     EvergreenPost
	Priority int
	Label    string
}

// SelectTopEvergreen ranks candidates by EvergreenPriority (descending, ties
// broken by ID for determinism) and returns the top n.
func SelectTopEvergreen(posts []EvergreenPost, n int) []RankedEvergreenPost {
	ranked := make([]RankedEvergreenPost, len(posts))
	for i, p := range posts {
		priority := EvergreenPriority(p)
		ranked[i] = RankedEvergreenPost{Post: p, Priority: priority, Label: EvergreenPriorityLabel(priority)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority > ranked[j].Priority
		}
		return ranked[i].Post.ID < ranked[j].Post.ID
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
