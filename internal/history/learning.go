package history

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Insights is spec.md §4.8's learning insights for a (tenant, agent_type)
// pair, recomputed in O(n) history size on every read — never hand-authored.
type Insights struct {
	BestPractices    []string                    `json:"best_practices"`
	CommonMistakes   []string                    `json:"common_mistakes"`
	OptimalSettings  map[string]float64          `json:"optimal_settings"`
	ContentPatterns  map[string]PatternStats     `json:"content_patterns"`
	PlatformLearning map[string]PlatformInsights `json:"platform_learning"`
}

// PatternStats is one content-pattern label's aggregate performance.
type PatternStats struct {
	MeanRating     float64 `json:"mean_rating"`
	MeanEngagement float64 `json:"mean_engagement"`
	Count          int     `json:"count"`
}

// PlatformInsights is the same best-practice/mistake mining as Insights,
// stratified by the platform field in task input.
type PlatformInsights struct {
	BestPractices  []string `json:"best_practices"`
	CommonMistakes []string `json:"common_mistakes"`
}

// wordPattern tokenizes feedback text for frequency mining.
var wordPattern = regexp.MustCompile(`[a-zA-Z']+`)

var storytellingKeywords = []string{"story", "journey", "imagine", "once", "remember", "experience"}

// ComputeInsights implements spec.md §4.8's learning insights over every
// record a ListForAgent call returns for the (tenant, agent_type) pair.
func ComputeInsights(records []Record) Insights {
	var positive, negative []Record
	for _, rec := range records {
		for _, fb := range rec.Feedback {
			if fb.Rating >= 4 {
				positive = append(positive, rec)
			} else if fb.Rating <= 2 {
				negative = append(negative, rec)
			}
		}
	}

	insights := Insights{
		BestPractices:    topTokensAndBigrams(positive),
		CommonMistakes:   topTokensAndBigrams(negative),
		OptimalSettings:  optimalSettings(positive),
		ContentPatterns:  contentPatterns(records),
		PlatformLearning: make(map[string]PlatformInsights),
	}

	byPlatform := make(map[string][]Record)
	for _, rec := range records {
		p := rec.Platform
		if p == "" {
			p = platformFromInput(rec.Input)
		}
		if p == "" {
			continue
		}
		byPlatform[p] = append(byPlatform[p], rec)
	}
	for platform, recs := range byPlatform {
		var pos, neg []Record
		for _, rec := range recs {
			for _, fb := range rec.Feedback {
				if fb.Rating >= 4 {
					pos = append(pos, rec)
				} else if fb.Rating <= 2 {
					neg = append(neg, rec)
				}
			}
		}
		insights.PlatformLearning[platform] = PlatformInsights{
			BestPractices:  topTokensAndBigrams(pos),
			CommonMistakes: topTokensAndBigrams(neg),
		}
	}

	return insights
}

// topTokensAndBigrams mines the most frequent tokens and bigrams across a
// record set's feedback comments and output text, per spec.md §4.8(a)/(b).
func topTokensAndBigrams(records []Record) []string {
	counts := make(map[string]int)
	for _, rec := range records {
		text := strings.ToLower(rec.Output)
		for _, fb := range rec.Feedback {
			text += " " + strings.ToLower(fb.Comments)
		}
		tokens := wordPattern.FindAllString(text, -1)
		for _, tok := range tokens {
			if len(tok) < 3 {
				continue
			}
			counts[tok]++
		}
		for i := 0; i+1 < len(tokens); i++ {
			if len(tokens[i]) < 3 || len(tokens[i+1]) < 3 {
				continue
			}
			counts[tokens[i]+" "+tokens[i+1]]++
		}
	}

	return topN(counts, 10)
}

func topN(counts map[string]int, n int) []string {
	type entry struct {
		term  string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for term, count := range counts {
		if count < 2 {
			continue // single occurrences aren't a "pattern"
		}
		entries = append(entries, entry{term, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].term < entries[j].term
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.term
	}
	return out
}

// optimalSettings computes spec.md §4.8(c)'s per-axis median of numeric
// parameters across positively rated runs. Parameters are read from each
// record's result JSON (the provider/execution metadata the caller recorded).
func optimalSettings(records []Record) map[string]float64 {
	axes := make(map[string][]float64)
	for _, rec := range records {
		var params map[string]interface{}
		if err := json.Unmarshal([]byte(rec.Result), &params); err != nil {
			continue
		}
		for k, v := range params {
			if f, ok := v.(float64); ok {
				axes[k] = append(axes[k], f)
			}
		}
	}

	out := make(map[string]float64, len(axes))
	for axis, values := range axes {
		out[axis] = median(values)
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// contentPatterns labels each record by the heuristics of spec.md §4.8(d)
// and aggregates mean rating/engagement per label.
func contentPatterns(records []Record) map[string]PatternStats {
	sums := make(map[string]struct {
		ratingSum float64
		ratingN   int
		engSum    float64
		engN      int
		count     int
	})

	for _, rec := range records {
		for _, label := range labelsFor(rec.Output) {
			s := sums[label]
			s.count++
			for _, fb := range rec.Feedback {
				s.ratingSum += float64(fb.Rating)
				s.ratingN++
				if eng, ok := fb.PerfMetrics["engagement"]; ok {
					s.engSum += eng
					s.engN++
				}
			}
			sums[label] = s
		}
	}

	out := make(map[string]PatternStats, len(sums))
	for label, s := range sums {
		stats := PatternStats{Count: s.count}
		if s.ratingN > 0 {
			stats.MeanRating = s.ratingSum / float64(s.ratingN)
		}
		if s.engN > 0 {
			stats.MeanEngagement = s.engSum / float64(s.engN)
		}
		out[label] = stats
	}
	return out
}

func labelsFor(text string) []string {
	var labels []string
	if strings.Contains(text, "?") {
		labels = append(labels, "asks_question")
	}

	switch {
	case len(text) < 100:
		labels = append(labels, "length_short")
	case len(text) < 400:
		labels = append(labels, "length_medium")
	default:
		labels = append(labels, "length_long")
	}

	lower := strings.ToLower(text)
	for _, kw := range storytellingKeywords {
		if strings.Contains(lower, kw) {
			labels = append(labels, "storytelling")
			break
		}
	}

	return labels
}

// DayMetrics is one bucket of spec.md §4.8's performance trends.
type DayMetrics struct {
	Day         string  `json:"day"`
	MeanRating  float64 `json:"mean_rating"`
	MeanExecMS  float64 `json:"mean_execution_ms"`
	SuccessRate float64 `json:"success_rate"`
}

// Trends is the day-bucketed window plus its derived trend label.
type Trends struct {
	Days  []DayMetrics `json:"days"`
	Label string       `json:"label"` // improving, declining, stable
}

// ComputeTrends implements spec.md §4.8's performance trends: for each day
// in [end-days, end], mean rating/execution_ms/success rate, then a trend
// label from comparing the window's first and last third.
func ComputeTrends(records []Record, end time.Time, days int) Trends {
	start := end.AddDate(0, 0, -days)

	byDay := make(map[string][]Record)
	var order []string
	for _, rec := range records {
		if rec.CompletedAt == nil {
			continue
		}
		ts := *rec.CompletedAt
		if ts.Before(start) || ts.After(end) {
			continue
		}
		day := ts.Format("2006-01-02")
		if _, seen := byDay[day]; !seen {
			order = append(order, day)
		}
		byDay[day] = append(byDay[day], rec)
	}
	sort.Strings(order)

	dayMetrics := make([]DayMetrics, 0, len(order))
	for _, day := range order {
		recs := byDay[day]
		var ratingSum float64
		var ratingN int
		var execSum float64
		var successN int

		for _, rec := range recs {
			if rec.Status == StatusCompleted {
				successN++
			}
			var params map[string]interface{}
			if err := json.Unmarshal([]byte(rec.Result), &params); err == nil {
				if ms, ok := params["execution_ms"].(float64); ok {
					execSum += ms
				}
			}
			for _, fb := range rec.Feedback {
				ratingSum += float64(fb.Rating)
				ratingN++
			}
		}

		dm := DayMetrics{Day: day}
		if ratingN > 0 {
			dm.MeanRating = ratingSum / float64(ratingN)
		}
		if len(recs) > 0 {
			dm.MeanExecMS = execSum / float64(len(recs))
			dm.SuccessRate = float64(successN) / float64(len(recs))
		}
		dayMetrics = append(dayMetrics, dm)
	}

	return Trends{Days: dayMetrics, Label: trendLabel(dayMetrics)}
}

// trendLabel compares the mean rating of the window's first and last third,
// labeling improving/declining at a ±5% delta, else stable.
func trendLabel(days []DayMetrics) string {
	if len(days) < 3 {
		return "stable"
	}

	third := len(days) / 3
	if third == 0 {
		return "stable"
	}

	first := meanRating(days[:third])
	last := meanRating(days[len(days)-third:])

	if first == 0 {
		return "stable"
	}

	delta := (last - first) / first
	switch {
	case delta > 0.05:
		return "improving"
	case delta < -0.05:
		return "declining"
	default:
		return "stable"
	}
}

func meanRating(days []DayMetrics) float64 {
	var sum float64
	var n int
	for _, d := range days {
		if d.MeanRating == 0 {
			continue
		}
		sum += d.MeanRating
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
