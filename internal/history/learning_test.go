package history

import (
	"testing"
	"time"
)

func rec(output string, completedAt time.Time, status Status, ratings ...int) Record {
	var feedback []Feedback
	for _, r := range ratings {
		feedback = append(feedback, Feedback{Rating: r})
	}
	ts := completedAt
	return Record{
		Output:      output,
		Result:      `{"execution_ms":1200.0,"temperature":0.7}`,
		Status:      status,
		CompletedAt: &ts,
		Feedback:    feedback,
	}
}

func TestComputeInsightsMinesBestPracticesFromHighRatedFeedback(t *testing.T) {
	records := []Record{
		{Output: "What a launch story, remember this journey", Feedback: []Feedback{{Rating: 5, Comments: "great story telling"}}},
		{Output: "What a launch story, remember this journey", Feedback: []Feedback{{Rating: 4, Comments: "great story telling"}}},
		{Output: "bland copy", Feedback: []Feedback{{Rating: 1, Comments: "bland and boring"}}},
		{Output: "bland copy", Feedback: []Feedback{{Rating: 2, Comments: "bland and boring"}}},
	}

	insights := ComputeInsights(records)

	if len(insights.BestPractices) == 0 {
		t.Fatalf("expected best practices mined from rating>=4 feedback, got none")
	}
	if len(insights.CommonMistakes) == 0 {
		t.Fatalf("expected common mistakes mined from rating<=2 feedback, got none")
	}
}

func TestComputeInsightsOptimalSettingsIsMedianOfPositiveRuns(t *testing.T) {
	records := []Record{
		{Result: `{"temperature":0.2}`, Feedback: []Feedback{{Rating: 5}}},
		{Result: `{"temperature":0.4}`, Feedback: []Feedback{{Rating: 4}}},
		{Result: `{"temperature":0.9}`, Feedback: []Feedback{{Rating: 5}}},
		{Result: `{"temperature":0.1}`, Feedback: []Feedback{{Rating: 1}}}, // excluded: negative
	}

	insights := ComputeInsights(records)

	got, ok := insights.OptimalSettings["temperature"]
	if !ok {
		t.Fatalf("expected a temperature axis in optimal settings, got %+v", insights.OptimalSettings)
	}
	if got != 0.4 {
		t.Fatalf("expected median 0.4 of [0.2,0.4,0.9], got %v", got)
	}
}

func TestComputeInsightsContentPatternsLabelsAndAggregates(t *testing.T) {
	records := []Record{
		{Output: "Is this working?", Feedback: []Feedback{{Rating: 5, PerfMetrics: map[string]float64{"engagement": 10}}}},
		{Output: "Is this great?", Feedback: []Feedback{{Rating: 3, PerfMetrics: map[string]float64{"engagement": 6}}}},
	}

	insights := ComputeInsights(records)

	stats, ok := insights.ContentPatterns["asks_question"]
	if !ok {
		t.Fatalf("expected an asks_question pattern, got %+v", insights.ContentPatterns)
	}
	if stats.Count != 2 {
		t.Fatalf("expected 2 runs labeled asks_question, got %d", stats.Count)
	}
	if stats.MeanRating != 4 {
		t.Fatalf("expected mean rating 4, got %v", stats.MeanRating)
	}
	if stats.MeanEngagement != 8 {
		t.Fatalf("expected mean engagement 8, got %v", stats.MeanEngagement)
	}
}

func TestComputeInsightsStratifiesByPlatform(t *testing.T) {
	records := []Record{
		{Platform: "twitter", Output: "short punchy line", Feedback: []Feedback{{Rating: 5, Comments: "punchy punchy"}}},
		{Platform: "twitter", Output: "short punchy line", Feedback: []Feedback{{Rating: 4, Comments: "punchy punchy"}}},
		{Platform: "linkedin", Output: "long form essay", Feedback: []Feedback{{Rating: 1, Comments: "too long too long"}}},
		{Platform: "linkedin", Output: "long form essay", Feedback: []Feedback{{Rating: 2, Comments: "too long too long"}}},
	}

	insights := ComputeInsights(records)

	if len(insights.PlatformLearning["twitter"].BestPractices) == 0 {
		t.Fatalf("expected twitter best practices, got %+v", insights.PlatformLearning["twitter"])
	}
	if len(insights.PlatformLearning["linkedin"].CommonMistakes) == 0 {
		t.Fatalf("expected linkedin common mistakes, got %+v", insights.PlatformLearning["linkedin"])
	}
}

func TestPlatformFromInputExtractsPlatformField(t *testing.T) {
	if got := platformFromInput(`{"platform":"instagram","body":"hi"}`); got != "instagram" {
		t.Fatalf("expected instagram, got %q", got)
	}
	if got := platformFromInput(`not json`); got != "" {
		t.Fatalf("expected empty string on malformed input, got %q", got)
	}
}

func TestComputeTrendsLabelsImprovingOnPositiveDelta(t *testing.T) {
	end := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	var records []Record
	// first third: low ratings, last third: high ratings -> improving
	for d := 0; d < 9; d++ {
		day := end.AddDate(0, 0, -d)
		rating := 2
		if d < 3 { // most recent 3 days (last third chronologically) score higher
			rating = 5
		}
		records = append(records, Record{
			Output:      "x",
			Result:      `{"execution_ms":100.0}`,
			Status:      StatusCompleted,
			CompletedAt: &day,
			Feedback:    []Feedback{{Rating: rating}},
		})
	}

	trends := ComputeTrends(records, end, 9)

	if len(trends.Days) == 0 {
		t.Fatalf("expected non-empty day buckets")
	}
	if trends.Label != "improving" {
		t.Fatalf("expected improving trend, got %q (days=%+v)", trends.Label, trends.Days)
	}
}

func TestComputeTrendsLabelsStableOnFlatRatings(t *testing.T) {
	end := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	var records []Record
	for d := 0; d < 9; d++ {
		day := end.AddDate(0, 0, -d)
		records = append(records, Record{
			Status:      StatusCompleted,
			Result:      `{"execution_ms":100.0}`,
			CompletedAt: &day,
			Feedback:    []Feedback{{Rating: 3}},
		})
	}

	trends := ComputeTrends(records, end, 9)
	if trends.Label != "stable" {
		t.Fatalf("expected stable trend on flat ratings, got %q", trends.Label)
	}
}

func TestComputeTrendsExcludesRecordsOutsideWindow(t *testing.T) {
	end := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	tooOld := end.AddDate(0, 0, -100)

	records := []Record{
		{Status: StatusCompleted, Result: `{}`, CompletedAt: &tooOld, Feedback: []Feedback{{Rating: 5}}},
	}

	trends := ComputeTrends(records, end, 9)
	if len(trends.Days) != 0 {
		t.Fatalf("expected record outside the window to be excluded, got %+v", trends.Days)
	}
}
