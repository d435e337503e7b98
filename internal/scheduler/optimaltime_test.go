package scheduler

import (
	"testing"
	"time"
)

func TestComputeOptimalBucketsScoresByEngagementWhenPresent(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	mon9am := time.Date(2026, 7, 27, 9, 0, 0, 0, time.UTC) // Monday
	tue3pm := time.Date(2026, 7, 28, 15, 0, 0, 0, time.UTC)

	samples := []PublishSample{
		{At: mon9am, Engagement: 100, HasMetric: true},
		{At: mon9am.AddDate(0, 0, 7), Engagement: 80, HasMetric: true},
		{At: tue3pm, Engagement: 20, HasMetric: true},
	}

	buckets := ComputeOptimalBuckets(samples, now)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 distinct buckets, got %d", len(buckets))
	}
	if buckets[0].DayOfWeek != time.Monday || buckets[0].Hour != 9 {
		t.Fatalf("expected Monday-9am to score highest, got %+v", buckets[0])
	}
	if buckets[0].Score != 100 {
		t.Fatalf("expected top bucket score 100, got %v", buckets[0].Score)
	}
}

func TestComputeOptimalBucketsFallsBackToPostCountWithoutEngagement(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	slot := time.Date(2026, 7, 27, 9, 0, 0, 0, time.UTC)

	samples := []PublishSample{
		{At: slot, HasMetric: false},
		{At: slot.AddDate(0, 0, -7), HasMetric: false},
	}

	buckets := ComputeOptimalBuckets(samples, now)
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	if buckets[0].Score != 2 {
		t.Fatalf("expected fallback score = post count (2), got %v", buckets[0].Score)
	}
}

func TestComputeOptimalBucketsExcludesSamplesOutsideNinetyDays(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	tooOld := now.AddDate(0, 0, -100)

	samples := []PublishSample{{At: tooOld, Engagement: 50, HasMetric: true}}
	buckets := ComputeOptimalBuckets(samples, now)
	if len(buckets) != len(defaultOptimalBuckets()) {
		t.Fatalf("expected stale sample excluded and fallback buckets returned, got %+v", buckets)
	}
	found := false
	for _, b := range buckets {
		if b.DayOfWeek == time.Tuesday && b.Hour == 10 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fallback buckets to include Tuesday 10:00, got %+v", buckets)
	}
}

func TestNextDateForBucketAdvancesToMatchingWeekday(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) // Thursday
	next := NextDateForBucket(time.Monday, 9, now)
	if next.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %v", next.Weekday())
	}
	if next.Hour() != 9 {
		t.Fatalf("expected hour 9, got %d", next.Hour())
	}
	if !next.After(now) {
		t.Fatalf("expected next occurrence to be in the future, got %v", next)
	}
}

func TestNextOptimalTimeFromNowPicksEarliestAtLeastOneHourAhead(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) // Thursday noon
	buckets := []Bucket{
		{DayOfWeek: time.Thursday, Hour: 12, Score: 100}, // exactly now: must roll to next week
		{DayOfWeek: time.Friday, Hour: 9, Score: 50},
	}

	next, ok := NextOptimalTimeFromNow(buckets, now)
	if !ok {
		t.Fatalf("expected a candidate to be found")
	}
	if next.Weekday() != time.Friday || next.Hour() != 9 {
		t.Fatalf("expected Friday 9am to win (sooner than next Thursday), got %v", next)
	}
}
