package scheduler

import (
	"sort"
	"time"
)

// PublishSample is one historical publish plus its engagement metric, the
// input to spec.md §4.11's Optimal-Time Calculator.
type PublishSample struct {
	At         time.Time
	Engagement float64
	HasMetric  bool // false when no engagement data was recorded for this publish
}

// Bucket is one (day_of_week, hour) slot's derived score.
type Bucket struct {
	DayOfWeek time.Weekday
	Hour      int
	Score     float64
	Count     int
}

const historyWindow = 90 * 24 * time.Hour

// ComputeOptimalBuckets buckets the last 90 days of samples by
// (day_of_week, hour), scores each bucket, and returns the top 20.
func ComputeOptimalBuckets(samples []PublishSample, now time.Time) []Bucket {
	cutoff := now.Add(-historyWindow)

	type agg struct {
		engagementSum float64
		engagementN   int
		count         int
	}
	buckets := make(map[[2]int]*agg)
	var order [][2]int
	haveEngagement := false

	for _, s := range samples {
		if s.At.Before(cutoff) || s.At.After(now) {
			continue
		}
		key := [2]int{int(s.At.Weekday()), s.At.Hour()}
		a, ok := buckets[key]
		if !ok {
			a = &agg{}
			buckets[key] = a
			order = append(order, key)
		}
		a.count++
		if s.HasMetric {
			a.engagementSum += s.Engagement
			a.engagementN++
			haveEngagement = true
		}
	}

	if len(buckets) == 0 {
		return defaultOptimalBuckets()
	}

	result := make([]Bucket, 0, len(buckets))
	if haveEngagement {
		maxAvg := 0.0
		avgs := make(map[[2]int]float64, len(buckets))
		for key, a := range buckets {
			if a.engagementN == 0 {
				continue
			}
			avg := a.engagementSum / float64(a.engagementN)
			avgs[key] = avg
			if avg > maxAvg {
				maxAvg = avg
			}
		}
		for _, key := range order {
			a := buckets[key]
			var score float64
			if maxAvg > 0 {
				score = 100 * avgs[key] / maxAvg
			}
			result = append(result, Bucket{DayOfWeek: time.Weekday(key[0]), Hour: key[1], Score: score, Count: a.count})
		}
	} else {
		for _, key := range order {
			a := buckets[key]
			score := float64(a.count)
			if score > 100 {
				score = 100
			}
			result = append(result, Bucket{DayOfWeek: time.Weekday(key[0]), Hour: key[1], Score: score, Count: a.count})
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		if result[i].DayOfWeek != result[j].DayOfWeek {
			return result[i].DayOfWeek < result[j].DayOfWeek
		}
		return result[i].Hour < result[j].Hour
	})

	if len(result) > 20 {
		result = result[:20]
	}
	return result
}

// defaultOptimalBuckets is the fixed fallback sequence used when a tenant has
// no publish history in the 90-day window: Tue/Wed/Thu at 10:00 and 14:00,
// plus Mon/Fri at 10:00, per spec.md §4.11.
func defaultOptimalBuckets() []Bucket {
	return []Bucket{
		{DayOfWeek: time.Monday, Hour: 10},
		{DayOfWeek: time.Tuesday, Hour: 10},
		{DayOfWeek: time.Tuesday, Hour: 14},
		{DayOfWeek: time.Wednesday, Hour: 10},
		{DayOfWeek: time.Wednesday, Hour: 14},
		{DayOfWeek: time.Thursday, Hour: 10},
		{DayOfWeek: time.Thursday, Hour: 14},
		{DayOfWeek: time.Friday, Hour: 10},
	}
}

// NextDateForBucket advances 0..7 days from now to find the next occurrence
// of the given (day_of_week, hour) slot, per spec.md §4.11.
func NextDateForBucket(dow time.Weekday, hour int, now time.Time) time.Time {
	for d := 0; d <= 7; d++ {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location()).AddDate(0, 0, d)
		if candidate.Weekday() == dow {
			return candidate
		}
	}
	return now // unreachable: every weekday occurs within 7 days
}

// NextOptimalTimeFromNow finds the earliest occurrence, at least one hour
// ahead, among the given optimal buckets.
func NextOptimalTimeFromNow(buckets []Bucket, now time.Time) (time.Time, bool) {
	threshold := now.Add(1 * time.Hour)

	var best time.Time
	found := false
	for _, b := range buckets {
		candidate := NextDateForBucket(b.DayOfWeek, b.Hour, now)
		if candidate.Before(threshold) {
			candidate = candidate.AddDate(0, 0, 7)
		}
		if !found || candidate.Before(best) {
			best = candidate
			found = true
		}
	}
	return best, found
}
