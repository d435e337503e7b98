package scheduler

import "testing"

func TestEvergreenPriorityFormula(t *testing.T) {
	cases := []struct {
		name string
		post EvergreenPost
		want int
	}{
		{"never republished, freshly stale", EvergreenPost{DaysSinceLastPublish: 60, PublishCount: 0}, 100},
		{"published yesterday, never reused", EvergreenPost{DaysSinceLastPublish: 1, PublishCount: 0}, 51},
		{"published today, reused 10 times", EvergreenPost{DaysSinceLastPublish: 0, PublishCount: 10}, 20},
		{"reused past the frequency cap", EvergreenPost{DaysSinceLastPublish: 60, PublishCount: 20}, 70},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EvergreenPriority(tc.post); got != tc.want {
				t.Fatalf("expected priority %d, got %d", tc.want, got)
			}
		})
	}
}

func TestEvergreenPriorityLabelBuckets(t *testing.T) {
	cases := []struct {
		priority int
		want     string
	}{
		{70, "high"},
		{100, "high"},
		{69, "medium"},
		{40, "medium"},
		{39, "low"},
		{0, "low"},
	}
	for _, tc := range cases {
		if got := EvergreenPriorityLabel(tc.priority); got != tc.want {
			t.Fatalf("priority %d: expected %q, got %q", tc.priority, tc.want, got)
		}
	}
}

func TestSelectTopEvergreenRanksByPriorityDescending(t *testing.T) {
	posts := []EvergreenPost{
		{ID: "a", DaysSinceLastPublish: 60, PublishCount: 0},  // 100
		{ID: "b", DaysSinceLastPublish: 0, PublishCount: 10},  // 20
		{ID: "c", DaysSinceLastPublish: 30, PublishCount: 2},  // 100-20-6=74
	}

	ranked := SelectTopEvergreen(posts, 2)
	if len(ranked) != 2 {
		t.Fatalf("expected top 2, got %d", len(ranked))
	}
	if ranked[0].Post.ID != "a" || ranked[1].Post.ID != "c" {
		t.Fatalf("expected order [a,c], got [%s,%s]", ranked[0].Post.ID, ranked[1].Post.ID)
	}
	if ranked[0].Label != "high" {
		t.Fatalf("expected a's label high, got %q", ranked[0].Label)
	}
}
