package automation

import "testing"

func TestFullAutonomousAlwaysAutoPublishes(t *testing.T) {
	cfg := Config{Mode: ModeFullAutonomous}
	d := EvaluateRules(cfg, nil)
	if !d.Auto || d.RequiresApproval {
		t.Fatalf("expected {auto:true, approval:false}, got %+v", d)
	}
}

func TestAssistedAlwaysRequiresApproval(t *testing.T) {
	cfg := Config{Mode: ModeAssisted}
	d := EvaluateRules(cfg, nil)
	if d.Auto || !d.RequiresApproval {
		t.Fatalf("expected {auto:false, approval:true}, got %+v", d)
	}
}

func TestApprovalRequiredOverridesHybrid(t *testing.T) {
	cfg := Config{Mode: ModeHybrid, ApprovalRequired: true, Rules: []Rule{
		{Priority: 100, Active: true, Condition: Condition{Attr: AttrPlatform, Op: OpEquals, Value: "x"}, Action: Action{Kind: ActionAutoPublish}},
	}}
	d := EvaluateRules(cfg, map[string]interface{}{"platform": "x"})
	if d.Auto || !d.RequiresApproval {
		t.Fatalf("expected approval_required to force {auto:false, approval:true}, got %+v", d)
	}
}

func TestHybridAppliesHighestPriorityMatch(t *testing.T) {
	cfg := Config{Mode: ModeHybrid, Rules: []Rule{
		{Name: "low", Priority: 10, Active: true, Condition: Condition{Attr: AttrPlatform, Op: OpEquals, Value: "twitter"}, Action: Action{Kind: ActionRequireApproval}},
		{Name: "high", Priority: 50, Active: true, Condition: Condition{Attr: AttrPlatform, Op: OpEquals, Value: "twitter"}, Action: Action{Kind: ActionAutoPublish}},
	}}
	d := EvaluateRules(cfg, map[string]interface{}{"platform": "twitter"})
	if !d.Auto || d.RequiresApproval {
		t.Fatalf("expected highest-priority rule's auto_publish to win, got %+v", d)
	}
	if d.MatchedRule == nil || d.MatchedRule.Name != "high" {
		t.Fatalf("expected matched rule to be 'high', got %+v", d.MatchedRule)
	}
}

func TestHybridDefaultsWhenNoRuleMatches(t *testing.T) {
	cfg := Config{Mode: ModeHybrid, Rules: []Rule{
		{Priority: 10, Active: true, Condition: Condition{Attr: AttrPlatform, Op: OpEquals, Value: "twitter"}, Action: Action{Kind: ActionAutoPublish}},
	}}
	d := EvaluateRules(cfg, map[string]interface{}{"platform": "facebook"})
	if d.Auto || !d.RequiresApproval {
		t.Fatalf("expected default {auto:false, approval:true} on no match, got %+v", d)
	}
}

func TestHybridInactiveRulesAreIgnored(t *testing.T) {
	cfg := Config{Mode: ModeHybrid, Rules: []Rule{
		{Priority: 100, Active: false, Condition: Condition{Attr: AttrPlatform, Op: OpEquals, Value: "twitter"}, Action: Action{Kind: ActionAutoPublish}},
	}}
	d := EvaluateRules(cfg, map[string]interface{}{"platform": "twitter"})
	if d.Auto {
		t.Fatalf("expected inactive rule to be ignored, got %+v", d)
	}
}

func TestAnnotateOnlyActionDoesNotFlipFlags(t *testing.T) {
	cfg := Config{Mode: ModeHybrid, Rules: []Rule{
		{Name: "notify", Priority: 100, Active: true, Condition: Condition{Attr: AttrSentiment, Op: OpEquals, Value: "negative"}, Action: Action{Kind: ActionNotify}},
	}}
	d := EvaluateRules(cfg, map[string]interface{}{"sentiment": "negative"})
	if d.Auto || !d.RequiresApproval {
		t.Fatalf("expected notify to leave default flags unchanged, got %+v", d)
	}
	if d.MatchedRule == nil || d.MatchedRule.Name != "notify" {
		t.Fatalf("expected caller to see the matched rule for reaction, got %+v", d.MatchedRule)
	}
}

func TestOperatorSemantics(t *testing.T) {
	cases := []struct {
		name string
		cond Condition
		ctx  map[string]interface{}
		want bool
	}{
		{"equals match", Condition{Attr: AttrPlatform, Op: OpEquals, Value: "twitter"}, map[string]interface{}{"platform": "twitter"}, true},
		{"equals mismatch", Condition{Attr: AttrPlatform, Op: OpEquals, Value: "twitter"}, map[string]interface{}{"platform": "facebook"}, false},
		{"contains substring", Condition{Attr: AttrContentType, Op: OpContains, Value: "video"}, map[string]interface{}{"content_type": "short video clip"}, true},
		{"gt numeric", Condition{Attr: AttrPerformance, Op: OpGT, Value: 5.0}, map[string]interface{}{"performance": 10.0}, true},
		{"lt numeric", Condition{Attr: AttrPerformance, Op: OpLT, Value: 5.0}, map[string]interface{}{"performance": 10.0}, false},
		{"unknown attr", Condition{Attr: "bogus", Op: OpEquals, Value: "x"}, map[string]interface{}{"platform": "x"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := matches(tc.cond, tc.ctx); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

// Rule priority stability: evaluate_rules must return the same decision
// regardless of insertion order for a fixed rule set and context.
func TestRulePriorityStabilityAcrossInsertionOrder(t *testing.T) {
	rules := []Rule{
		{Name: "a", Priority: 30, Active: true, Condition: Condition{Attr: AttrPlatform, Op: OpEquals, Value: "x"}, Action: Action{Kind: ActionRequireApproval}},
		{Name: "b", Priority: 80, Active: true, Condition: Condition{Attr: AttrPlatform, Op: OpEquals, Value: "x"}, Action: Action{Kind: ActionAutoPublish}},
		{Name: "c", Priority: 50, Active: true, Condition: Condition{Attr: AttrPlatform, Op: OpEquals, Value: "x"}, Action: Action{Kind: ActionSkip}},
	}
	reversed := []Rule{rules[2], rules[1], rules[0]}

	ctx := map[string]interface{}{"platform": "x"}
	d1 := EvaluateRules(Config{Mode: ModeHybrid, Rules: rules}, ctx)
	d2 := EvaluateRules(Config{Mode: ModeHybrid, Rules: reversed}, ctx)

	if d1.Auto != d2.Auto || d1.RequiresApproval != d2.RequiresApproval {
		t.Fatalf("expected insertion-order-independent decision, got %+v vs %+v", d1, d2)
	}
}
