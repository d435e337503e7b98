package monitor

import (
	"testing"

	"github.com/contentops/aicore/internal/bus"
)

func TestWorkflowCommunicationStatsClassifiesMessageKinds(t *testing.T) {
	b := bus.NewBus()
	b.Register("content")
	b.Register("strategy")

	meta := map[string]interface{}{"workflow_id": "wf-1"}
	req, _ := bus.New("orchestrator", "content", bus.KindRequest, "go", meta)
	b.Send(req)
	resp, _ := bus.New("content", "", bus.KindResponse, "done", meta)
	b.Send(resp)
	_, _ = b.RequestFeedback("content", "strategy", "done", meta)

	stats := WorkflowCommunicationStats(b, "wf-1")
	if stats.TotalMessages != 3 {
		t.Fatalf("expected 3 messages, got %d", stats.TotalMessages)
	}
	if stats.RequestCount != 1 || stats.ResponseCount != 1 || stats.FeedbackRequestCount != 1 {
		t.Fatalf("expected 1 of each kind, got %+v", stats)
	}
}
