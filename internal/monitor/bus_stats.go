package monitor

import "github.com/contentops/aicore/internal/bus"

// BusReader is the narrow slice of internal/bus.Bus the monitor depends on,
// satisfied by *bus.Bus directly.
type BusReader interface {
	History(workflowID string) []*bus.Message
}

// WorkflowCommunication is the Message Bus half of spec.md §4.12's
// aggregation, scoped to one workflow run (the bus has no tenant-wide index,
// only a per-workflow history ring, so this complements rather than feeds
// the tenant-scoped dashboard/health surfaces above).
type WorkflowCommunication struct {
	RequestCount         int
	ResponseCount        int
	FeedbackRequestCount int
	TotalMessages        int
}

// WorkflowCommunicationStats summarizes one workflow's communication log.
func WorkflowCommunicationStats(b BusReader, workflowID string) WorkflowCommunication {
	var stats WorkflowCommunication
	for _, msg := range b.History(workflowID) {
		stats.TotalMessages++
		switch {
		case msg.Kind == bus.KindRequest && msg.Metadata["message_type"] == "feedback_request":
			stats.FeedbackRequestCount++
		case msg.Kind == bus.KindRequest:
			stats.RequestCount++
		case msg.Kind == bus.KindResponse:
			stats.ResponseCount++
		}
	}
	return stats
}
