package bus

import "testing"

func TestSendToSpecificTypeDeliversOnlyThere(t *testing.T) {
	b := NewBus()
	b.Register("content")
	b.Register("strategy")

	msg, err := New("strategy", "content", KindRequest, map[string]string{"hello": "world"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.Send(msg)

	got := b.Receive("content")
	if len(got) != 1 {
		t.Fatalf("expected 1 message for content, got %d", len(got))
	}
	if len(b.Receive("strategy")) != 0 {
		t.Fatalf("expected no message for strategy (not the recipient)")
	}
}

func TestReceiveDrainsInboxAtomically(t *testing.T) {
	b := NewBus()
	b.Register("content")

	for i := 0; i < 3; i++ {
		msg, _ := New("strategy", "content", KindNotification, "x", nil)
		b.Send(msg)
	}

	if got := b.Receive("content"); len(got) != 3 {
		t.Fatalf("expected 3 queued messages, got %d", len(got))
	}
	if got := b.Receive("content"); len(got) != 0 {
		t.Fatalf("expected inbox cleared after drain, got %d", len(got))
	}
}

func TestBroadcastFansOutExceptSender(t *testing.T) {
	b := NewBus()
	b.Register("content")
	b.Register("strategy")
	b.Register("engagement")

	msg, _ := New("content", "", KindNotification, "broadcast", nil)
	b.Send(msg)

	if len(b.Receive("content")) != 0 {
		t.Fatalf("sender should not receive its own broadcast")
	}
	if len(b.Receive("strategy")) != 1 {
		t.Fatalf("expected strategy to receive the broadcast")
	}
	if len(b.Receive("engagement")) != 1 {
		t.Fatalf("expected engagement to receive the broadcast")
	}
}

func TestHistoryFiltersByWorkflowID(t *testing.T) {
	b := NewBus()
	b.Register("content")

	msg1, _ := New("strategy", "content", KindRequest, "a", map[string]interface{}{"workflow_id": "wf-1"})
	msg2, _ := New("strategy", "content", KindRequest, "b", map[string]interface{}{"workflow_id": "wf-2"})
	b.Send(msg1)
	b.Send(msg2)

	hist := b.History("wf-1")
	if len(hist) != 1 || hist[0].ID != msg1.ID {
		t.Fatalf("expected history filtered to wf-1's single message, got %v", hist)
	}
}

func TestRequestFeedbackSendsFeedbackRequest(t *testing.T) {
	b := NewBus()
	b.Register("content")

	if _, err := b.RequestFeedback("strategy", "content", "please review", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := b.Receive("content")
	if len(got) != 1 || got[0].Kind != KindRequest || got[0].Metadata["message_type"] != "feedback_request" {
		t.Fatalf("expected a feedback_request message, got %v", got)
	}
}
