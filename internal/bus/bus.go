// Package bus implements C7: the in-process Agent Message bus, generalizing
// agent/message.go's envelope into the Agent Message shape spec.md §3
// defines — kind, optional to_type (absent ⇒ broadcast), and a metadata bag
// carrying workflow_id/task_id/priority — with per-recipient-type FIFO
// inboxes owned exclusively by the bus until a consumer drains them.
package bus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the Agent Message's `kind` field.
type Kind string

const (
	KindRequest      Kind = "request"
	KindResponse     Kind = "response"
	KindNotification Kind = "notification"
	KindFeedback     Kind = "feedback"
)

// Message is the bus's envelope. ToType is empty for a broadcast.
type Message struct {
	ID        string
	FromType  string
	ToType    string
	Kind      Kind
	Content   string
	Metadata  map[string]interface{}
	Timestamp time.Time
}

// New builds a message with a fresh ID and timestamp, JSON-encoding content.
func New(fromType, toType string, kind Kind, content interface{}, metadata map[string]interface{}) (*Message, error) {
	payload, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("bus: marshal content: %w", err)
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return &Message{
		ID:        uuid.New().String(),
		FromType:  fromType,
		ToType:    toType,
		Kind:      kind,
		Content:   string(payload),
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}, nil
}

// UnmarshalContent deserializes the message content into v.
func (m *Message) UnmarshalContent(v interface{}) error {
	return json.Unmarshal([]byte(m.Content), v)
}

const historyCap = 1000

// Bus owns pending delivery exclusively: a recipient type's inbox is FIFO
// and is cleared atomically on Receive. Broadcasts fan out to every
// registered recipient type except the sender.
type Bus struct {
	mu      sync.Mutex
	inboxes map[string][]*Message
	types   map[string]bool
	history []*Message
}

// NewBus builds an empty bus.
func NewBus() *Bus {
	return &Bus{
		inboxes: make(map[string][]*Message),
		types:   make(map[string]bool),
	}
}

// Register declares a recipient type so broadcasts know to deliver to it.
func (b *Bus) Register(agentType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types[agentType] = true
	if _, ok := b.inboxes[agentType]; !ok {
		b.inboxes[agentType] = nil
	}
}

// Send delivers a message to its ToType's inbox, or fans out to every other
// registered type if ToType is empty (broadcast).
func (b *Bus) Send(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recordHistoryLocked(msg)

	if msg.ToType != "" {
		b.inboxes[msg.ToType] = append(b.inboxes[msg.ToType], msg)
		return
	}

	for t := range b.types {
		if t == msg.FromType {
			continue
		}
		clone := *msg
		b.inboxes[t] = append(b.inboxes[t], &clone)
	}
}

// Receive atomically drains and returns a recipient type's pending inbox.
func (b *Bus) Receive(agentType string) []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := b.inboxes[agentType]
	b.inboxes[agentType] = nil
	return msgs
}

// RequestFeedback is a convenience wrapper posting a request of kind
// feedback_request; callers that need a reply read Receive(fromType) or
// watch the workflow's History.
func (b *Bus) RequestFeedback(fromType, toType string, content interface{}, metadata map[string]interface{}) (*Message, error) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["message_type"] = "feedback_request"
	msg, err := New(fromType, toType, KindRequest, content, metadata)
	if err != nil {
		return nil, err
	}
	b.Send(msg)
	return msg, nil
}

// History returns the most recent messages for a workflow, oldest first,
// across a process-wide ring capped at historyCap entries.
func (b *Bus) History(workflowID string) []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*Message
	for _, m := range b.history {
		if wid, _ := m.Metadata["workflow_id"].(string); wid == workflowID {
			out = append(out, m)
		}
	}
	return out
}

// recordHistoryLocked appends to the workflow-indexed history only when the
// message carries a workflow_id (spec.md §4.7).
func (b *Bus) recordHistoryLocked(msg *Message) {
	if _, ok := msg.Metadata["workflow_id"]; !ok {
		return
	}
	b.history = append(b.history, msg)
	if len(b.history) > historyCap {
		b.history = b.history[len(b.history)-historyCap:]
	}
}
