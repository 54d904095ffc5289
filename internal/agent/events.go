package agent

import (
	"time"

	"github.com/lhdbsbz/inboxagent/internal/reply"
)

// EventType constants
const (
	EventTypeReply = "reply"
	EventTypeSent  = "sent"
	EventTypeError = "error"
)

// Event is a structured event emitted for each handled message.
// Gateway broadcasts these to connected clients.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"runId"`
	TargetKey string    `json:"targetKey"`
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`

	// For reply / sent
	Platform   reply.Platform   `json:"platform,omitempty"`
	ThreadType reply.ThreadType `json:"threadType,omitempty"`
	TargetID   string           `json:"targetId,omitempty"`
	SenderName string           `json:"senderName,omitempty"`
	Incoming   string           `json:"incoming,omitempty"`
	Message    string           `json:"message,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
	RuleID     string           `json:"ruleId,omitempty"`
	Outcome    reply.Outcome    `json:"outcome,omitempty"`

	// For error
	Error string `json:"error,omitempty"`
}

// EventSink receives events from the responder.
type EventSink func(Event)

// EventEmitter provides sequential event emission for a single run.
type EventEmitter struct {
	runID     string
	targetKey string
	source    Source
	sink      EventSink
	seq       int
}

func NewEventEmitter(runID, targetKey string, source Source, sink EventSink) *EventEmitter {
	return &EventEmitter{
		runID:     runID,
		targetKey: targetKey,
		source:    source,
		sink:      sink,
	}
}

func (e *EventEmitter) Emit(eventType string, mutators ...func(*Event)) {
	if e.sink == nil {
		return
	}
	e.seq++
	evt := Event{
		Type:      eventType,
		RunID:     e.runID,
		TargetKey: e.targetKey,
		Seq:       e.seq,
		Timestamp: time.Now(),
		Source:    e.source,
	}
	for _, m := range mutators {
		m(&evt)
	}
	e.sink(evt)
}
