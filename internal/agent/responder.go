package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lhdbsbz/inboxagent/internal/config"
	"github.com/lhdbsbz/inboxagent/internal/message"
	"github.com/lhdbsbz/inboxagent/internal/reply"
	"github.com/lhdbsbz/inboxagent/internal/replylog"
)

// Source labels where a message came from.
type Source string

const (
	SourceBridge Source = "bridge"
	SourcePoller Source = "poller"
	SourceAPI    Source = "api"
)

// DeliverFunc posts a generated reply. sent reports whether anything left the
// process; returning (false, nil) means delivery was skipped on purpose.
type DeliverFunc func(ctx context.Context, r reply.GeneratedReply) (sent bool, err error)

// Responder answers inbound messages with the configured rules and settings.
// Messages to the same target are handled one at a time.
type Responder struct {
	log *replylog.Log

	mu   sync.RWMutex
	sink EventSink

	locks   map[string]*sync.Mutex // targetKey → mutex
	locksMu sync.Mutex
}

// NewResponder returns a Responder that records to log (nil disables recording).
func NewResponder(log *replylog.Log) *Responder {
	return &Responder{
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

// SetEventSink installs the sink events are broadcast to.
func (r *Responder) SetEventSink(sink EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

func (r *Responder) eventSink() EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sink
}

// Log returns the reply log for external access.
func (r *Responder) Log() *replylog.Log {
	return r.log
}

// Respond generates a reply for msg from the current config. When deliver is
// non-nil it is called with the reply before the run is recorded; a delivery
// error is recorded and returned alongside the reply.
func (r *Responder) Respond(ctx context.Context, source Source, msg message.InboundMessage, deliver DeliverFunc) (reply.GeneratedReply, error) {
	cfg := config.Get()
	if cfg == nil {
		return reply.GeneratedReply{}, fmt.Errorf("config not loaded")
	}
	if err := ctx.Err(); err != nil {
		return reply.GeneratedReply{}, err
	}

	targetKey := DeriveTargetKey(msg.Platform, msg.ThreadType, msg.TargetID)
	lock := r.getTargetLock(targetKey)
	lock.Lock()
	defer lock.Unlock()

	runID := uuid.NewString()
	emitter := NewEventEmitter(runID, targetKey, source, r.eventSink())

	generated, err := reply.Generate(msg.Text, msg.Context(), cfg.Agent, cfg.Rules)
	if err != nil {
		var cfgErr *reply.ConfigurationError
		if errors.As(err, &cfgErr) {
			configErrors.Inc()
		}
		slog.Error("reply generation failed", "run", runID, "target", targetKey, "source", source, "error", err)
		emitter.Emit(EventTypeError, func(e *Event) { e.Error = err.Error() })
		return reply.GeneratedReply{}, err
	}

	repliesGenerated.WithLabelValues(string(msg.Platform), string(generated.Outcome)).Inc()
	replyConfidence.Observe(generated.Confidence)

	ruleID := ""
	if generated.RuleMatched != nil {
		ruleID = generated.RuleMatched.ID
	}
	slog.Info("reply generated", "run", runID, "target", targetKey, "source", source,
		"outcome", generated.Outcome, "rule", ruleID, "confidence", generated.Confidence)
	emitter.Emit(EventTypeReply, func(e *Event) {
		e.Platform = msg.Platform
		e.ThreadType = msg.ThreadType.OrDefault()
		e.TargetID = msg.TargetID
		e.SenderName = msg.SenderName
		e.Incoming = msg.Text
		e.Message = generated.Message
		e.Confidence = generated.Confidence
		e.RuleID = ruleID
		e.Outcome = generated.Outcome
	})

	var sent bool
	var sendErr error
	if deliver != nil {
		start := time.Now()
		sent, sendErr = deliver(ctx, generated)
		switch {
		case sendErr != nil:
			repliesDelivered.WithLabelValues(string(msg.Platform), "failed").Inc()
			slog.Warn("reply delivery failed", "run", runID, "target", targetKey, "error", sendErr, "duration", time.Since(start))
			emitter.Emit(EventTypeError, func(e *Event) { e.Error = sendErr.Error() })
		case sent:
			repliesDelivered.WithLabelValues(string(msg.Platform), "sent").Inc()
			slog.Info("reply delivered", "run", runID, "target", targetKey, "duration", time.Since(start))
			emitter.Emit(EventTypeSent, func(e *Event) {
				e.Platform = msg.Platform
				e.TargetID = msg.TargetID
				e.Message = generated.Message
			})
		default:
			repliesDelivered.WithLabelValues(string(msg.Platform), "skipped").Inc()
		}
	}

	if r.log != nil {
		entry := replylog.Entry{
			ID:         runID,
			Source:     string(source),
			Platform:   msg.Platform,
			ThreadType: msg.ThreadType.OrDefault(),
			TargetID:   msg.TargetID,
			SenderName: msg.SenderName,
			Incoming:   msg.Text,
			Message:    generated.Message,
			Confidence: generated.Confidence,
			RuleID:     ruleID,
			Outcome:    generated.Outcome,
			Sent:       sent,
		}
		if sendErr != nil {
			entry.SendError = sendErr.Error()
		}
		if err := r.log.Append(entry); err != nil {
			slog.Warn("failed to append reply log", "error", err)
		}
	}

	return generated, sendErr
}

// DeriveTargetKey creates a deterministic key for the conversation a reply goes to.
func DeriveTargetKey(platform reply.Platform, threadType reply.ThreadType, targetID string) string {
	if targetID == "" {
		targetID = "anonymous"
	}
	return fmt.Sprintf("%s:%s:%s", platform, threadType.OrDefault(), targetID)
}

func (r *Responder) getTargetLock(key string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	if m, ok := r.locks[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	r.locks[key] = m
	return m
}
