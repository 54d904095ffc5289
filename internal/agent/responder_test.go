package agent

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lhdbsbz/inboxagent/internal/config"
	"github.com/lhdbsbz/inboxagent/internal/message"
	"github.com/lhdbsbz/inboxagent/internal/reply"
	"github.com/lhdbsbz/inboxagent/internal/replylog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) sink(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestResponder(t *testing.T) (*Responder, *replylog.Log, *eventRecorder) {
	t.Helper()
	config.Set(config.DefaultConfig())
	log := replylog.New(filepath.Join(t.TempDir(), "replies.jsonl"))
	rec := &eventRecorder{}
	r := NewResponder(log)
	r.SetEventSink(rec.sink)
	return r, log, rec
}

var priceQuestion = message.InboundMessage{
	Platform:   reply.PlatformFacebook,
	ThreadType: reply.ThreadDirect,
	TargetID:   "psid-1",
	SenderName: "Ana",
	Text:       "What's the price?",
	MessageID:  "m_1",
}

func TestRespondRecordsAndEmits(t *testing.T) {
	assert := assert.New(t)
	r, log, rec := newTestResponder(t)

	got, err := r.Respond(context.Background(), SourceAPI, priceQuestion, nil)
	require.NoError(t, err)
	assert.Equal("Thanks for reaching out Ana! Our team will send detailed pricing within the hour.", got.Message)
	assert.InDelta(0.225, got.Confidence, 1e-9)
	require.NotNil(t, got.RuleMatched)
	assert.Equal("rule-sales", got.RuleMatched.ID)

	assert.Equal([]string{EventTypeReply}, rec.types())
	evt := rec.events[0]
	assert.Equal(SourceAPI, evt.Source)
	assert.Equal("facebook:direct:psid-1", evt.TargetKey)
	assert.Equal(1, evt.Seq)
	assert.Equal(reply.OutcomeMatched, evt.Outcome)

	entries, err := log.Recent(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(evt.RunID, entries[0].ID)
	assert.Equal("rule-sales", entries[0].RuleID)
	assert.Equal("api", entries[0].Source)
	assert.False(entries[0].Sent)
}

func TestRespondDeliver(t *testing.T) {
	assert := assert.New(t)
	r, log, rec := newTestResponder(t)

	var delivered string
	_, err := r.Respond(context.Background(), SourcePoller, priceQuestion, func(ctx context.Context, g reply.GeneratedReply) (bool, error) {
		delivered = g.Message
		return true, nil
	})
	require.NoError(t, err)
	assert.Contains(delivered, "detailed pricing")
	assert.Equal([]string{EventTypeReply, EventTypeSent}, rec.types())

	sendErr := errors.New("graph unavailable")
	got, err := r.Respond(context.Background(), SourcePoller, priceQuestion, func(ctx context.Context, g reply.GeneratedReply) (bool, error) {
		return false, sendErr
	})
	assert.ErrorIs(err, sendErr)
	assert.NotEmpty(got.Message)

	entries, err := log.Recent(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(entries[0].Sent)
	assert.False(entries[1].Sent)
	assert.Equal("graph unavailable", entries[1].SendError)
}

func TestRespondConfigurationError(t *testing.T) {
	r, log, rec := newTestResponder(t)
	cfg := config.DefaultConfig()
	cfg.Rules[1].Priority = 1.5
	config.Set(cfg)

	_, err := r.Respond(context.Background(), SourceBridge, priceQuestion, nil)
	var cfgErr *reply.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "rule-support", cfgErr.RuleID)
	assert.Equal(t, []string{EventTypeError}, rec.types())

	entries, err := log.Recent(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRespondCanceledContext(t *testing.T) {
	r, _, rec := newTestResponder(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Respond(ctx, SourceAPI, priceQuestion, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.types())
}

func TestDeriveTargetKey(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("instagram:comment:c1", DeriveTargetKey(reply.PlatformInstagram, reply.ThreadComment, "c1"))
	assert.Equal("facebook:direct:anonymous", DeriveTargetKey(reply.PlatformFacebook, "", ""))
}
