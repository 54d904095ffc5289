package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lhdbsbz/inboxagent/internal/agent"
	"github.com/lhdbsbz/inboxagent/internal/config"
	"github.com/lhdbsbz/inboxagent/internal/message"
	"github.com/lhdbsbz/inboxagent/internal/meta"
	"github.com/lhdbsbz/inboxagent/internal/reply"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type post struct {
	Platform  reply.Platform
	TargetID  string
	Message   string
	IsComment bool
}

type fakeGraph struct {
	mu       sync.Mutex
	inbox    []meta.Message
	comments []meta.MediaComment
	inboxErr error
	postErr  error
	posts    []post
}

func (g *fakeGraph) FetchFacebookInbox(ctx context.Context, accessToken, pageID string, limit int) ([]meta.Message, error) {
	if g.inboxErr != nil {
		return nil, g.inboxErr
	}
	return g.inbox, nil
}

func (g *fakeGraph) FetchInstagramComments(ctx context.Context, accessToken, igBusinessID string, limit int) ([]meta.MediaComment, error) {
	return g.comments, nil
}

func (g *fakeGraph) PostReply(ctx context.Context, accessToken string, platform reply.Platform, targetID, message string, isComment bool) (meta.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.postErr != nil {
		return meta.SendResult{}, g.postErr
	}
	g.posts = append(g.posts, post{platform, targetID, message, isComment})
	return meta.SendResult{ID: "sent-1"}, nil
}

func newGraph() *fakeGraph {
	return &fakeGraph{
		inbox: []meta.Message{
			{ID: "m_1", ConversationID: "t_1", FromID: "u1", FromName: "Ana", Text: "What's the price?"},
			{ID: "m_2", ConversationID: "t_2", FromID: "page-1", FromName: "Shop", Text: "Thanks!"},
		},
		comments: []meta.MediaComment{
			{ID: "c1", MediaID: "media1", Username: "ben", Text: "love this!"},
			{ID: "c2", MediaID: "media1", Username: "cy", Text: "  "},
		},
	}
}

func setConfig(t *testing.T, mutate func(*config.Config)) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Meta.AccessToken = "tok"
	cfg.Meta.PageID = "page-1"
	cfg.Meta.InstagramBusinessID = "ig-1"
	cfg.Poller.AutoSend = true
	cfg.Poller.MinConfidence = 0.2
	if mutate != nil {
		mutate(cfg)
	}
	config.Set(cfg)
}

func newPoller(g Graph) *Poller {
	return New(g, agent.NewResponder(nil), message.NewDedup(100, time.Hour))
}

func TestRunOnce(t *testing.T) {
	assert := assert.New(t)
	setConfig(t, nil)
	g := newGraph()
	p := newPoller(g)

	sum, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(4, sum.Fetched)
	// page-authored message and blank comment
	assert.Equal(2, sum.Skipped)
	assert.Equal(2, sum.Generated)
	// the comment scores 0.12, under minConfidence
	assert.Equal(1, sum.Sent)
	assert.Zero(sum.Failed)

	require.Len(t, g.posts, 1)
	assert.Equal(post{
		Platform: reply.PlatformFacebook,
		TargetID: "u1",
		Message:  "Thanks for reaching out Ana! Our team will send detailed pricing within the hour.",
	}, g.posts[0])

	last, ok := p.Last()
	require.True(t, ok)
	assert.Equal(sum.Sent, last.Sent)

	sum, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(4, sum.Skipped)
	assert.Zero(sum.Generated)
	assert.Len(g.posts, 1)
}

func TestRunOnceWithoutAutoSend(t *testing.T) {
	setConfig(t, func(c *config.Config) { c.Poller.AutoSend = false })
	g := newGraph()

	sum, err := newPoller(g).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Generated)
	assert.Zero(t, sum.Sent)
	assert.Empty(t, g.posts)
}

func TestRunOnceRetriesTemporarySendFailures(t *testing.T) {
	assert := assert.New(t)
	setConfig(t, func(c *config.Config) { c.Meta.InstagramBusinessID = "" })
	g := newGraph()
	g.postErr = &meta.APIError{Status: 503, Message: "unavailable"}
	p := newPoller(g)

	sum, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(1, sum.Failed)
	assert.Len(sum.Errors, 1)

	g.postErr = nil
	sum, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(1, sum.Sent)
}

func TestRunOnceKeepsPermanentSendFailures(t *testing.T) {
	setConfig(t, func(c *config.Config) { c.Meta.InstagramBusinessID = "" })
	g := newGraph()
	g.postErr = &meta.APIError{Status: 400, Message: "invalid recipient", Code: 100}
	p := newPoller(g)

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	g.postErr = nil
	sum, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Sent)
}

func TestRunOncePartialFetchFailure(t *testing.T) {
	setConfig(t, nil)
	g := newGraph()
	g.inboxErr = errors.New("boom")

	sum, err := newPoller(g).RunOnce(context.Background())
	assert.ErrorContains(t, err, "facebook inbox")
	assert.Equal(t, 2, sum.Fetched)
	assert.Equal(t, 1, sum.Generated)
}

func TestRunOnceNotConfigured(t *testing.T) {
	setConfig(t, func(c *config.Config) { c.Meta.AccessToken = "" })
	_, err := newPoller(newGraph()).RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)

	setConfig(t, func(c *config.Config) {
		c.Meta.PageID = ""
		c.Meta.InstagramBusinessID = ""
	})
	_, err = newPoller(newGraph()).RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRescheduleAndStop(t *testing.T) {
	assert := assert.New(t)
	p := newPoller(newGraph())
	// the dedup cache runs its own janitor goroutine
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := config.DefaultConfig()
	cfg.Poller.Enabled = true
	require.NoError(t, p.Start(cfg))
	assert.True(p.Scheduled())

	cfg.Poller.Schedule = "*/5 * * * *"
	require.NoError(t, p.Reschedule(cfg))
	assert.True(p.Scheduled())

	cfg.Poller.Schedule = "every now and then"
	assert.Error(p.Reschedule(cfg))

	cfg.Poller.Enabled = false
	require.NoError(t, p.Reschedule(cfg))
	assert.False(p.Scheduled())

	p.Stop()
}

func TestValidateSchedule(t *testing.T) {
	assert := assert.New(t)
	assert.NoError(ValidateSchedule("@every 1m"))
	assert.NoError(ValidateSchedule("0 */2 * * *"))
	assert.NoError(ValidateSchedule("30 0 */2 * * *"))
	assert.Error(ValidateSchedule(""))
}
