// Package poller sweeps the Facebook Page inbox and Instagram comments on a
// cron schedule and answers what it has not seen yet.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lhdbsbz/inboxagent/internal/agent"
	"github.com/lhdbsbz/inboxagent/internal/config"
	"github.com/lhdbsbz/inboxagent/internal/message"
	"github.com/lhdbsbz/inboxagent/internal/meta"
	"github.com/lhdbsbz/inboxagent/internal/reply"
	"github.com/robfig/cron/v3"
)

// ErrNotConfigured is returned by RunOnce when there is no access token or
// neither a page id nor an Instagram business id.
var ErrNotConfigured = errors.New("poller: meta access token and page or instagram id are required")

// Graph is the subset of the meta client the poller uses.
type Graph interface {
	FetchFacebookInbox(ctx context.Context, accessToken, pageID string, limit int) ([]meta.Message, error)
	FetchInstagramComments(ctx context.Context, accessToken, igBusinessID string, limit int) ([]meta.MediaComment, error)
	PostReply(ctx context.Context, accessToken string, platform reply.Platform, targetID, message string, isComment bool) (meta.SendResult, error)
}

// Responder generates and records replies.
type Responder interface {
	Respond(ctx context.Context, source agent.Source, msg message.InboundMessage, deliver agent.DeliverFunc) (reply.GeneratedReply, error)
}

// Summary tracks one sweep.
type Summary struct {
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
	Fetched   int       `json:"fetched"`
	Skipped   int       `json:"skipped"`
	Generated int       `json:"generated"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Errors    []string  `json:"errors,omitempty"`
}

const sweepTimeout = 5 * time.Minute

var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Poller runs sweeps on the configured schedule. One sweep runs at a time.
type Poller struct {
	graph     Graph
	responder Responder
	dedup     *message.Dedup

	mu        sync.Mutex
	cron      *cron.Cron
	entryID   cron.EntryID
	scheduled bool
	schedule  string
	last      *Summary

	runMu sync.Mutex
}

func New(graph Graph, responder Responder, dedup *message.Dedup) *Poller {
	return &Poller{
		graph:     graph,
		responder: responder,
		dedup:     dedup,
		cron:      cron.New(cron.WithParser(scheduleParser)),
	}
}

// ValidateSchedule reports whether schedule is a cron expression (5 or 6
// fields) or an @descriptor the poller accepts.
func ValidateSchedule(schedule string) error {
	if _, err := scheduleParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid poller schedule %q: %w", schedule, err)
	}
	return nil
}

// Start schedules sweeps per cfg and begins the cron scheduler.
func (p *Poller) Start(cfg *config.Config) error {
	if err := p.Reschedule(cfg); err != nil {
		return err
	}
	p.cron.Start()
	slog.Info("poller started", "enabled", cfg.Poller.Enabled, "schedule", cfg.Poller.Schedule)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
}

// Reschedule replaces the sweep entry to match cfg. A disabled poller keeps
// no entry.
func (p *Poller) Reschedule(cfg *config.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !cfg.Poller.Enabled {
		if p.scheduled {
			p.cron.Remove(p.entryID)
			p.scheduled = false
			slog.Info("poller disabled")
		}
		p.schedule = ""
		return nil
	}
	if p.scheduled && p.schedule == cfg.Poller.Schedule {
		return nil
	}
	if err := ValidateSchedule(cfg.Poller.Schedule); err != nil {
		return err
	}
	if p.scheduled {
		p.cron.Remove(p.entryID)
		p.scheduled = false
	}
	entryID, err := p.cron.AddFunc(cfg.Poller.Schedule, p.tick)
	if err != nil {
		return fmt.Errorf("schedule poller: %w", err)
	}
	p.entryID = entryID
	p.scheduled = true
	p.schedule = cfg.Poller.Schedule
	slog.Info("poller scheduled", "schedule", cfg.Poller.Schedule)
	return nil
}

// Scheduled reports whether a sweep entry is active.
func (p *Poller) Scheduled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scheduled
}

// Last returns the summary of the most recent sweep, if any.
func (p *Poller) Last() (Summary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Summary{}, false
	}
	return *p.last, true
}

func (p *Poller) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	if _, err := p.RunOnce(ctx); err != nil && !errors.Is(err, ErrNotConfigured) {
		slog.Warn("poller sweep failed", "error", err)
	}
}

// RunOnce fetches, answers and (with autoSend) posts replies for new items.
// Fetch errors for one platform do not stop the other; they are joined into
// the returned error alongside a populated Summary.
func (p *Poller) RunOnce(ctx context.Context) (Summary, error) {
	cfg := config.Get()
	if cfg == nil {
		return Summary{}, fmt.Errorf("config not loaded")
	}
	mc := cfg.Meta
	if mc.AccessToken == "" || (mc.PageID == "" && mc.InstagramBusinessID == "") {
		return Summary{}, ErrNotConfigured
	}

	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := time.Now()
	sum := Summary{StartedAt: start}
	var errs []error

	var inbound []message.InboundMessage
	if mc.PageID != "" {
		msgs, err := p.graph.FetchFacebookInbox(ctx, mc.AccessToken, mc.PageID, cfg.Poller.Limit)
		if err != nil {
			errs = append(errs, fmt.Errorf("facebook inbox: %w", err))
		}
		sum.Fetched += len(msgs)
		for _, m := range msgs {
			// the page's own answer is the latest message of an already handled thread
			if m.FromID == mc.PageID {
				sum.Skipped++
				continue
			}
			inbound = append(inbound, message.InboundMessage{
				Platform:   reply.PlatformFacebook,
				ThreadType: reply.ThreadDirect,
				TargetID:   m.FromID,
				SenderID:   m.FromID,
				SenderName: m.FromName,
				Text:       m.Text,
				MessageID:  m.ID,
			})
		}
	}
	if mc.InstagramBusinessID != "" {
		comments, err := p.graph.FetchInstagramComments(ctx, mc.AccessToken, mc.InstagramBusinessID, cfg.Poller.Limit)
		if err != nil {
			errs = append(errs, fmt.Errorf("instagram comments: %w", err))
		}
		sum.Fetched += len(comments)
		for _, c := range comments {
			inbound = append(inbound, message.InboundMessage{
				Platform:   reply.PlatformInstagram,
				ThreadType: reply.ThreadComment,
				TargetID:   c.ID,
				SenderName: c.Username,
				Text:       c.Text,
				MessageID:  c.ID,
			})
		}
	}

	for _, msg := range inbound {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if strings.TrimSpace(msg.Text) == "" || p.dedup.IsDuplicate(msg.DedupKey()) {
			sum.Skipped++
			continue
		}
		p.answer(ctx, cfg, msg, &sum)
	}

	sum.Duration = time.Since(start).String()
	for _, err := range errs {
		sum.Errors = append(sum.Errors, err.Error())
	}
	p.mu.Lock()
	last := sum
	p.last = &last
	p.mu.Unlock()

	slog.Info("poller sweep done", "fetched", sum.Fetched, "skipped", sum.Skipped,
		"generated", sum.Generated, "sent", sum.Sent, "failed", sum.Failed, "duration", sum.Duration)
	return sum, errors.Join(errs...)
}

func (p *Poller) answer(ctx context.Context, cfg *config.Config, msg message.InboundMessage, sum *Summary) {
	var sent bool
	generated, err := p.responder.Respond(ctx, agent.SourcePoller, msg, func(ctx context.Context, g reply.GeneratedReply) (bool, error) {
		if !cfg.Poller.AutoSend || g.Confidence < cfg.Poller.MinConfidence {
			return false, nil
		}
		isComment := msg.ThreadType == reply.ThreadComment
		if _, err := p.graph.PostReply(ctx, cfg.Meta.AccessToken, msg.Platform, msg.TargetID, g.Message, isComment); err != nil {
			return false, err
		}
		sent = true
		return true, nil
	})
	if generated.Message != "" {
		sum.Generated++
	}
	if sent {
		sum.Sent++
	}
	if err == nil {
		return
	}
	sum.Failed++
	sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", msg.DedupKey(), err))

	// let the next sweep retry unless Graph rejected the reply for good
	var apiErr *meta.APIError
	if !errors.As(err, &apiErr) || apiErr.Temporary() {
		p.dedup.Forget(msg.DedupKey())
	}
}
