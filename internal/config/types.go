package config

import (
	"slices"
	"time"

	"github.com/lhdbsbz/inboxagent/internal/reply"
)

type Config struct {
	Gateway GatewayConfig          `yaml:"gateway" json:"gateway"`
	Agent   reply.AgentSettings    `yaml:"agent" json:"agent"`
	Rules   []reply.AutomationRule `yaml:"rules" json:"rules"`
	Meta    MetaConfig             `yaml:"meta" json:"meta"`
	Poller  PollerConfig           `yaml:"poller" json:"poller"`
}

type GatewayConfig struct {
	Port int        `yaml:"port" json:"port"`
	Auth AuthConfig `yaml:"auth" json:"auth"`
}

type AuthConfig struct {
	Token string `yaml:"token" json:"token"`
}

// MetaConfig configures the Graph API client used by the poller and the /api/meta routes.
type MetaConfig struct {
	GraphURL            string        `yaml:"graphURL" json:"graphURL"`
	GraphVersion        string        `yaml:"graphVersion" json:"graphVersion"`
	AccessToken         string        `yaml:"accessToken" json:"accessToken"`
	PageID              string        `yaml:"pageId" json:"pageId"`
	InstagramBusinessID string        `yaml:"instagramBusinessId" json:"instagramBusinessId"`
	RequestsPerSecond   float64       `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries          int           `yaml:"maxRetries" json:"maxRetries"`
}

// PollerConfig controls the scheduled inbox/comment sweep.
type PollerConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	Schedule      string        `yaml:"schedule" json:"schedule"` // cron expression or @every
	Limit         int           `yaml:"limit" json:"limit"`       // items per fetch, 1..50
	AutoSend      bool          `yaml:"autoSend" json:"autoSend"`
	MinConfidence float64       `yaml:"minConfidence" json:"minConfidence"`
	DedupTTL      time.Duration `yaml:"dedupTTL" json:"dedupTTL"`
	DedupSize     int           `yaml:"dedupSize" json:"dedupSize"`
}

// Clone returns a deep copy so API handlers can edit rules without touching
// the live config.
func (c *Config) Clone() *Config {
	out := *c
	out.Rules = make([]reply.AutomationRule, len(c.Rules))
	for i, r := range c.Rules {
		r.Keywords = slices.Clone(r.Keywords)
		r.Platforms = slices.Clone(r.Platforms)
		out.Rules[i] = r
	}
	return &out
}

// RuleIndex returns the position of the rule with id, or -1.
func (c *Config) RuleIndex(id string) int {
	for i := range c.Rules {
		if c.Rules[i].ID == id {
			return i
		}
	}
	return -1
}

func DefaultConfig() *Config {
	cfg := &Config{
		Gateway: GatewayConfig{
			Port: 19800,
		},
		Agent: reply.AgentSettings{
			DefaultResponse:    "Thanks for reaching out! We'll review this and get back to you shortly.",
			Tone:               reply.ToneFriendly,
			EnableSmartReplies: true,
			Locale:             "en",
		},
		Rules: []reply.AutomationRule{
			{
				ID:               "rule-sales",
				Label:            "Sales Inquiry",
				Keywords:         []string{"price", "cost", "quote", "rate"},
				ResponseTemplate: "Thanks for reaching out {{name}}! Our team will send detailed pricing within the hour.",
				Platforms:        []reply.Platform{reply.PlatformFacebook, reply.PlatformInstagram},
				Priority:         0.9,
			},
			{
				ID:               "rule-support",
				Label:            "Support Request",
				Keywords:         []string{"issue", "problem", "broken", "help", "support"},
				ResponseTemplate: "Sorry to hear you're having trouble {{name}}. Could you DM us your email so we can follow up privately?",
				Platforms:        []reply.Platform{reply.PlatformFacebook},
				Priority:         0.8,
			},
			{
				ID:               "rule-compliment",
				Label:            "Positive Feedback",
				Keywords:         []string{"love", "awesome", "great", "amazing", "thank"},
				ResponseTemplate: "We appreciate the love {{name}}! Your support keeps us building great things.",
				Platforms:        []reply.Platform{reply.PlatformInstagram},
				Priority:         0.6,
			},
		},
	}
	applyLoadDefaults(cfg)
	return cfg
}
