package reply

// Platform is the social channel a message came from.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
)

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	return p == PlatformFacebook || p == PlatformInstagram
}

// Tone is the phrasing style applied after template rendering.
type Tone string

const (
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneShort        Tone = "short"
	ToneDetailed     Tone = "detailed"
)

func (t Tone) Valid() bool {
	switch t {
	case ToneFriendly, ToneProfessional, ToneShort, ToneDetailed:
		return true
	}
	return false
}

// ThreadType tells whether the message is a public comment or a direct message.
// The zero value means direct.
type ThreadType string

const (
	ThreadComment ThreadType = "comment"
	ThreadDirect  ThreadType = "direct"
)

// OrDefault returns ThreadDirect for the empty thread type.
func (t ThreadType) OrDefault() ThreadType {
	if t == "" {
		return ThreadDirect
	}
	return t
}

// AutomationRule maps keywords to a response template on specific platforms.
type AutomationRule struct {
	ID               string     `yaml:"id" json:"id"`
	Label            string     `yaml:"label" json:"label"`
	Keywords         []string   `yaml:"keywords" json:"keywords"`
	ResponseTemplate string     `yaml:"responseTemplate" json:"responseTemplate"`
	Platforms        []Platform `yaml:"platforms" json:"platforms"`
	Priority         float64    `yaml:"priority" json:"priority"`
}

// AppliesTo reports whether the rule is enabled for platform p.
func (r *AutomationRule) AppliesTo(p Platform) bool {
	for _, rp := range r.Platforms {
		if rp == p {
			return true
		}
	}
	return false
}

// AgentSettings is the default behavior supplied with every call.
type AgentSettings struct {
	DefaultResponse    string `yaml:"defaultResponse" json:"defaultResponse"`
	Tone               Tone   `yaml:"tone" json:"tone"`
	EnableSmartReplies bool   `yaml:"enableSmartReplies" json:"enableSmartReplies"`
	Locale             string `yaml:"locale,omitempty" json:"locale,omitempty"` // "en" (default) | "zh"
}

// ReplyContext is the per-message situational data.
type ReplyContext struct {
	Name       string     `json:"name,omitempty"`
	Platform   Platform   `json:"platform"`
	ThreadType ThreadType `json:"threadType,omitempty"`
}

// Outcome is the terminal state reached by Generate.
type Outcome string

const (
	OutcomeMatched       Outcome = "matched"
	OutcomeSmartFallback Outcome = "smart_fallback"
	OutcomePlainFallback Outcome = "plain_fallback"
)

// GeneratedReply is the engine's output. RuleMatched is nil when no rule fired.
type GeneratedReply struct {
	Message     string          `json:"message"`
	Confidence  float64         `json:"confidence"`
	RuleMatched *AutomationRule `json:"ruleMatched,omitempty"`
	Outcome     Outcome         `json:"-"`
}
