package reply

import (
	"fmt"
	"slices"
	"strings"

	"github.com/lhdbsbz/inboxagent/internal/prompts"
)

// Generate picks the best rule for incomingText and returns the rendered,
// tone-adjusted reply. It has three outcomes, tried in order:
//
//	matched         a rule scored above zero; its template is rendered
//	smart_fallback  no match and smart replies enabled; a context-aware acknowledgement
//	plain_fallback  no match; settings.DefaultResponse verbatim
//
// The only error is a *ConfigurationError for an invalid rule, reported
// before any matching happens. Generate keeps no state and does not modify
// its arguments, so it may be called concurrently.
func Generate(incomingText string, rc ReplyContext, settings AgentSettings, rules []AutomationRule) (GeneratedReply, error) {
	if err := ValidateRules(rules); err != nil {
		return GeneratedReply{}, err
	}
	locale := settings.Locale

	if m, ok := FindMatch(incomingText, rc.Platform, rules); ok {
		rendered := Render(m.Rule.ResponseTemplate, rc, locale)
		return GeneratedReply{
			Message:     AdjustTone(rendered, settings.Tone, locale),
			Confidence:  EstimateConfidence(OutcomeMatched, m.Score),
			RuleMatched: cloneRule(m.Rule),
			Outcome:     OutcomeMatched,
		}, nil
	}

	if settings.EnableSmartReplies {
		return GeneratedReply{
			Message:    AdjustTone(SmartFallback(incomingText, rc, locale), settings.Tone, locale),
			Confidence: EstimateConfidence(OutcomeSmartFallback, 0),
			Outcome:    OutcomeSmartFallback,
		}, nil
	}

	return GeneratedReply{
		Message:    AdjustTone(settings.DefaultResponse, settings.Tone, locale),
		Confidence: EstimateConfidence(OutcomePlainFallback, 0),
		Outcome:    OutcomePlainFallback,
	}, nil
}

// SmartFallback builds a generic acknowledgement that greets the sender the
// same way Render does and adapts to the thread type and to questions.
func SmartFallback(incomingText string, rc ReplyContext, locale string) string {
	p := prompts.Get(locale)
	question := strings.ContainsAny(incomingText, p.QuestionMarks)

	var tmpl string
	switch {
	case rc.ThreadType.OrDefault() == ThreadComment && question:
		tmpl = p.SmartFallback.CommentQuestion
	case rc.ThreadType.OrDefault() == ThreadComment:
		tmpl = p.SmartFallback.Comment
	case question:
		tmpl = p.SmartFallback.DirectQuestion
	default:
		tmpl = p.SmartFallback.Direct
	}
	return fmt.Sprintf(tmpl, displayName(rc, locale))
}

func cloneRule(r *AutomationRule) *AutomationRule {
	c := *r
	c.Keywords = slices.Clone(r.Keywords)
	c.Platforms = slices.Clone(r.Platforms)
	return &c
}
