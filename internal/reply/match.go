package reply

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Match is the winning rule for an inbound message.
type Match struct {
	Rule            *AutomationRule // points into the caller's rule slice
	Index           int
	Score           float64
	MatchedKeywords int
	TotalKeywords   int
}

// normalize composes, case-folds and trims s. A Caser carries state, so it
// has to be created per call to stay safe under concurrent use.
func normalize(s string) string {
	fold := cases.Fold()
	return strings.TrimSpace(fold.String(norm.NFC.String(s)))
}

// scoreRule returns (matched/total)*priority over the distinct non-blank
// keywords of rule. normText must already be normalized.
func scoreRule(normText string, rule *AutomationRule) (score float64, matched, total int) {
	seen := make(map[string]struct{}, len(rule.Keywords))
	for _, kw := range rule.Keywords {
		k := normalize(kw)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		total++
		if strings.Contains(normText, k) {
			matched++
		}
	}
	if total == 0 || matched == 0 {
		return 0, matched, total
	}
	return float64(matched) / float64(total) * rule.Priority, matched, total
}

// FindMatch scores every rule enabled for platform and returns the one with
// the greatest positive score. Ties go to the higher priority, then to the
// rule declared first. ok is false when no rule scores above zero.
func FindMatch(text string, platform Platform, rules []AutomationRule) (m Match, ok bool) {
	normText := normalize(text)
	for i := range rules {
		r := &rules[i]
		if !r.AppliesTo(platform) {
			continue
		}
		score, matched, total := scoreRule(normText, r)
		if score <= 0 {
			continue
		}
		if ok && !outranks(score, r.Priority, m) {
			continue
		}
		m = Match{Rule: r, Index: i, Score: score, MatchedKeywords: matched, TotalKeywords: total}
		ok = true
	}
	return m, ok
}

// outranks compares a later-declared candidate against the current best, so
// full equality keeps the earlier rule.
func outranks(score, priority float64, best Match) bool {
	if score != best.Score {
		return score > best.Score
	}
	return priority > best.Rule.Priority
}
