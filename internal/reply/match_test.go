package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesRule() AutomationRule {
	return AutomationRule{
		ID:               "rule-sales",
		Label:            "Sales Inquiry",
		Keywords:         []string{"price", "cost"},
		ResponseTemplate: "Hi {{name}}, pricing incoming!",
		Platforms:        []Platform{PlatformFacebook},
		Priority:         0.9,
	}
}

func TestFindMatchScore(t *testing.T) {
	rules := []AutomationRule{salesRule()}

	m, ok := FindMatch("What's the price?", PlatformFacebook, rules)
	require.True(t, ok)
	assert.Equal(t, "rule-sales", m.Rule.ID)
	assert.Equal(t, 1, m.MatchedKeywords)
	assert.Equal(t, 2, m.TotalKeywords)
	assert.InDelta(t, 0.45, m.Score, 1e-9)
}

func TestFindMatchPlatformFilter(t *testing.T) {
	rules := []AutomationRule{salesRule()}

	_, ok := FindMatch("price and cost please", PlatformInstagram, rules)
	assert.False(t, ok)
}

func TestFindMatchNormalization(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text     string
		keywords []string
		matched  int
		total    int
	}{
		{text: "WHAT IS THE PRICE", keywords: []string{"price"}, matched: 1, total: 1},
		{text: "  pricey  ", keywords: []string{"Price"}, matched: 1, total: 1},
		{text: "price", keywords: []string{"price", "PRICE", " price "}, matched: 1, total: 1},
		{text: "price", keywords: []string{"price", "", "   "}, matched: 1, total: 1},
		{text: "cafe\u0301 menu", keywords: []string{"Caf\u00e9"}, matched: 1, total: 1},
		{text: "hello", keywords: []string{"price", "cost"}, matched: 0, total: 2},
	}

	for _, fix := range fixtures {
		rule := AutomationRule{Keywords: fix.keywords, Priority: 1}
		_, matched, total := scoreRule(normalize(fix.text), &rule)
		assert.Equal(fix.matched, matched, fix.text)
		assert.Equal(fix.total, total, fix.text)
	}
}

func TestFindMatchEmptyKeywordsNeverMatch(t *testing.T) {
	rules := []AutomationRule{{ID: "empty", Platforms: []Platform{PlatformFacebook}, Priority: 1}}

	_, ok := FindMatch("anything at all", PlatformFacebook, rules)
	assert.False(t, ok)
}

func TestFindMatchZeroPriorityNeverMatches(t *testing.T) {
	rule := salesRule()
	rule.Priority = 0

	_, ok := FindMatch("price cost", PlatformFacebook, []AutomationRule{rule})
	assert.False(t, ok)
}

func TestFindMatchPrefersCoverage(t *testing.T) {
	full := AutomationRule{ID: "full", Keywords: []string{"price", "cost"}, Platforms: []Platform{PlatformFacebook}, Priority: 0.8}
	partial := AutomationRule{ID: "partial", Keywords: []string{"price", "quote"}, Platforms: []Platform{PlatformFacebook}, Priority: 0.8}

	m, ok := FindMatch("price and cost", PlatformFacebook, []AutomationRule{partial, full})
	require.True(t, ok)
	assert.Equal(t, "full", m.Rule.ID)
	assert.Equal(t, 1, m.Index)
}

func TestFindMatchTieBreakPriority(t *testing.T) {
	// both score 0.5: 2/2 * 0.5 and 1/2 * 1.0
	low := AutomationRule{ID: "low", Keywords: []string{"price", "cost"}, Platforms: []Platform{PlatformFacebook}, Priority: 0.5}
	high := AutomationRule{ID: "high", Keywords: []string{"price", "quote"}, Platforms: []Platform{PlatformFacebook}, Priority: 1}

	m, ok := FindMatch("price and cost", PlatformFacebook, []AutomationRule{low, high})
	require.True(t, ok)
	assert.Equal(t, "high", m.Rule.ID)
	assert.InDelta(t, 0.5, m.Score, 1e-9)
}

func TestFindMatchTieBreakDeclarationOrder(t *testing.T) {
	ruleA := AutomationRule{ID: "ruleA", Keywords: []string{"price", "cost"}, Platforms: []Platform{PlatformFacebook}, Priority: 0.5}
	ruleB := AutomationRule{ID: "ruleB", Keywords: []string{"price", "cost"}, Platforms: []Platform{PlatformFacebook}, Priority: 0.5}

	m, ok := FindMatch("price and cost", PlatformFacebook, []AutomationRule{ruleB, ruleA})
	require.True(t, ok)
	assert.Equal(t, "ruleB", m.Rule.ID)

	m, ok = FindMatch("price and cost", PlatformFacebook, []AutomationRule{ruleA, ruleB})
	require.True(t, ok)
	assert.Equal(t, "ruleA", m.Rule.ID)
}

func TestFindMatchCoverageMonotonic(t *testing.T) {
	rule := AutomationRule{Keywords: []string{"a1", "b2", "c3", "d4"}, Priority: 0.7}

	prev := -1.0
	for _, text := range []string{"a1", "a1 b2", "a1 b2 c3", "a1 b2 c3 d4"} {
		score, _, _ := scoreRule(normalize(text), &rule)
		assert.GreaterOrEqual(t, score, prev, text)
		prev = score
	}
	assert.InDelta(t, 0.7, prev, 1e-9)
}
