package reply

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lhdbsbz/inboxagent/internal/prompts"
)

// MaxShortLength is the rune bound of a reply in the short tone.
const MaxShortLength = 140

var (
	emphasisRun      = regexp.MustCompile(`[!?！？]+`)
	spaceBeforePunct = regexp.MustCompile(`[ \t]+([.,?;:。？])`)
	repeatedBlanks   = regexp.MustCompile(`[ \t]{2,}`)
)

const (
	asciiTerminators = ".!?"
	fullTerminators  = "。！？"
	trailingCutMarks = " \t,;:-"
)

// AdjustTone rewrites rendered text for tone. It only touches the text;
// unknown tones leave it unchanged.
func AdjustTone(text string, tone Tone, locale string) string {
	p := prompts.Get(locale)
	switch tone {
	case ToneProfessional:
		return professional(text)
	case ToneShort:
		return shorten(text, p)
	case ToneDetailed:
		return elaborate(text, p)
	default:
		return text
	}
}

// professional replaces exclamation emphasis with a plain stop and collapses
// mixed or repeated question marks.
func professional(text string) string {
	out := emphasisRun.ReplaceAllStringFunc(text, func(run string) string {
		switch {
		case strings.ContainsRune(run, '？'):
			return "？"
		case strings.ContainsRune(run, '?'):
			return "?"
		case strings.ContainsRune(run, '！'):
			return "。"
		default:
			return "."
		}
	})
	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	return repeatedBlanks.ReplaceAllString(out, " ")
}

func shorten(text string, p *prompts.Prompts) string {
	text = strings.TrimSpace(text)
	if first := firstSentence(text); utf8.RuneCountInString(first) <= MaxShortLength {
		return first
	}
	runes := []rune(text)
	limit := MaxShortLength - utf8.RuneCountInString(p.Ellipsis)
	cut := limit
	for i := limit; i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	head := strings.TrimRight(string(runes[:cut]), trailingCutMarks)
	if head == "" {
		head = string(runes[:limit])
	}
	return head + p.Ellipsis
}

func elaborate(text string, p *prompts.Prompts) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return p.Elaboration
	}
	last := strings.ToLower(lastSentence(trimmed))
	for _, marker := range p.ClosingMarkers {
		if strings.Contains(last, marker) {
			return trimmed
		}
	}
	r, _ := utf8.DecodeLastRuneInString(trimmed)
	if !isTerminator(r) {
		trimmed += p.FullStop
	}
	return trimmed + p.SentenceJoin + p.Elaboration
}

func isTerminator(r rune) bool {
	return strings.ContainsRune(asciiTerminators, r) || strings.ContainsRune(fullTerminators, r)
}

// sentenceEnds returns the byte offsets just past each sentence terminator
// run. ASCII terminators only end a sentence before whitespace or the end of
// text; full-width ones always do.
func sentenceEnds(text string) []int {
	var ends []int
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isTerminator(r) {
			i += size
			continue
		}
		fullWidth := strings.ContainsRune(fullTerminators, r)
		j := i + size
		for j < len(text) {
			next, nsize := utf8.DecodeRuneInString(text[j:])
			if !isTerminator(next) {
				break
			}
			fullWidth = fullWidth || strings.ContainsRune(fullTerminators, next)
			j += nsize
		}
		if j == len(text) || fullWidth {
			ends = append(ends, j)
		} else if next, _ := utf8.DecodeRuneInString(text[j:]); unicode.IsSpace(next) {
			ends = append(ends, j)
		}
		i = j
	}
	return ends
}

func firstSentence(text string) string {
	if ends := sentenceEnds(text); len(ends) > 0 {
		return text[:ends[0]]
	}
	return text
}

func lastSentence(text string) string {
	ends := sentenceEnds(text)
	// the final end is the end of text when it is punctuated; skip it
	if n := len(ends); n > 0 && ends[n-1] == len(text) {
		ends = ends[:n-1]
	}
	if len(ends) == 0 {
		return text
	}
	return strings.TrimSpace(text[ends[len(ends)-1]:])
}
