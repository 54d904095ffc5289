package prompts

// SmartFallback holds the context-aware acknowledgements used when no rule
// matches. Each template takes the rendered sender name as its only verb.
type SmartFallback struct {
	Direct          string
	DirectQuestion  string
	Comment         string
	CommentQuestion string
}

// Prompts holds all user-facing reply strings for a locale.
type Prompts struct {
	NeutralName string // used when the sender name is unknown

	SmartFallback SmartFallback

	Elaboration    string   // appended by the detailed tone
	ClosingMarkers []string // lowercase phrases that already count as an elaboration

	QuestionMarks string // characters that mark the inbound text as a question
	FullStop      string
	SentenceJoin  string // placed between two sentences
	Ellipsis      string
}

// Get returns prompts for the given locale. Only "zh" selects Chinese; empty or unknown defaults to English.
func Get(locale string) *Prompts {
	if locale == "zh" {
		return PromptsZH
	}
	return PromptsEN
}

// Supported reports whether locale has its own prompt set.
func Supported(locale string) bool {
	return locale == "" || locale == "en" || locale == "zh"
}
