package prompts

// PromptsEN is the English prompt set.
var PromptsEN = &Prompts{
	NeutralName: "there",

	SmartFallback: SmartFallback{
		Direct:          "Hi %s, thanks for your message! A member of our team will get back to you shortly.",
		DirectQuestion:  "Hi %s, thanks for your question! We're looking into it and will reply shortly.",
		Comment:         "Thanks for the comment, %s! We appreciate you being part of the community.",
		CommentQuestion: "Great question, %s! Send us a direct message and we'll get you an answer.",
	},

	Elaboration:    "Let us know if there's anything else we can help you with.",
	ClosingMarkers: []string{"let us know", "anything else", "feel free"},

	QuestionMarks: "?",
	FullStop:      ".",
	SentenceJoin:  " ",
	Ellipsis:      "…",
}
