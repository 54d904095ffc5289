package prompts

// PromptsZH is the Chinese prompt set.
var PromptsZH = &Prompts{
	NeutralName: "朋友",

	SmartFallback: SmartFallback{
		Direct:          "%s你好，感谢你的消息！我们的团队会尽快回复你。",
		DirectQuestion:  "%s你好，感谢你的提问！我们正在确认，稍后回复你。",
		Comment:         "感谢你的评论，%s！谢谢你一直以来的支持。",
		CommentQuestion: "好问题，%s！请私信我们，我们会为你解答。",
	},

	Elaboration:    "如果还有其他需要帮助的地方，请随时告诉我们。",
	ClosingMarkers: []string{"随时告诉我们", "其他需要"},

	QuestionMarks: "?？",
	FullStop:      "。",
	SentenceJoin:  "",
	Ellipsis:      "…",
}
