package message

import "github.com/lhdbsbz/inboxagent/internal/reply"

// InboundMessage is the normalized message format from any source
// (bridge connection, inbox poll, comment poll).
type InboundMessage struct {
	Platform   reply.Platform   `json:"platform"`
	ThreadType reply.ThreadType `json:"threadType,omitempty"`
	TargetID   string           `json:"targetId"` // what a reply is posted to: conversation participant or comment id
	SenderID   string           `json:"senderId,omitempty"`
	SenderName string           `json:"senderName,omitempty"`
	Text       string           `json:"text"`
	MessageID  string           `json:"messageId,omitempty"`
	Channel    string           `json:"channel,omitempty"` // bridge channel it arrived on, if any
}

// Context returns the engine view of the message.
func (m InboundMessage) Context() reply.ReplyContext {
	return reply.ReplyContext{
		Name:       m.SenderName,
		Platform:   m.Platform,
		ThreadType: m.ThreadType.OrDefault(),
	}
}

// DedupKey identifies the message across polls. Empty when the message has no id.
func (m InboundMessage) DedupKey() string {
	if m.MessageID == "" {
		return ""
	}
	return string(m.Platform) + ":" + m.MessageID
}

// OutboundMessage is sent back to a channel via bridge.
type OutboundMessage struct {
	Channel    string           `json:"channel"`
	Platform   reply.Platform   `json:"platform"`
	ThreadType reply.ThreadType `json:"threadType"`
	TargetID   string           `json:"targetId"`
	Text       string           `json:"text"`
	ReplyTo    string           `json:"replyTo,omitempty"`
}
