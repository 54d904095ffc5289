package gateway

import (
	"encoding/json"

	"github.com/lhdbsbz/inboxagent/internal/message"
	"github.com/lhdbsbz/inboxagent/internal/reply"
)

// Frame is the universal WebSocket message format.
// Three types: "req" (peer→gateway), "res" (gateway→peer), "event" (gateway→peer push).
type Frame struct {
	Type    string          `json:"type"`              // "req" | "res" | "event"
	ID      string          `json:"id,omitempty"`      // request/response correlation ID
	Method  string          `json:"method,omitempty"`  // for req: method name
	Params  json.RawMessage `json:"params,omitempty"`  // for req: method parameters
	OK      *bool           `json:"ok,omitempty"`      // for res: success flag
	Payload json.RawMessage `json:"payload,omitempty"` // for res: response data
	Error   *ErrorPayload   `json:"error,omitempty"`   // for res: error details
	Event   string          `json:"event,omitempty"`   // for event: event name
	Seq     int             `json:"seq,omitempty"`     // for event: sequence number
}

type ErrorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Connection roles
const (
	RoleBridge = "bridge"
	RoleClient = "client"
)

// Methods and pushed events.
const (
	MethodConnect        = "connect"
	MethodInboundMessage = "inbound.message"

	EventOutboundMessage = "outbound.message"
	EventReply           = "reply"
)

// ConnectParams is sent during handshake.
// Bridge: role, token, channel, platforms. Client: role, token only.
type ConnectParams struct {
	Role      string           `json:"role" binding:"required,oneof=bridge client"`
	Token     string           `json:"token"`
	Channel   string           `json:"channel,omitempty" binding:"required_if=Role bridge"`
	Platforms []reply.Platform `json:"platforms,omitempty" binding:"omitempty,dive,oneof=facebook instagram"`
}

// InboundMessageParams is what a bridge forwards for each message it sees.
type InboundMessageParams struct {
	Platform   reply.Platform   `json:"platform" binding:"required,oneof=facebook instagram"`
	ThreadType reply.ThreadType `json:"threadType,omitempty" binding:"omitempty,oneof=comment direct"`
	TargetID   string           `json:"targetId" binding:"required"`
	SenderID   string           `json:"senderId,omitempty"`
	SenderName string           `json:"senderName,omitempty"`
	Text       string           `json:"text" binding:"required"`
	MessageID  string           `json:"messageId,omitempty"`
}

func (p InboundMessageParams) toMessage(channel string) message.InboundMessage {
	return message.InboundMessage{
		Platform:   p.Platform,
		ThreadType: p.ThreadType.OrDefault(),
		TargetID:   p.TargetID,
		SenderID:   p.SenderID,
		SenderName: p.SenderName,
		Text:       p.Text,
		MessageID:  p.MessageID,
		Channel:    channel,
	}
}

// Helper to create response frames

func ResOK(id string, payload any) Frame {
	data, _ := json.Marshal(payload)
	ok := true
	return Frame{Type: "res", ID: id, OK: &ok, Payload: data}
}

func ResErr(id string, code, message string) Frame {
	ok := false
	return Frame{Type: "res", ID: id, OK: &ok, Error: &ErrorPayload{Code: code, Message: message}}
}

func ResInvalid(id string, details map[string]string) Frame {
	ok := false
	return Frame{Type: "res", ID: id, OK: &ok, Error: &ErrorPayload{Code: "INVALID_PARAMS", Message: "invalid params", Details: details}}
}

func EventFrame(event string, seq int, payload any) Frame {
	data, _ := json.Marshal(payload)
	return Frame{Type: "event", Event: event, Seq: seq, Payload: data}
}
