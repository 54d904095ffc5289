package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/lhdbsbz/inboxagent/internal/agent"
	"github.com/lhdbsbz/inboxagent/internal/message"
	"github.com/lhdbsbz/inboxagent/internal/reply"
)

// handleInboundMessage answers a message forwarded by a bridge. The reply is
// returned in the response frame and pushed as outbound.message to the
// bridges of the originating channel.
func (s *Server) handleInboundMessage(ctx context.Context, conn *Conn, f Frame) Frame {
	var p InboundMessageParams
	if err := json.Unmarshal(f.Params, &p); err != nil {
		return ResInvalid(f.ID, validationDetails(err))
	}
	if err := binding.Validator.ValidateStruct(&p); err != nil {
		return ResInvalid(f.ID, validationDetails(err))
	}
	msg := p.toMessage(conn.Channel)

	if s.Dedup != nil && s.Dedup.IsDuplicate(msg.DedupKey()) {
		return ResOK(f.ID, map[string]any{"duplicate": true})
	}

	generated, err := s.Responder.Respond(ctx, agent.SourceBridge, msg, func(ctx context.Context, g reply.GeneratedReply) (bool, error) {
		if msg.Channel == "" {
			return false, nil
		}
		n := s.Conns.SendToChannel(msg.Channel, msg.Platform, EventOutboundMessage, message.OutboundMessage{
			Channel:    msg.Channel,
			Platform:   msg.Platform,
			ThreadType: msg.ThreadType,
			TargetID:   msg.TargetID,
			Text:       g.Message,
			ReplyTo:    msg.MessageID,
		})
		return n > 0, nil
	})
	if err != nil {
		if s.Dedup != nil {
			s.Dedup.Forget(msg.DedupKey())
		}
		var cfgErr *reply.ConfigurationError
		if errors.As(err, &cfgErr) {
			return ResErr(f.ID, "CONFIGURATION_ERROR", err.Error())
		}
		return ResErr(f.ID, "ERROR", err.Error())
	}
	return ResOK(f.ID, generated)
}
