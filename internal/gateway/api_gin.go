package gateway

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lhdbsbz/inboxagent/internal/agent"
	"github.com/lhdbsbz/inboxagent/internal/config"
	"github.com/lhdbsbz/inboxagent/internal/message"
	"github.com/lhdbsbz/inboxagent/internal/reply"
)

const apiPrefix = "/api"

func (s *Server) apiAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if !authenticate(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func (s *Server) registerAPIRoutes(engine *gin.Engine) {
	api := engine.Group(apiPrefix, s.apiAuthMiddleware())
	api.GET("/health", s.ginAPIHealth)
	api.GET("/config", s.ginAPIConfig)

	api.POST("/agent/reply", s.ginAPIAgentReply)
	api.POST("/agent/respond", s.ginAPIAgentRespond)

	api.GET("/settings", s.ginAPISettingsGet)
	api.PUT("/settings", s.ginAPISettingsPut)
	api.GET("/rules", s.ginAPIRulesList)
	api.POST("/rules", s.ginAPIRulesCreate)
	api.PUT("/rules/:id", s.ginAPIRulesUpdate)
	api.DELETE("/rules/:id", s.ginAPIRulesDelete)

	api.POST("/meta/messages", s.ginAPIMetaMessages)
	api.POST("/meta/instagram/comments", s.ginAPIMetaComments)
	api.POST("/meta/reply", s.ginAPIMetaReply)

	api.GET("/replies", s.ginAPIReplies)
	api.POST("/poller/run", s.ginAPIPollerRun)
}

func (s *Server) ginAPIHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"bridges": s.Conns.ListBridges(),
		"clients": s.Conns.ClientCount(),
	})
}

// ginAPIConfig returns the live config with the Graph access token masked.
func (s *Server) ginAPIConfig(c *gin.Context) {
	cfg := config.Get().Clone()
	if cfg.Meta.AccessToken != "" {
		cfg.Meta.AccessToken = "********"
	}
	c.JSON(http.StatusOK, gin.H{
		"configPath": config.Path(),
		"config":     cfg,
	})
}

type contextBody struct {
	Name       string           `json:"name"`
	Platform   reply.Platform   `json:"platform" binding:"required,oneof=facebook instagram"`
	ThreadType reply.ThreadType `json:"threadType" binding:"omitempty,oneof=comment direct"`
}

func (b contextBody) toContext() reply.ReplyContext {
	return reply.ReplyContext{Name: b.Name, Platform: b.Platform, ThreadType: b.ThreadType.OrDefault()}
}

type settingsBody struct {
	DefaultResponse    *string    `json:"defaultResponse" binding:"required"`
	Tone               reply.Tone `json:"tone" binding:"required,oneof=friendly professional short detailed"`
	EnableSmartReplies *bool      `json:"enableSmartReplies" binding:"required"`
	Locale             string     `json:"locale" binding:"omitempty,oneof=en zh"`
}

func (b settingsBody) toSettings() reply.AgentSettings {
	return reply.AgentSettings{
		DefaultResponse:    *b.DefaultResponse,
		Tone:               b.Tone,
		EnableSmartReplies: *b.EnableSmartReplies,
		Locale:             b.Locale,
	}
}

// priority range and empty platforms are left to the engine, which reports
// them as configuration errors
type ruleBody struct {
	ID               string           `json:"id" binding:"required"`
	Label            string           `json:"label"`
	Keywords         []string         `json:"keywords" binding:"required"`
	ResponseTemplate string           `json:"responseTemplate"`
	Platforms        []reply.Platform `json:"platforms" binding:"required,dive,oneof=facebook instagram"`
	Priority         *float64         `json:"priority" binding:"required"`
}

func (b ruleBody) toRule() reply.AutomationRule {
	return reply.AutomationRule{
		ID:               b.ID,
		Label:            b.Label,
		Keywords:         b.Keywords,
		ResponseTemplate: b.ResponseTemplate,
		Platforms:        b.Platforms,
		Priority:         *b.Priority,
	}
}

type replyRequest struct {
	IncomingText string       `json:"incomingText" binding:"required"`
	Context      contextBody  `json:"context"`
	Settings     settingsBody `json:"settings"`
	Rules        []ruleBody   `json:"rules" binding:"required,dive"`
}

// ginAPIAgentReply generates a reply from the rules and settings in the
// request. Nothing is read from or written to the config.
func (s *Server) ginAPIAgentReply(c *gin.Context) {
	var body replyRequest
	if !bindJSON(c, &body) {
		return
	}
	rules := make([]reply.AutomationRule, len(body.Rules))
	for i, r := range body.Rules {
		rules[i] = r.toRule()
	}
	generated, err := reply.Generate(body.IncomingText, body.Context.toContext(), body.Settings.toSettings(), rules)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, generated)
}

type respondRequest struct {
	IncomingText string      `json:"incomingText" binding:"required"`
	Context      contextBody `json:"context"`
	TargetID     string      `json:"targetId"`
	MessageID    string      `json:"messageId"`
}

// ginAPIAgentRespond generates a reply with the configured rules and settings
// and records it in the reply log.
func (s *Server) ginAPIAgentRespond(c *gin.Context) {
	var body respondRequest
	if !bindJSON(c, &body) {
		return
	}
	rc := body.Context.toContext()
	generated, err := s.Responder.Respond(c.Request.Context(), agent.SourceAPI, message.InboundMessage{
		Platform:   rc.Platform,
		ThreadType: rc.ThreadType,
		TargetID:   body.TargetID,
		SenderName: rc.Name,
		Text:       body.IncomingText,
		MessageID:  body.MessageID,
	}, nil)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, generated)
}
