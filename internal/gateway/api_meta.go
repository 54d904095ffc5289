package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lhdbsbz/inboxagent/internal/poller"
	"github.com/lhdbsbz/inboxagent/internal/reply"
)

const defaultRepliesLimit = 50

type inboxRequest struct {
	PageID      string `json:"pageId" binding:"required"`
	AccessToken string `json:"accessToken" binding:"required"`
	Limit       *int   `json:"limit" binding:"omitempty,min=1,max=50"`
}

type commentsRequest struct {
	InstagramBusinessID string `json:"instagramBusinessId" binding:"required"`
	AccessToken         string `json:"accessToken" binding:"required"`
	Limit               *int   `json:"limit" binding:"omitempty,min=1,max=50"`
}

type metaReplyRequest struct {
	Platform    reply.Platform `json:"platform" binding:"required,oneof=facebook instagram"`
	TargetID    string         `json:"targetId" binding:"required"`
	Message     string         `json:"message" binding:"required"`
	AccessToken string         `json:"accessToken" binding:"required"`
	IsComment   bool           `json:"isComment"`
}

func limitOrZero(limit *int) int {
	if limit == nil {
		return 0
	}
	return *limit
}

func (s *Server) requireGraph(c *gin.Context) bool {
	if s.Graph == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "graph api client is not configured"})
		return false
	}
	return true
}

func (s *Server) ginAPIMetaMessages(c *gin.Context) {
	var body inboxRequest
	if !bindJSON(c, &body) || !s.requireGraph(c) {
		return
	}
	msgs, err := s.Graph.FetchFacebookInbox(c.Request.Context(), body.AccessToken, body.PageID, limitOrZero(body.Limit))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (s *Server) ginAPIMetaComments(c *gin.Context) {
	var body commentsRequest
	if !bindJSON(c, &body) || !s.requireGraph(c) {
		return
	}
	comments, err := s.Graph.FetchInstagramComments(c.Request.Context(), body.AccessToken, body.InstagramBusinessID, limitOrZero(body.Limit))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func (s *Server) ginAPIMetaReply(c *gin.Context) {
	var body metaReplyRequest
	if !bindJSON(c, &body) || !s.requireGraph(c) {
		return
	}
	res, err := s.Graph.PostReply(c.Request.Context(), body.AccessToken, body.Platform, body.TargetID, body.Message, body.IsComment)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) ginAPIReplies(c *gin.Context) {
	limit := defaultRepliesLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			abortValidation(c, map[string]string{"limit": "min=1"})
			return
		}
		limit = n
	}
	log := s.Responder.Log()
	if log == nil {
		c.JSON(http.StatusOK, gin.H{"replies": []any{}})
		return
	}
	entries, err := log.Recent(limit)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": entries})
}

func (s *Server) ginAPIPollerRun(c *gin.Context) {
	if s.Poller == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "poller is not running"})
		return
	}
	sum, err := s.Poller.RunOnce(c.Request.Context())
	if errors.Is(err, poller.ErrNotConfigured) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil && sum.StartedAt.IsZero() {
		abortError(c, err)
		return
	}
	// fetch failures are listed in the summary
	c.JSON(http.StatusOK, sum)
}
