package gateway

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lhdbsbz/inboxagent/internal/config"
	"github.com/lhdbsbz/inboxagent/internal/reply"
)

// editMu serializes read-modify-write of the config file through the API.
var editMu sync.Mutex

// updateConfig applies edit to a copy of the live config, validates it,
// writes it to disk and swaps it in.
func updateConfig(edit func(cfg *config.Config) error) (*config.Config, error) {
	editMu.Lock()
	defer editMu.Unlock()

	next := config.Get().Clone()
	if err := edit(next); err != nil {
		return nil, err
	}
	if err := config.Validate(next); err != nil {
		return nil, err
	}
	if err := config.Write(config.Path(), next); err != nil {
		return nil, err
	}
	config.Set(next)
	return next, nil
}

func (s *Server) ginAPISettingsGet(c *gin.Context) {
	c.JSON(http.StatusOK, config.Get().Agent)
}

func (s *Server) ginAPISettingsPut(c *gin.Context) {
	var body settingsBody
	if !bindJSON(c, &body) {
		return
	}
	cfg, err := updateConfig(func(cfg *config.Config) error {
		settings := body.toSettings()
		if settings.Locale == "" {
			settings.Locale = cfg.Agent.Locale
		}
		cfg.Agent = settings
		return nil
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg.Agent)
}

func (s *Server) ginAPIRulesList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": config.Get().Rules})
}

// rulePatch carries the fields of a rule a client wants to set; absent
// fields keep their current (or default) value.
type rulePatch struct {
	Label            *string          `json:"label"`
	Keywords         []string         `json:"keywords"`
	ResponseTemplate *string          `json:"responseTemplate"`
	Platforms        []reply.Platform `json:"platforms" binding:"omitempty,dive,oneof=facebook instagram"`
	Priority         *float64         `json:"priority"`
}

func (p rulePatch) apply(r *reply.AutomationRule) {
	if p.Label != nil {
		r.Label = *p.Label
	}
	if p.Keywords != nil {
		r.Keywords = p.Keywords
	}
	if p.ResponseTemplate != nil {
		r.ResponseTemplate = *p.ResponseTemplate
	}
	if p.Platforms != nil {
		r.Platforms = p.Platforms
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
}

// ginAPIRulesCreate appends a rule. Defaults: label "New Rule", no keywords,
// the default response as template, both platforms, priority 0.5.
func (s *Server) ginAPIRulesCreate(c *gin.Context) {
	var body rulePatch
	if c.Request.ContentLength != 0 && !bindJSON(c, &body) {
		return
	}
	var created reply.AutomationRule
	_, err := updateConfig(func(cfg *config.Config) error {
		created = reply.AutomationRule{
			ID:               uuid.NewString(),
			Label:            "New Rule",
			Keywords:         []string{},
			ResponseTemplate: cfg.Agent.DefaultResponse,
			Platforms:        []reply.Platform{reply.PlatformFacebook, reply.PlatformInstagram},
			Priority:         0.5,
		}
		body.apply(&created)
		cfg.Rules = append(cfg.Rules, created)
		return nil
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) ginAPIRulesUpdate(c *gin.Context) {
	id := c.Param("id")
	var body rulePatch
	if !bindJSON(c, &body) {
		return
	}
	var updated reply.AutomationRule
	_, err := updateConfig(func(cfg *config.Config) error {
		i := cfg.RuleIndex(id)
		if i < 0 {
			return errRuleNotFound
		}
		body.apply(&cfg.Rules[i])
		updated = cfg.Rules[i]
		return nil
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) ginAPIRulesDelete(c *gin.Context) {
	id := c.Param("id")
	_, err := updateConfig(func(cfg *config.Config) error {
		i := cfg.RuleIndex(id)
		if i < 0 {
			return errRuleNotFound
		}
		cfg.Rules = append(cfg.Rules[:i], cfg.Rules[i+1:]...)
		return nil
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
