package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/lhdbsbz/inboxagent/internal/reply"
)

var errRuleNotFound = errors.New("rule not found")

var registerTagNameOnce sync.Once

// useJSONFieldNames makes validation errors report the JSON field names
// clients actually send.
func useJSONFieldNames() {
	registerTagNameOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonFieldName)
		}
	})
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// validationDetails maps each failing field to the rule it broke.
func validationDetails(err error) map[string]string {
	details := map[string]string{}
	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			ns := fe.Namespace()
			if _, rest, ok := strings.Cut(ns, "."); ok {
				ns = rest
			}
			details[ns] = fe.Tag()
		}
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		details[field] = "type:" + typeErr.Type.String()
	case errors.Is(err, io.EOF):
		details["body"] = "required"
	default:
		details["body"] = "invalid JSON"
	}
	return details
}

func abortValidation(c *gin.Context, details map[string]string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"error":   "ValidationError",
		"details": details,
	})
}

// bindJSON decodes and validates the body into obj, answering 422 on failure.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		abortValidation(c, validationDetails(err))
		return false
	}
	return true
}

// abortError answers 400 for rule configuration errors, 404 for unknown
// rules and 500 otherwise.
func abortError(c *gin.Context, err error) {
	if errors.Is(err, errRuleNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	var cfgErr *reply.ConfigurationError
	if errors.As(err, &cfgErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "ConfigurationError",
			"ruleId":  cfgErr.RuleID,
			"index":   cfgErr.Index,
			"field":   cfgErr.Field,
			"details": err.Error(),
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
