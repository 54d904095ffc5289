package meta

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingToken is returned before any request is made without an access token.
var ErrMissingToken = errors.New("meta: access token is required")

// APIError is a non-2xx Graph API response.
type APIError struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Type      string `json:"type,omitempty"`
	Code      int    `json:"code,omitempty"`
	Subcode   int    `json:"error_subcode,omitempty"`
	FBTraceID string `json:"fbtrace_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("meta: graph api status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("meta: graph api status %d: %s (%s, code %d)", e.Status, e.Message, e.Type, e.Code)
}

// Temporary reports whether retrying later may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500 || e.Code == 4 || e.Code == 17 || e.Code == 32 || e.Code == 613
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}
