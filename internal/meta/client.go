// Package meta is a small Graph API client for Facebook Page inboxes and
// Instagram business comments.
package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lhdbsbz/inboxagent/internal/reply"
	"golang.org/x/time/rate"
)

const (
	DefaultLimit = 25
	MaxLimit     = 50

	maxErrorBody = 64 << 10
)

// Options configures a Client. Zero values take the defaults below.
type Options struct {
	BaseURL           string        // default https://graph.facebook.com
	Version           string        // default v19.0
	RequestsPerSecond float64       // default 5
	Timeout           time.Duration // default 30s
	MaxRetries        int           // reads only
	RetryWaitMin      time.Duration // default 1s
	RetryWaitMax      time.Duration // default 10s
}

// Client talks to the Graph API. Access tokens are passed per call and never
// stored. Safe for concurrent use.
type Client struct {
	baseURL string
	version string
	read    *http.Client
	write   *http.Client
	limiter *rate.Limiter
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://graph.facebook.com"
	}
	if opts.Version == "" {
		opts.Version = "v19.0"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = time.Second
	}
	if opts.RetryWaitMax < opts.RetryWaitMin {
		opts.RetryWaitMax = 10 * opts.RetryWaitMin
	}
	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		version: strings.Trim(opts.Version, "/"),
		read:    newReadClient(opts.Timeout, opts.MaxRetries, opts.RetryWaitMin, opts.RetryWaitMax),
		write:   newWriteClient(opts.Timeout),
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
	}
}

// ClampLimit maps limit into [1, MaxLimit]; zero or negative means DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// FetchFacebookInbox returns the latest message of each of the page's most
// recent conversations. Conversations without messages are skipped.
func (c *Client) FetchFacebookInbox(ctx context.Context, accessToken, pageID string, limit int) ([]Message, error) {
	if pageID == "" {
		return nil, fmt.Errorf("meta: page id is required")
	}
	q := url.Values{}
	q.Set("fields", "participants,messages.limit(1){id,message,from,created_time}")
	q.Set("limit", strconv.Itoa(ClampLimit(limit)))

	var resp conversationsResponse
	if err := c.get(ctx, "conversations", accessToken, pageID+"/conversations", q, &resp); err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(resp.Data))
	for _, conv := range resp.Data {
		if len(conv.Messages.Data) == 0 {
			continue
		}
		m := conv.Messages.Data[0]
		out = append(out, Message{
			ID:             m.ID,
			ConversationID: conv.ID,
			FromID:         m.From.ID,
			FromName:       m.From.Name,
			Text:           m.Message,
			CreatedTime:    m.CreatedTime,
		})
	}
	return out, nil
}

// FetchInstagramComments returns comments on the business account's recent
// media, flattened in media order. limit bounds both media and comments per media.
func (c *Client) FetchInstagramComments(ctx context.Context, accessToken, igBusinessID string, limit int) ([]MediaComment, error) {
	if igBusinessID == "" {
		return nil, fmt.Errorf("meta: instagram business id is required")
	}
	n := ClampLimit(limit)
	q := url.Values{}
	q.Set("fields", fmt.Sprintf("id,caption,comments.limit(%d){id,text,username,timestamp}", n))
	q.Set("limit", strconv.Itoa(n))

	var resp mediaResponse
	if err := c.get(ctx, "instagram_comments", accessToken, igBusinessID+"/media", q, &resp); err != nil {
		return nil, err
	}
	var out []MediaComment
	for _, media := range resp.Data {
		for _, cm := range media.Comments.Data {
			out = append(out, MediaComment{
				ID:           cm.ID,
				MediaID:      media.ID,
				MediaCaption: media.Caption,
				Username:     cm.Username,
				Text:         cm.Text,
				Timestamp:    cm.Timestamp,
			})
		}
	}
	return out, nil
}

// ReplyToThread answers on Facebook: a comment reply when isComment is set,
// otherwise a Messenger RESPONSE message to the recipient targetID.
func (c *Client) ReplyToThread(ctx context.Context, accessToken, targetID, message string, isComment bool) (SendResult, error) {
	if targetID == "" || message == "" {
		return SendResult{}, fmt.Errorf("meta: target id and message are required")
	}
	if isComment {
		form := url.Values{"message": {message}}
		return c.postForm(ctx, "facebook_comment_reply", accessToken, targetID+"/comments", form)
	}
	body := map[string]any{
		"recipient":      map[string]string{"id": targetID},
		"messaging_type": "RESPONSE",
		"message":        map[string]string{"text": message},
	}
	return c.postJSON(ctx, "facebook_message", accessToken, "me/messages", body)
}

// ReplyToInstagramComment posts a reply under an Instagram comment.
func (c *Client) ReplyToInstagramComment(ctx context.Context, accessToken, commentID, message string) (SendResult, error) {
	if commentID == "" || message == "" {
		return SendResult{}, fmt.Errorf("meta: comment id and message are required")
	}
	form := url.Values{"message": {message}}
	return c.postForm(ctx, "instagram_comment_reply", accessToken, commentID+"/replies", form)
}

// PostReply dispatches to the platform's reply call. Instagram replies are
// always comment replies.
func (c *Client) PostReply(ctx context.Context, accessToken string, platform reply.Platform, targetID, message string, isComment bool) (SendResult, error) {
	switch platform {
	case reply.PlatformInstagram:
		return c.ReplyToInstagramComment(ctx, accessToken, targetID, message)
	case reply.PlatformFacebook:
		return c.ReplyToThread(ctx, accessToken, targetID, message, isComment)
	default:
		return SendResult{}, fmt.Errorf("meta: unsupported platform %q", platform)
	}
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + c.version + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) get(ctx context.Context, op, accessToken, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path)+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	return c.do(ctx, c.read, op, accessToken, req, out)
}

func (c *Client) postForm(ctx context.Context, op, accessToken, path string, form url.Values) (SendResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(ctx, op, accessToken, req)
}

func (c *Client) postJSON(ctx context.Context, op, accessToken, path string, body any) (SendResult, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return SendResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(data))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(ctx, op, accessToken, req)
}

func (c *Client) send(ctx context.Context, op, accessToken string, req *http.Request) (SendResult, error) {
	var resp sendResponse
	if err := c.do(ctx, c.write, op, accessToken, req, &resp); err != nil {
		return SendResult{}, err
	}
	id := resp.ID
	if id == "" {
		id = resp.MessageID
	}
	return SendResult{ID: id, RecipientID: resp.RecipientID}, nil
}

// do sends req with the token in the Authorization header, so it never ends
// up in URLs the retry client logs.
func (c *Client) do(ctx context.Context, hc *http.Client, op, accessToken string, req *http.Request, out any) error {
	if accessToken == "" {
		return ErrMissingToken
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := hc.Do(req)
	graphDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		graphRequests.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("meta: %s: %w", op, err)
	}
	defer resp.Body.Close()
	graphRequests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("meta: %s: decode response: %w", op, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		env.Error.Status = resp.StatusCode
		if env.Error.Message == "" {
			env.Error.Message = http.StatusText(resp.StatusCode)
		}
		return env.Error
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
