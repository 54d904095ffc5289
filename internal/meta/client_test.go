package meta

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lhdbsbz/inboxagent/internal/reply"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(srv *httptest.Server, retries int) *Client {
	return NewClient(Options{
		BaseURL:           srv.URL,
		Version:           "v19.0",
		RequestsPerSecond: 1000,
		Timeout:           5 * time.Second,
		MaxRetries:        retries,
		RetryWaitMin:      time.Millisecond,
		RetryWaitMax:      2 * time.Millisecond,
	})
}

func TestClampLimit(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(25, ClampLimit(0))
	assert.Equal(25, ClampLimit(-3))
	assert.Equal(1, ClampLimit(1))
	assert.Equal(50, ClampLimit(50))
	assert.Equal(50, ClampLimit(51))
}

func TestFetchFacebookInbox(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodGet, r.Method)
		assert.Equal("/v19.0/page-1/conversations", r.URL.Path)
		assert.Equal("Bearer tok", r.Header.Get("Authorization"))
		assert.Empty(r.URL.Query().Get("access_token"))
		assert.Equal("10", r.URL.Query().Get("limit"))
		assert.Contains(r.URL.Query().Get("fields"), "messages.limit(1)")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":[
			{"id":"t_1","messages":{"data":[{"id":"m_1","message":"What's the price?","from":{"id":"u1","name":"Ana"},"created_time":"2024-05-01T10:00:00+0000"}]}},
			{"id":"t_2","messages":{"data":[]}}
		]}`)
	}))
	defer srv.Close()

	msgs, err := testClient(srv, 0).FetchFacebookInbox(context.Background(), "tok", "page-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(Message{
		ID:             "m_1",
		ConversationID: "t_1",
		FromID:         "u1",
		FromName:       "Ana",
		Text:           "What's the price?",
		CreatedTime:    "2024-05-01T10:00:00+0000",
	}, msgs[0])
}

func TestFetchInstagramComments(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/v19.0/ig-1/media", r.URL.Path)
		assert.Contains(r.URL.Query().Get("fields"), "comments.limit(25)")
		io.WriteString(w, `{"data":[
			{"id":"media1","caption":"New drop","comments":{"data":[
				{"id":"c1","text":"love it","username":"ana","timestamp":"t1"},
				{"id":"c2","text":"price?","username":"ben","timestamp":"t2"}
			]}},
			{"id":"media2","comments":{"data":[]}}
		]}`)
	}))
	defer srv.Close()

	comments, err := testClient(srv, 0).FetchInstagramComments(context.Background(), "tok", "ig-1", 0)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal("media1", comments[1].MediaID)
	assert.Equal("New drop", comments[1].MediaCaption)
	assert.Equal("ben", comments[1].Username)
	assert.Equal("price?", comments[1].Text)
}

func TestReplyToThread(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPost, r.Method)
		switch r.URL.Path {
		case "/v19.0/me/messages":
			var body map[string]any
			assert.NoError(json.NewDecoder(r.Body).Decode(&body))
			assert.Equal("RESPONSE", body["messaging_type"])
			assert.Equal(map[string]any{"id": "psid-1"}, body["recipient"])
			assert.Equal(map[string]any{"text": "hello"}, body["message"])
			io.WriteString(w, `{"recipient_id":"psid-1","message_id":"mid.1"}`)
		case "/v19.0/comment-1/comments":
			assert.NoError(r.ParseForm())
			assert.Equal("hello", r.PostForm.Get("message"))
			io.WriteString(w, `{"id":"comment-2"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()
	c := testClient(srv, 0)

	res, err := c.ReplyToThread(context.Background(), "tok", "psid-1", "hello", false)
	require.NoError(t, err)
	assert.Equal(SendResult{ID: "mid.1", RecipientID: "psid-1"}, res)

	res, err = c.ReplyToThread(context.Background(), "tok", "comment-1", "hello", true)
	require.NoError(t, err)
	assert.Equal("comment-2", res.ID)
}

func TestPostReplyInstagram(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		io.WriteString(w, `{"id":"r1"}`)
	}))
	defer srv.Close()

	// isComment is irrelevant on Instagram
	res, err := testClient(srv, 0).PostReply(context.Background(), "tok", reply.PlatformInstagram, "c9", "thanks", false)
	require.NoError(t, err)
	assert.Equal(t, "r1", res.ID)
	assert.Equal(t, "/v19.0/c9/replies", path.Load())

	_, err = testClient(srv, 0).PostReply(context.Background(), "tok", reply.Platform("tiktok"), "c9", "thanks", false)
	assert.Error(t, err)
}

func TestAPIError(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190,"fbtrace_id":"Abc"}}`)
	}))
	defer srv.Close()

	_, err := testClient(srv, 3).FetchFacebookInbox(context.Background(), "bad", "page-1", 5)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(http.StatusBadRequest, apiErr.Status)
	assert.Equal("OAuthException", apiErr.Type)
	assert.Equal(190, apiErr.Code)
	assert.Equal("Abc", apiErr.FBTraceID)
	assert.False(apiErr.Temporary())
}

func TestReadsRetryServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	msgs, err := testClient(srv, 2).FetchFacebookInbox(context.Background(), "tok", "page-1", 5)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimitedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"Application request limit reached","type":"OAuthException","code":4}}`)
	}))
	defer srv.Close()

	_, err := testClient(srv, 3).FetchInstagramComments(context.Background(), "tok", "ig-1", 5)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Temporary())
	assert.Equal(t, int32(1), calls.Load())
}

func TestWritesAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv, 3).ReplyToInstagramComment(context.Background(), "tok", "c1", "hi")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	_, err := testClient(srv, 0).FetchFacebookInbox(context.Background(), "", "page-1", 5)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestTokenNotInURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, _ := url.ParseQuery(r.URL.RawQuery)
		assert.NotContains(t, q.Encode(), "secret")
		io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	_, err := testClient(srv, 0).FetchInstagramComments(context.Background(), "secret", "ig-1", 5)
	require.NoError(t, err)
}
