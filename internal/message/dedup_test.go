package message

import (
	"testing"
	"time"

	"github.com/lhdbsbz/inboxagent/internal/reply"
	"github.com/stretchr/testify/assert"
)

func TestDedup(t *testing.T) {
	assert := assert.New(t)
	d := NewDedup(16, time.Hour)

	assert.False(d.IsDuplicate("facebook:m1"))
	assert.True(d.IsDuplicate("facebook:m1"))
	assert.False(d.IsDuplicate("instagram:m1"))
	assert.False(d.IsDuplicate(""))
	assert.False(d.IsDuplicate(""))
	assert.Equal(2, d.Len())

	d.Forget("facebook:m1")
	assert.False(d.IsDuplicate("facebook:m1"))
}

func TestDedupExpires(t *testing.T) {
	d := NewDedup(16, 20*time.Millisecond)
	assert.False(t, d.IsDuplicate("k"))
	assert.Eventually(t, func() bool { return d.Len() == 0 }, time.Second, 10*time.Millisecond)
	assert.False(t, d.IsDuplicate("k"))
}

func TestInboundMessageContext(t *testing.T) {
	m := InboundMessage{Platform: reply.PlatformInstagram, SenderName: "Ana", MessageID: "c1"}

	assert.Equal(t, reply.ReplyContext{Name: "Ana", Platform: reply.PlatformInstagram, ThreadType: reply.ThreadDirect}, m.Context())
	assert.Equal(t, "instagram:c1", m.DedupKey())
	assert.Equal(t, "", InboundMessage{Platform: reply.PlatformFacebook}.DedupKey())
}
