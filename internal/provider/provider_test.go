package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/elusaegis/ai-passport/internal/chat"
)

func TestFromDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"api.anthropic.com", "anthropic"},
		{"api.fireworks.ai", "fireworks"},
		{"api.mistral.ai", "mistral"},
		{"api.red-pill.ai", "redpill"},
		{"api.proof-of-autonomy.elusaegis.xyz", "custom"},
		{"foo.example.com", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			assert.Equal(t, tt.want, FromDomain(tt.domain).Name())
		})
	}
}

func TestDefaultChatBody(t *testing.T) {
	p := NewUnknown()
	history := []chat.Message{chat.User("hello")}

	body, err := p.BuildChatBody("gpt-4", history, 0)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", gjson.Get(body, "model").String())
	assert.Equal(t, "user", gjson.Get(body, "messages.0.role").String())
	assert.Equal(t, "hello", gjson.Get(body, "messages.0.content").String())
	assert.False(t, gjson.Get(body, "max_tokens").Exists())

	body, err = p.BuildChatBody("gpt-4", history, 256)
	require.NoError(t, err)
	assert.Equal(t, int64(256), gjson.Get(body, "max_tokens").Int())
}

func TestDefaultHeaders(t *testing.T) {
	p := NewUnknown()
	headers := p.ChatHeaders("sk-test")
	require.Len(t, headers, 1)
	assert.Equal(t, "Authorization", headers[0].Name)
	assert.Equal(t, "Bearer sk-test", headers[0].Value)
}

func TestDefaultParseReply(t *testing.T) {
	p := NewMistral()

	msg, err := p.ParseReply([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi there"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, chat.RoleAssistant, msg.Role)
	assert.Equal(t, "hi there", msg.Content)
}

func TestParseReplyMalformed(t *testing.T) {
	p := NewUnknown()

	for _, body := range []string{
		`{}`,
		`{"choices":[]}`,
		`{"choices":[{"message":{"content":42}}]}`,
		`not json`,
	} {
		_, err := p.ParseReply([]byte(body))
		var malformed *MalformedReplyError
		require.True(t, errors.As(err, &malformed), "body %q should be rejected", body)
	}
}

func TestAnthropic(t *testing.T) {
	p := NewAnthropic()

	assert.Equal(t, "/v1/messages", p.ChatEndpoint())

	headers := p.ChatHeaders("sk-ant-test")
	require.Len(t, headers, 2)
	assert.Equal(t, "x-api-key", headers[0].Name)
	assert.Equal(t, "sk-ant-test", headers[0].Value)
	assert.Equal(t, "anthropic-version", headers[1].Name)
	assert.Equal(t, "2023-06-01", headers[1].Value)

	// max_tokens is mandatory: defaulted when unset, capped when huge.
	body, err := p.BuildChatBody("claude-3-5-sonnet", []chat.Message{chat.User("hi")}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), gjson.Get(body, "max_tokens").Int())
	assert.False(t, gjson.Get(body, "stream").Bool())

	body, err = p.BuildChatBody("claude-3-5-sonnet", nil, 999999)
	require.NoError(t, err)
	assert.Equal(t, int64(10240), gjson.Get(body, "max_tokens").Int())

	msg, err := p.ParseReply([]byte(`{"content":[{"type":"text","text":"hello from claude"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "hello from claude", msg.Content)

	_, err = p.ParseReply([]byte(`{"choices":[{"message":{"content":"wrong shape"}}]}`))
	require.Error(t, err)

	assert.Equal(t, []string{"x-api-key"}, p.RequestCensorHeaders())
	assert.Contains(t, p.ResponseCensorHeaders(), "anthropic-ratelimit-requests-reset")
}

func TestFireworksEndpoints(t *testing.T) {
	p := NewFireworks()
	assert.Equal(t, "/inference/v1/chat/completions", p.ChatEndpoint())
	assert.Equal(t, "/inference/v1/models", p.ModelsEndpoint())
}

func TestRedPill(t *testing.T) {
	p := NewRedPill()

	// Claude models require max_tokens even when the caller sets none.
	body, err := p.BuildChatBody("anthropic/claude-3-opus", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10240), gjson.Get(body, "max_tokens").Int())

	body, err = p.BuildChatBody("gpt-4o", nil, 0)
	require.NoError(t, err)
	assert.False(t, gjson.Get(body, "max_tokens").Exists())

	body, err = p.BuildChatBody("gpt-4o", nil, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), gjson.Get(body, "max_tokens").Int())

	// Model-list calls carry no auth headers.
	assert.Empty(t, p.ModelsHeaders("sk-test"))
}

func TestCustomOverheadHints(t *testing.T) {
	p := NewCustom()
	oh := p.ExpectedOverhead()
	assert.Equal(t, 250, oh.Request)
	assert.Equal(t, 510, oh.Response)
	assert.Empty(t, p.ResponseCensorHeaders())
}

func TestAPIBinding(t *testing.T) {
	api := NewAPI("api.anthropic.com", 443, "sk-ant-key")
	assert.Equal(t, "anthropic", api.Name())

	headers := api.AuthHeaders()
	require.NotEmpty(t, headers)
	assert.Equal(t, "x-api-key", headers[0].Name)
	assert.Equal(t, "sk-ant-key", headers[0].Value)

	censor := api.CensorHeaders()
	assert.Contains(t, censor, "x-api-key")
	assert.Contains(t, censor, "cf-ray")
}
