package attest

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elusaegis/ai-passport/internal/notary"
)

func TestCensorHeaders(t *testing.T) {
	entry := RequestEntry("POST", "/v1/messages", []HeaderPair{
		{"content-type", "application/json"},
		{"x-api-key", "sk-secret-key-12345"},
		{"Authorization", "Bearer token123"},
	}, "{}")

	entry.CensorHeaders([]string{"x-api-key", "authorization"})

	assert.Equal(t, "application/json", entry.Headers[0][1])
	assert.Equal(t, strings.Repeat("X", 19), entry.Headers[1][1])
	assert.Equal(t, strings.Repeat("X", 15), entry.Headers[2][1])
	// Names stay disclosed.
	assert.Equal(t, "x-api-key", entry.Headers[1][0])
}

func TestCensorBearerTokenLength(t *testing.T) {
	entry := RequestEntry("POST", "/v1/chat/completions", []HeaderPair{
		{"authorization", "Bearer sk-abcde"},
	}, "")

	entry.CensorHeaders([]string{"authorization"})

	// "Bearer sk-abcde" is 15 characters.
	assert.Equal(t, "XXXXXXXXXXXXXXX", entry.Headers[0][1])
}

func TestEntryJSONShape(t *testing.T) {
	req := RequestEntry("POST", "/v1/messages", []HeaderPair{{"host", "api.anthropic.com"}}, `{"q":1}`)
	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"direction": "request",
		"method": "POST",
		"path": "/v1/messages",
		"headers": [["host", "api.anthropic.com"]],
		"body": "{\"q\":1}"
	}`, string(b))

	resp := ResponseEntry(200, []HeaderPair{{"content-type", "application/json"}}, "{}")
	b, err = json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"direction": "response",
		"status": 200,
		"headers": [["content-type", "application/json"]],
		"body": "{}"
	}`, string(b))
}

func TestParseRequests(t *testing.T) {
	stream := "POST /v1/chat/completions HTTP/1.1\r\n" +
		"Host: api.example.com\r\n" +
		"Authorization: Bearer sk-test\r\n" +
		"Content-Length: 7\r\n" +
		"\r\n" +
		`{"a":1}` +
		"GET /health HTTP/1.1\r\n" +
		"Host: api.example.com\r\n" +
		"\r\n"

	entries, err := parseRequests([]byte(stream))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "POST", entries[0].Method)
	assert.Equal(t, "/v1/chat/completions", entries[0].Path)
	assert.Equal(t, `{"a":1}`, entries[0].Body)
	assert.Equal(t, HeaderPair{"Authorization", "Bearer sk-test"}, entries[0].Headers[1])

	assert.Equal(t, "GET", entries[1].Method)
	assert.Empty(t, entries[1].Body)
}

func TestParseResponsesContentLength(t *testing.T) {
	stream := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 2\r\n" +
		"\r\n" +
		"{}" +
		"HTTP/1.1 429 Too Many Requests\r\n" +
		"Content-Length: 4\r\n" +
		"\r\n" +
		"slow"

	entries, err := parseResponses([]byte(stream))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 200, entries[0].Status)
	assert.Equal(t, "{}", entries[0].Body)
	assert.Equal(t, 429, entries[1].Status)
	assert.Equal(t, "slow", entries[1].Body)
}

func TestParseResponsesReadToClose(t *testing.T) {
	stream := "HTTP/1.1 200 OK\r\n" +
		"Connection: close\r\n" +
		"\r\n" +
		`{"tail":"delimited"}`

	entries, err := parseResponses([]byte(stream))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, `{"tail":"delimited"}`, entries[0].Body)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := parseRequests([]byte("not http at all"))
	assert.Error(t, err)

	_, err = parseRequests([]byte("POST /x HTTP/1.1\r\nContent-Length: 99\r\n\r\nshort"))
	assert.Error(t, err)

	_, err = parseResponses([]byte("FTP/1.0 banana\r\n\r\n"))
	assert.Error(t, err)
}

func ephemeralSignFunc(t *testing.T) (func(context.Context, []byte) (string, string, error), *notary.Signer) {
	t.Helper()
	signer, err := notary.EphemeralSigner()
	require.NoError(t, err)
	return func(_ context.Context, message []byte) (string, string, error) {
		return signer.Sign(message), signer.PublicKeyHex(), nil
	}, signer
}

func TestBuildAndSignRoundTrip(t *testing.T) {
	sign, signer := ephemeralSignFunc(t)

	transcript := []Entry{
		RequestEntry("POST", "/v1/chat/completions", []HeaderPair{
			{"Host", "api.example.com"},
			{"authorization", "Bearer sk-abcde"},
		}, `{"q":1}`),
		ResponseEntry(200, []HeaderPair{{"content-type", "application/json"}}, `{"a":1}`),
	}

	att, err := BuildAndSign(context.Background(), transcript, "api.example.com", []string{"authorization"}, sign)
	require.NoError(t, err)

	// Censorship happened before signing.
	assert.Equal(t, strings.Repeat("X", 15), att.Transcript[0].Headers[1][1])

	// Signature round-trip with the explicit key and the embedded key.
	require.NoError(t, att.Verify(signer.PublicKeyHex()))
	require.NoError(t, att.Verify(""))

	// Any mutation breaks it.
	att.Transcript[1].Body = "tampered"
	assert.Error(t, att.Verify(""))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	sign, _ := ephemeralSignFunc(t)

	att, err := BuildAndSign(context.Background(), []Entry{
		RequestEntry("GET", "/", nil, ""),
	}, "host", nil, sign)
	require.NoError(t, err)

	// A syntactically valid but wrong key.
	wrongKey := "02" + strings.Repeat("11", 32)
	assert.Error(t, att.Verify(wrongKey))
}

func TestNotarizationErrorWraps(t *testing.T) {
	failing := func(context.Context, []byte) (string, string, error) {
		return "", "", assert.AnError
	}

	_, err := BuildAndSign(context.Background(), nil, "host", nil, failing)
	require.Error(t, err)

	var notarization *NotarizationError
	require.ErrorAs(t, err, &notarization)
	assert.ErrorIs(t, err, assert.AnError)
}
