package provider

import (
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/elusaegis/ai-passport/internal/chat"
	"github.com/elusaegis/ai-passport/internal/httpwire"
)

const anthropicVersion = "2023-06-01"

// Anthropic max_tokens bounds: the field is mandatory on /v1/messages.
const (
	anthropicDefaultMaxTokens = 1024
	anthropicMaxTokensCap     = 1024 * 10
)

// Anthropic speaks the Messages API: /v1/messages, x-api-key auth, a
// mandatory max_tokens, and replies under content[0].text.
type Anthropic struct {
	openAICompatible
}

// NewAnthropic creates the Anthropic provider.
func NewAnthropic() *Anthropic {
	return &Anthropic{openAICompatible{name: "anthropic"}}
}

func (p *Anthropic) ChatEndpoint() string { return "/v1/messages" }

func (p *Anthropic) ChatHeaders(apiKey string) []httpwire.Header {
	return []httpwire.Header{
		{Name: "x-api-key", Value: apiKey},
		{Name: "anthropic-version", Value: anthropicVersion},
	}
}

func (p *Anthropic) BuildChatBody(modelID string, messages []chat.Message, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	if maxTokens > anthropicMaxTokensCap {
		maxTokens = anthropicMaxTokensCap
	}

	body, err := buildBaseBody(modelID, messages)
	if err != nil {
		return "", err
	}
	if body, err = sjson.Set(body, "max_tokens", maxTokens); err != nil {
		return "", fmt.Errorf("setting max_tokens: %w", err)
	}
	if body, err = sjson.Set(body, "stream", false); err != nil {
		return "", fmt.Errorf("setting stream: %w", err)
	}
	return body, nil
}

func (p *Anthropic) ParseReply(body []byte) (chat.Message, error) {
	return parseReplyAt(p.name, body, "content.0.text")
}

func (p *Anthropic) ModelsHeaders(apiKey string) []httpwire.Header {
	return p.ChatHeaders(apiKey)
}

func (p *Anthropic) RequestCensorHeaders() []string {
	return []string{"x-api-key"}
}

func (p *Anthropic) ResponseCensorHeaders() []string {
	return []string{
		// Common
		"request-id",
		"cf-ray",
		"server-timing",
		"report-to",
		// Anthropic-specific
		"anthropic-ratelimit-requests-reset",
		"anthropic-ratelimit-tokens-reset",
		"x-kong-request-id",
	}
}

var _ Provider = (*Anthropic)(nil)
