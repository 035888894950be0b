package provider

import (
	"strings"

	"github.com/elusaegis/ai-passport/internal/chat"
	"github.com/elusaegis/ai-passport/internal/httpwire"
)

// RedPill is an OpenAI-compatible aggregator. Claude models behind it
// inherit Anthropic's mandatory max_tokens, and its model-list endpoint
// takes no auth headers.
type RedPill struct {
	openAICompatible
}

// NewRedPill creates the RedPill provider.
func NewRedPill() *RedPill {
	return &RedPill{openAICompatible{name: "redpill"}}
}

func (p *RedPill) BuildChatBody(modelID string, messages []chat.Message, maxTokens int) (string, error) {
	if maxTokens <= 0 && strings.Contains(strings.ToLower(modelID), "claude") {
		maxTokens = anthropicMaxTokensCap
	}
	return p.openAICompatible.BuildChatBody(modelID, messages, maxTokens)
}

func (p *RedPill) ModelsHeaders(apiKey string) []httpwire.Header {
	return nil
}

func (p *RedPill) ResponseCensorHeaders() []string {
	return []string{"date", "cf-ray", "x-request-id", "set-cookie"}
}

var _ Provider = (*RedPill)(nil)
