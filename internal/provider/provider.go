// Package provider isolates LLM-vendor-specific wire details.
//
// DESIGN: Every supported vendor speaks a near-OpenAI dialect. The
// Provider interface captures the full capability set (endpoint, auth
// headers, body shape, reply parsing, censor lists, overhead hints);
// a base implementation supplies the OpenAI-compatible defaults and
// each variant overrides only what differs. The rest of the system is
// vendor-agnostic.
//
// To add a vendor: implement Provider (embed openAICompatible for the
// defaults) and wire it into FromDomain.
package provider

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/elusaegis/ai-passport/internal/budget"
	"github.com/elusaegis/ai-passport/internal/chat"
	"github.com/elusaegis/ai-passport/internal/httpwire"
)

// Provider is the vendor capability set.
// Implementations are stateless and freely shareable.
type Provider interface {
	// Name returns the vendor identifier (e.g. "anthropic").
	Name() string

	// ChatEndpoint returns the path for chat/message completions.
	ChatEndpoint() string

	// ChatHeaders returns the auth headers for the chat endpoint.
	ChatHeaders(apiKey string) []httpwire.Header

	// BuildChatBody builds the JSON request body. maxTokens <= 0 means
	// no limit is requested (vendors that require one apply their own).
	BuildChatBody(modelID string, messages []chat.Message, maxTokens int) (string, error)

	// ParseReply extracts the assistant message from a response body.
	ParseReply(body []byte) (chat.Message, error)

	// ModelsEndpoint returns the path for listing available models.
	ModelsEndpoint() string

	// ModelsHeaders returns the auth headers for the models endpoint.
	ModelsHeaders(apiKey string) []httpwire.Header

	// RequestCensorHeaders lists request header names whose values must
	// not be disclosed in attestations.
	RequestCensorHeaders() []string

	// ResponseCensorHeaders lists response header names whose values
	// must not be disclosed (rate-limit timers, trace ids, ...).
	ResponseCensorHeaders() []string

	// ExpectedOverhead returns per-vendor HTTP overhead hints for
	// capacity planning, used until real values are observed.
	ExpectedOverhead() budget.ExpectedOverhead
}

// MalformedReplyError reports that a response body did not contain the
// assistant message where the vendor's schema says it should be.
type MalformedReplyError struct {
	Vendor string
	Path   string
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("malformed %s reply: missing or non-string %q", e.Vendor, e.Path)
}

// openAICompatible supplies the default behavior shared by every
// vendor speaking the OpenAI chat completions dialect.
type openAICompatible struct {
	name string
}

func (p openAICompatible) Name() string { return p.name }

func (p openAICompatible) ChatEndpoint() string { return "/v1/chat/completions" }

func (p openAICompatible) ChatHeaders(apiKey string) []httpwire.Header {
	return []httpwire.Header{{Name: "Authorization", Value: "Bearer " + apiKey}}
}

func (p openAICompatible) BuildChatBody(modelID string, messages []chat.Message, maxTokens int) (string, error) {
	body, err := buildBaseBody(modelID, messages)
	if err != nil {
		return "", err
	}
	if maxTokens > 0 {
		if body, err = sjson.Set(body, "max_tokens", maxTokens); err != nil {
			return "", fmt.Errorf("setting max_tokens: %w", err)
		}
	}
	return body, nil
}

func (p openAICompatible) ParseReply(body []byte) (chat.Message, error) {
	return parseReplyAt(p.name, body, "choices.0.message.content")
}

func (p openAICompatible) ModelsEndpoint() string { return "/v1/models" }

func (p openAICompatible) ModelsHeaders(apiKey string) []httpwire.Header {
	return p.ChatHeaders(apiKey)
}

func (p openAICompatible) RequestCensorHeaders() []string {
	return []string{"authorization"}
}

func (p openAICompatible) ExpectedOverhead() budget.ExpectedOverhead {
	return budget.ExpectedOverhead{}
}

// buildBaseBody assembles {"model": ..., "messages": [...]}.
func buildBaseBody(modelID string, messages []chat.Message) (string, error) {
	msgs, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("serializing messages: %w", err)
	}
	body, err := sjson.Set("{}", "model", modelID)
	if err != nil {
		return "", fmt.Errorf("setting model: %w", err)
	}
	if body, err = sjson.SetRaw(body, "messages", string(msgs)); err != nil {
		return "", fmt.Errorf("setting messages: %w", err)
	}
	return body, nil
}

// parseReplyAt reads the assistant content at a gjson path.
func parseReplyAt(vendor string, body []byte, path string) (chat.Message, error) {
	content := gjson.GetBytes(body, path)
	if content.Type != gjson.String {
		return chat.Message{}, &MalformedReplyError{Vendor: vendor, Path: path}
	}
	return chat.Assistant(content.String()), nil
}
