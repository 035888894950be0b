package provider

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/elusaegis/ai-passport/internal/httpwire"
)

// FromDomain selects a provider by hostname substring. Unrecognized
// hosts fall back to the OpenAI-compatible Unknown profile.
func FromDomain(domain string) Provider {
	switch {
	case strings.Contains(domain, "proof-of-autonomy.elusaegis.xyz"):
		return NewCustom()
	case strings.Contains(domain, "anthropic"):
		return NewAnthropic()
	case strings.Contains(domain, "fireworks"):
		return NewFireworks()
	case strings.Contains(domain, "mistral"):
		return NewMistral()
	case strings.Contains(domain, "red-pill"):
		return NewRedPill()
	default:
		log.Warn().
			Str("domain", domain).
			Msg("unknown provider domain, using OpenAI-compatible defaults")
		return NewUnknown()
	}
}

// API binds a provider to the endpoint it is hosted at and the
// credential used to reach it.
type API struct {
	Provider

	Domain string
	Port   int
	Key    string
}

// NewAPI builds an API with the provider auto-detected from the domain.
func NewAPI(domain string, port int, apiKey string) *API {
	return &API{
		Provider: FromDomain(domain),
		Domain:   domain,
		Port:     port,
		Key:      apiKey,
	}
}

// AuthHeaders returns the chat auth headers using the bound key.
func (a *API) AuthHeaders() []httpwire.Header {
	return a.ChatHeaders(a.Key)
}

// CensorHeaders returns the union of request and response censor
// lists, as sent to the attestation proxy.
func (a *API) CensorHeaders() []string {
	return append(a.RequestCensorHeaders(), a.ResponseCensorHeaders()...)
}
