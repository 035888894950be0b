package provider

// Mistral uses the OpenAI-compatible API format throughout.
type Mistral struct {
	openAICompatible
}

// NewMistral creates the Mistral provider.
func NewMistral() *Mistral {
	return &Mistral{openAICompatible{name: "mistral"}}
}

func (p *Mistral) ResponseCensorHeaders() []string {
	return []string{
		"request-id",
		"cf-ray",
		"server-timing",
		"report-to",
		"x-kong-request-id",
	}
}

var _ Provider = (*Mistral)(nil)
