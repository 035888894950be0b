package provider

// Fireworks is OpenAI-compatible with custom endpoint paths.
type Fireworks struct {
	openAICompatible
}

// NewFireworks creates the Fireworks provider.
func NewFireworks() *Fireworks {
	return &Fireworks{openAICompatible{name: "fireworks"}}
}

func (p *Fireworks) ChatEndpoint() string { return "/inference/v1/chat/completions" }

func (p *Fireworks) ModelsEndpoint() string { return "/inference/v1/models" }

func (p *Fireworks) ResponseCensorHeaders() []string {
	return []string{
		"request-id",
		"cf-ray",
		"server-timing",
		"report-to",
		"x-request-id",
	}
}

var _ Provider = (*Fireworks)(nil)
