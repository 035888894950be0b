package provider

// Unknown is the fallback for unrecognized hosts: plain
// OpenAI-compatible defaults with the common tracking headers censored.
type Unknown struct {
	openAICompatible
}

// NewUnknown creates the fallback provider.
func NewUnknown() *Unknown {
	return &Unknown{openAICompatible{name: "unknown"}}
}

func (p *Unknown) ResponseCensorHeaders() []string {
	return []string{"request-id", "cf-ray", "server-timing", "report-to"}
}

var _ Provider = (*Unknown)(nil)
