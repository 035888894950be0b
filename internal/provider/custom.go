package provider

import "github.com/elusaegis/ai-passport/internal/budget"

// Known overhead of the demo model server, which emits a fixed header set.
const (
	customRequestOverhead  = 250
	customResponseOverhead = 510
)

// Custom is the demo model server: OpenAI-compatible, no tracking
// headers, and a precisely known HTTP overhead.
type Custom struct {
	openAICompatible
}

// NewCustom creates the demo-server provider.
func NewCustom() *Custom {
	return &Custom{openAICompatible{name: "custom"}}
}

func (p *Custom) ResponseCensorHeaders() []string {
	return nil
}

func (p *Custom) ExpectedOverhead() budget.ExpectedOverhead {
	return budget.ExpectedOverhead{
		Request:  customRequestOverhead,
		Response: customResponseOverhead,
	}
}

var _ Provider = (*Custom)(nil)
