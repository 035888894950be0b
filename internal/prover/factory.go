package prover

import (
	"fmt"

	"github.com/elusaegis/ai-passport/internal/config"
	"github.com/elusaegis/ai-passport/internal/notary"
	"github.com/elusaegis/ai-passport/internal/session"
	"github.com/elusaegis/ai-passport/internal/store"
)

// Options carries the strategy-specific collaborators.
type Options struct {
	Notary    notary.Config
	Proxy     config.ProxyConfig
	MaxRounds int
	Registry  *store.Registry
	// Dialer overrides the session dialer. Nil uses the TLS dialer.
	Dialer session.Dialer
}

// New assembles the prover for a kind.
func New(kind Kind, opts Options) (Prover, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &session.TLSDialer{}
	}

	switch kind {
	case KindDirect:
		return &Direct{}, nil
	case KindProxy:
		return &Proxy{Proxy: opts.Proxy, Registry: opts.Registry}, nil
	case KindTlsSingleShot:
		return &SingleShot{
			Notary:    opts.Notary,
			Dialer:    dialer,
			MaxRounds: opts.MaxRounds,
			Registry:  opts.Registry,
		}, nil
	case KindTlsPerMessage:
		return &PerMessage{
			Notary:   opts.Notary,
			Dialer:   dialer,
			Registry: opts.Registry,
		}, nil
	default:
		return nil, fmt.Errorf("unknown prover kind %q", kind)
	}
}
